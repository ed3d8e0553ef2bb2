package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteNodeTelemetry records one tile node telemetry sample.
//
// The write is non-blocking; data is batched and sent asynchronously.
// fields carries the numeric readings (brightness, temperature_c,
// battery_voltage, battery_percent and so on).
//
// Example:
//
//	client.WriteNodeTelemetry("site-1", "node-7", map[string]interface{}{
//	    "temperature_c":   21.5,
//	    "battery_percent": 86,
//	}, time.Now())
func (c *Client) WriteNodeTelemetry(siteID, nodeID string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"node_telemetry",
		map[string]string{
			"site_id": siteID,
			"node_id": nodeID,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteCoordinatorTelemetry records one coordinator telemetry sample
// (wifi_rssi, light_lux, temp_c, heap_free).
func (c *Client) WriteCoordinatorTelemetry(siteID, coordinatorID string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"coordinator_telemetry",
		map[string]string{
			"site_id":        siteID,
			"coordinator_id": coordinatorID,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WritePresence records a zone presence transition.
func (c *Client) WritePresence(siteID, zoneID string, present bool, distance float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"present": present,
	}
	if distance > 0 {
		fields["distance_m"] = distance
	}

	point := write.NewPoint(
		"zone_presence",
		map[string]string{
			"site_id": siteID,
			"zone_id": zoneID,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
