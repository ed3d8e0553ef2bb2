// Package influxdb records device telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with non-blocking
// batched writes for tile node telemetry, coordinator telemetry, and
// zone presence transitions.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // InfluxDB is optional; run without it
//	}
//	client.WriteNodeTelemetry("site-1", "node-7", fields, time.Now())
package influxdb
