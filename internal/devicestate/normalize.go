package devicestate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnknownShape indicates a telemetry payload carrying neither a node nor
// a coordinator identifier in any known spelling.
var ErrUnknownShape = errors.New("devicestate: telemetry payload has no recognizable identity field")

// Battery working range in millivolts. Percent is a linear map over this
// range, clamped at the ends.
const (
	batteryEmptyMv = 3000
	batteryFullMv  = 4200
)

// NodeTelemetry is one node telemetry reading in canonical form.
type NodeTelemetry struct {
	NodeID         string
	SiteID         string
	RGBW           RGBW
	Brightness     int
	Temperature    float64
	BatteryVoltage float64 // volts
	BatteryPercent int
	Timestamp      time.Time
}

// CoordinatorTelemetry is one coordinator telemetry reading in canonical form.
type CoordinatorTelemetry struct {
	CoordID   string
	SiteID    string
	WifiRSSI  int
	LightLux  float64
	TempC     float64
	HeapFree  int
	Uptime    int64
	Timestamp time.Time
}

// Telemetry is the result of normalizing one raw payload. Exactly one of
// Node and Coordinator is non-nil.
type Telemetry struct {
	Node        *NodeTelemetry
	Coordinator *CoordinatorTelemetry
}

// rawTelemetry enumerates every known field spelling across the two
// channels. The bridge path uses snake_case, the direct channel camelCase,
// and older coordinator firmware nests light state under a "light" object.
// Normalize resolves all of them to the canonical types; nothing downstream
// sees an alias.
type rawTelemetry struct {
	NodeID      string `json:"node_id"`
	NodeIDAlt   string `json:"nodeId"`
	CoordID     string `json:"coord_id"`
	CoordIDAlt  string `json:"coordId"`
	CoordIDFull string `json:"coordinator_id"`
	SiteID      string `json:"site_id"`
	SiteIDAlt   string `json:"siteId"`

	RGBW       *RGBW     `json:"rgbw"`
	Light      *rawLight `json:"light"`
	Brightness *int      `json:"brightness"`

	Temperature *float64 `json:"temperature"`
	TempC       *float64 `json:"tempC"`
	TempCSnake  *float64 `json:"temp_c"`

	BatteryVoltage *float64 `json:"battery_voltage"` // volts
	VbatMv         *int     `json:"vbatMv"`          // millivolts
	BatteryPercent *int     `json:"battery_percent"`

	WifiRSSI    *int     `json:"wifi_rssi"`
	WifiRSSIAlt *int     `json:"wifiRssi"`
	LightLux    *float64 `json:"light_lux"`
	LightLuxAlt *float64 `json:"lightLux"`
	HeapFree    *int     `json:"heap_free"`
	HeapFreeAlt *int     `json:"heapFree"`
	Uptime      *int64   `json:"uptime"`

	TsMillis int64 `json:"ts"` // epoch milliseconds, direct channel only
}

// rawLight is the nested light shape used by the direct channel.
type rawLight struct {
	On         bool `json:"on"`
	Brightness int  `json:"brightness"`
	AvgR       int  `json:"avgR"`
	AvgG       int  `json:"avgG"`
	AvgB       int  `json:"avgB"`
	AvgW       int  `json:"avgW"`
}

// Normalize maps one raw telemetry payload to canonical form.
//
// Shape discrimination is by identity field: any coordinator identifier
// ("coordinator_id", "coord_id" or "coordId") takes precedence over a node
// identifier, since some firmware echoes the owning node id in coordinator
// frames. Payloads with neither return ErrUnknownShape.
func Normalize(raw []byte) (*Telemetry, error) {
	var rt rawTelemetry
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("devicestate: parsing telemetry: %w", err)
	}

	ts := time.Now()
	if rt.TsMillis > 0 {
		ts = time.UnixMilli(rt.TsMillis)
	}

	siteID := firstNonEmpty(rt.SiteID, rt.SiteIDAlt)

	if coordID := firstNonEmpty(rt.CoordIDFull, rt.CoordID, rt.CoordIDAlt); coordID != "" {
		coord := &CoordinatorTelemetry{
			CoordID:   coordID,
			SiteID:    siteID,
			Timestamp: ts,
		}
		if v := coalesceInt(rt.WifiRSSI, rt.WifiRSSIAlt); v != nil {
			coord.WifiRSSI = *v
		}
		if v := coalesceFloat(rt.LightLux, rt.LightLuxAlt); v != nil {
			coord.LightLux = *v
		}
		if v := coalesceFloat(rt.TempCSnake, rt.TempC, rt.Temperature); v != nil {
			coord.TempC = *v
		}
		if v := coalesceInt(rt.HeapFree, rt.HeapFreeAlt); v != nil {
			coord.HeapFree = *v
		}
		if rt.Uptime != nil {
			coord.Uptime = *rt.Uptime
		}
		return &Telemetry{Coordinator: coord}, nil
	}

	nodeID := firstNonEmpty(rt.NodeID, rt.NodeIDAlt)
	if nodeID == "" {
		return nil, ErrUnknownShape
	}

	node := &NodeTelemetry{
		NodeID:    nodeID,
		SiteID:    siteID,
		Timestamp: ts,
	}

	switch {
	case rt.RGBW != nil:
		node.RGBW = *rt.RGBW
	case rt.Light != nil:
		node.RGBW = RGBW{R: rt.Light.AvgR, G: rt.Light.AvgG, B: rt.Light.AvgB, W: rt.Light.AvgW}
	}

	switch {
	case rt.Brightness != nil:
		node.Brightness = *rt.Brightness
	case rt.Light != nil:
		node.Brightness = rt.Light.Brightness
	}

	if v := coalesceFloat(rt.Temperature, rt.TempC, rt.TempCSnake); v != nil {
		node.Temperature = *v
	}

	switch {
	case rt.BatteryVoltage != nil:
		node.BatteryVoltage = *rt.BatteryVoltage
	case rt.VbatMv != nil:
		node.BatteryVoltage = float64(*rt.VbatMv) / 1000.0
	}

	if rt.BatteryPercent != nil {
		node.BatteryPercent = clampPercent(*rt.BatteryPercent)
	} else if node.BatteryVoltage > 0 {
		node.BatteryPercent = BatteryPercent(int(math.Round(node.BatteryVoltage * 1000)))
	}

	return &Telemetry{Node: node}, nil
}

// BatteryPercent maps a battery reading in millivolts to a whole percent,
// linear over [3000,4200] and clamped to [0,100].
func BatteryPercent(millivolts int) int {
	if millivolts <= batteryEmptyMv {
		return 0
	}
	if millivolts >= batteryFullMv {
		return 100
	}
	span := float64(batteryFullMv - batteryEmptyMv)
	return int(math.Round(float64(millivolts-batteryEmptyMv) / span * 100))
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalesceFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func coalesceInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
