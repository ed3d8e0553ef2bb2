package devicestate

import "time"

// Status is an entity's connectivity state.
type Status string

// Entity connectivity states.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
	StatusPairing Status = "pairing"
)

// RGBW holds the four light channel levels, 0-255 each.
type RGBW struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	W int `json:"w"`
}

// NodeRecord is the cache's long-lived view of a light node.
//
// BatteryPercent is always clamped to [0,100], derived linearly from the
// battery voltage over the cell's working range (3.0V empty, 4.2V full).
type NodeRecord struct {
	ID     string `json:"node_id"`
	SiteID string `json:"site_id,omitempty"`
	Name   string `json:"name,omitempty"`
	ZoneID string `json:"zone_id,omitempty"`
	Status Status `json:"status"`

	RGBW       RGBW `json:"rgbw"`
	Brightness int  `json:"brightness"`

	Temperature    float64 `json:"temperature"`
	BatteryVoltage float64 `json:"battery_voltage"`
	BatteryPercent int     `json:"battery_percent"`

	LastSeen time.Time `json:"last_seen"`
}

// DeepCopy returns an independent copy of the record.
func (n *NodeRecord) DeepCopy() *NodeRecord {
	if n == nil {
		return nil
	}
	copied := *n
	return &copied
}

// CoordinatorRecord is the cache's long-lived view of a coordinator.
type CoordinatorRecord struct {
	ID     string `json:"coord_id"`
	SiteID string `json:"site_id,omitempty"`
	Status Status `json:"status"`

	WifiRSSI int     `json:"wifi_rssi"`
	LightLux float64 `json:"light_lux"`
	TempC    float64 `json:"temp_c"`
	HeapFree int     `json:"heap_free"`
	Uptime   int64   `json:"uptime"`

	LastSeen time.Time `json:"last_seen"`
}

// DeepCopy returns an independent copy of the record.
func (c *CoordinatorRecord) DeepCopy() *CoordinatorRecord {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

// PresenceEvent is one occupancy observation for a zone.
type PresenceEvent struct {
	ZoneID    string    `json:"zone_id"`
	SiteID    string    `json:"site_id"`
	Presence  bool      `json:"presence"`
	Distance  float64   `json:"distance,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Change describes one observable cache mutation, delivered to observers.
type Change struct {
	// Kind is "node", "coordinator" or "presence".
	Kind string

	// ID is the entity identifier, or the zone for presence changes.
	ID string
}
