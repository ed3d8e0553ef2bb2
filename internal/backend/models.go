package backend

import "time"

// Site is a physical installation grouping coordinators and zones.
type Site struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	Coordinators []string  `json:"coordinators"`
	Zones        []Zone    `json:"zones"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Zone is a named region of a site served by one coordinator.
type Zone struct {
	ID            string `json:"_id,omitempty"`
	Name          string `json:"name"`
	SiteID        string `json:"site_id"`
	CoordinatorID string `json:"coordinator_id"`
}

// Coordinator is the backend's view of a coordinator device.
type Coordinator struct {
	ID              string    `json:"_id"`
	CoordID         string    `json:"coord_id"`
	SiteID          string    `json:"site_id"`
	MACAddress      string    `json:"mac_address"`
	WifiSSID        string    `json:"wifi_ssid,omitempty"`
	WifiRSSI        int       `json:"wifi_rssi,omitempty"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	Status          string    `json:"status"`
	Uptime          int64     `json:"uptime,omitempty"`
	HeapFree        int       `json:"heap_free,omitempty"`
	LightLux        float64   `json:"light_lux,omitempty"`
	TempC           float64   `json:"temp_c,omitempty"`
	LastSeen        time.Time `json:"last_seen"`
}

// RGBW holds four light channel levels.
type RGBW struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	W int `json:"w"`
}

// Node is the backend's view of a light node.
type Node struct {
	ID              string    `json:"_id"`
	NodeID          string    `json:"node_id"`
	Name            string    `json:"name,omitempty"`
	SiteID          string    `json:"site_id"`
	ZoneID          string    `json:"zone_id,omitempty"`
	MACAddress      string    `json:"mac_address"`
	Paired          bool      `json:"paired"`
	Status          string    `json:"status"`
	RGBW            *RGBW     `json:"rgbw,omitempty"`
	Brightness      int       `json:"brightness,omitempty"`
	Temperature     float64   `json:"temperature,omitempty"`
	BatteryVoltage  float64   `json:"battery_voltage,omitempty"`
	BatteryPercent  int       `json:"battery_percent,omitempty"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	LastSeen        time.Time `json:"last_seen"`
}

// SetLightCommand sets a node's light output.
type SetLightCommand struct {
	NodeID       string `json:"node_id"`
	SiteID       string `json:"site_id"`
	RGBW         *RGBW  `json:"rgbw,omitempty"`
	Brightness   *int   `json:"brightness,omitempty"`
	FadeDuration int    `json:"fade_duration,omitempty"`
}

// ColorProfileCommand applies a named color profile to a zone.
type ColorProfileCommand struct {
	ZoneID  string `json:"zone_id"`
	SiteID  string `json:"site_id"`
	Profile string `json:"profile"` // "warm", "cool", "daylight" or "custom"
	RGBW    *RGBW  `json:"rgbw,omitempty"`
}

// PairingApproval accepts or rejects a node pairing request.
type PairingApproval struct {
	NodeID  string `json:"node_id"`
	SiteID  string `json:"site_id"`
	ZoneID  string `json:"zone_id,omitempty"`
	Approve bool   `json:"approve"`
}

// StartOTARequest starts a firmware update job.
type StartOTARequest struct {
	TargetType  string `json:"target_type"` // "coordinator" or "node"
	TargetID    string `json:"target_id"`
	FirmwareURL string `json:"firmware_url"`
	Version     string `json:"version"`
}

// OTAJob tracks one firmware update.
type OTAJob struct {
	ID          string    `json:"_id"`
	JobID       string    `json:"job_id"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id"`
	FirmwareURL string    `json:"firmware_url"`
	Version     string    `json:"version"`
	Status      string    `json:"status"` // "pending", "in_progress", "completed" or "failed"
	Progress    int       `json:"progress,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MmwaveTarget is one tracked target within an mmWave frame.
type MmwaveTarget struct {
	ID           int     `json:"id"`
	DistanceMm   int     `json:"distance_mm"`
	SpeedCmS     int     `json:"speed_cm_s"`
	ResolutionMm int     `json:"resolution_mm"`
	PositionXMm  int     `json:"position_x_mm"`
	PositionYMm  int     `json:"position_y_mm"`
	VelocityXMS  float64 `json:"velocity_x_m_s"`
	VelocityYMS  float64 `json:"velocity_y_m_s"`
}

// MmwaveFrame is one historical mmWave sensor frame.
type MmwaveFrame struct {
	ID            string         `json:"id,omitempty"`
	SiteID        string         `json:"site_id"`
	CoordinatorID string         `json:"coordinator_id"`
	SensorID      string         `json:"sensor_id"`
	Presence      bool           `json:"presence"`
	Confidence    float64        `json:"confidence"`
	Targets       []MmwaveTarget `json:"targets"`
	Timestamp     time.Time      `json:"timestamp"`
}

// HealthStatus is the backend's health probe response.
type HealthStatus struct {
	Status    string `json:"status"` // "healthy", "degraded" or "unhealthy"
	Service   string `json:"service"`
	Database  bool   `json:"database,omitempty"`
	MQTT      bool   `json:"mqtt,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
