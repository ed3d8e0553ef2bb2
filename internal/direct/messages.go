package direct

import (
	"encoding/json"
	"time"
)

// envelope is the outer frame on the direct channel. Every inbound message
// carries a type discriminator and a type-specific payload.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PresenceEvent reports an occupancy change for a zone, sourced from the
// mmWave sensors.
type PresenceEvent struct {
	ZoneID    string    `json:"zone_id"`
	SiteID    string    `json:"site_id"`
	Presence  bool      `json:"presence"`
	Distance  float64   `json:"distance,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChange reports an entity transitioning between online, offline and
// error states.
type StatusChange struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"` // "node" or "coordinator"
	Status     string `json:"status"`      // "online", "offline" or "error"
}

// PairingEvent reports progress of a node pairing request.
type PairingEvent struct {
	NodeID     string `json:"node_id"`
	MACAddress string `json:"mac_address"`
	Status     string `json:"status"` // "requesting", "approved" or "rejected"
}

// ServerError is an error message pushed by the backend.
type ServerError struct {
	Message string `json:"message"`
}

// CommandAck acknowledges a previously issued command.
type CommandAck struct {
	CommandID string `json:"command_id,omitempty"`
	NodeID    string `json:"node_id,omitempty"`
	Status    string `json:"status,omitempty"`
}
