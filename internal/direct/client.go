package direct

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/smarttile-ops/internal/realtime"
)

// Logger is the logging interface used by the direct channel client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// transport is the connection surface the client needs. Satisfied by
// *realtime.Conn.
type transport interface {
	Connect()
	Disconnect()
	Send(v any) error
	IsConnected() bool
	State() realtime.State
	SetOnMessage(func(data []byte))
}

// Handlers receives routed messages from the direct channel. Any handler
// may be nil; messages for nil handlers are silently skipped.
//
// Telemetry payloads are heterogeneous (node and coordinator shapes, with
// several field naming variants between firmware generations), so they are
// delivered raw for the state cache to normalize.
type Handlers struct {
	// Message is the catch-all: it receives every decodable envelope,
	// including unknown types, before per-type routing runs.
	Message func(envType string, payload []byte)

	Telemetry  func(payload []byte)
	Presence   func(event PresenceEvent)
	Status     func(change StatusChange)
	Pairing    func(event PairingEvent)
	CommandAck func(ack CommandAck)
	Error      func(serverError ServerError)
}

// Client routes typed envelopes arriving on the backend's direct WebSocket
// channel to per-type handlers.
//
// Envelope types "telemetry", "presence", "status", "pairing", "error" and
// "command_ack" are routed; unknown types are logged and dropped so a
// backend upgrade cannot break the stream. Malformed payloads are likewise
// logged and dropped without affecting subsequent messages.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	conn   transport
	logger Logger

	mu       sync.RWMutex
	handlers Handlers
	onError  func(err error)
}

// NewClient creates a direct channel client on top of an existing
// connection. The client takes over the connection's message callback.
func NewClient(conn transport, logger Logger) *Client {
	c := &Client{conn: conn, logger: logger}
	conn.SetOnMessage(c.handleFrame)
	return c
}

// SetHandlers replaces the full routing table. Call before Connect to
// avoid missing early messages.
func (c *Client) SetHandlers(handlers Handlers) {
	c.mu.Lock()
	c.handlers = handlers
	c.mu.Unlock()
}

// SetOnError sets a diagnostics callback invoked when an inbound frame
// or payload cannot be decoded. The message is dropped either way.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Connect opens the underlying connection.
func (c *Client) Connect() {
	c.conn.Connect()
}

// Disconnect closes the underlying connection.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State returns the underlying connection state snapshot.
func (c *Client) State() realtime.State {
	return c.conn.State()
}

// Send transmits an arbitrary JSON message to the backend over the channel.
func (c *Client) Send(v any) error {
	return c.conn.Send(v)
}

// handleFrame parses one inbound envelope and routes it: catch-all
// handler first, then by type.
func (c *Client) handleFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("malformed envelope dropped", "error", err)
		c.reportError(fmt.Errorf("%w: %w", ErrMalformedEnvelope, err))
		return
	}

	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()

	if handlers.Message != nil {
		handlers.Message(env.Type, env.Payload)
	}

	switch env.Type {
	case "telemetry":
		if handlers.Telemetry != nil {
			handlers.Telemetry(env.Payload)
		}

	case "presence":
		var event PresenceEvent
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			c.logger.Warn("malformed presence payload dropped", "error", err)
			c.reportError(fmt.Errorf("%w: presence: %w", ErrMalformedEnvelope, err))
			return
		}
		if handlers.Presence != nil {
			handlers.Presence(event)
		}

	case "status":
		var change StatusChange
		if err := json.Unmarshal(env.Payload, &change); err != nil {
			c.logger.Warn("malformed status payload dropped", "error", err)
			c.reportError(fmt.Errorf("%w: status: %w", ErrMalformedEnvelope, err))
			return
		}
		if handlers.Status != nil {
			handlers.Status(change)
		}

	case "pairing":
		var event PairingEvent
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			c.logger.Warn("malformed pairing payload dropped", "error", err)
			c.reportError(fmt.Errorf("%w: pairing: %w", ErrMalformedEnvelope, err))
			return
		}
		if handlers.Pairing != nil {
			handlers.Pairing(event)
		}

	case "command_ack":
		var ack CommandAck
		if err := json.Unmarshal(env.Payload, &ack); err != nil {
			c.logger.Warn("malformed command_ack payload dropped", "error", err)
			c.reportError(fmt.Errorf("%w: command_ack: %w", ErrMalformedEnvelope, err))
			return
		}
		c.logger.Debug("command acknowledged",
			"command_id", ack.CommandID, "node_id", ack.NodeID, "status", ack.Status)
		if handlers.CommandAck != nil {
			handlers.CommandAck(ack)
		}

	case "error":
		var serverError ServerError
		if err := json.Unmarshal(env.Payload, &serverError); err != nil || serverError.Message == "" {
			serverError.Message = "unknown server error"
		}
		c.logger.Error("server error received", "message", serverError.Message)
		if handlers.Error != nil {
			handlers.Error(serverError)
		}

	default:
		c.logger.Warn("unknown envelope type dropped", "type", env.Type)
	}
}

// reportError delivers a decode failure to the diagnostics callback, if set.
func (c *Client) reportError(err error) {
	c.mu.RLock()
	onError := c.onError
	c.mu.RUnlock()
	if onError != nil {
		onError(err)
	}
}
