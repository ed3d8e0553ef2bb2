package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/smarttile-ops/internal/realtime"
)

// Message is a single broker message delivered through the bridge.
type Message struct {
	Topic   string
	Payload []byte

	// Timestamp is the broker-side publish time when the bridge supplied
	// one, otherwise the local arrival time.
	Timestamp time.Time
}

// MessageHandler processes a delivered message. A returned error is logged,
// not propagated; delivery to other handlers continues regardless.
type MessageHandler func(msg Message) error

// controlFrame is an outbound frame on the bridge socket.
type controlFrame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	QoS     *byte           `json:"qos,omitempty"`
}

// deliveryFrame is an inbound frame on the bridge socket. Timestamp is
// epoch milliseconds and may be absent.
type deliveryFrame struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Logger is the logging interface used by the bridge client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// transport is the connection surface the client needs. Satisfied by
// *realtime.Conn; carved out for tests.
type transport interface {
	Connect()
	Disconnect()
	Send(v any) error
	IsConnected() bool
	State() realtime.State
	SetOnOpen(func())
	SetOnMessage(func(data []byte))
}

// Client multiplexes MQTT topic subscriptions over a single WebSocket
// connection to the backend's broker bridge.
//
// Subscriptions are tracked locally and survive the connection: a pattern
// registered while disconnected is queued, and every tracked pattern is
// replayed to the bridge each time the connection (re)opens. Inbound
// message frames fan out to every handler whose pattern matches the topic,
// in registration-independent order.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	conn   transport
	logger Logger

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	handlerMu sync.RWMutex
	onMessage MessageHandler
	onError   func(err error)
}

type subscription struct {
	pattern string
	handler MessageHandler
}

// NewClient creates a bridge client on top of an existing connection.
// The client takes over the connection's open and message callbacks.
func NewClient(conn transport, logger Logger) *Client {
	c := &Client{
		conn:          conn,
		logger:        logger,
		subscriptions: make(map[string]subscription),
	}
	conn.SetOnOpen(c.handleOpen)
	conn.SetOnMessage(c.handleFrame)
	return c
}

// Connect opens the underlying connection. Tracked subscriptions are
// replayed automatically once the socket is up.
func (c *Client) Connect() {
	c.conn.Connect()
}

// Disconnect closes the underlying connection and clears the tracked
// subscription set. Consumers re-subscribe after the next Connect.
func (c *Client) Disconnect() {
	c.subMu.Lock()
	c.subscriptions = make(map[string]subscription)
	c.subMu.Unlock()

	c.conn.Disconnect()
}

// IsConnected reports whether the bridge socket is open.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State returns the underlying connection state snapshot.
func (c *Client) State() realtime.State {
	return c.conn.State()
}

// Subscribe registers a handler for messages matching the given pattern.
//
// Patterns can include MQTT wildcards:
//   - + (single-level): "site/s1/node/+/telemetry" matches any node
//   - # (multi-level): "site/s1/#" matches everything under the site
//
// When the connection is open the subscription is sent to the bridge
// immediately; when it is not, the pattern is queued and flushed on the
// next open. Either way the handler starts receiving matching messages as
// soon as the bridge honours the subscription.
//
// Re-subscribing an existing pattern replaces its handler.
func (c *Client) Subscribe(pattern string, handler MessageHandler) error {
	if pattern == "" {
		return ErrInvalidPattern
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrInvalidPattern)
	}

	c.subMu.Lock()
	c.subscriptions[pattern] = subscription{pattern: pattern, handler: handler}
	c.subMu.Unlock()

	if !c.conn.IsConnected() {
		c.logger.Debug("subscription queued until connect", "pattern", pattern)
		return nil
	}

	if err := c.conn.Send(controlFrame{Type: "subscribe", Topic: pattern}); err != nil {
		// Keep the pattern tracked; the reopen replay will retry it.
		c.logger.Warn("subscribe frame not sent, will replay on reconnect",
			"pattern", pattern, "error", err)
	}

	return nil
}

// Unsubscribe removes a tracked pattern and tells the bridge to stop
// delivering matching messages.
func (c *Client) Unsubscribe(pattern string) error {
	if pattern == "" {
		return ErrInvalidPattern
	}

	c.subMu.Lock()
	delete(c.subscriptions, pattern)
	c.subMu.Unlock()

	if !c.conn.IsConnected() {
		return nil
	}

	if err := c.conn.Send(controlFrame{Type: "unsubscribe", Topic: pattern}); err != nil {
		c.logger.Warn("unsubscribe frame not sent", "pattern", pattern, "error", err)
	}

	return nil
}

// Publish sends a message to the given topic through the bridge.
//
// payload is marshalled to JSON. Publishing requires an open connection;
// there is no queuing for outbound messages.
func (c *Client) Publish(topic string, payload any, qos byte) error {
	if topic == "" {
		return ErrInvalidPattern
	}
	if qos > 2 {
		return fmt.Errorf("%w: qos %d out of range", ErrPublishFailed, qos)
	}
	if !c.conn.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshalling payload: %w", ErrPublishFailed, err)
	}

	if err := c.conn.Send(controlFrame{Type: "publish", Topic: topic, Payload: data, QoS: &qos}); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// SetOnMessage sets a handler invoked for every delivered message,
// regardless of subscription patterns. Pattern handlers still run.
func (c *Client) SetOnMessage(handler MessageHandler) {
	c.handlerMu.Lock()
	c.onMessage = handler
	c.handlerMu.Unlock()
}

// SetOnError sets a diagnostics callback invoked when an inbound frame
// cannot be decoded. The frame is dropped either way.
func (c *Client) SetOnError(callback func(err error)) {
	c.handlerMu.Lock()
	c.onError = callback
	c.handlerMu.Unlock()
}

// SubscriptionCount returns the number of tracked patterns.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks whether the exact pattern string is tracked.
func (c *Client) HasSubscription(pattern string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[pattern]
	return exists
}

// handleOpen replays every tracked subscription to the bridge. Runs on
// every successful open, including reconnects.
func (c *Client) handleOpen() {
	c.subMu.RLock()
	patterns := make([]string, 0, len(c.subscriptions))
	for pattern := range c.subscriptions {
		patterns = append(patterns, pattern)
	}
	c.subMu.RUnlock()

	for _, pattern := range patterns {
		if err := c.conn.Send(controlFrame{Type: "subscribe", Topic: pattern}); err != nil {
			c.logger.Error("subscription replay failed", "pattern", pattern, "error", err)
			continue
		}
	}

	if len(patterns) > 0 {
		c.logger.Info("subscriptions replayed", "count", len(patterns))
	}
}

// handleFrame parses one inbound frame and fans matching messages out to
// handlers. Malformed frames and unknown frame types are logged and
// dropped; they never tear the connection down.
func (c *Client) handleFrame(data []byte) {
	var frame deliveryFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("malformed bridge frame dropped", "error", err)
		c.handlerMu.RLock()
		onError := c.onError
		c.handlerMu.RUnlock()
		if onError != nil {
			onError(fmt.Errorf("%w: %w", ErrMalformedFrame, err))
		}
		return
	}

	if frame.Type != "message" {
		c.logger.Debug("unhandled bridge frame type", "type", frame.Type)
		return
	}

	ts := time.Now()
	if frame.Timestamp > 0 {
		ts = time.UnixMilli(frame.Timestamp)
	}
	msg := Message{Topic: frame.Topic, Payload: frame.Payload, Timestamp: ts}

	c.handlerMu.RLock()
	onMessage := c.onMessage
	c.handlerMu.RUnlock()
	if onMessage != nil {
		c.invoke(onMessage, msg)
	}

	c.subMu.RLock()
	handlers := make([]MessageHandler, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		if MatchTopic(sub.pattern, frame.Topic) {
			handlers = append(handlers, sub.handler)
		}
	}
	c.subMu.RUnlock()

	for _, handler := range handlers {
		c.invoke(handler, msg)
	}
}

// invoke runs a handler with panic recovery so one bad handler cannot
// stall frame processing.
func (c *Client) invoke(handler MessageHandler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panicked", "topic", msg.Topic, "panic", r)
		}
	}()

	if err := handler(msg); err != nil {
		c.logger.Error("message handler error", "topic", msg.Topic, "error", err)
	}
}
