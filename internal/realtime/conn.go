package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/smarttile-ops/internal/infrastructure/config"
)

// reconnectDelayCap limits the linear delay growth: attempt n waits
// baseDelay*min(n, reconnectDelayCap). The cap keeps the longest wait at
// five delay units rather than growing without bound.
const reconnectDelayCap = 5

// dialTimeout bounds the WebSocket handshake.
const dialTimeout = 10 * time.Second

// State is a snapshot of a connection's health, safe to hand to observers.
//
// It is reset to the zero value (with attempts cleared) on every successful
// open; LastError holds a human-readable description of the most recent
// failure, or "" when healthy.
type State struct {
	Connected         bool
	Connecting        bool
	LastError         string
	ReconnectAttempts int
}

// socket is the subset of *websocket.Conn the connection uses.
// Carved out so tests can substitute an in-memory fake.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// dialFunc opens a socket to the given URL.
type dialFunc func(url string) (socket, error)

// defaultDial dials with gorilla's default dialer and a handshake timeout.
func defaultDial(url string) (socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Logger is the logging interface used by the connection.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Conn owns one client WebSocket connection and supervises its lifecycle:
// open, inbound frame delivery, close detection, and automatic reconnection
// with a linearly capped delay schedule.
//
// Reconnect delay for attempt n is baseDelay*min(n,5); once the attempt
// counter reaches the configured ceiling the connection stops retrying and
// records ErrReconnectExhausted in its state. Disconnect cancels any pending
// reconnect timer before returning, so no retry survives an intentional
// teardown.
//
// Thread Safety: all methods are safe for concurrent use.
type Conn struct {
	url         string
	baseDelay   time.Duration
	maxAttempts int
	logger      Logger
	dial        dialFunc

	mu          sync.Mutex
	ws          socket
	connected   bool
	connecting  bool
	lastError   string
	attempts    int
	intentional bool
	timer       *time.Timer
	gen         int // connection generation, guards stale callbacks

	// Callbacks, set before Connect. Invoked without holding mu.
	onOpen    func()
	onClose   func(err error)
	onMessage func(data []byte)
	onError   func(err error)
}

// NewConn creates a connection for the given WebSocket URL.
// The connection does nothing until Connect is called.
func NewConn(url string, rc config.ReconnectConfig, logger Logger) *Conn {
	return &Conn{
		url:         url,
		baseDelay:   rc.GetBaseDelay(),
		maxAttempts: rc.MaxAttempts,
		logger:      logger,
		dial:        defaultDial,
	}
}

// SetOnOpen sets a callback invoked after every successful open,
// including reopens after a reconnect.
func (c *Conn) SetOnOpen(callback func()) {
	c.mu.Lock()
	c.onOpen = callback
	c.mu.Unlock()
}

// SetOnClose sets a callback invoked when the connection closes.
// The error is nil for an intentional close.
func (c *Conn) SetOnClose(callback func(err error)) {
	c.mu.Lock()
	c.onClose = callback
	c.mu.Unlock()
}

// SetOnMessage sets a callback invoked with every inbound frame's raw bytes.
// Frames are delivered strictly in arrival order.
func (c *Conn) SetOnMessage(callback func(data []byte)) {
	c.mu.Lock()
	c.onMessage = callback
	c.mu.Unlock()
}

// SetOnError sets a callback for diagnostics: socket errors and reconnect
// exhaustion. Errors delivered here are already handled; the callback is
// for surfacing, not recovery.
func (c *Conn) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Connect opens the connection. It is a no-op when already open or opening.
//
// The dial happens on a background goroutine; callers observe progress
// through State and the OnOpen/OnError callbacks. A dial failure feeds the
// reconnect schedule exactly like an unexpected close.
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.connected || c.connecting {
		c.mu.Unlock()
		c.logger.Warn("connect ignored, already connected or connecting", "url", c.url)
		return
	}
	c.intentional = false
	c.connecting = true
	c.lastError = ""
	gen := c.gen
	c.mu.Unlock()

	go c.dialAndServe(gen)
}

// Disconnect closes the connection intentionally: the pending reconnect
// timer (if any) is cancelled synchronously, the socket is closed with a
// normal-closure code, and no further retries are scheduled.
//
// Calling Disconnect when never connected is a harmless no-op.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.gen++ // invalidate in-flight dials and reads
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ws := c.ws
	c.ws = nil
	c.connected = false
	c.connecting = false
	c.attempts = 0
	c.mu.Unlock()

	if ws != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		_ = ws.WriteMessage(websocket.CloseMessage, msg)
		_ = ws.Close()
	}

	c.logger.Debug("disconnected", "url", c.url)
}

// Send serializes v as JSON and transmits it.
//
// Returns ErrNotConnected when the socket is not open. Transmission
// failures are logged and returned wrapped in ErrSendFailed.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.connected
	c.mu.Unlock()

	if !connected || ws == nil {
		return ErrNotConnected
	}

	if err := ws.WriteJSON(v); err != nil {
		c.logger.Error("send failed", "url", c.url, "error", err)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// State returns a snapshot of the connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Connected:         c.connected,
		Connecting:        c.connecting,
		LastError:         c.lastError,
		ReconnectAttempts: c.attempts,
	}
}

// IsConnected reports whether the socket is currently open.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// dialAndServe performs one dial and, on success, reads frames until the
// socket closes. gen guards against a Disconnect that raced the dial.
func (c *Conn) dialAndServe(gen int) {
	ws, err := c.dial(c.url)

	c.mu.Lock()
	if gen != c.gen {
		// Disconnect was called while dialing; discard the socket.
		c.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
		return
	}
	if err != nil {
		c.connecting = false
		c.lastError = err.Error()
		c.mu.Unlock()
		c.logger.Warn("dial failed", "url", c.url, "error", err)
		c.emitError(err)
		c.scheduleReconnect()
		return
	}

	c.ws = ws
	c.connected = true
	c.connecting = false
	c.attempts = 0
	c.lastError = ""
	onOpen := c.onOpen
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.url)
	if onOpen != nil {
		onOpen()
	}

	c.readLoop(ws, gen)
}

// readLoop delivers inbound frames until the socket errors or closes.
func (c *Conn) readLoop(ws socket, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}

		c.mu.Lock()
		stale := gen != c.gen
		onMessage := c.onMessage
		c.mu.Unlock()
		if stale {
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

// handleClosed records the close and triggers the reconnect schedule
// unless the close was intentional.
func (c *Conn) handleClosed(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// Intentional teardown already handled the state transition.
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.connecting = false
	c.ws = nil
	intentional := c.intentional
	if !intentional {
		c.lastError = err.Error()
	}
	onClose := c.onClose
	c.mu.Unlock()

	if onClose != nil {
		if intentional {
			onClose(nil)
		} else {
			onClose(err)
		}
	}

	if !intentional {
		c.logger.Warn("connection lost", "url", c.url, "error", err)
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms a single-shot timer for the next attempt, or
// transitions to exhausted once the attempt ceiling is reached.
//
// Delay is baseDelay*min(attempts,5): linear growth capped at five delay
// units. This exact schedule is load-bearing for operators watching the
// dashboard's connection widget; keep it.
func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.maxAttempts {
		c.lastError = ErrReconnectExhausted.Error()
		c.mu.Unlock()
		c.logger.Error("reconnect attempts exhausted", "url", c.url, "attempts", c.maxAttempts)
		c.emitError(ErrReconnectExhausted)
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := reconnectDelay(c.baseDelay, attempt)
	gen := c.gen

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, func() {
		c.reconnectFired(gen)
	})
	c.mu.Unlock()

	c.logger.Info("reconnecting",
		"url", c.url,
		"delay", delay,
		"attempt", attempt,
		"max_attempts", c.maxAttempts,
	)
}

// reconnectFired runs when the reconnect timer expires. Connection intent
// may have changed while the timer was pending, so it re-verifies before
// dialing.
func (c *Conn) reconnectFired(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.intentional || c.connected || c.connecting {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.connecting = true
	c.mu.Unlock()

	go c.dialAndServe(gen)
}

// reconnectDelay computes the wait before the given attempt (1-based):
// base*min(attempt, reconnectDelayCap).
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	factor := attempt
	if factor > reconnectDelayCap {
		factor = reconnectDelayCap
	}
	return base * time.Duration(factor)
}

// emitError invokes the error callback if one is set.
func (c *Conn) emitError(err error) {
	c.mu.Lock()
	onError := c.onError
	c.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}
