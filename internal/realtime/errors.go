package realtime

import "errors"

// Domain-specific errors for channel connections.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting to send on a closed connection.
	ErrNotConnected = errors.New("realtime: connection not open")

	// ErrSendFailed is returned when a frame cannot be written to the socket.
	ErrSendFailed = errors.New("realtime: send failed")

	// ErrReconnectExhausted is surfaced through the connection state when the
	// reconnect attempt ceiling has been reached and retrying has stopped.
	ErrReconnectExhausted = errors.New("realtime: max reconnection attempts reached")
)
