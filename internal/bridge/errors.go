package bridge

import "errors"

// Sentinel errors for bridge operations. Callers can use errors.Is to
// distinguish failure categories.
var (
	// ErrInvalidPattern indicates an empty or nil subscription input.
	ErrInvalidPattern = errors.New("bridge: invalid subscription pattern")

	// ErrNotConnected indicates an operation that requires an open bridge
	// connection was attempted while disconnected.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrPublishFailed indicates a publish frame could not be transmitted.
	ErrPublishFailed = errors.New("bridge: publish failed")

	// ErrMalformedFrame indicates an inbound frame that could not be
	// decoded. The frame is dropped; the error is surfaced through the
	// client's error callback for diagnostics.
	ErrMalformedFrame = errors.New("bridge: malformed frame")
)
