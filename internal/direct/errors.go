package direct

import "errors"

// ErrMalformedEnvelope indicates an inbound frame or payload that could
// not be decoded. The message is dropped; the error is surfaced through
// the client's error callback for diagnostics.
var ErrMalformedEnvelope = errors.New("direct: malformed envelope")
