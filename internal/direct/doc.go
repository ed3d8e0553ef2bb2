// Package direct implements the client side of the backend's direct
// WebSocket channel: JSON envelopes with a type discriminator, routed to
// per-type handlers.
//
// The channel carries telemetry, presence events, entity status changes,
// pairing progress, command acknowledgements and server errors. Telemetry
// is delivered raw because its payload shape varies between node and
// coordinator sources; everything else arrives as a typed struct.
package direct
