// Package backend wraps the backend REST API: device and site reads,
// command writes, pairing, OTA jobs and the health probe. The backend is
// the source of truth for all durable state; commands issued here are
// authoritative, unlike the optimistic bridge publishes layered on top by
// the command dispatcher.
package backend
