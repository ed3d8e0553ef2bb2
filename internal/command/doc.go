// Package command dispatches device commands: REST to the backend as the
// authoritative path, with an optimistic bridge publish layered on top
// when the bridge is connected. REST failures propagate; publish failures
// are logged and swallowed.
package command
