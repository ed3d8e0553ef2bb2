// Package history persists device state changes to a local SQLite
// database so recent activity survives restarts and remains queryable
// without the time-series stack.
package history
