// Package devicestate maintains the reconciling in-memory device cache.
//
// Telemetry arrives from two channels with different field spellings for
// the same concepts; Normalize folds every known alias into one canonical
// shape before any merge logic runs. The Cache then merges readings into
// long-lived node and coordinator records, suppresses notifications for
// updates an operator could not see, and keeps a bounded newest-first
// history of zone presence events.
package devicestate
