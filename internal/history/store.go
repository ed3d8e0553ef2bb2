package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Change source values.
const (
	SourceBridge  = "bridge"
	SourceDirect  = "direct"
	SourceBroker  = "broker"
	SourceCommand = "command"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	dirPermissions = 0750

	// busyTimeoutMs bounds waiting on a database lock.
	busyTimeoutMs = 5000
)

const schema = `
CREATE TABLE IF NOT EXISTS device_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id  TEXT NOT NULL,
    kind       TEXT NOT NULL,
    state      TEXT NOT NULL,
    source     TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_device_history_entity
    ON device_history (entity_id, created_at DESC);
`

// Entry is one recorded device state change.
type Entry struct {
	ID        int64           `json:"id"`
	EntityID  string          `json:"entity_id"`
	Kind      string          `json:"kind"` // "node" or "coordinator"
	State     json.RawMessage `json:"state"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is a local SQLite audit trail of device state changes. It exists so
// an operator can reconstruct what the dashboard saw even when the
// time-series database is disabled or unreachable.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the history database at the given path and
// ensures the schema exists. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// SQLite supports one writer; keep the pool at a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordChange persists one state snapshot for an entity.
//
// state is marshalled to JSON; pass the cache's record snapshot. An empty
// source defaults to SourceBridge.
func (s *Store) RecordChange(ctx context.Context, entityID, kind string, state any, source string) error {
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if kind == "" {
		return fmt.Errorf("kind is required")
	}
	if source == "" {
		source = SourceBridge
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO device_history (entity_id, kind, state, source) VALUES (?, ?, ?, ?)",
		entityID,
		kind,
		string(stateJSON),
		source,
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}

	return nil
}

// GetHistory returns recent entries for an entity, newest first.
// limit defaults to 50 and is capped at 200.
func (s *Store) GetHistory(ctx context.Context, entityID string, limit int) ([]Entry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, kind, state, source, created_at
		 FROM device_history
		 WHERE entity_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var stateJSON string
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.EntityID, &entry.Kind, &stateJSON, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}

		entry.State = json.RawMessage(stateJSON)

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the given retention window, returning
// the number of rows removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM device_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseTimestamp parses a timestamp in any format SQLite hands back.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if timestamp, err := time.Parse(layout, value); err == nil {
			return timestamp, nil
		}
	}

	return time.Time{}, fmt.Errorf("parsing created_at %q", value)
}
