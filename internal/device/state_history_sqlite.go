package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteStateHistoryRepository implements StateHistoryRepository using the
// light_state_history table.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository creates a new SQLite state history repository.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// RecordStateChange inserts a new history entry for a light.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - tag: Device tag (halomqtt_<location>_<did>)
//   - state: State after the change
//   - source: Origin of the change (command, announce); empty means command
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteStateHistoryRepository) RecordStateChange(ctx context.Context, tag string, state LightState, source string) error {
	if tag == "" {
		return ErrInvalidTag
	}
	if source == "" {
		source = StateSourceCommand
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO light_state_history (device_tag, brightness, kelvin, source) VALUES (?, ?, ?, ?)",
		tag,
		state.Brightness,
		state.Kelvin,
		source,
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	return nil
}

// GetHistory returns recent history entries for a light, newest first.
// limit defaults to 50 and is capped at 200.
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, tag string, limit int) ([]StateHistoryEntry, error) {
	if tag == "" {
		return nil, ErrInvalidTag
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_tag, brightness, kelvin, source, created_at
		 FROM light_state_history
		 WHERE device_tag = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		tag,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var entry StateHistoryEntry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceTag, &entry.State.Brightness, &entry.State.Kelvin, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entry.State.UpdatedAt = entry.CreatedAt

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes entries older than olderThan and returns how many
// rows were removed.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM light_state_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}
