package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StateRepository persists the last known state of each light.
// This abstraction allows SQLite in production and fakes in tests.
type StateRepository interface {
	// Get returns the stored state for tag.
	// Returns ErrStateNotFound if nothing is stored.
	Get(ctx context.Context, tag string) (LightState, error)

	// List returns every stored state keyed by device tag.
	List(ctx context.Context) (map[string]LightState, error)

	// Save inserts or replaces the state for tag.
	Save(ctx context.Context, tag string, state LightState) error
}

// SQLiteStateRepository implements StateRepository using the light_state table.
type SQLiteStateRepository struct {
	db *sql.DB
}

// NewSQLiteStateRepository creates a new SQLite-backed state repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteStateRepository(db *sql.DB) *SQLiteStateRepository {
	return &SQLiteStateRepository{db: db}
}

// Get returns the stored state for tag.
func (r *SQLiteStateRepository) Get(ctx context.Context, tag string) (LightState, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT brightness, kelvin, updated_at FROM light_state WHERE device_tag = ?",
		tag,
	)

	var state LightState
	var updatedAt string
	if err := row.Scan(&state.Brightness, &state.Kelvin, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LightState{}, ErrStateNotFound
		}
		return LightState{}, fmt.Errorf("querying light state: %w", err)
	}

	ts, err := parseTimestamp(updatedAt)
	if err != nil {
		return LightState{}, err
	}
	state.UpdatedAt = ts
	return state, nil
}

// List returns every stored state keyed by device tag.
func (r *SQLiteStateRepository) List(ctx context.Context) (map[string]LightState, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT device_tag, brightness, kelvin, updated_at FROM light_state",
	)
	if err != nil {
		return nil, fmt.Errorf("querying light states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]LightState)
	for rows.Next() {
		var tag, updatedAt string
		var state LightState
		if err := rows.Scan(&tag, &state.Brightness, &state.Kelvin, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning light state: %w", err)
		}
		if state.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, err
		}
		states[tag] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating light states: %w", err)
	}

	return states, nil
}

// Save inserts or replaces the state for tag. A zero UpdatedAt is stored as
// the current time.
func (r *SQLiteStateRepository) Save(ctx context.Context, tag string, state LightState) error {
	if tag == "" {
		return ErrInvalidTag
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO light_state (device_tag, brightness, kelvin, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_tag) DO UPDATE SET
			brightness = excluded.brightness,
			kelvin = excluded.kelvin,
			updated_at = excluded.updated_at`,
		tag,
		state.Brightness,
		state.Kelvin,
		state.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving light state: %w", err)
	}
	return nil
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return ts, nil
}
