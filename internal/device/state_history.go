package device

import (
	"context"
	"time"
)

// State history source values.
const (
	// StateSourceCommand marks a change made by an MQTT command.
	StateSourceCommand = "command"

	// StateSourceAnnounce marks the state published when the mesh came up.
	StateSourceAnnounce = "announce"
)

// StateHistoryEntry is one recorded light state change.
//
// The history is a local audit trail that survives when the time-series
// database is disabled or unreachable.
type StateHistoryEntry struct {
	ID        int64      `json:"id"`
	DeviceTag string     `json:"device_tag"`
	State     LightState `json:"state"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
}

// StateHistoryRepository stores and retrieves light state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange appends a state change for tag.
	RecordStateChange(ctx context.Context, tag string, state LightState, source string) error

	// GetHistory returns up to limit entries for tag, newest first.
	GetHistory(ctx context.Context, tag string, limit int) ([]StateHistoryEntry, error)
}
