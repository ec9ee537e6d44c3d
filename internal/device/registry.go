package device

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry tracks the last known state of every light with caching and
// thread safety. It wraps a StateRepository and adds an in-memory cache so
// command handling never waits on the database for a read.
//
// The cache is populated on startup via RefreshCache() and updated by Apply
// and Set. Persistence failures are logged, not returned: a light that
// cannot be saved is still controlled.
//
// All public methods are thread-safe.
type Registry struct {
	repo    StateRepository
	history StateHistoryRepository
	cache   map[string]LightState // Cached states by device tag
	cacheMu sync.RWMutex          // Protects cache
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates a new state registry. Either repository may be nil,
// in which case state lives only in memory.
func NewRegistry(repo StateRepository, history StateHistoryRepository) *Registry {
	return &Registry{
		repo:    repo,
		history: history,
		cache:   make(map[string]LightState),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// RefreshCache reloads all states from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	states, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading light states: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = states
	r.cacheMu.Unlock()

	r.logger.Info("light state cache refreshed", "count", len(states))
	return nil
}

// State returns the cached state for tag.
func (r *Registry) State(tag string) (LightState, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	s, ok := r.cache[tag]
	return s, ok
}

// StateOrDefault returns the cached state for tag, or DefaultLightState
// if the light has never been seen.
func (r *Registry) StateOrDefault(tag string) LightState {
	if s, ok := r.State(tag); ok {
		return s
	}
	return DefaultLightState()
}

// Apply computes the state after cmd, stores it and returns it together
// with the change to send to the mesh.
func (r *Registry) Apply(ctx context.Context, tag string, cmd Command) (LightState, Change, error) {
	if tag == "" {
		return LightState{}, Change{}, ErrInvalidTag
	}

	r.cacheMu.Lock()
	current, ok := r.cache[tag]
	if !ok {
		current = DefaultLightState()
	}
	next, change, err := current.Apply(cmd)
	if err != nil {
		r.cacheMu.Unlock()
		return current, Change{}, err
	}
	next.UpdatedAt = r.now().UTC()
	r.cache[tag] = next
	r.cacheMu.Unlock()

	r.persist(ctx, tag, next, StateSourceCommand)
	return next, change, nil
}

// Set stores state for tag without computing a change. source is recorded
// in the history.
func (r *Registry) Set(ctx context.Context, tag string, state LightState, source string) error {
	if tag == "" {
		return ErrInvalidTag
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = r.now().UTC()
	}

	r.cacheMu.Lock()
	r.cache[tag] = state
	r.cacheMu.Unlock()

	r.persist(ctx, tag, state, source)
	return nil
}

// Snapshot returns a copy of every cached state.
func (r *Registry) Snapshot() map[string]LightState {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	return maps.Clone(r.cache)
}

// Count returns the number of cached states.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	return len(r.cache)
}

// History returns recent changes for tag, newest first.
func (r *Registry) History(ctx context.Context, tag string, limit int) ([]StateHistoryEntry, error) {
	if r.history == nil {
		return nil, nil
	}
	return r.history.GetHistory(ctx, tag, limit)
}

func (r *Registry) persist(ctx context.Context, tag string, state LightState, source string) {
	if r.repo != nil {
		if err := r.repo.Save(ctx, tag, state); err != nil {
			r.logger.Error("saving light state", "device", tag, "error", err)
		}
	}
	if r.history != nil {
		if err := r.history.RecordStateChange(ctx, tag, state, source); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("recording state history", "device", tag, "error", err)
		}
	}
}
