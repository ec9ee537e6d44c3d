package mesh

import "time"

// Reconnect backoff constants.
const (
	// InitialBackoff is the delay before the first reconnect attempt.
	InitialBackoff = 100 * time.Millisecond

	// MaxBackoff caps the reconnect delay.
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier is the growth factor between consecutive failures.
	BackoffMultiplier = 5
)

// backoff tracks the reconnect delay of one connection entry. It is owned by
// the event loop and needs no locking.
type backoff struct {
	current time.Duration
}

// next advances the delay (0 -> 100ms -> 500ms -> ... -> 30s) and returns it.
func (b *backoff) next() time.Duration {
	switch {
	case b.current == 0:
		b.current = InitialBackoff
	default:
		b.current = min(b.current*BackoffMultiplier, MaxBackoff)
	}
	return b.current
}

// reset is called after a successful connect.
func (b *backoff) reset() {
	b.current = 0
}
