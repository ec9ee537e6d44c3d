package mesh

import "time"

// State is the lifecycle state of a connection entry.
type State int

// Entry states.
const (
	StateDiscovered State = iota
	StateConnecting
	StateConnected
	StateServiceDiscovering
	StateReady
	StateDisconnected
	StateBackoffWait
)

var stateNames = map[State]string{
	StateDiscovered:         "discovered",
	StateConnecting:         "connecting",
	StateConnected:          "connected",
	StateServiceDiscovering: "service_discovering",
	StateReady:              "ready",
	StateDisconnected:       "disconnected",
	StateBackoffWait:        "backoff_wait",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// entry is the arena record for one approved radio, keyed by transport id.
// It survives disconnects so connectCount and backoff carry over.
type entry struct {
	id    string
	state State

	connecting bool
	connected  bool
	ready      bool

	hasService bool
	low        Characteristic
	high       Characteristic

	connectCount uint32
	backoff      backoff

	// attempt numbers connect requests so a stale watchdog is ignored.
	attempt  uint64
	retry    Timer
	watchdog Timer
}

// release drops the transport handles after a disconnect.
func (e *entry) release() {
	e.ready = false
	e.connected = false
	e.connecting = false
	e.hasService = false
	e.low = nil
	e.high = nil
	e.state = StateDisconnected
}

func (e *entry) stopWatchdog() {
	if e.watchdog != nil {
		e.watchdog.Stop()
		e.watchdog = nil
	}
}

func (e *entry) stopRetry() {
	if e.retry != nil {
		e.retry.Stop()
		e.retry = nil
	}
}

func (e *entry) status() EntryStatus {
	return EntryStatus{
		ID:           e.id,
		State:        e.state,
		Connected:    e.connected,
		Ready:        e.ready,
		ConnectCount: e.connectCount,
		Backoff:      e.backoff.current,
	}
}

// EntryStatus is a point-in-time copy of a connection entry.
type EntryStatus struct {
	ID           string        `json:"id"`
	State        State         `json:"state"`
	Connected    bool          `json:"connected"`
	Ready        bool          `json:"ready"`
	ConnectCount uint32        `json:"connect_count"`
	Backoff      time.Duration `json:"backoff_ns"`
}
