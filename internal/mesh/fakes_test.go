package mesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/halomqtt/internal/location"
)

// fakeRadio records every request the coordinator makes.
type fakeRadio struct {
	mu       sync.Mutex
	calls    []string
	sink     func(Event)
	startErr error
}

func (r *fakeRadio) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *fakeRadio) Start(_ context.Context, sink func(Event)) error {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
	return r.startErr
}

func (r *fakeRadio) StartDiscovery()   { r.record("scan") }
func (r *fakeRadio) StopDiscovery()    { r.record("stop-scan") }
func (r *fakeRadio) Connect(id string) { r.record("connect:" + id) }
func (r *fakeRadio) DiscoverServices(id string) {
	r.record("services:" + id)
}
func (r *fakeRadio) DiscoverCharacteristics(id string, _ uuid.UUID) {
	r.record("characteristics:" + id)
}
func (r *fakeRadio) Disconnect(id string) { r.record("disconnect:" + id) }

func (r *fakeRadio) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

// fakeChar is a writable characteristic that keeps every write.
type fakeChar struct {
	id     uuid.UUID
	writes [][]byte
}

func (c *fakeChar) UUID() uuid.UUID { return c.id }

func (c *fakeChar) WriteWithoutResponse(p []byte) error {
	c.writes = append(c.writes, append([]byte(nil), p...))
	return nil
}

// manualClock holds timers until the test fires them.
type manualClock struct {
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// active returns the timers that have neither fired nor been stopped.
func (c *manualClock) active() []*manualTimer {
	var out []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs a timer's callback, which posts its event to the coordinator.
func (t *manualTimer) fire() {
	t.fired = true
	t.f()
}

type testRig struct {
	c      *Coordinator
	radio  *fakeRadio
	clock  *manualClock
	ready  int
	errs   []error
	links  []LinkEvent
	nextSq uint32
}

func newTestRig(t *testing.T, devices int, approved ...string) *testRig {
	t.Helper()

	loc := &location.Location{ID: 4242, Name: "Home", Passphrase: "halo"}
	for i := range devices {
		loc.Devices = append(loc.Devices, location.DeviceConfig{DID: uint32(i + 1)})
	}

	rig := &testRig{radio: &fakeRadio{}, clock: &manualClock{}}
	c, err := NewCoordinator(Options{
		Radio:          rig.radio,
		Location:       loc,
		Approved:       location.NewApproved(approved...),
		DeviceDelay:    250 * time.Millisecond,
		Clock:          rig.clock,
		Sequence:       func() uint32 { rig.nextSq++; return rig.nextSq },
		OnDevicesReady: func() { rig.ready++ },
		OnError:        func(err error) { rig.errs = append(rig.errs, err) },
		OnLinkChange:   func(e LinkEvent) { rig.links = append(rig.links, e) },
	})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	rig.c = c
	return rig
}

// handle feeds events to the coordinator and then drains anything it posted
// to itself.
func (r *testRig) handle(t *testing.T, events ...Event) {
	t.Helper()
	for _, ev := range events {
		if err := r.c.handle(ev); err != nil {
			t.Fatalf("handle(%T) error = %v", ev, err)
		}
	}
	r.flush(t)
}

func (r *testRig) flush(t *testing.T) {
	t.Helper()
	for {
		select {
		case ev := <-r.c.events:
			if err := r.c.handle(ev); err != nil {
				t.Fatalf("handle(%T) error = %v", ev, err)
			}
		default:
			return
		}
	}
}

// bringUp walks a device from advertisement to ready and returns its
// characteristics.
func (r *testRig) bringUp(t *testing.T, id string) (low, high *fakeChar) {
	t.Helper()
	low = &fakeChar{id: LowCharUUID}
	high = &fakeChar{id: HighCharUUID}
	r.handle(t,
		DeviceDiscovered{ID: id, Name: ProductName, LowEnergy: true},
		Connected{ID: id},
		ServiceDiscovered{ID: id, Service: MeshServiceUUID},
		CharacteristicsDiscovered{ID: id, Service: MeshServiceUUID, Characteristics: []Characteristic{low, high}},
	)
	return low, high
}

func (r *testRig) status(t *testing.T, id string) EntryStatus {
	t.Helper()
	for _, s := range r.c.snapshot() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("no entry for %s", id)
	return EntryStatus{}
}
