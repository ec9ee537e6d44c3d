package mesh

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

const (
	devA = "AA:BB:CC:DD:EE:01"
	devB = "AA:BB:CC:DD:EE:02"
)

func TestNewCoordinator_RequiresRadio(t *testing.T) {
	if _, err := NewCoordinator(Options{}); !errors.Is(err, ErrNoRadio) {
		t.Errorf("NewCoordinator() error = %v, want ErrNoRadio", err)
	}
}

func TestCoordinator_DiscoveryFilter(t *testing.T) {
	rig := newTestRig(t, 1, devA)

	rig.handle(t,
		DeviceDiscovered{ID: devA, Name: "Other", LowEnergy: true},
		DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: false},
		DeviceDiscovered{ID: devB, Name: ProductName, LowEnergy: true},
	)

	if len(rig.c.order) != 0 {
		t.Fatalf("entries = %d, want 0", len(rig.c.order))
	}

	rig.handle(t, DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true})
	if got := rig.radio.count("connect:" + devA); got != 1 {
		t.Errorf("connect calls = %d, want 1", got)
	}
	if s := rig.status(t, devA); s.State != StateConnecting {
		t.Errorf("state = %v, want %v", s.State, StateConnecting)
	}

	// A second advertisement while connecting must not stack connects.
	rig.handle(t, DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true})
	if got := rig.radio.count("connect:" + devA); got != 1 {
		t.Errorf("connect calls after repeat advertisement = %d, want 1", got)
	}
}

func TestCoordinator_ReadyNeedsBothCharacteristics(t *testing.T) {
	rig := newTestRig(t, 1, devA)

	rig.handle(t,
		DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true},
		Connected{ID: devA},
	)
	if got := rig.radio.count("services:" + devA); got != 1 {
		t.Errorf("service discovery calls = %d, want 1", got)
	}

	// Services other than the mesh service are ignored.
	rig.handle(t, ServiceDiscovered{ID: devA, Service: LowCharUUID})
	if got := rig.radio.count("characteristics:" + devA); got != 0 {
		t.Errorf("characteristic discovery for foreign service = %d, want 0", got)
	}

	rig.handle(t,
		ServiceDiscovered{ID: devA, Service: MeshServiceUUID},
		CharacteristicsDiscovered{ID: devA, Service: MeshServiceUUID, Characteristics: []Characteristic{&fakeChar{id: LowCharUUID}}},
	)
	s := rig.status(t, devA)
	if s.Ready {
		t.Fatal("entry ready with only the low characteristic")
	}
	if s.State != StateServiceDiscovering {
		t.Errorf("state = %v, want %v", s.State, StateServiceDiscovering)
	}

	rig.handle(t, CharacteristicsDiscovered{ID: devA, Service: MeshServiceUUID, Characteristics: []Characteristic{&fakeChar{id: HighCharUUID}}})
	if rig.status(t, devA).Ready {
		t.Fatal("entry ready with only the high characteristic")
	}

	rig.handle(t, CharacteristicsDiscovered{
		ID:              devA,
		Service:         MeshServiceUUID,
		Characteristics: []Characteristic{&fakeChar{id: HighCharUUID}, &fakeChar{id: LowCharUUID}},
	})
	if s := rig.status(t, devA); !s.Ready || s.State != StateReady {
		t.Errorf("status = %+v, want ready", s)
	}
}

func TestCoordinator_DevicesReadyOnce(t *testing.T) {
	rig := newTestRig(t, 2, devA, devB)

	rig.bringUp(t, devA)
	if rig.ready != 0 {
		t.Fatalf("devices ready after A = %d, want 0", rig.ready)
	}

	rig.handle(t,
		DeviceDiscovered{ID: devB, Name: ProductName, LowEnergy: true},
		Connected{ID: devB},
		ServiceDiscovered{ID: devB, Service: MeshServiceUUID},
	)
	if rig.ready != 0 {
		t.Fatalf("devices ready before B resolved characteristics = %d, want 0", rig.ready)
	}
	rig.handle(t, CharacteristicsDiscovered{
		ID:              devB,
		Service:         MeshServiceUUID,
		Characteristics: []Characteristic{&fakeChar{id: LowCharUUID}, &fakeChar{id: HighCharUUID}},
	})
	if rig.ready != 1 {
		t.Fatalf("devices ready after B = %d, want 1", rig.ready)
	}

	// A drops and comes back.
	rig.handle(t, Disconnected{ID: devA})
	if s := rig.status(t, devA); s.Ready || s.Connected || s.State != StateDisconnected {
		t.Errorf("status after disconnect = %+v", s)
	}
	rig.bringUp(t, devA)

	if s := rig.status(t, devA); s.ConnectCount != 2 || !s.Ready {
		t.Errorf("status after reconnect = %+v, want ready with connect_count 2", s)
	}
	if rig.ready != 1 {
		t.Errorf("devices ready after A reconnected = %d, want 1", rig.ready)
	}
}

func TestCoordinator_ConnectBackoff(t *testing.T) {
	rig := newTestRig(t, 1, devA)
	rig.handle(t, DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true})

	want := []time.Duration{
		100 * time.Millisecond,
		500 * time.Millisecond,
		2500 * time.Millisecond,
		12500 * time.Millisecond,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		rig.handle(t, ConnectFailed{ID: devA, Err: fmt.Errorf("attempt %d", i)})

		timers := rig.clock.active()
		if len(timers) != 1 {
			t.Fatalf("failure %d: active timers = %d, want 1", i, len(timers))
		}
		if timers[0].d != w {
			t.Errorf("failure %d: backoff = %v, want %v", i, timers[0].d, w)
		}
		if s := rig.status(t, devA); s.State != StateBackoffWait {
			t.Errorf("failure %d: state = %v, want %v", i, s.State, StateBackoffWait)
		}

		// Advertisements during the backoff wait do not short-circuit it.
		rig.handle(t, DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true})
		if got := rig.radio.count("connect:" + devA); got != i+1 {
			t.Fatalf("failure %d: connect calls = %d, want %d", i, got, i+1)
		}

		timers[0].fire()
		rig.flush(t)
		if got := rig.radio.count("connect:" + devA); got != i+2 {
			t.Fatalf("failure %d: connect calls after retry = %d, want %d", i, got, i+2)
		}
	}

	// A successful connect resets the delay.
	rig.handle(t, Connected{ID: devA}, Disconnected{ID: devA})
	if s := rig.status(t, devA); s.Backoff != 0 {
		t.Errorf("backoff after connect = %v, want 0", s.Backoff)
	}
	rig.handle(t,
		DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true},
		ConnectFailed{ID: devA, Err: errors.New("again")},
	)
	if timers := rig.clock.active(); len(timers) != 1 || timers[0].d != InitialBackoff {
		t.Errorf("backoff after reset = %v, want %v", timers, InitialBackoff)
	}
}

func TestCoordinator_ConnectErrorWhileConnectedIgnored(t *testing.T) {
	rig := newTestRig(t, 1, devA)
	rig.bringUp(t, devA)

	rig.handle(t, ConnectFailed{ID: devA, Err: errors.New("late")})
	if len(rig.clock.active()) != 0 {
		t.Error("backoff scheduled for a connected entry")
	}
	if !rig.status(t, devA).Ready {
		t.Error("connected entry lost readiness on a stray connect error")
	}
}

func TestCoordinator_Watchdog(t *testing.T) {
	rig := newTestRig(t, 1, devA)
	rig.c.connectTimeout = 5 * time.Second

	rig.handle(t, DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true})
	timers := rig.clock.active()
	if len(timers) != 1 || timers[0].d != 5*time.Second {
		t.Fatalf("active timers = %v, want one 5s watchdog", timers)
	}

	timers[0].fire()
	rig.flush(t)

	if got := rig.radio.count("disconnect:" + devA); got != 1 {
		t.Errorf("disconnect calls = %d, want 1", got)
	}
	if s := rig.status(t, devA); s.State != StateBackoffWait || s.Backoff != InitialBackoff {
		t.Errorf("status after watchdog = %+v, want backoff wait at %v", s, InitialBackoff)
	}
}

func TestCoordinator_WatchdogCancelledOnConnect(t *testing.T) {
	rig := newTestRig(t, 1, devA)
	rig.c.connectTimeout = 5 * time.Second

	rig.handle(t, DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true})
	watchdog := rig.clock.active()[0]
	rig.handle(t, Connected{ID: devA})

	if !watchdog.stopped {
		t.Error("watchdog not stopped after connect")
	}
}

func TestCoordinator_ServiceFailureDropsLink(t *testing.T) {
	rig := newTestRig(t, 1, devA)
	rig.handle(t,
		DeviceDiscovered{ID: devA, Name: ProductName, LowEnergy: true},
		Connected{ID: devA},
		ServiceFailed{ID: devA, Err: errors.New("gatt error")},
	)

	if got := rig.radio.count("disconnect:" + devA); got != 1 {
		t.Errorf("disconnect calls = %d, want 1", got)
	}
}

func TestCoordinator_PermissionDenied(t *testing.T) {
	rig := newTestRig(t, 1, devA)

	err := rig.c.handle(RadioFailed{Err: fmt.Errorf("enable adapter: %w", ErrPermissionDenied)})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("handle() error = %v, want ErrPermissionDenied", err)
	}
	if len(rig.errs) != 1 {
		t.Errorf("error signals = %d, want 1", len(rig.errs))
	}

	// Other radio errors are logged only.
	if err := rig.c.handle(RadioFailed{Err: errors.New("transient")}); err != nil {
		t.Errorf("handle() error = %v, want nil", err)
	}
}

func TestCoordinator_LinkEvents(t *testing.T) {
	rig := newTestRig(t, 1, devA)
	rig.bringUp(t, devA)
	rig.handle(t, Disconnected{ID: devA})

	want := []LinkEvent{
		{ID: devA, Connected: true, ConnectCount: 1},
		{ID: devA, Connected: false, ConnectCount: 1},
	}
	if len(rig.links) != len(want) {
		t.Fatalf("link events = %v, want %v", rig.links, want)
	}
	for i := range want {
		if rig.links[i] != want[i] {
			t.Errorf("link event %d = %+v, want %+v", i, rig.links[i], want[i])
		}
	}
}

func TestCoordinator_Run(t *testing.T) {
	radio := &fakeRadio{}
	c, err := NewCoordinator(Options{Radio: radio})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	snap, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("Snapshot() = %v, want empty", snap)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if radio.count("scan") != 1 || radio.count("stop-scan") != 1 {
		t.Errorf("radio calls = %v, want one scan and one stop-scan", radio.calls)
	}
	if _, err := c.Snapshot(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Snapshot() after stop error = %v, want ErrStopped", err)
	}
}

func TestCoordinator_RunStartFailure(t *testing.T) {
	var signalled error
	radio := &fakeRadio{startErr: fmt.Errorf("adapter: %w", ErrPermissionDenied)}
	c, _ := NewCoordinator(Options{Radio: radio, OnError: func(err error) { signalled = err }})

	err := c.Run(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Run() error = %v, want ErrPermissionDenied", err)
	}
	if !errors.Is(signalled, ErrPermissionDenied) {
		t.Errorf("OnError got %v, want ErrPermissionDenied", signalled)
	}
}
