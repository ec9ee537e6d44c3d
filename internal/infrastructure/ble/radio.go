package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/halomqtt/internal/mesh"
)

// DefaultScanDuration is how long a discovery scan runs when Options leaves
// it unset.
const DefaultScanDuration = 30 * time.Second

// Logger is the logging interface used by the radio.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Radio.
type Options struct {
	// Adapter is the BlueZ adapter id ("hci0"). Empty uses the default.
	Adapter string

	// ScanDuration bounds each discovery scan.
	ScanDuration time.Duration

	Logger Logger
}

// Radio implements mesh.Radio.
type Radio struct {
	dialer       dialer
	scanDuration time.Duration
	logger       Logger

	mu       sync.Mutex
	sink     func(mesh.Event)
	scanning bool
	attempts map[string]uint64
	links    map[string]link
	services map[string]map[uuid.UUID]service
}

var _ mesh.Radio = (*Radio)(nil)

// New creates a radio on the configured adapter. The adapter is not touched
// until Start.
func New(opts Options) *Radio {
	return newRadio(&tinygoDialer{adapter: resolveAdapter(opts.Adapter)}, opts)
}

func newRadio(d dialer, opts Options) *Radio {
	r := &Radio{
		dialer:       d,
		scanDuration: opts.ScanDuration,
		logger:       opts.Logger,
		attempts:     make(map[string]uint64),
		links:        make(map[string]link),
		services:     make(map[string]map[uuid.UUID]service),
	}
	if r.scanDuration <= 0 {
		r.scanDuration = DefaultScanDuration
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// Start enables the adapter and registers sink. A running scan is stopped
// when ctx is cancelled.
func (r *Radio) Start(ctx context.Context, sink func(mesh.Event)) error {
	if err := r.dialer.Enable(); err != nil {
		return classify(fmt.Errorf("enabling bluetooth adapter: %w", err))
	}

	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()

	r.dialer.OnDisconnect(r.handleLinkLost)
	context.AfterFunc(ctx, r.StopDiscovery)

	r.logger.Info("bluetooth adapter enabled")
	return nil
}

// StartDiscovery starts a scan unless one is running. Each transport id is
// reported once per scan.
func (r *Radio) StartDiscovery() {
	r.mu.Lock()
	if r.scanning {
		r.mu.Unlock()
		return
	}
	r.scanning = true
	r.mu.Unlock()

	go r.scan()
}

func (r *Radio) scan() {
	r.logger.Debug("scan started", "duration", r.scanDuration)
	stop := time.AfterFunc(r.scanDuration, r.StopDiscovery)

	var seenMu sync.Mutex
	seen := make(map[string]struct{})
	err := r.dialer.Scan(func(adv advertisement) {
		seenMu.Lock()
		_, dup := seen[adv.ID]
		seen[adv.ID] = struct{}{}
		seenMu.Unlock()
		if dup {
			return
		}
		r.post(mesh.DeviceDiscovered{ID: adv.ID, Name: adv.Name, LowEnergy: true})
	})
	stop.Stop()

	r.mu.Lock()
	r.scanning = false
	r.mu.Unlock()

	err = classify(normalizeScanError(err))
	r.logger.Debug("scan finished", "devices", len(seen), "error", err)
	r.post(mesh.DiscoveryFinished{Err: err})
}

// StopDiscovery ends a running scan.
func (r *Radio) StopDiscovery() {
	r.mu.Lock()
	scanning := r.scanning
	r.mu.Unlock()
	if !scanning {
		return
	}

	if err := r.dialer.StopScan(); err != nil && !isBenignStopScanError(err) {
		r.logger.Warn("stopping scan failed", "error", err)
	}
}

// Connect dials id in the background.
func (r *Radio) Connect(id string) {
	r.mu.Lock()
	r.attempts[id]++
	attempt := r.attempts[id]
	r.mu.Unlock()

	go r.dial(id, attempt)
}

func (r *Radio) dial(id string, attempt uint64) {
	l, err := r.dialer.Dial(id)

	r.mu.Lock()
	current := r.attempts[id] == attempt
	if current && err == nil {
		r.links[id] = l
	}
	r.mu.Unlock()

	switch {
	case !current:
		r.logger.Debug("dropping cancelled connect", "id", id, "error", err)
		if err == nil {
			if derr := l.Disconnect(); derr != nil {
				r.logger.Warn("disconnecting cancelled link failed", "id", id, "error", derr)
			}
		}
	case err != nil:
		err = classify(err)
		if errors.Is(err, mesh.ErrPermissionDenied) {
			r.post(mesh.RadioFailed{Err: err})
			return
		}
		r.post(mesh.ConnectFailed{ID: id, Err: err})
	default:
		r.post(mesh.Connected{ID: id})
	}
}

// Disconnect drops the link to id, or cancels a connect in progress.
func (r *Radio) Disconnect(id string) {
	r.mu.Lock()
	r.attempts[id]++
	l, ok := r.links[id]
	delete(r.links, id)
	delete(r.services, id)
	r.mu.Unlock()

	if !ok {
		return
	}

	go func() {
		if err := l.Disconnect(); err != nil {
			r.logger.Warn("disconnect failed", "id", id, "error", err)
		}
		r.post(mesh.Disconnected{ID: id})
	}()
}

// handleLinkLost reports a link dropped by the peripheral or the adapter.
func (r *Radio) handleLinkLost(id string) {
	r.mu.Lock()
	_, ok := r.links[id]
	delete(r.links, id)
	delete(r.services, id)
	r.mu.Unlock()

	if ok {
		r.post(mesh.Disconnected{ID: id})
	}
}

// DiscoverServices lists the services of a connected device.
func (r *Radio) DiscoverServices(id string) {
	l, ok := r.link(id)
	if !ok {
		r.post(mesh.ServiceFailed{ID: id, Err: ErrNotConnected})
		return
	}

	go func() {
		found, err := l.Services()
		if err != nil {
			r.post(mesh.ServiceFailed{ID: id, Err: classify(fmt.Errorf("discovering services: %w", err))})
			return
		}

		byID := make(map[uuid.UUID]service, len(found))
		for _, s := range found {
			byID[s.UUID()] = s
		}

		r.mu.Lock()
		if r.links[id] != l {
			r.mu.Unlock()
			return
		}
		r.services[id] = byID
		r.mu.Unlock()

		for _, s := range found {
			r.post(mesh.ServiceDiscovered{ID: id, Service: s.UUID()})
		}
	}()
}

// DiscoverCharacteristics resolves the characteristics of a discovered
// service.
func (r *Radio) DiscoverCharacteristics(id string, svc uuid.UUID) {
	r.mu.Lock()
	s, ok := r.services[id][svc]
	r.mu.Unlock()
	if !ok {
		r.post(mesh.ServiceFailed{ID: id, Err: fmt.Errorf("%w: %s", ErrUnknownService, svc)})
		return
	}

	go func() {
		chars, err := s.Characteristics()
		if err != nil {
			r.post(mesh.ServiceFailed{ID: id, Err: classify(fmt.Errorf("discovering characteristics: %w", err))})
			return
		}
		r.post(mesh.CharacteristicsDiscovered{ID: id, Service: svc, Characteristics: chars})
	}()
}

func (r *Radio) link(id string) (link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	return l, ok
}

func (r *Radio) post(ev mesh.Event) {
	r.mu.Lock()
	sink := r.sink
	r.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}
