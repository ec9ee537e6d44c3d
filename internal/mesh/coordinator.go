package mesh

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nerrad567/halomqtt/internal/location"
)

// Coordinator constants.
const (
	// eventBuffer is the capacity of the event channel.
	eventBuffer = 256

	// DefaultDeviceDelay is the minimum spacing between command batches.
	DefaultDeviceDelay = 100 * time.Millisecond
)

// ErrConnectTimeout is passed through the backoff path when the connect
// watchdog fires.
var ErrConnectTimeout = errors.New("mesh: connect timed out")

// Logger is the logging interface used by the coordinator.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Allowlist decides which radios may be connected to.
type Allowlist interface {
	Contains(id string) bool
}

// LinkEvent describes a connection entry going up or down.
type LinkEvent struct {
	ID           string
	Connected    bool
	ConnectCount uint32
}

// Options holds configuration for creating a coordinator.
type Options struct {
	// Radio is the BLE transport. Required.
	Radio Radio

	// Location supplies the key material and the expected device count.
	// If nil, every Submit fails with ErrNoKey.
	Location *location.Location

	// Approved is the transport-id allowlist. A nil allowlist admits nothing.
	Approved Allowlist

	// DeviceDelay is the minimum spacing between transmitted batches.
	// Defaults to DefaultDeviceDelay.
	DeviceDelay time.Duration

	// ConnectTimeout bounds a connect attempt. Zero disables the watchdog.
	ConnectTimeout time.Duration

	// Clock schedules timers. Defaults to the system clock.
	Clock Clock

	// Sequence draws a frame sequence number. Defaults to a uniform random
	// value in [1, MaxSequence].
	Sequence func() uint32

	// Logger is an optional structured logger.
	Logger Logger

	// OnDevicesReady fires once, when every expected device first becomes
	// ready.
	OnDevicesReady func()

	// OnError receives terminal radio errors.
	OnError func(error)

	// OnLinkChange receives every connect and disconnect.
	OnLinkChange func(LinkEvent)
}

// Coordinator owns the connection entries for one location and serialises
// every state change through a single event loop.
//
// Callbacks in Options run on the loop goroutine and must not block.
//
// Thread Safety: Submit, SetBrightness, SetColorTemperature and Snapshot are
// safe for concurrent use. Everything else happens on the loop.
type Coordinator struct {
	radio          Radio
	key            Key
	hasKey         bool
	expected       int
	allow          Allowlist
	delay          time.Duration
	connectTimeout time.Duration
	clock          Clock
	sequence       func() uint32
	logger         Logger

	onReady func()
	onError func(error)
	onLink  func(LinkEvent)

	events chan Event
	done   chan struct{}

	// Loop-owned state below.
	entries       map[string]*entry
	order         []*entry
	discovering   bool
	readySignaled bool

	pending        [][]byte
	sending        bool
	drainScheduled bool
	drainTimer     Timer
}

// NewCoordinator creates a coordinator. Call Run to start it.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Radio == nil {
		return nil, ErrNoRadio
	}

	c := &Coordinator{
		radio:          opts.Radio,
		allow:          opts.Approved,
		delay:          opts.DeviceDelay,
		connectTimeout: opts.ConnectTimeout,
		clock:          opts.Clock,
		sequence:       opts.Sequence,
		logger:         opts.Logger,
		onReady:        opts.OnDevicesReady,
		onError:        opts.OnError,
		onLink:         opts.OnLinkChange,
		events:         make(chan Event, eventBuffer),
		done:           make(chan struct{}),
		entries:        make(map[string]*entry),
	}

	if opts.Location != nil && opts.Location.Passphrase != "" {
		c.key = DeriveKey([]byte(opts.Location.Passphrase))
		c.hasKey = true
		c.expected = len(opts.Location.Devices)
	}
	if c.delay <= 0 {
		c.delay = DefaultDeviceDelay
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.sequence == nil {
		c.sequence = randomSequence
	}

	return c, nil
}

// Run starts the radio and processes events until ctx is cancelled or a
// terminal radio error occurs. It must be called exactly once.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	if err := c.radio.Start(ctx, c.post); err != nil {
		err = fmt.Errorf("starting radio: %w", err)
		c.fail(err)
		return err
	}
	defer c.shutdown()

	c.startDiscovery()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			if err := c.handle(ev); err != nil {
				return err
			}
		}
	}
}

// Submit queues a plaintext command for every ready device.
func (c *Coordinator) Submit(ctx context.Context, payload []byte) error {
	if !c.hasKey {
		return ErrNoKey
	}
	cmd := make([]byte, len(payload))
	copy(cmd, payload)

	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	select {
	case c.events <- submitted{payload: cmd}:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetBrightness sends a brightness command to device did.
func (c *Coordinator) SetBrightness(ctx context.Context, did uint32, brightness uint8) error {
	payload, err := BrightnessCommand(did, brightness)
	if err != nil {
		return err
	}
	return c.Submit(ctx, payload)
}

// SetColorTemperature sends a colour temperature command to device did.
// Values above 65535 K are clamped.
func (c *Coordinator) SetColorTemperature(ctx context.Context, did, kelvin uint32) error {
	payload, err := ColorTemperatureCommand(did, uint16(min(kelvin, 0xFFFF)))
	if err != nil {
		return err
	}
	return c.Submit(ctx, payload)
}

// Snapshot returns the state of every connection entry in discovery order.
func (c *Coordinator) Snapshot(ctx context.Context) ([]EntryStatus, error) {
	reply := make(chan []EntryStatus, 1)

	select {
	case c.events <- snapshotWanted{reply: reply}:
	case <-c.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// post delivers an event to the loop. It is the sink handed to the radio
// and the target of every timer.
func (c *Coordinator) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// after schedules ev to be posted after d.
func (c *Coordinator) after(d time.Duration, ev Event) Timer {
	return c.clock.AfterFunc(d, func() { c.post(ev) })
}

// handle dispatches one event. A non-nil error stops the loop.
func (c *Coordinator) handle(ev Event) error {
	switch e := ev.(type) {
	case DeviceDiscovered:
		c.handleDiscovered(e)
	case DiscoveryFinished:
		return c.handleDiscoveryFinished(e)
	case Connected:
		c.handleConnected(e)
	case ConnectFailed:
		c.handleConnectFailed(e.ID, e.Err)
	case Disconnected:
		c.handleDisconnected(e)
	case ServiceDiscovered:
		c.handleServiceDiscovered(e)
	case CharacteristicsDiscovered:
		c.handleCharacteristics(e)
	case ServiceFailed:
		c.handleServiceFailed(e)
	case RadioFailed:
		if errors.Is(e.Err, ErrPermissionDenied) {
			c.fail(e.Err)
			return e.Err
		}
		c.logError("radio error", e.Err)
	case retryFired:
		c.handleRetry(e)
	case watchdogFired:
		c.handleWatchdog(e)
	case drainFired:
		c.drain()
	case submitted:
		c.submit(e.payload)
	case snapshotWanted:
		e.reply <- c.snapshot()
	}
	return nil
}

func (c *Coordinator) startDiscovery() {
	c.discovering = true
	c.logInfo("starting discovery")
	c.radio.StartDiscovery()
}

// rediscover restarts the scan unless one is already running.
func (c *Coordinator) rediscover() {
	if c.discovering {
		return
	}
	c.startDiscovery()
}

func (c *Coordinator) handleDiscoveryFinished(e DiscoveryFinished) error {
	c.discovering = false
	if e.Err == nil {
		c.logDebug("discovery finished", "devices", len(c.order))
		return nil
	}
	if errors.Is(e.Err, ErrPermissionDenied) {
		c.fail(e.Err)
		return e.Err
	}
	c.logError("discovery failed", e.Err)
	return nil
}

func (c *Coordinator) handleDiscovered(e DeviceDiscovered) {
	if !e.LowEnergy || e.Name != ProductName {
		return
	}
	if c.allow == nil || !c.allow.Contains(e.ID) {
		c.logDebug("ignoring unapproved device", "id", e.ID)
		return
	}

	en, ok := c.entries[e.ID]
	if !ok {
		en = &entry{id: e.ID, state: StateDiscovered}
		c.entries[e.ID] = en
		c.order = append(c.order, en)
		c.logInfo("discovered device", "id", e.ID)
		c.connect(en)
		return
	}

	if !en.connected && !en.connecting && en.retry == nil {
		c.connect(en)
	}
}

func (c *Coordinator) connect(en *entry) {
	en.connecting = true
	en.state = StateConnecting
	en.attempt++
	c.logDebug("connecting", "id", en.id, "attempt", en.attempt)
	c.radio.Connect(en.id)

	if c.connectTimeout > 0 {
		en.stopWatchdog()
		en.watchdog = c.after(c.connectTimeout, watchdogFired{id: en.id, attempt: en.attempt})
	}
}

func (c *Coordinator) handleConnected(e Connected) {
	en, ok := c.entries[e.ID]
	if !ok {
		return
	}

	en.stopWatchdog()
	en.stopRetry()
	en.connectCount++
	en.connected = true
	en.connecting = false
	en.backoff.reset()
	en.state = StateConnected
	c.logInfo("device connected", "id", en.id, "connect_count", en.connectCount)
	c.notifyLink(en)

	c.radio.DiscoverServices(en.id)
	en.state = StateServiceDiscovering
}

func (c *Coordinator) handleConnectFailed(id string, err error) {
	en, ok := c.entries[id]
	if !ok || !en.connecting || en.connected {
		c.logDebug("ignoring connect error", "id", id, "error", err)
		return
	}

	en.stopWatchdog()
	en.connecting = false
	d := en.backoff.next()
	en.state = StateBackoffWait
	en.retry = c.after(d, retryFired{id: id})
	c.logWarn("connect failed, retrying", "id", id, "error", err, "backoff", d)
}

func (c *Coordinator) handleRetry(e retryFired) {
	en, ok := c.entries[e.id]
	if !ok {
		return
	}
	en.retry = nil
	if !en.connecting && !en.connected {
		c.connect(en)
	}
}

func (c *Coordinator) handleWatchdog(e watchdogFired) {
	en, ok := c.entries[e.id]
	if !ok || en.attempt != e.attempt || !en.connecting {
		return
	}
	en.watchdog = nil
	c.radio.Disconnect(en.id)
	c.handleConnectFailed(en.id, ErrConnectTimeout)
}

func (c *Coordinator) handleDisconnected(e Disconnected) {
	en, ok := c.entries[e.ID]
	if !ok {
		return
	}

	en.stopWatchdog()
	en.release()
	if en.retry != nil {
		en.state = StateBackoffWait
	}
	c.logInfo("device disconnected", "id", en.id)
	c.notifyLink(en)
}

func (c *Coordinator) handleServiceDiscovered(e ServiceDiscovered) {
	en, ok := c.entries[e.ID]
	if !ok || !en.connected || e.Service != MeshServiceUUID {
		return
	}

	en.hasService = true
	c.radio.DiscoverCharacteristics(en.id, e.Service)
}

func (c *Coordinator) handleCharacteristics(e CharacteristicsDiscovered) {
	en, ok := c.entries[e.ID]
	if !ok || !en.connected || !en.hasService || e.Service != MeshServiceUUID {
		return
	}

	var low, high Characteristic
	for _, ch := range e.Characteristics {
		switch ch.UUID() {
		case LowCharUUID:
			low = ch
		case HighCharUUID:
			high = ch
		}
	}
	if low == nil || high == nil {
		c.logWarn("mesh service is missing a write characteristic",
			"id", en.id, "low", low != nil, "high", high != nil)
		return
	}

	en.low = low
	en.high = high
	en.ready = true
	en.state = StateReady
	c.logInfo("device ready", "id", en.id)
	c.entryReady(en)
}

// handleServiceFailed drops the link so the entry can be reconnected.
func (c *Coordinator) handleServiceFailed(e ServiceFailed) {
	en, ok := c.entries[e.ID]
	if !ok {
		return
	}
	c.logError("service discovery failed", e.Err)
	if en.connected {
		c.radio.Disconnect(en.id)
	}
}

// entryReady runs after an entry resolves both characteristics.
func (c *Coordinator) entryReady(en *entry) {
	if len(c.pending) > 0 && !c.sending && !c.drainScheduled && c.readyForSend() {
		c.scheduleDrain(0)
	}

	if c.readySignaled || en.connectCount != 1 || !c.allExpectedReady() {
		return
	}
	c.readySignaled = true
	c.logInfo("all devices ready", "devices", len(c.order))
	if c.onReady != nil {
		c.onReady()
	}
}

// allExpectedReady reports whether every device configured for the location
// has an entry and every entry is ready.
func (c *Coordinator) allExpectedReady() bool {
	if c.expected == 0 || len(c.order) < c.expected {
		return false
	}
	for _, en := range c.order {
		if !en.ready {
			return false
		}
	}
	return true
}

func (c *Coordinator) fail(err error) {
	c.logError("radio unavailable", err)
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Coordinator) notifyLink(en *entry) {
	if c.onLink != nil {
		c.onLink(LinkEvent{ID: en.id, Connected: en.connected, ConnectCount: en.connectCount})
	}
}

func (c *Coordinator) snapshot() []EntryStatus {
	out := make([]EntryStatus, 0, len(c.order))
	for _, en := range c.order {
		out = append(out, en.status())
	}
	return out
}

// shutdown cancels timers and releases every link.
func (c *Coordinator) shutdown() {
	if c.drainTimer != nil {
		c.drainTimer.Stop()
	}
	if c.discovering {
		c.radio.StopDiscovery()
		c.discovering = false
	}
	for _, en := range c.order {
		en.stopRetry()
		en.stopWatchdog()
		if en.connected || en.connecting {
			c.radio.Disconnect(en.id)
		}
	}
	c.logInfo("coordinator stopped", "pending", len(c.pending))
}

func randomSequence() uint32 {
	return rand.Uint32N(MaxSequence) + 1
}

func (c *Coordinator) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Coordinator) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Coordinator) logError(msg string, err error) {
	if c.logger != nil {
		c.logger.Error(msg, "error", err)
	}
}
