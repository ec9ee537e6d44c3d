package halo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/halomqtt/internal/device"
	"github.com/nerrad567/halomqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/halomqtt/internal/location"
	"github.com/nerrad567/halomqtt/internal/mesh"
)

// Bridge operation constants.
const (
	// commandTimeout bounds persisting and submitting one light command.
	commandTimeout = 5 * time.Second

	// announceTimeout bounds persisting initial state during announcement.
	announceTimeout = 10 * time.Second

	// qosAtLeastOnce is used for discovery, state and command topics.
	qosAtLeastOnce byte = 1
)

// Logger is the logging interface used by the bridge.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Mesh sends light commands to the fixtures.
type Mesh interface {
	SetBrightness(ctx context.Context, did uint32, brightness uint8) error
	SetColorTemperature(ctx context.Context, did, kelvin uint32) error
	Snapshot(ctx context.Context) ([]mesh.EntryStatus, error)
}

// StateStore holds the last commanded state of every light.
// *device.Registry implements it.
type StateStore interface {
	State(tag string) (device.LightState, bool)
	StateOrDefault(tag string) device.LightState
	Apply(ctx context.Context, tag string, cmd device.Command) (device.LightState, device.Change, error)
	Set(ctx context.Context, tag string, state device.LightState, source string) error
}

// Telemetry records light state changes. Optional.
type Telemetry interface {
	WriteLightState(tag string, brightness uint8, kelvin uint32)
}

// BridgeOptions holds the collaborators and settings for NewBridge.
type BridgeOptions struct {
	// Location is the primary location. Required.
	Location *location.Location

	// MQTTClient is the control-plane client. Required.
	MQTTClient MQTTClient

	// Mesh receives light commands. Required.
	Mesh Mesh

	// States persists light state. Required.
	States StateStore

	// Telemetry is optional.
	Telemetry Telemetry

	// Topics names the command, state and discovery topics.
	Topics mqtt.Topics

	// AvailabilityTopic is advertised in discovery configs. Empty omits it.
	AvailabilityTopic string

	// HealthTopic receives periodic health reports. Empty disables them.
	HealthTopic string

	// HealthInterval defaults to DefaultHealthInterval.
	HealthInterval time.Duration

	// Version is reported in health messages.
	Version string

	// Logger is optional.
	Logger Logger
}

// Bridge translates between Home Assistant's MQTT light schema and the
// Halo mesh.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	loc               *location.Location
	mqtt              MQTTClient
	mesh              Mesh
	states            StateStore
	telemetry         Telemetry
	topics            mqtt.Topics
	availabilityTopic string
	health            *HealthReporter

	// devices maps control-plane tags to fixtures.
	devices map[string]location.DeviceConfig

	announced atomic.Bool

	commandsReceived atomic.Uint64
	commandsRejected atomic.Uint64
	statesPublished  atomic.Uint64

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Location == nil {
		return nil, fmt.Errorf("%w: location", ErrMissingDependency)
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client", ErrMissingDependency)
	}
	if opts.Mesh == nil {
		return nil, fmt.Errorf("%w: mesh", ErrMissingDependency)
	}
	if opts.States == nil {
		return nil, fmt.Errorf("%w: state store", ErrMissingDependency)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		loc:               opts.Location,
		mqtt:              opts.MQTTClient,
		mesh:              opts.Mesh,
		states:            opts.States,
		telemetry:         opts.Telemetry, // May be nil (optional)
		topics:            opts.Topics,
		availabilityTopic: opts.AvailabilityTopic,
		devices:           make(map[string]location.DeviceConfig, len(opts.Location.Devices)),
		ctx:               ctx,
		ctxCancel:         ctxCancel,
		logger:            opts.Logger,
	}
	for _, d := range opts.Location.Devices {
		b.devices[opts.Location.Tag(d.DID)] = d
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Topic:     opts.HealthTopic,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Status:    opts.Mesh,
		Expected:  len(opts.Location.Devices),
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start publishes a "starting" health report and begins periodic health
// reporting. Devices are announced later, by DevicesReady.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}
	b.health.Start(ctx)

	b.logInfo("bridge started",
		"location", b.loc.ID,
		"devices", len(b.devices))
	return nil
}

// DevicesReady announces every fixture and subscribes to commands. It is
// meant to be the coordinator's OnDevicesReady callback, so the work runs on
// its own goroutine and the call returns at once. Only the first call has an
// effect.
func (b *Bridge) DevicesReady() {
	if !b.announced.CompareAndSwap(false, true) {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.announce(b.ctx); err != nil {
			b.logError("failed to announce devices", err)
		}
	}()
}

// announce publishes discovery config and initial state for each fixture,
// then subscribes to the command wildcard.
func (b *Bridge) announce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()

	for _, d := range b.loc.Devices {
		tag := b.loc.Tag(d.DID)
		if err := b.publishDiscovery(tag, d); err != nil {
			b.logError("failed to publish discovery", fmt.Errorf("%s: %w", tag, err))
			continue
		}

		state, known := b.states.State(tag)
		if !known {
			state = device.DefaultLightState()
			if err := b.states.Set(ctx, tag, state, device.StateSourceAnnounce); err != nil {
				b.logError("failed to store initial state", fmt.Errorf("%s: %w", tag, err))
			}
		}
		if err := b.publishState(tag, state); err != nil {
			b.logError("failed to publish state", fmt.Errorf("%s: %w", tag, err))
		}
		b.logDebug("device announced", "tag", tag, "name", d.Name)
	}

	topic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(topic, qosAtLeastOnce, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("devices announced", "devices", len(b.loc.Devices), "topic", topic)

	if err := b.health.PublishNow(ctx); err != nil {
		b.logError("failed to publish health", err)
	}
	return nil
}

// Stop unsubscribes from commands, withdraws every discovery config and
// stops health reporting. The MQTT client itself is left connected; the
// caller closes it, which marks the bridge offline.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.wg.Wait()

		if b.announced.Load() {
			if err := b.mqtt.Unsubscribe(b.topics.AllCommands()); err != nil {
				b.logError("failed to unsubscribe from commands", err)
			}
			for _, d := range b.loc.Devices {
				tag := b.loc.Tag(d.DID)
				// An empty retained payload deletes the entity.
				if err := b.mqtt.Publish(b.topics.Discovery(tag), nil, qosAtLeastOnce, true); err != nil {
					b.logError("failed to unpublish device", fmt.Errorf("%s: %w", tag, err))
				}
			}
		}

		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// handleCommand processes one message from the command wildcard.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	b.commandsReceived.Add(1)
	if err := b.executeCommand(topic, payload); err != nil {
		b.commandsRejected.Add(1)
		return err
	}
	return nil
}

func (b *Bridge) executeCommand(topic string, payload []byte) error {
	tag, ok := b.topics.CommandTag(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	dev, ok := b.devices[tag]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, tag)
	}

	cmd, err := device.ParseCommand(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	state, change, err := b.states.Apply(ctx, tag, cmd)
	if err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}

	if err := b.publishState(tag, state); err != nil {
		b.logError("failed to publish state", fmt.Errorf("%s: %w", tag, err))
	}
	if b.telemetry != nil {
		b.telemetry.WriteLightState(tag, state.Brightness, state.Kelvin)
	}

	var errs []error
	if change.Brightness != nil {
		if err := b.mesh.SetBrightness(ctx, dev.DID, *change.Brightness); err != nil {
			errs = append(errs, fmt.Errorf("brightness: %w", err))
		}
	}
	if change.Kelvin != nil {
		if err := b.mesh.SetColorTemperature(ctx, dev.DID, *change.Kelvin); err != nil {
			errs = append(errs, fmt.Errorf("color temperature: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}

	b.logDebug("command applied",
		"tag", tag,
		"brightness", state.Brightness,
		"kelvin", state.Kelvin)
	return nil
}

func (b *Bridge) publishDiscovery(tag string, d location.DeviceConfig) error {
	cfg := NewDiscoveryConfig(tag, d, b.topics.Command(tag), b.topics.State(tag), b.availabilityTopic)
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return b.mqtt.Publish(b.topics.Discovery(tag), payload, qosAtLeastOnce, true)
}

func (b *Bridge) publishState(tag string, state device.LightState) error {
	payload, err := json.Marshal(state.Payload())
	if err != nil {
		return err
	}
	if err := b.mqtt.Publish(b.topics.State(tag), payload, qosAtLeastOnce, true); err != nil {
		return err
	}
	b.statesPublished.Add(1)
	return nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	MQTTConnected    bool   `json:"mqtt_connected"`
	Announced        bool   `json:"announced"`
	DevicesManaged   int    `json:"devices_managed"`
	CommandsReceived uint64 `json:"commands_received"`
	CommandsRejected uint64 `json:"commands_rejected"`
	StatesPublished  uint64 `json:"states_published"`
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	return BridgeMetrics{
		MQTTConnected:    b.mqtt.IsConnected(),
		Announced:        b.announced.Load(),
		DevicesManaged:   len(b.devices),
		CommandsReceived: b.commandsReceived.Load(),
		CommandsRejected: b.commandsRejected.Load(),
		StatesPublished:  b.statesPublished.Load(),
	}
}
