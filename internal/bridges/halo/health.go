package halo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/halomqtt/internal/mesh"
)

const (
	// DefaultHealthInterval is how often health is published when no
	// interval is configured.
	DefaultHealthInterval = 30 * time.Second

	// snapshotTimeout bounds a coordinator snapshot taken for a report.
	snapshotTimeout = 2 * time.Second
)

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// StatusSource reports the mesh connection entries.
type StatusSource interface {
	Snapshot(ctx context.Context) ([]mesh.EntryStatus, error)
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Topic is where health messages are published. Required.
	Topic string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: DefaultHealthInterval.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Status supplies device counts. Optional.
	Status StatusSource

	// Expected is the number of fixtures configured for the location.
	Expected int
}

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	topic     string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	status    StatusSource
	expected  int
	now       func() time.Time

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a new health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	return &HealthReporter{
		topic:     cfg.Topic,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		status:    cfg.Status,
		expected:  cfg.Expected,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is
// called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "", DeviceSummary{Expected: h.expected})
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting", DeviceSummary{Expected: h.expected})
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow(ctx context.Context) error {
	summary := h.summary(ctx)
	status, reason := h.determineStatus(summary)
	return h.publishStatus(status, reason, summary)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(ctx); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// summary snapshots the coordinator. A stopped or busy coordinator yields
// an empty summary.
func (h *HealthReporter) summary(ctx context.Context) DeviceSummary {
	if h.status == nil {
		return DeviceSummary{Expected: h.expected}
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	entries, err := h.status.Snapshot(ctx)
	if err != nil {
		return DeviceSummary{Expected: h.expected}
	}
	return Summarise(h.expected, entries)
}

func (h *HealthReporter) determineStatus(s DeviceSummary) (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if s.Ready < s.Expected {
		return HealthDegraded, fmt.Sprintf("%d of %d devices ready", s.Ready, s.Expected)
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string, summary DeviceSummary) error {
	if h.publisher == nil || h.topic == "" {
		return nil
	}

	now := h.now()
	msg := HealthMessage{
		Status:        status,
		Reason:        reason,
		Version:       h.version,
		Timestamp:     now.UTC(),
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		MQTTConnected: h.publisher.IsConnected(),
		Devices:       summary,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(h.topic, payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
