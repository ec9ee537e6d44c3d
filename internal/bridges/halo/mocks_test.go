package halo

import (
	"context"
	"sync"
	"testing"

	"github.com/nerrad567/halomqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/halomqtt/internal/mesh"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu             sync.Mutex
	published      []mockPublish
	subscriptions  []mockSubscription
	unsubscribed   []string
	connected      bool
	handlers       map[string]mqtt.MessageHandler
	subscribeError error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeError != nil {
		return m.subscribeError
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	delete(m.handlers, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]mockPublish, len(m.published))
	copy(result, m.published)
	return result
}

// PublishedTo returns every publish on topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage delivers a message to the handler subscribed on pattern.
func (m *MockMQTTClient) SimulateMessage(t *testing.T, pattern, topic string, payload []byte) error {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription on %q", pattern)
	}
	return handler(topic, payload)
}

type meshCall struct {
	kind  string
	did   uint32
	value uint32
}

// fakeMesh implements Mesh, recording every command.
type fakeMesh struct {
	mu          sync.Mutex
	calls       []meshCall
	err         error
	entries     []mesh.EntryStatus
	snapshotErr error
}

func (f *fakeMesh) SetBrightness(_ context.Context, did uint32, brightness uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, meshCall{kind: "brightness", did: did, value: uint32(brightness)})
	return f.err
}

func (f *fakeMesh) SetColorTemperature(_ context.Context, did, kelvin uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, meshCall{kind: "kelvin", did: did, value: kelvin})
	return f.err
}

func (f *fakeMesh) Snapshot(context.Context) ([]mesh.EntryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.snapshotErr
}

func (f *fakeMesh) getCalls() []meshCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]meshCall, len(f.calls))
	copy(result, f.calls)
	return result
}

type telemetryPoint struct {
	tag        string
	brightness uint8
	kelvin     uint32
}

type fakeTelemetry struct {
	mu     sync.Mutex
	points []telemetryPoint
}

func (f *fakeTelemetry) WriteLightState(tag string, brightness uint8, kelvin uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, telemetryPoint{tag, brightness, kelvin})
}
