package mqtt

import (
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/halomqtt/internal/infrastructure/config"
)

// fakeToken is an already-completed paho token, or one that never
// completes when timeout is set.
type fakeToken struct {
	err     error
	timeout bool
}

func (t fakeToken) Wait() bool                     { return !t.timeout }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Error() error                   { return t.err }

func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakePaho records what the wrapper asks paho to do.
type fakePaho struct {
	mu         sync.Mutex
	connected  bool
	publishes  []published
	subscribed map[string]pahomqtt.MessageHandler
	unsubs     []string
	subErr     error
	opts       *pahomqtt.ClientOptions

	// failNext is returned by the next publish instead of success. With
	// dropOnFail the connection is lost at the same time.
	failNext   *fakeToken
	dropOnFail bool
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return fakeToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var text string
	switch p := payload.(type) {
	case string:
		text = p
	case []byte:
		text = string(p)
	}
	f.publishes = append(f.publishes, published{topic: topic, qos: qos, retained: retained, payload: text})
	if tok := f.failNext; tok != nil {
		f.failNext = nil
		if f.dropOnFail {
			f.connected = false
		}
		return *tok
	}
	return fakeToken{}
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return fakeToken{err: f.subErr}
	}
	if f.subscribed == nil {
		f.subscribed = make(map[string]pahomqtt.MessageHandler)
	}
	f.subscribed[topic] = callback
	return fakeToken{}
}

func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, topics...)
	for _, t := range topics {
		delete(f.subscribed, t)
	}
	return fakeToken{}
}

func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (f *fakePaho) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakePaho) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.publishes...)
}

func (f *fakePaho) handler(topic string) pahomqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[topic]
}

// fakeMessage is an inbound message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "halomqtt-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// newFakeClient returns a Client over a fakePaho. The client starts
// disconnected; call handleConnect to simulate the broker accepting it.
func newFakeClient() (*Client, *fakePaho) {
	fake := &fakePaho{}
	c := newClient(testConfig(), DefaultAvailabilityTopic, func(o *pahomqtt.ClientOptions) pahomqtt.Client {
		fake.opts = o
		return fake
	})
	return c, fake
}

// connect marks both layers connected, as paho does before its handler runs.
func connect(c *Client, fake *fakePaho) {
	fake.setConnected(true)
	c.handleConnect()
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}
