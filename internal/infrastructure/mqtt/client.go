package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/halomqtt/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with halomqtt-specific functionality.
//
// It provides connection management, message publishing, subscription handling,
// an availability topic with a Last Will, and an outbox that holds retained
// publishes while the broker is unreachable.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// availabilityTopic receives "online" on every connect and "offline" on
	// Close or, via the LWT, on an unclean drop.
	availabilityTopic string

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// outbox holds retained publishes made while disconnected, one per topic,
	// in the order of their latest write. pendingMu serialises the connected
	// flag flip with the outbox flush and subscription restore, so a publish
	// or subscribe racing a reconnect is either replayed or sent directly.
	outbox    []outboxMessage
	pendingMu sync.Mutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

type outboxMessage struct {
	topic   string
	qos     byte
	payload []byte
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Sets the Last Will to "offline" on availabilityTopic
//  3. Sets up auto-reconnect with exponential backoff
//  4. Attempts initial connection with timeout
//  5. Publishes "online" to availabilityTopic (from the connect handler)
//
// Parameters:
//   - cfg: MQTT configuration
//   - availabilityTopic: Topic for bridge availability, or "" for none
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig, availabilityTopic string) (*Client, error) {
	c := newClient(cfg, availabilityTopic, pahomqtt.NewClient)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		// Stop the background connect-retry loop.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed yet.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// newClient builds a Client around the paho client returned by factory.
func newClient(cfg config.MQTTConfig, availabilityTopic string, factory func(*pahomqtt.ClientOptions) pahomqtt.Client) *Client {
	opts := buildClientOptions(cfg)
	configureLWT(opts, availabilityTopic)

	c := &Client{
		cfg:               cfg,
		availabilityTopic: availabilityTopic,
		subscriptions:     make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = factory(opts)
	return c
}

// handleConnect is called when the connection is established or restored.
func (c *Client) handleConnect() {
	c.pendingMu.Lock()
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	if c.availabilityTopic != "" {
		c.client.Publish(c.availabilityTopic, 1, true, PayloadOnline)
	}
	for _, m := range c.outbox {
		c.client.Publish(m.topic, m.qos, true, m.payload)
	}
	c.outbox = nil
	c.pendingMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost, reconnecting", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// enqueue stores a retained publish for the next connect. A newer payload
// for the same topic replaces the older one and moves to the back.
// Callers hold pendingMu.
func (c *Client) enqueue(topic string, qos byte, payload []byte) error {
	for i, m := range c.outbox {
		if m.topic == topic {
			c.outbox = append(c.outbox[:i], c.outbox[i+1:]...)
			break
		}
	}
	if len(c.outbox) >= maxOutbox {
		return fmt.Errorf("%w: %d messages pending", ErrOutboxFull, len(c.outbox))
	}
	c.outbox = append(c.outbox, outboxMessage{topic: topic, qos: qos, payload: append([]byte(nil), payload...)})
	return nil
}

// Pending returns the number of retained publishes waiting for a connection.
func (c *Client) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.outbox)
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes "offline" to the availability topic, waits for pending
// publish operations, and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() && c.availabilityTopic != "" {
		token := c.client.Publish(c.availabilityTopic, 1, true, PayloadOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection and handler errors.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
