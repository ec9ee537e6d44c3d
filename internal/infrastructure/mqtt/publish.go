package mqtt

import (
	"errors"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Retained publishes made while disconnected, or lost because the
// connection dropped before the broker acknowledged them, are queued in the
// outbox and sent, in order, as soon as the connection is restored. Non-retained
// publishes fail with ErrNotConnected instead.
//
// An empty retained payload clears the retained message on the broker; the
// bridge uses this to remove Home Assistant discovery entries.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success or when queued, or a wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	c.pendingMu.Lock()
	if !c.IsConnected() {
		defer c.pendingMu.Unlock()
		if retained {
			return c.enqueue(topic, qos, payload)
		}
		return ErrNotConnected
	}
	c.pendingMu.Unlock()

	token := c.client.Publish(topic, qos, retained, payload)
	var err error
	if !token.WaitTimeout(defaultPublishTimeout) {
		err = fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	} else if tokenErr := token.Error(); tokenErr != nil {
		err = fmt.Errorf("%w: %w", ErrPublishFailed, tokenErr)
	}
	if err != nil && retained {
		return c.requeueIfDropped(topic, qos, payload, err)
	}
	return err
}

// requeueIfDropped moves a failed retained publish into the outbox when the
// connection went away underneath it, so the next connect replays it.
// Failures on a live connection are returned as is.
func (c *Client) requeueIfDropped(topic string, qos byte, payload []byte, err error) error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.IsConnected() {
		return err
	}
	if qerr := c.enqueue(topic, qos, payload); qerr != nil {
		return errors.Join(err, qerr)
	}
	return nil
}

// PublishRetained publishes a retained message with the configured default QoS.
//
// Use for state and discovery topics where new subscribers should receive
// the current value.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
