// Package mqtt provides MQTT client connectivity for halomqtt.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - An availability topic backed by a Last Will and Testament
//   - An outbox for retained publishes made while the broker is unreachable
//
// # Architecture
//
// The bridge speaks to Home Assistant (or any MQTT consumer) through the
// broker. Lights are announced with retained discovery configs, report state
// on retained state topics, and receive JSON commands.
//
//	Home Assistant ↔ MQTT Broker ↔ halomqtt ↔ BLE mesh
//
// # Reconnection
//
// paho retries a lost connection with a delay that doubles from one second
// up to mqtt.reconnect.max_delay. Acknowledgements outstanding when the link
// drops are discarded; retained state is re-sent from the outbox instead.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.DefaultAvailabilityTopic)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        tag, _ := topics.CommandTag(topic)
//	        log.Printf("command for %s: %s", tag, payload)
//	        return nil
//	    })
package mqtt
