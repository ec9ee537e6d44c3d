package mqtt

import (
	"fmt"
	"strings"
)

// Default topic roots.
const (
	// DefaultTopicPrefix is the base for light command and state topics.
	DefaultTopicPrefix = "halomqtt/light"

	// DefaultDiscoveryPrefix is the Home Assistant discovery root.
	DefaultDiscoveryPrefix = "homeassistant"

	// DefaultAvailabilityTopic carries the bridge's online/offline status.
	DefaultAvailabilityTopic = "halomqtt/bridge/availability"

	// DefaultHealthTopic carries the periodic bridge health report.
	DefaultHealthTopic = "halomqtt/bridge/health"
)

// Availability payloads. These are plain strings so Home Assistant's default
// payload_available/payload_not_available match without extra config.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds halomqtt topic names. The zero value uses the defaults.
//
//	topics := mqtt.Topics{}
//	topics.State("halomqtt_4242_3")
//	// Returns: "halomqtt/light/state/halomqtt_4242_3"
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

func (t Topics) discoveryPrefix() string {
	if t.DiscoveryPrefix == "" {
		return DefaultDiscoveryPrefix
	}
	return strings.TrimSuffix(t.DiscoveryPrefix, "/")
}

// Command returns the topic a light's commands arrive on.
//
// Example: halomqtt/light/command/halomqtt_4242_3
func (t Topics) Command(tag string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix(), tag)
}

// AllCommands returns the wildcard subscription for every light's commands.
//
// Example: halomqtt/light/command/+
func (t Topics) AllCommands() string {
	return t.prefix() + "/command/+"
}

// State returns the retained state topic of a light.
//
// Example: halomqtt/light/state/halomqtt_4242_3
func (t Topics) State(tag string) string {
	return fmt.Sprintf("%s/state/%s", t.prefix(), tag)
}

// Discovery returns the Home Assistant config topic of a light.
//
// Example: homeassistant/light/halomqtt_4242_3/config
func (t Topics) Discovery(tag string) string {
	return fmt.Sprintf("%s/light/%s/config", t.discoveryPrefix(), tag)
}

// CommandTag extracts the device tag from a command topic. It reports false
// for topics outside the command namespace or with extra levels.
func (t Topics) CommandTag(topic string) (string, bool) {
	tag, ok := strings.CutPrefix(topic, t.prefix()+"/command/")
	if !ok || tag == "" || strings.Contains(tag, "/") {
		return "", false
	}
	return tag, true
}
