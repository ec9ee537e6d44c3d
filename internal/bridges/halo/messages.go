package halo

import (
	"time"

	"github.com/nerrad567/halomqtt/internal/device"
	"github.com/nerrad567/halomqtt/internal/location"
	"github.com/nerrad567/halomqtt/internal/mesh"
)

// DiscoveryConfig is the Home Assistant MQTT discovery payload for one light,
// using the JSON light schema.
type DiscoveryConfig struct {
	Name                string     `json:"name"`
	CommandTopic        string     `json:"command_topic"`
	StateTopic          string     `json:"state_topic"`
	ObjectID            string     `json:"object_id"`
	UniqueID            string     `json:"unique_id"`
	Brightness          bool       `json:"brightness"`
	ColorMode           bool       `json:"color_mode"`
	SupportedColorModes []string   `json:"supported_color_modes"`
	MaxMireds           int        `json:"max_mireds"`
	MinMireds           int        `json:"min_mireds"`
	Schema              string     `json:"schema"`
	AvailabilityTopic   string     `json:"availability_topic,omitempty"`
	Device              DeviceInfo `json:"device"`
}

// DeviceInfo groups a light's entities in the Home Assistant device registry.
type DeviceInfo struct {
	Identifiers  []string    `json:"identifiers"`
	Name         string      `json:"name"`
	Model        string      `json:"model,omitempty"`
	Manufacturer string      `json:"manufacturer"`
	Connections  [][2]string `json:"connections,omitempty"`
}

// NewDiscoveryConfig builds the discovery payload for a fixture.
func NewDiscoveryConfig(tag string, dev location.DeviceConfig, commandTopic, stateTopic, availabilityTopic string) DiscoveryConfig {
	name := dev.Name
	if name == "" {
		name = tag
	}

	cfg := DiscoveryConfig{
		Name:                name,
		CommandTopic:        commandTopic,
		StateTopic:          stateTopic,
		ObjectID:            tag,
		UniqueID:            tag,
		Brightness:          true,
		ColorMode:           true,
		SupportedColorModes: []string{device.ColorModeTemp},
		MaxMireds:           device.MaxMireds,
		MinMireds:           device.MinMireds,
		Schema:              "json",
		AvailabilityTopic:   availabilityTopic,
		Device: DeviceInfo{
			Identifiers:  []string{tag},
			Name:         name,
			Model:        dev.PID,
			Manufacturer: mesh.ProductName,
		},
	}
	if dev.MAC != "" {
		cfg.Device.Connections = [][2]string{{"mac", dev.MAC}}
	}
	return cfg
}

// HealthStatus represents the bridge's health state.
type HealthStatus string

// Health status values.
const (
	// HealthHealthy means MQTT is connected and every fixture is ready.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded means the bridge is running with a problem, such as a
	// lost MQTT connection or fixtures still connecting.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting is published during startup.
	HealthStarting HealthStatus = "starting"

	// HealthStopping is published during graceful shutdown.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published on the health topic.
type HealthMessage struct {
	Status        HealthStatus  `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	Version       string        `json:"version,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	MQTTConnected bool          `json:"mqtt_connected"`
	Devices       DeviceSummary `json:"devices"`
}

// DeviceSummary counts mesh connection entries.
type DeviceSummary struct {
	Expected   int `json:"expected"`
	Discovered int `json:"discovered"`
	Connected  int `json:"connected"`
	Ready      int `json:"ready"`
}

// Summarise counts entries from a coordinator snapshot.
func Summarise(expected int, entries []mesh.EntryStatus) DeviceSummary {
	s := DeviceSummary{Expected: expected, Discovered: len(entries)}
	for _, e := range entries {
		if e.Connected {
			s.Connected++
		}
		if e.Ready {
			s.Ready++
		}
	}
	return s
}
