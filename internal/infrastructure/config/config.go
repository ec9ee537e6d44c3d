package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "HALO_"

// Config is the root configuration structure for halomqtt.
// All configuration is loaded from YAML and can be overridden by environment
// variables and command-line arguments.
type Config struct {
	Halo      HaloConfig      `yaml:"halo"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HaloConfig points at the installation's identity files.
type HaloConfig struct {
	// LocationsFile is the JSON export of locations and fixtures.
	LocationsFile string `yaml:"locations_file"`

	// DevicesFile lists approved radio transport ids, one per line.
	DevicesFile string `yaml:"devices_file"`
}

// BluetoothConfig contains BLE radio settings.
type BluetoothConfig struct {
	// Adapter is the HCI adapter id on Linux (e.g. "hci0"). Empty uses the
	// default adapter.
	Adapter string `yaml:"adapter"`

	// DeviceDelay is the minimum spacing between command batches (ms).
	DeviceDelay int `yaml:"device_delay"`

	// ConnectTimeout bounds a connect attempt (seconds). 0 disables it.
	ConnectTimeout int `yaml:"connect_timeout"`

	// ScanDuration is how long one discovery scan runs (seconds).
	ScanDuration int `yaml:"scan_duration"`
}

// BridgeConfig contains control-plane topic settings.
type BridgeConfig struct {
	TopicPrefix       string `yaml:"topic_prefix"`
	DiscoveryPrefix   string `yaml:"discovery_prefix"`
	AvailabilityTopic string `yaml:"availability_topic"`
	HealthTopic       string `yaml:"health_topic"`
	HealthInterval    int    `yaml:"health_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating log file settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load builds the configuration.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, if path is not empty
//  3. Arguments (HALO_* environment, then command line)
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for none
//   - args: Parsed arguments from ParseArgs (may be nil)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string, args *Args) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if args != nil {
		applyArgs(cfg, args)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bluetooth: BluetoothConfig{
			DeviceDelay:    100,
			ConnectTimeout: 30,
			ScanDuration:   30,
		},
		Bridge: BridgeConfig{
			TopicPrefix:       "halomqtt/light",
			DiscoveryPrefix:   "homeassistant",
			AvailabilityTopic: "halomqtt/bridge/availability",
			HealthTopic:       "halomqtt/bridge/health",
			HealthInterval:    30,
		},
		Database: DatabaseConfig{
			Path:        "./data/halomqtt.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port:     1883,
				ClientID: "halomqtt",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8321,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/halomqtt.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyArgs applies argument overrides. Keys match the long option names,
// so HALO_MQTT_HOST and --mqtt-host both set cfg.MQTT.Broker.Host.
func applyArgs(cfg *Config, a *Args) {
	// Identity files
	cfg.Halo.LocationsFile = a.String("locations", cfg.Halo.LocationsFile)
	cfg.Halo.DevicesFile = a.String("devices", cfg.Halo.DevicesFile)

	// Bluetooth
	cfg.Bluetooth.Adapter = a.String("bluetooth-adapter", cfg.Bluetooth.Adapter)
	cfg.Bluetooth.DeviceDelay = int(a.Int("device-delay", int64(cfg.Bluetooth.DeviceDelay)))
	cfg.Bluetooth.ConnectTimeout = int(a.Int("connect-timeout", int64(cfg.Bluetooth.ConnectTimeout)))
	cfg.Bluetooth.ScanDuration = int(a.Int("scan-duration", int64(cfg.Bluetooth.ScanDuration)))

	// Bridge
	cfg.Bridge.TopicPrefix = a.String("topic-prefix", cfg.Bridge.TopicPrefix)
	cfg.Bridge.DiscoveryPrefix = a.String("discovery-prefix", cfg.Bridge.DiscoveryPrefix)

	// MQTT
	cfg.MQTT.Broker.Host = a.String("mqtt-host", cfg.MQTT.Broker.Host)
	cfg.MQTT.Broker.Port = int(a.Int("mqtt-port", int64(cfg.MQTT.Broker.Port)))
	cfg.MQTT.Broker.TLS = a.Bool("mqtt-tls", cfg.MQTT.Broker.TLS)
	cfg.MQTT.Broker.ClientID = a.String("mqtt-client-id", cfg.MQTT.Broker.ClientID)
	cfg.MQTT.Auth.Username = a.String("mqtt-user", cfg.MQTT.Auth.Username)
	cfg.MQTT.Auth.Password = a.String("mqtt-password", cfg.MQTT.Auth.Password)

	// Database
	cfg.Database.Path = a.String("database-path", cfg.Database.Path)

	// API
	cfg.API.Enabled = a.Bool("api", cfg.API.Enabled)
	cfg.API.Host = a.String("api-host", cfg.API.Host)
	cfg.API.Port = int(a.Int("api-port", int64(cfg.API.Port)))

	// InfluxDB
	cfg.InfluxDB.Enabled = a.Bool("influxdb", cfg.InfluxDB.Enabled)
	cfg.InfluxDB.URL = a.String("influxdb-url", cfg.InfluxDB.URL)
	cfg.InfluxDB.Token = a.String("influxdb-token", cfg.InfluxDB.Token)

	// Logging
	cfg.Logging.Level = a.String("log-level", cfg.Logging.Level)
	cfg.Logging.Format = a.String("log-format", cfg.Logging.Format)
	cfg.Logging.Output = a.String("log-output", cfg.Logging.Output)
	cfg.Logging.File.Path = a.String("log-file", cfg.Logging.File.Path)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Identity files
	if c.Halo.LocationsFile == "" {
		errs = append(errs, "halo.locations_file is required (--locations)")
	}
	if c.Halo.DevicesFile == "" {
		errs = append(errs, "halo.devices_file is required (--devices)")
	}

	// Bluetooth
	if c.Bluetooth.DeviceDelay < 0 {
		errs = append(errs, "bluetooth.device_delay must not be negative")
	}
	if c.Bluetooth.ConnectTimeout < 0 {
		errs = append(errs, "bluetooth.connect_timeout must not be negative")
	}
	if c.Bluetooth.ScanDuration < 1 {
		errs = append(errs, "bluetooth.scan_duration must be at least 1 second")
	}

	// Bridge
	if c.Bridge.TopicPrefix == "" || strings.ContainsAny(c.Bridge.TopicPrefix, "+#") {
		errs = append(errs, "bridge.topic_prefix must be a non-empty topic without wildcards")
	}
	if c.Bridge.DiscoveryPrefix == "" {
		errs = append(errs, "bridge.discovery_prefix is required")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required (--mqtt-host)")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetDeviceDelay returns the inter-command delay as a Duration.
func (c *Config) GetDeviceDelay() time.Duration {
	return time.Duration(c.Bluetooth.DeviceDelay) * time.Millisecond
}

// GetConnectTimeout returns the connect watchdog timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Bluetooth.ConnectTimeout) * time.Second
}

// GetScanDuration returns the discovery scan length as a Duration.
func (c *Config) GetScanDuration() time.Duration {
	return time.Duration(c.Bluetooth.ScanDuration) * time.Second
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
