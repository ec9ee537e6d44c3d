// halomqtt bridges a Halo/Avi-on Bluetooth LE lighting mesh to MQTT.
//
// Lights from the first location in the locations file are announced to
// Home Assistant through MQTT discovery. Commands on the light command
// topics are encrypted and written to every connected mesh radio.
//
// Usage:
//
//	halomqtt --locations locations.json --devices devices.txt --mqtt-host broker
//
// Every option can also be given as a HALO_* environment variable
// (HALO_MQTT_HOST) or in a YAML file passed with --config.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/halomqtt/internal/api"
	"github.com/nerrad567/halomqtt/internal/bridges/halo"
	"github.com/nerrad567/halomqtt/internal/device"
	"github.com/nerrad567/halomqtt/internal/infrastructure/ble"
	"github.com/nerrad567/halomqtt/internal/infrastructure/config"
	"github.com/nerrad567/halomqtt/internal/infrastructure/database"
	"github.com/nerrad567/halomqtt/internal/infrastructure/influxdb"
	"github.com/nerrad567/halomqtt/internal/infrastructure/logging"
	"github.com/nerrad567/halomqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/halomqtt/internal/location"
	"github.com/nerrad567/halomqtt/internal/mesh"
	"github.com/nerrad567/halomqtt/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// historyRetention bounds how long light state history is kept.
const historyRetention = 30 * 24 * time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - argv: Command-line arguments without the program name
//   - environ: Environment in KEY=value form
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, argv, environ []string) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting halomqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	args, err := config.ParseArgs(argv, environ, config.EnvPrefix)
	if err != nil {
		return fmt.Errorf("parsing arguments: %w", err)
	}

	configPath := args.String("config", "")
	cfg, err := config.Load(configPath, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close()
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Identity files
	locations, err := location.LoadLocations(cfg.Halo.LocationsFile)
	if err != nil {
		return fmt.Errorf("loading locations: %w", err)
	}
	for _, skipped := range locations.Skipped {
		log.Warn("skipped locations record", "error", skipped)
	}
	loc, err := locations.Primary()
	if err != nil {
		return fmt.Errorf("loading locations: %w", err)
	}
	if len(locations.Locations) > 1 {
		log.Warn("only the first location is bridged", "locations", len(locations.Locations))
	}

	approved, err := location.LoadApproved(cfg.Halo.DevicesFile)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	log.Info("location loaded",
		"location", loc.ID,
		"name", loc.Name,
		"lights", len(loc.Devices),
		"approved_radios", approved.Len(),
	)

	// Database
	db, err := database.OpenAndMigrate(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, migrations.FS)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	historyRepo := device.NewSQLiteStateHistoryRepository(db.DB)
	if pruned, pruneErr := historyRepo.PruneHistory(ctx, historyRetention); pruneErr != nil {
		log.Warn("pruning state history failed", "error", pruneErr)
	} else if pruned > 0 {
		log.Info("pruned state history", "rows", pruned)
	}

	registry := device.NewRegistry(device.NewSQLiteStateRepository(db.DB), historyRepo)
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading light state: %w", refreshErr)
	}
	log.Info("light state loaded", "stored", registry.Count())

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// The API closes after the coordinator so the last link states remain
	// visible while radios disconnect.
	var apiServer *api.Server
	defer func() {
		if apiServer == nil {
			return
		}
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// Mesh coordinator
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var bridge *halo.Bridge
	radio := ble.New(ble.Options{
		Adapter:      cfg.Bluetooth.Adapter,
		ScanDuration: cfg.GetScanDuration(),
		Logger:       log.With("component", "ble"),
	})
	coordinator, err := mesh.NewCoordinator(mesh.Options{
		Radio:          radio,
		Location:       loc,
		Approved:       approved,
		DeviceDelay:    cfg.GetDeviceDelay(),
		ConnectTimeout: cfg.GetConnectTimeout(),
		Logger:         log.With("component", "mesh"),
		OnDevicesReady: func() { bridge.DevicesReady() },
		OnError: func(err error) {
			log.Error("radio failed", "error", err)
		},
		OnLinkChange: func(ev mesh.LinkEvent) {
			influxClient.WriteLink(ev.ID, ev.Connected, ev.ConnectCount)
		},
	})
	if err != nil {
		return fmt.Errorf("creating mesh coordinator: %w", err)
	}

	var meshErr error
	meshDone := make(chan struct{})
	meshStarted := false
	defer func() {
		if !meshStarted {
			return
		}
		log.Info("stopping mesh coordinator")
		stopRun()
		<-meshDone
	}()

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.AvailabilityTopic)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Bridge
	var telemetry halo.Telemetry
	if influxClient != nil {
		telemetry = influxClient
	}
	bridge, err = halo.NewBridge(halo.BridgeOptions{
		Location:   loc,
		MQTTClient: mqttClient,
		Mesh:       coordinator,
		States:     registry,
		Telemetry:  telemetry,
		Topics: mqtt.Topics{
			Prefix:          cfg.Bridge.TopicPrefix,
			DiscoveryPrefix: cfg.Bridge.DiscoveryPrefix,
		},
		AvailabilityTopic: cfg.Bridge.AvailabilityTopic,
		HealthTopic:       cfg.Bridge.HealthTopic,
		HealthInterval:    cfg.GetHealthInterval(),
		Version:           version,
		Logger:            log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := bridge.Start(runCtx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	go func() {
		defer close(meshDone)
		meshErr = coordinator.Run(runCtx)
	}()
	meshStarted = true
	log.Info("mesh coordinator started",
		"adapter", cfg.Bluetooth.Adapter,
		"device_delay", cfg.GetDeviceDelay(),
	)

	// API (optional)
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Location: loc,
			Mesh:     coordinator,
			States:   registry,
			MQTT:     mqttClient,
			Bridge:   bridge,
			DB:       db.DB,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(runCtx); startErr != nil {
			apiServer = nil
			return fmt.Errorf("starting API server: %w", startErr)
		}
		log.Info("API server started", "addr", apiServer.Addr())
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case <-meshDone:
		if meshErr != nil {
			return fmt.Errorf("mesh coordinator: %w", meshErr)
		}
	}

	// Deferred calls run in reverse order:
	// 1. Bridge (unpublishes lights)
	// 2. MQTT
	// 3. Mesh coordinator (stops scanning, disconnects radios)
	// 4. API server
	// 5. InfluxDB (if enabled)
	// 6. Database

	log.Info("halomqtt stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
