// VeSync Bridge - cloud device to MQTT synchronization service
//
// The bridge logs into the VeSync cloud, discovers the account's
// devices, mirrors them as accessories over MQTT, and keeps device
// state and host commands flowing in both directions indefinitely.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/marktheknife/vesync-bridge/migrations"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/bridge"
	"github.com/marktheknife/vesync-bridge/internal/device"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/config"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/database"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/influxdb"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/logging"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/mqtt"
	"github.com/marktheknife/vesync-bridge/internal/server"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthReportInterval is how often the health reporter publishes to
// the system health topic.
const healthReportInterval = 60 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting VeSync Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings. The VeSync debug flag
	// forces debug level regardless of the configured level.
	logCfg := cfg.Logging
	if cfg.VeSync.Debug {
		logCfg.Level = "debug"
	}
	log = logging.New(logCfg, version)
	log.Info("logger initialised",
		"level", logCfg.Level,
		"format", logCfg.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Initialise accessory registry over the persisted store
	accessoryRepo := accessory.NewSQLiteRepository(db.DB)
	registry := accessory.NewRegistry(accessoryRepo)
	registry.SetLogger(log)
	registry.SetNotifier(&lifecycleNotifier{mqtt: mqttClient, log: log})

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading accessory registry: %w", refreshErr)
	}
	log.Info("accessory registry initialised", "accessories", registry.Count())

	// Cloud API client
	cloud := vesync.New(cfg.VeSync)
	cloud.SetLogger(log.With("component", "vesync"))

	// Device handler factory: handlers publish state over MQTT and
	// record telemetry to InfluxDB when enabled.
	factoryDeps := device.Deps{
		API:       cloud,
		Publisher: mqttClient,
		Logger:    log,
	}
	if influxClient != nil {
		factoryDeps.Recorder = influxClient
	}
	factory := device.NewFactory(factoryDeps)

	// Prometheus registry with standard process/runtime collectors
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// The controller: session, discovery, reconciliation, sync loop
	controllerOpts := bridge.Options{
		Config:   cfg.VeSync,
		API:      cloud,
		Registry: registry,
		Factory:  factory,
		MQTT:     mqttClient,
		Metrics:  bridge.NewMetrics(promRegistry),
		Logger:   log.With("component", "bridge"),
	}
	if influxClient != nil {
		controllerOpts.Telemetry = influxClient
	}
	controller, err := bridge.New(controllerOpts)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	if startErr := controller.Start(ctx); startErr != nil {
		return fmt.Errorf("starting controller: %w", startErr)
	}
	defer controller.Wait()
	log.Info("controller started", "update_interval", cfg.GetUpdateInterval())

	// Health reporter publishes component status to MQTT
	reporter := bridge.NewHealthReporter(controller, mqttClient, log, healthReportInterval)
	reporter.AddCheck("database", db.HealthCheck)
	reporter.AddCheck("mqtt", mqttClient.HealthCheck)
	if influxClient != nil {
		reporter.AddCheck("influxdb", influxClient.HealthCheck)
	}
	reporter.Start(ctx)
	defer reporter.Wait()

	// Metrics/health HTTP endpoint (optional)
	serverErrs := make(chan error, 1)
	if cfg.Metrics.Enabled {
		metricsServer := server.New(cfg.Metrics.Addr, promRegistry, controller)
		metricsServer.Start(serverErrs)
		defer func() {
			if closeErr := metricsServer.Close(); closeErr != nil {
				log.Error("error closing metrics server", "error", closeErr)
			}
		}()
		log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case srvErr := <-serverErrs:
		return srvErr
	}

	log.Info("VeSync Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VESYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VESYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// lifecycleNotifier publishes accessory lifecycle events (added,
// updated, removed) to the accessory event topics so hosts can track
// the accessory set without polling.
type lifecycleNotifier struct {
	mqtt *mqtt.Client
	log  *logging.Logger
}

// AccessoryEvent implements accessory.Notifier.
func (n *lifecycleNotifier) AccessoryEvent(event accessory.Event, rec *accessory.Record) {
	payload, err := accessory.EventPayload(event, rec)
	if err != nil {
		n.log.Error("encoding accessory event", "event", string(event), "error", err)
		return
	}

	topic := mqtt.Topics{}.AccessoryEvent(string(event), rec.UUID)
	if err := n.mqtt.Publish(topic, payload, 1, false); err != nil {
		n.log.Warn("publishing accessory event", "topic", topic, "error", err)
	}
}
