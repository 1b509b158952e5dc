// Vendwatch Core - Fleet Telemetry Hub
//
// This is the main entry point for the vendwatch hub. It ingests sales and
// intrusion reports from unattended vending devices over HTTP and MQTT,
// keeps a durable event history, and fans live updates out to dashboard
// WebSocket clients.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/vendwatch/vendwatch-core/migrations"

	"github.com/vendwatch/vendwatch-core/internal/alarmfile"
	"github.com/vendwatch/vendwatch-core/internal/api"
	"github.com/vendwatch/vendwatch-core/internal/device"
	"github.com/vendwatch/vendwatch-core/internal/hub"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/config"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/database"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/influxdb"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/mqtt"
	"github.com/vendwatch/vendwatch-core/internal/ingest"
	"github.com/vendwatch/vendwatch-core/internal/poller"
	"github.com/vendwatch/vendwatch-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting vendwatch core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.DeviceCount())

	// Event store and aggregation
	store := telemetry.NewSQLiteStore(db.DB)
	loc, err := time.LoadLocation(cfg.Fleet.Timezone)
	if err != nil {
		return fmt.Errorf("loading fleet timezone %q: %w", cfg.Fleet.Timezone, err)
	}
	aggregator := telemetry.NewAggregator(store, loc)

	// Broadcast hub for dashboard WebSocket clients. The API server runs
	// it; the gateway and poller publish through it.
	broadcastHub := hub.New(cfg.WebSocket, log)

	// InfluxDB metrics sink (optional)
	var influxClient *influxdb.Client
	var metrics ingest.Metrics
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
		metrics = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Ingestion gateway: the single validated path from report to
	// registry, durable store, and broadcast.
	gateway := ingest.NewGateway(registry, store, broadcastHub, metrics, log)

	// MQTT ingest (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
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

		if attachErr := ingest.AttachMQTT(mqttClient, gateway, byte(cfg.MQTT.QoS)); attachErr != nil {
			return fmt.Errorf("subscribing to report topics: %w", attachErr)
		}
		log.Info("MQTT ingest attached",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// External sales summary poller (optional)
	if cfg.Poller.Enabled {
		p := poller.New(cfg.Poller, broadcastHub, log)
		p.Start(ctx)
		defer func() {
			log.Info("stopping sales poller")
			p.Stop()
		}()
		log.Info("sales poller started", "url", cfg.Poller.URL)
	} else {
		log.Info("sales poller disabled")
	}

	// Alarm flag file watcher (optional)
	if cfg.Alarm.Enabled {
		w := alarmfile.New(cfg.Alarm, gateway, log)
		w.Start(ctx)
		defer func() {
			log.Info("stopping alarm watcher")
			w.Stop()
		}()
		log.Info("alarm watcher started", "path", cfg.Alarm.Path)
	} else {
		log.Info("alarm watcher disabled")
	}

	// HTTP API and WebSocket server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Registry:   registry,
		Store:      store,
		Aggregator: aggregator,
		Gateway:    gateway,
		Hub:        broadcastHub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VENDWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VENDWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies core components are healthy after startup.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
