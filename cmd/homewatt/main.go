// HomeWatt Core - home energy monitoring service.
//
// The monitor consumes device lifecycle events and raw measurements from the
// broker, maintains the device directory projection and hourly consumption
// rollups in SQLite, and serves the aggregated data over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/homewatt/homewatt-core/migrations"

	"github.com/homewatt/homewatt-core/internal/api"
	"github.com/homewatt/homewatt-core/internal/consumption"
	"github.com/homewatt/homewatt-core/internal/directory"
	"github.com/homewatt/homewatt-core/internal/infrastructure/amqp"
	"github.com/homewatt/homewatt-core/internal/infrastructure/config"
	"github.com/homewatt/homewatt-core/internal/infrastructure/database"
	"github.com/homewatt/homewatt-core/internal/infrastructure/influxdb"
	"github.com/homewatt/homewatt-core/internal/infrastructure/logging"
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

// run is the actual application logic, separated from main so errors map to
// exit codes in one place.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting HomeWatt Core",
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

	// Open database and apply migrations
	db, err := database.Open(ctx, database.Config{
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

	directoryRepo := directory.NewSQLiteRepository(db.DB)
	consumptionRepo := consumption.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional raw-measurement history)
	var sink consumption.RawSink
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB sink disabled")
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
		sink = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Consumers: one per stream, each supervising its own subscription.
	syncHandler := directory.NewSync(directoryRepo, log.With("component", "directory-sync"))
	syncConsumer := amqp.NewConsumer(
		cfg.Broker.Sync,
		cfg.Broker.DeadLetter,
		syncHandler.HandleEvent,
		log.With("component", "sync-consumer"),
	)

	aggregator := consumption.NewAggregator(consumptionRepo, directoryRepo, sink,
		log.With("component", "aggregator"))
	measurementConsumer := amqp.NewConsumer(
		cfg.Broker.Measurements,
		cfg.Broker.DeadLetter,
		aggregator.HandleMeasurement,
		log.With("component", "measurement-consumer"),
	)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()

	go func() {
		if runErr := syncConsumer.Run(consumerCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("sync consumer stopped", "error", runErr)
		}
	}()
	go func() {
		if runErr := measurementConsumer.Run(consumerCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("measurement consumer stopped", "error", runErr)
		}
	}()
	log.Info("consumers started",
		"sync_queue", cfg.Broker.Sync.Queue,
		"measurement_queue", cfg.Broker.Measurements.Queue,
	)

	// HTTP read surface
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log.With("component", "api"),
		Directory:   directoryRepo,
		Consumption: consumptionRepo,
		Database:    db,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (drains in-flight requests)
	// 2. Consumers (context cancellation)
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("HomeWatt Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEWATT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEWATT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
