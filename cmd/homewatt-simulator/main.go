// HomeWatt Simulator - synthetic telemetry generator.
//
// Publishes daily-load-curve measurements for a configured set of devices to
// the measurement stream, for exercising the monitor without real hardware.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/homewatt/homewatt-core/internal/infrastructure/amqp"
	"github.com/homewatt/homewatt-core/internal/infrastructure/config"
	"github.com/homewatt/homewatt-core/internal/infrastructure/logging"
	"github.com/homewatt/homewatt-core/internal/simulator"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting HomeWatt simulator", "version", version)

	publisher := amqp.NewPublisher(cfg.Broker.Measurements, log.With("component", "publisher"))
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error("error closing publisher", "error", closeErr)
		}
	}()

	sim, err := simulator.New(cfg.Simulator, publisher, log.With("component", "simulator"))
	if err != nil {
		return fmt.Errorf("creating simulator: %w", err)
	}

	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("running simulator: %w", err)
	}

	log.Info("HomeWatt simulator stopped")
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
