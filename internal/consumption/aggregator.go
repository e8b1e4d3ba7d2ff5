package consumption

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/event"
)

// PlaceholderRegistrar is the slice of the directory repository the
// aggregator needs for recovery.
type PlaceholderRegistrar interface {
	EnsurePlaceholder(ctx context.Context, id uuid.UUID) error
}

// RawSink mirrors raw measurement points to a secondary store. Writes are
// fire-and-forget from the aggregator's point of view.
type RawSink interface {
	WriteMeasurement(ctx context.Context, m event.Measurement) error
}

// Logger is the logging surface the aggregator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Aggregator folds measurement deliveries into hourly buckets.
//
// HandleMeasurement is shaped to plug into the consumer runner: a nil return
// acknowledges the delivery, an error requeues it.
type Aggregator struct {
	repo      Repository
	directory PlaceholderRegistrar
	sink      RawSink // optional
	logger    Logger
}

// NewAggregator creates the measurement handler. sink may be nil.
func NewAggregator(repo Repository, directory PlaceholderRegistrar, sink RawSink, logger Logger) *Aggregator {
	return &Aggregator{
		repo:      repo,
		directory: directory,
		sink:      sink,
		logger:    logger,
	}
}

// HandleMeasurement decodes and rolls up one measurement.
//
// An unregistered device triggers placeholder recovery: register the device
// id under a placeholder name, then retry the rollup exactly once. A second
// failure propagates and the delivery is requeued.
func (a *Aggregator) HandleMeasurement(ctx context.Context, body []byte) error {
	m, err := event.DecodeMeasurement(body)
	if err != nil {
		return fmt.Errorf("decode measurement: %w", err)
	}

	bucket := BucketOf(m.Timestamp)

	err = a.repo.Accumulate(ctx, m.DeviceID, bucket, m.MeasurementValue)
	if errors.Is(err, ErrDeviceNotRegistered) {
		a.logger.Warn("measurement for unregistered device, inserting placeholder",
			"device_id", m.DeviceID,
		)
		if phErr := a.directory.EnsurePlaceholder(ctx, m.DeviceID); phErr != nil {
			return fmt.Errorf("register placeholder: %w", phErr)
		}
		err = a.repo.Accumulate(ctx, m.DeviceID, bucket, m.MeasurementValue)
	}
	if err != nil {
		return fmt.Errorf("accumulate: %w", err)
	}

	a.logger.Debug("measurement rolled up",
		"device_id", m.DeviceID,
		"day", bucket.DayKey(),
		"hour", bucket.Hour,
		"value", m.MeasurementValue,
	)

	if a.sink != nil {
		if sinkErr := a.sink.WriteMeasurement(ctx, m); sinkErr != nil {
			// History mirror is best effort; the rollup already landed.
			a.logger.Warn("raw sink write failed",
				"device_id", m.DeviceID,
				"error", sinkErr,
			)
		}
	}

	return nil
}
