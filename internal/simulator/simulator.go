package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/event"
	"github.com/homewatt/homewatt-core/internal/infrastructure/config"
)

// noiseAmplitude is the half-width of the uniform noise added to each
// generated value.
const noiseAmplitude = 0.05

// Publisher is the slice of the broker publisher the simulator needs.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Logger is the logging surface the simulator needs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// device is a parsed simulated device.
type device struct {
	id        uuid.UUID
	nightLoad float64
	peakLoad  float64
}

// Simulator publishes one measurement per device per tick.
type Simulator struct {
	devices   []device
	interval  time.Duration
	publisher Publisher
	logger    Logger

	// now and randFloat are injectable for deterministic tests.
	now       func() time.Time
	randFloat func() float64
}

// New parses the simulator configuration. Device ids must be valid UUIDs.
func New(cfg config.SimulatorConfig, publisher Publisher, logger Logger) (*Simulator, error) {
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("no devices configured")
	}

	devices := make([]device, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		id, err := uuid.Parse(d.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("device id %q: %w", d.DeviceID, err)
		}
		devices = append(devices, device{
			id:        id,
			nightLoad: d.NightLoad,
			peakLoad:  d.PeakLoad,
		})
	}

	return &Simulator{
		devices:   devices,
		interval:  time.Duration(cfg.IntervalSeconds) * time.Second,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		randFloat: rand.Float64,
	}, nil
}

// Run publishes measurement batches until ctx is cancelled. The first batch
// goes out immediately rather than one interval in.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("simulator started",
		"devices", len(s.devices),
		"interval", s.interval.String(),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.publishBatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.publishBatch(ctx)
		}
	}
}

// publishBatch emits one measurement per device. Publish failures are logged
// and skipped; the tick cadence is never interrupted.
func (s *Simulator) publishBatch(ctx context.Context) {
	now := s.now().UTC()
	for _, d := range s.devices {
		m := event.NewMeasurement(d.id, now, s.generate(d, now))
		if err := s.publisher.PublishJSON(ctx, m); err != nil {
			s.logger.Error("failed to publish measurement",
				"device_id", d.id,
				"error", err,
			)
		}
	}
}

// generate produces the device's load at ts plus noise, clamped at zero.
func (s *Simulator) generate(d device, ts time.Time) float64 {
	value := loadCurve(d.nightLoad, d.peakLoad, float64(ts.Hour()))
	value += (s.randFloat()*2 - 1) * noiseAmplitude
	return max(value, 0)
}

// loadCurve models a household's day: flat baseline overnight, a daytime
// ramp rising toward noon, and an evening peak centred on 18:00 blending
// linearly back to baseline over six hours either side.
func loadCurve(base, peak, hour float64) float64 {
	eveningDistance := abs(hour-18) / 6
	switch {
	case eveningDistance < 1:
		return peak - (peak-base)*eveningDistance
	case hour < 6:
		return base
	default:
		return base + (peak-base)*max(1-abs(hour-12)/12, 0)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
