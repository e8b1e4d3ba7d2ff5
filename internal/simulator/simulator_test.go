package simulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/event"
	"github.com/homewatt/homewatt-core/internal/infrastructure/config"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fakePublisher struct {
	mu        sync.Mutex
	published []event.Measurement
	failFor   map[uuid.UUID]bool
}

func (f *fakePublisher) PublishJSON(_ context.Context, body any) error {
	m, ok := body.(event.Measurement)
	if !ok {
		return errors.New("unexpected body type")
	}
	if f.failFor[m.DeviceID] {
		return errors.New("broker unavailable")
	}
	f.mu.Lock()
	f.published = append(f.published, m)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func testConfig(ids ...string) config.SimulatorConfig {
	cfg := config.SimulatorConfig{IntervalSeconds: 600}
	for _, id := range ids {
		cfg.Devices = append(cfg.Devices, config.SimulatedDevice{
			DeviceID:  id,
			NightLoad: 0.1,
			PeakLoad:  0.8,
		})
	}
	return cfg
}

func TestNew(t *testing.T) {
	s, err := New(testConfig(uuid.NewString(), uuid.NewString()), &fakePublisher{}, nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(s.devices) != 2 {
		t.Errorf("devices = %d, want 2", len(s.devices))
	}
	if s.interval != 600*time.Second {
		t.Errorf("interval = %v, want 600s", s.interval)
	}
}

func TestNewRejectsEmptyConfig(t *testing.T) {
	if _, err := New(testConfig(), &fakePublisher{}, nopLogger{}); err == nil {
		t.Error("New() error = nil, want failure for empty device list")
	}
}

func TestNewRejectsBadDeviceID(t *testing.T) {
	if _, err := New(testConfig("not-a-uuid"), &fakePublisher{}, nopLogger{}); err == nil {
		t.Error("New() error = nil, want failure for malformed device id")
	}
}

func TestLoadCurve(t *testing.T) {
	const base, peak = 0.1, 0.8

	tests := []struct {
		name string
		hour float64
		want float64
	}{
		{"deep night", 3, base},
		{"evening peak", 18, peak},
		{"noon", 12, peak},
		{"late morning", 11, base + (peak-base)*(1 - 1.0/12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := loadCurve(base, peak, tt.hour)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("loadCurve(%v) = %v, want %v", tt.hour, got, tt.want)
			}
		})
	}
}

func TestLoadCurveEveningBlend(t *testing.T) {
	const base, peak = 0.1, 0.8

	// Hours 13-23 blend linearly toward/away from the 18:00 peak.
	at16 := loadCurve(base, peak, 16)
	at18 := loadCurve(base, peak, 18)
	at22 := loadCurve(base, peak, 22)
	if !(at16 < at18) || !(at22 < at18) {
		t.Errorf("curve not peaked at 18: f(16)=%v f(18)=%v f(22)=%v", at16, at18, at22)
	}
}

func TestGenerateClampsAtZero(t *testing.T) {
	s, err := New(testConfig(uuid.NewString()), &fakePublisher{}, nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.devices[0].nightLoad = 0
	s.devices[0].peakLoad = 0
	s.randFloat = func() float64 { return 0 } // maximum negative noise

	got := s.generate(s.devices[0], time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC))
	if got != 0 {
		t.Errorf("generate() = %v, want clamped to 0", got)
	}
}

func TestPublishBatch(t *testing.T) {
	idA, idB := uuid.New(), uuid.New()
	pub := &fakePublisher{}
	s, err := New(testConfig(idA.String(), idB.String()), pub, nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fixed := time.Date(2026, 1, 15, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.randFloat = func() float64 { return 0.5 } // zero noise

	s.publishBatch(context.Background())

	if len(pub.published) != 2 {
		t.Fatalf("published = %d, want 2", len(pub.published))
	}
	m := pub.published[0]
	if m.DeviceID != idA {
		t.Errorf("DeviceID = %v, want %v", m.DeviceID, idA)
	}
	if !m.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", m.Timestamp, fixed)
	}
	if diff := m.MeasurementValue - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("MeasurementValue = %v, want 0.8 at peak hour", m.MeasurementValue)
	}
}

func TestPublishBatchContinuesPastFailure(t *testing.T) {
	idA, idB := uuid.New(), uuid.New()
	pub := &fakePublisher{failFor: map[uuid.UUID]bool{idA: true}}
	s, err := New(testConfig(idA.String(), idB.String()), pub, nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.publishBatch(context.Background())

	if len(pub.published) != 1 || pub.published[0].DeviceID != idB {
		t.Errorf("published = %v, want only the healthy device", pub.published)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	cfg := testConfig(uuid.NewString())
	cfg.IntervalSeconds = 1
	s, err := New(cfg, pub, nopLogger{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The first batch is published immediately.
	deadline := time.After(2 * time.Second)
	for pub.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no batch published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on cancel")
	}
}
