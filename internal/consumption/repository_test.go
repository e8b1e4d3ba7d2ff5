package consumption

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/infrastructure/database"
	_ "github.com/homewatt/homewatt-core/migrations"
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return db
}

// registerDevice seeds a directory row so foreign keys hold.
func registerDevice(t *testing.T, db *database.DB, id uuid.UUID) {
	t.Helper()

	_, err := db.ExecContext(context.Background(), `
		INSERT INTO devices (id, name, metadata, created_at, updated_at)
		VALUES (?, 'Test meter', '{}', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
		id.String())
	if err != nil {
		t.Fatalf("seeding device: %v", err)
	}
}

func TestBucketOf(t *testing.T) {
	cet := time.FixedZone("CET", 3600)

	tests := []struct {
		name     string
		ts       time.Time
		wantDay  string
		wantHour int
	}{
		{
			name:     "utc timestamp",
			ts:       time.Date(2026, 1, 15, 9, 42, 7, 0, time.UTC),
			wantDay:  "2026-01-15",
			wantHour: 9,
		},
		{
			name:     "zoned timestamp normalises to utc",
			ts:       time.Date(2026, 1, 15, 0, 30, 0, 0, cet),
			wantDay:  "2026-01-14",
			wantHour: 23,
		},
		{
			name:     "top of hour",
			ts:       time.Date(2026, 1, 15, 13, 0, 0, 0, time.UTC),
			wantDay:  "2026-01-15",
			wantHour: 13,
		},
		{
			name:     "end of day",
			ts:       time.Date(2026, 1, 15, 23, 59, 59, 0, time.UTC),
			wantDay:  "2026-01-15",
			wantHour: 23,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BucketOf(tt.ts)
			if b.DayKey() != tt.wantDay {
				t.Errorf("DayKey() = %q, want %q", b.DayKey(), tt.wantDay)
			}
			if b.Hour != tt.wantHour {
				t.Errorf("Hour = %d, want %d", b.Hour, tt.wantHour)
			}
		})
	}
}

func TestAccumulateCreatesBucket(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	deviceID := uuid.New()
	registerDevice(t, db, deviceID)

	bucket := BucketOf(time.Date(2026, 1, 15, 9, 15, 0, 0, time.UTC))
	if err := repo.Accumulate(ctx, deviceID, bucket, 1.25); err != nil {
		t.Fatalf("Accumulate() error = %v", err)
	}

	points, err := repo.DayProfile(ctx, deviceID, bucket.Day)
	if err != nil {
		t.Fatalf("DayProfile() error = %v", err)
	}
	if points[9].Value != 1.25 {
		t.Errorf("hour 9 value = %v, want 1.25", points[9].Value)
	}
}

func TestAccumulateAddsOnConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	deviceID := uuid.New()
	registerDevice(t, db, deviceID)

	bucket := Bucket{Day: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), Hour: 12}
	for _, v := range []float64{1.5, 2.0, 0.25} {
		if err := repo.Accumulate(ctx, deviceID, bucket, v); err != nil {
			t.Fatalf("Accumulate(%v) error = %v", v, err)
		}
	}

	points, err := repo.DayProfile(ctx, deviceID, bucket.Day)
	if err != nil {
		t.Fatalf("DayProfile() error = %v", err)
	}
	if points[12].Value != 3.75 {
		t.Errorf("hour 12 value = %v, want 3.75", points[12].Value)
	}
}

func TestAccumulateCommutative(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	values := []float64{0.5, 1.25, 2.0, 0.125}
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	bucket := Bucket{Day: day, Hour: 7}

	// Same values in two orders against two devices must agree.
	forward := uuid.New()
	reversed := uuid.New()
	registerDevice(t, db, forward)
	registerDevice(t, db, reversed)

	for _, v := range values {
		if err := repo.Accumulate(ctx, forward, bucket, v); err != nil {
			t.Fatalf("Accumulate() error = %v", err)
		}
	}
	for i := len(values) - 1; i >= 0; i-- {
		if err := repo.Accumulate(ctx, reversed, bucket, values[i]); err != nil {
			t.Fatalf("Accumulate() error = %v", err)
		}
	}

	a, err := repo.DayProfile(ctx, forward, day)
	if err != nil {
		t.Fatalf("DayProfile() error = %v", err)
	}
	b, err := repo.DayProfile(ctx, reversed, day)
	if err != nil {
		t.Fatalf("DayProfile() error = %v", err)
	}
	if a[7].Value != b[7].Value {
		t.Errorf("order changed total: %v vs %v", a[7].Value, b[7].Value)
	}
}

func TestAccumulateUnknownDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	bucket := Bucket{Day: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), Hour: 3}
	err := repo.Accumulate(context.Background(), uuid.New(), bucket, 1.0)
	if !errors.Is(err, ErrDeviceNotRegistered) {
		t.Errorf("Accumulate() error = %v, want ErrDeviceNotRegistered", err)
	}
}

func TestDayProfileZeroFill(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	deviceID := uuid.New()
	registerDevice(t, db, deviceID)

	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	seeded := map[int]float64{0: 0.5, 9: 2.25, 23: 1.0}
	for hour, v := range seeded {
		if err := repo.Accumulate(ctx, deviceID, Bucket{Day: day, Hour: hour}, v); err != nil {
			t.Fatalf("Accumulate() error = %v", err)
		}
	}

	points, err := repo.DayProfile(ctx, deviceID, day)
	if err != nil {
		t.Fatalf("DayProfile() error = %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("DayProfile() length = %d, want 24", len(points))
	}

	for i, p := range points {
		if p.Hour != i {
			t.Errorf("points[%d].Hour = %d, want %d", i, p.Hour, i)
		}
		if want := seeded[i]; p.Value != want {
			t.Errorf("hour %d value = %v, want %v", i, p.Value, want)
		}
	}
}

func TestDayProfileUnknownDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	// Reads are not guarded by the directory: an unknown device simply has
	// an all-zero profile.
	points, err := repo.DayProfile(context.Background(), uuid.New(),
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DayProfile() error = %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("DayProfile() length = %d, want 24", len(points))
	}
	for _, p := range points {
		if p.Value != 0 {
			t.Errorf("hour %d value = %v, want 0", p.Hour, p.Value)
		}
	}
}

func TestDayProfileIsolatesDays(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	deviceID := uuid.New()
	registerDevice(t, db, deviceID)

	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	nextDay := day.AddDate(0, 0, 1)

	if err := repo.Accumulate(ctx, deviceID, Bucket{Day: day, Hour: 10}, 1.0); err != nil {
		t.Fatalf("Accumulate() error = %v", err)
	}
	if err := repo.Accumulate(ctx, deviceID, Bucket{Day: nextDay, Hour: 10}, 9.0); err != nil {
		t.Fatalf("Accumulate() error = %v", err)
	}

	points, err := repo.DayProfile(ctx, deviceID, day)
	if err != nil {
		t.Fatalf("DayProfile() error = %v", err)
	}
	if points[10].Value != 1.0 {
		t.Errorf("hour 10 value = %v, want 1.0 (next day must not bleed in)", points[10].Value)
	}
}
