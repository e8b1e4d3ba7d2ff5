package consumption

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// HourlyPoint is one hour's accumulated consumption within a day profile.
type HourlyPoint struct {
	Hour  int     `json:"hour"`
	Value float64 `json:"value"`
}

// Repository defines the persistence operations for hourly rollups.
type Repository interface {
	// Accumulate adds value to the bucket for (deviceID, bucket), creating
	// the bucket at value if it does not exist. Returns
	// ErrDeviceNotRegistered when deviceID is absent from the directory.
	Accumulate(ctx context.Context, deviceID uuid.UUID, bucket Bucket, value float64) error

	// DayProfile returns the 24 hourly points of one UTC day in hour
	// order. Hours with no recorded consumption are zero, not omitted.
	DayProfile(ctx context.Context, deviceID uuid.UUID, day time.Time) ([]HourlyPoint, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Accumulate adds value into the device's bucket.
func (r *SQLiteRepository) Accumulate(ctx context.Context, deviceID uuid.UUID, bucket Bucket, value float64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO hourly_consumption (device_id, day, hour, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (device_id, day, hour) DO UPDATE SET
			value = value + excluded.value,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		deviceID.String(),
		bucket.DayKey(),
		bucket.Hour,
		value,
		now,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDeviceNotRegistered, deviceID)
		}
		return fmt.Errorf("accumulating bucket: %w", err)
	}

	return nil
}

// DayProfile returns all 24 hourly points of one day.
func (r *SQLiteRepository) DayProfile(ctx context.Context, deviceID uuid.UUID, day time.Time) ([]HourlyPoint, error) {
	query := `
		SELECT hour, value
		FROM hourly_consumption
		WHERE device_id = ? AND day = ?
		ORDER BY hour`

	rows, err := r.db.QueryContext(ctx, query, deviceID.String(), Bucket{Day: day.UTC()}.DayKey())
	if err != nil {
		return nil, fmt.Errorf("querying day profile: %w", err)
	}
	defer rows.Close()

	// Zero-filled frame; stored hours overwrite their slot.
	points := make([]HourlyPoint, 24)
	for i := range points {
		points[i].Hour = i
	}

	for rows.Next() {
		var hour int
		var value float64
		if err := rows.Scan(&hour, &value); err != nil {
			return nil, fmt.Errorf("scanning bucket: %w", err)
		}
		if hour < 0 || hour > 23 {
			return nil, fmt.Errorf("bucket hour %d out of range", hour)
		}
		points[hour].Value = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buckets: %w", err)
	}

	return points, nil
}

// isForeignKeyError reports whether err is specifically a foreign key
// constraint violation. Other constraint classes (CHECK, NOT NULL) must not
// trigger placeholder recovery.
func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
