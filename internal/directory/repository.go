package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence operations for the device projection.
// The interface exists so the sync handler and the aggregator's placeholder
// recovery can be tested against a fake.
type Repository interface {
	// GetByID retrieves a projection row.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// List retrieves all projection rows ordered by name.
	List(ctx context.Context) ([]Record, error)

	// Upsert inserts the record or overwrites every field of an existing
	// row, including placeholders. UpdatedAt is set to now; CreatedAt is
	// set on insert and preserved on update.
	Upsert(ctx context.Context, rec *Record) error

	// EnsurePlaceholder inserts a placeholder row for id if no row exists.
	// An existing row, placeholder or materialized, is left untouched.
	EnsurePlaceholder(ctx context.Context, id uuid.UUID) error

	// Delete removes a row by id. Deleting an absent device is not an
	// error; dependent consumption buckets are removed by the schema's
	// cascade rule.
	Delete(ctx context.Context, id uuid.UUID) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a projection row.
func (r *SQLiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `
		SELECT id, user_id, name, max_consumption, metadata, created_at, updated_at
		FROM devices
		WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return rec, nil
}

// List retrieves all projection rows ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT id, user_id, name, max_consumption, metadata, created_at, updated_at
		FROM devices
		ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return records, nil
}

// Upsert inserts or fully overwrites a projection row.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	metadata := rec.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	query := `
		INSERT INTO devices (id, user_id, name, max_consumption, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			max_consumption = excluded.max_consumption,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(),
		nullableUUID(rec.UserID),
		rec.Name,
		nullableFloat(rec.MaxConsumption),
		string(metadata),
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}

	return nil
}

// EnsurePlaceholder inserts a placeholder row if the device is unknown.
func (r *SQLiteRepository) EnsurePlaceholder(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO devices (id, user_id, name, max_consumption, metadata, created_at, updated_at)
		VALUES (?, NULL, ?, NULL, '{}', ?, ?)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, id.String(), PlaceholderName, now, now)
	if err != nil {
		return fmt.Errorf("inserting placeholder device: %w", err)
	}

	return nil
}

// Delete removes a projection row by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one devices row.
func scanRecord(scanner rowScanner) (*Record, error) {
	var rec Record
	var id string
	var userID sql.NullString
	var maxConsumption sql.NullFloat64
	var metadata string
	var createdAt, updatedAt string

	err := scanner.Scan(&id, &userID, &rec.Name, &maxConsumption, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing device id %q: %w", id, err)
	}

	if userID.Valid {
		parsed, err := uuid.Parse(userID.String)
		if err != nil {
			return nil, fmt.Errorf("parsing user id %q: %w", userID.String, err)
		}
		rec.UserID = &parsed
	}

	if maxConsumption.Valid {
		rec.MaxConsumption = &maxConsumption.Float64
	}

	rec.Metadata = []byte(metadata)

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &rec, nil
}

// nullableUUID returns a sql.NullString for optional UUID pointers.
func nullableUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
