package directory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlaceholderName marks rows created ahead of the device's lifecycle event.
const PlaceholderName = "Unknown device"

// Record is one row of the device directory projection.
type Record struct {
	ID             uuid.UUID       `json:"id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	Name           string          `json:"name"`
	MaxConsumption *float64        `json:"max_consumption,omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsPlaceholder reports whether the row was created by placeholder recovery
// rather than a lifecycle event.
func (r *Record) IsPlaceholder() bool {
	return r.Name == PlaceholderName
}
