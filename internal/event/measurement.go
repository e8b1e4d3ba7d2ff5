package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Measurement is one physical reading on the measurement stream.
type Measurement struct {
	Timestamp        time.Time `json:"timestamp"`
	DeviceID         uuid.UUID `json:"device_id"`
	MeasurementValue float64   `json:"measurement_value"`
}

// NewMeasurement builds a measurement with its timestamp normalised to UTC.
func NewMeasurement(deviceID uuid.UUID, ts time.Time, value float64) Measurement {
	return Measurement{
		Timestamp:        ts.UTC(),
		DeviceID:         deviceID,
		MeasurementValue: value,
	}
}

// DecodeMeasurement parses a measurement from its wire bytes.
// device_id and timestamp are required fields.
func DecodeMeasurement(data []byte) (Measurement, error) {
	var m Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		return Measurement{}, fmt.Errorf("decoding measurement: %w", err)
	}
	if m.DeviceID == uuid.Nil {
		return Measurement{}, fmt.Errorf("decoding measurement: missing device_id")
	}
	if m.Timestamp.IsZero() {
		return Measurement{}, fmt.Errorf("decoding measurement: missing timestamp")
	}
	return m, nil
}
