package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/consumption"
)

// consumptionResponse is the day profile returned to clients. Points always
// holds 24 entries, hours 0-23, zeroes for hours without telemetry.
type consumptionResponse struct {
	DeviceID uuid.UUID                 `json:"device_id"`
	Day      string                    `json:"day"`
	Points   []consumption.HourlyPoint `json:"points"`
}

// handleConsumption serves GET /api/v1/consumption?device_id=<uuid>&day=YYYY-MM-DD.
func (s *Server) handleConsumption(w http.ResponseWriter, r *http.Request) {
	deviceID, err := uuid.Parse(r.URL.Query().Get("device_id"))
	if err != nil {
		writeBadRequest(w, "device_id must be a valid UUID")
		return
	}

	day, err := consumption.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		writeBadRequest(w, "day must be formatted YYYY-MM-DD")
		return
	}

	points, err := s.consumption.DayProfile(r.Context(), deviceID, day)
	if err != nil {
		s.logger.Error("day profile query failed",
			"device_id", deviceID,
			"error", err,
		)
		writeInternalError(w, "querying consumption failed")
		return
	}

	writeJSON(w, http.StatusOK, consumptionResponse{
		DeviceID: deviceID,
		Day:      day.Format("2006-01-02"),
		Points:   points,
	})
}
