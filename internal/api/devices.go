package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/directory"
)

// handleListDevices serves GET /api/v1/devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	records, err := s.directory.List(r.Context())
	if err != nil {
		s.logger.Error("device list query failed", "error", err)
		writeInternalError(w, "querying devices failed")
		return
	}

	if records == nil {
		records = []directory.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": records,
		"count":   len(records),
	})
}

// handleGetDevice serves GET /api/v1/devices/{id}.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "device id must be a valid UUID")
		return
	}

	rec, err := s.directory.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, directory.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device query failed", "device_id", id, "error", err)
		writeInternalError(w, "querying device failed")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
