package api

import "net/http"

// handleHealth serves GET /api/v1/health.
//
// Health is the database's health: without storage neither ingestion nor
// reads work. Broker connectivity is deliberately excluded, since consumers
// self-heal and a broker blip should not flip the service unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if s.database != nil {
		if err := s.database.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
