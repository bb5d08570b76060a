package api

import (
	"net/http"
)

// getCircuitBreakerStatusHandler returns the state of the breaker guarding Kafka publishing
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.services.Breaker == nil {
		s.respondWithError(w, http.StatusNotFound, "No circuit breaker configured")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.services.Breaker.GetMetrics()})
}

// resetCircuitBreakerHandler closes the breaker so publishing is attempted again at once
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	if s.services.Breaker == nil {
		s.respondWithError(w, http.StatusNotFound, "No circuit breaker configured")
		return
	}

	s.services.Breaker.Reset()
	s.logger.Info("Circuit breaker reset", "operatorID", operatorFrom(r.Context()))

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Circuit breaker reset successfully",
		},
	})
}
