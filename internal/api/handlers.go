package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Warn("Health check database ping failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	s.respondWithJSON(w, code, ApiResponse{
		Success: code == http.StatusOK,
		Data: Health{
			Status:    status,
			Version:   "0.1.0",
			Timestamp: time.Now().Format(time.RFC3339),
		},
	})
}

// decode reads a JSON body into dst and validates its struct tags
func (s *Server) decode(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewInvalidInputError("invalid request payload")
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return apperrors.NewInvalidInputError("invalid request: " + strings.Join(fields, ", "))
		}
		return apperrors.NewInvalidInputError(err.Error())
	}

	return nil
}

// respondWithAppError maps an error to its status code. Internal errors are
// logged and reported without detail.
func (s *Server) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.StatusCode(err)

	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable && code != http.StatusGatewayTimeout {
		s.logger.Error("Request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		s.respondWithError(w, code, "internal server error")
		return
	}

	s.respondWithError(w, code, err.Error())
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithError(w, code, message)
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	if err := writeJSON(w, code, payload); err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) error {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
	return nil
}
