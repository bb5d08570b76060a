package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/repository"
)

// getDeadLettersHandler lists dead letter messages by status (pending by default)
func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	status := models.DeadLetterStatus(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = models.DeadLetterStatusPending
	case models.DeadLetterStatusPending, models.DeadLetterStatusRetrying,
		models.DeadLetterStatusResolved, models.DeadLetterStatusDiscarded:
	default:
		s.respondWithError(w, http.StatusBadRequest, "unknown dead letter status")
		return
	}

	messages, err := s.services.DeadLetters.List(r.Context(), status, limit)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: messages})
}

// retryDeadLetterHandler puts a dead letter back in the queue for the dead letter processor
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.messageID(w, r)
	if !ok {
		return
	}

	message, err := s.services.DeadLetters.GetMessage(r.Context(), id)
	if err != nil {
		s.respondWithDeadLetterError(w, r, err)
		return
	}

	if message.Status == models.DeadLetterStatusPending {
		s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: message})
		return
	}
	if message.Status == models.DeadLetterStatusResolved {
		s.respondWithError(w, http.StatusConflict, "Dead letter message is already resolved")
		return
	}

	if err := s.services.DeadLetters.ResetToRetry(r.Context(), id); err != nil {
		s.respondWithDeadLetterError(w, r, err)
		return
	}

	s.logger.Info("Dead letter message queued for retry", "messageID", id, "operatorID", operatorFrom(r.Context()))
	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"message": "Dead letter message queued for retry",
			"id":      id,
		},
	})
}

// discardDeadLetterHandler discards a dead letter message
func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.messageID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Reason == "" {
		req.Reason = "Discarded by " + operatorFrom(r.Context())
	}

	if err := s.services.DeadLetters.MarkAsDiscarded(r.Context(), id, req.Reason); err != nil {
		s.respondWithDeadLetterError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"message": "Dead letter message discarded",
			"id":      id,
		},
	})
}

func (s *Server) messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return 0, false
	}
	return id, true
}

func (s *Server) respondWithDeadLetterError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Dead letter message not found")
		return
	}
	s.respondWithAppError(w, r, err)
}
