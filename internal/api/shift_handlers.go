package api

import (
	"net/http"
	"strconv"

	"github.com/vaidashi/restaurant-pos/internal/models"
)

// OpenShiftRequest is the body of POST /shifts/open
type OpenShiftRequest struct {
	StartCash int64 `json:"start_cash" validate:"min=0"`
}

// CloseShiftRequest is the body of POST /shifts/close
type CloseShiftRequest struct {
	ActualCash int64 `json:"actual_cash" validate:"min=0"`
}

// CashLogRequest is the body of POST /shifts/cash-logs
type CashLogRequest struct {
	Direction   models.CashDirection `json:"direction" validate:"required,oneof=in out"`
	Amount      int64                `json:"amount" validate:"gt=0"`
	Description string               `json:"description" validate:"max=200"`
}

// getActiveShiftHandler returns the operator's open shift, or null
func (s *Server) getActiveShiftHandler(w http.ResponseWriter, r *http.Request) {
	shift, err := s.services.Shifts.ActiveShift(r.Context(), operatorFrom(r.Context()))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: shift})
}

func (s *Server) openShiftHandler(w http.ResponseWriter, r *http.Request) {
	var req OpenShiftRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	shift, err := s.services.Shifts.Open(r.Context(), operatorFrom(r.Context()), req.StartCash)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: shift})
}

func (s *Server) closeShiftHandler(w http.ResponseWriter, r *http.Request) {
	var req CloseShiftRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	result, err := s.services.Shifts.Close(r.Context(), operatorFrom(r.Context()), req.ActualCash)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result})
}

func (s *Server) getShiftSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.services.Shifts.Summary(r.Context(), operatorFrom(r.Context()))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary})
}

func (s *Server) getShiftHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	shifts, err := s.services.Shifts.History(r.Context(), operatorFrom(r.Context()), limit)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: shifts})
}

func (s *Server) addCashLogHandler(w http.ResponseWriter, r *http.Request) {
	var req CashLogRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	entry, err := s.services.Shifts.AddCashLog(r.Context(), operatorFrom(r.Context()), req.Direction, req.Amount, req.Description)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: entry})
}

func (s *Server) getCashLogsHandler(w http.ResponseWriter, r *http.Request) {
	logs, err := s.services.Shifts.CashLogs(r.Context(), operatorFrom(r.Context()))
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: logs})
}
