package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaidashi/restaurant-pos/internal/models"
)

// DropRequest is the body of POST /kitchen/orders/{id}/drop
type DropRequest struct {
	Lane models.OrderStatus `json:"lane" validate:"required"`
}

func (s *Server) getKitchenBoardHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.services.Kitchen.Snapshot()})
}

func (s *Server) advanceKitchenOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.services.Kitchen.Advance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

func (s *Server) dropKitchenOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	order, err := s.services.Kitchen.Drop(r.Context(), mux.Vars(r)["id"], req.Lane)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

func (s *Server) completeKitchenOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.services.Kitchen.Complete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// getInventoryHandler lists cached stock, or only low items with ?low=true
func (s *Server) getInventoryHandler(w http.ResponseWriter, r *http.Request) {
	items := s.services.Stock.List()
	if r.URL.Query().Get("low") == "true" {
		items = s.services.Stock.Low()
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: items})
}
