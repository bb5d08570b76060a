package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/orders"
)

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	Type          models.OrderType   `json:"type" validate:"required,oneof=dine-in takeaway delivery"`
	Items         []orders.ItemInput `json:"items" validate:"required,min=1,dive"`
	Discount      int64              `json:"discount" validate:"min=0"`
	TableID       *string            `json:"table_id,omitempty"`
	CustomerName  string             `json:"customer_name,omitempty" validate:"max=100"`
	CustomerPhone string             `json:"customer_phone,omitempty" validate:"max=30"`
}

// UpdateStatusRequest is the body of PATCH /orders/{id}/status
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

// getOrdersHandler lists orders, optionally only the active or completed ones
func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var list []*models.Order

	switch r.URL.Query().Get("status") {
	case "active":
		list = s.services.Orders.Active()
	case "completed":
		list = s.services.Orders.Completed()
	case "":
		list = s.services.Orders.All()
	default:
		s.respondWithError(w, http.StatusBadRequest, "status must be active or completed")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: list})
}

// createOrderHandler creates a waiting order for the kitchen
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	order, err := s.services.Orders.Create(r.Context(), orders.CreateInput{
		Type:          req.Type,
		Items:         req.Items,
		Discount:      req.Discount,
		TableID:       req.TableID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CreatedBy:     operatorFrom(r.Context()),
	})
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: order})
}

// getOrderByIDHandler returns an order by ID
func (s *Server) getOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := s.services.Orders.Get(mux.Vars(r)["id"])
	if !ok {
		s.respondWithAppError(w, r, orders.ErrOrderNotFound)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// updateOrderStatusHandler moves an order through the status machine
func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	order, err := s.services.Orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}
