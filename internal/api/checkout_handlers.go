package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vaidashi/restaurant-pos/internal/checkout"
	"github.com/vaidashi/restaurant-pos/internal/models"
)

// AddCartLineRequest is the body of POST /cart
type AddCartLineRequest struct {
	Item     checkout.MenuItem `json:"item"`
	Quantity int               `json:"quantity" validate:"omitempty,min=1"`
	Notes    string            `json:"notes,omitempty" validate:"max=200"`
}

// UpdateCartLineRequest is the body of PATCH /cart/lines/{key}
type UpdateCartLineRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// CheckoutRequest is the body of POST /checkout
type CheckoutRequest struct {
	Type          models.OrderType     `json:"type,omitempty" validate:"omitempty,oneof=dine-in takeaway delivery"`
	Method        models.PaymentMethod `json:"method" validate:"required,oneof=cash qris"`
	CashReceived  int64                `json:"cash_received" validate:"min=0"`
	TransactionID string               `json:"transaction_id,omitempty"`
	TableID       *string              `json:"table_id,omitempty"`
	CustomerName  string               `json:"customer_name,omitempty" validate:"max=100"`
	CustomerPhone string               `json:"customer_phone,omitempty" validate:"max=30"`
}

// CartView is a cart with its checkout totals
type CartView struct {
	Lines  []checkout.Line `json:"lines"`
	Totals checkout.Totals `json:"totals"`
}

func (s *Server) cartView(r *http.Request) CartView {
	lines := s.services.Checkout.Carts().Get(terminalFrom(r.Context())).Lines()
	return CartView{Lines: lines, Totals: s.services.Checkout.ComputeTotals(lines)}
}

func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.cartView(r)})
}

func (s *Server) addCartLineHandler(w http.ResponseWriter, r *http.Request) {
	var req AddCartLineRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart := s.services.Checkout.Carts().Get(terminalFrom(r.Context()))
	if _, err := cart.Add(req.Item, req.Quantity, req.Notes); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.cartView(r)})
}

func (s *Server) updateCartLineHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartLineRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	cart := s.services.Checkout.Carts().Get(terminalFrom(r.Context()))
	if err := cart.SetQuantity(mux.Vars(r)["key"], req.Quantity); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.cartView(r)})
}

func (s *Server) removeCartLineHandler(w http.ResponseWriter, r *http.Request) {
	cart := s.services.Checkout.Carts().Get(terminalFrom(r.Context()))
	if err := cart.Remove(mux.Vars(r)["key"]); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.cartView(r)})
}

func (s *Server) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	s.services.Checkout.Carts().Get(terminalFrom(r.Context())).Clear()
	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.cartView(r)})
}

// checkoutTotalsHandler prices the terminal's cart without charging it
func (s *Server) checkoutTotalsHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.cartView(r).Totals})
}

// checkoutHandler charges the cart and records it as a completed order
func (s *Server) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := s.decode(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	receipt, err := s.services.Checkout.ConfirmPayment(r.Context(), terminalFrom(r.Context()), checkout.ConfirmInput{
		Type:          req.Type,
		Method:        req.Method,
		CashReceived:  req.CashReceived,
		TransactionID: req.TransactionID,
		TableID:       req.TableID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		OperatorID:    operatorFrom(r.Context()),
	})
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: receipt})
}
