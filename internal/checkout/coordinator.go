// Package checkout turns a terminal's cart into a paid order.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/orders"
	"github.com/vaidashi/restaurant-pos/internal/pricing"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

var (
	ErrEmptyCart            = apperrors.NewInvalidInputError("cart is empty")
	ErrInsufficientCash     = apperrors.NewInvalidInputError("cash received is less than the total")
	ErrUnknownPaymentMethod = apperrors.NewInvalidInputError("payment method must be cash or qris")
	ErrCheckoutInFlight     = apperrors.NewRateLimitedError("a checkout for this terminal is already in progress")
)

// OrderCreator persists the order a checkout produces
type OrderCreator interface {
	Create(ctx context.Context, in orders.CreateInput) (*models.Order, error)
}

// Totals is what the checkout dialog shows
type Totals struct {
	Subtotal   int64 `json:"subtotal"`
	Tax        int64 `json:"tax"`
	GrandTotal int64 `json:"grand_total"`
}

// ConfirmInput is the payment captured by the checkout dialog
type ConfirmInput struct {
	Type          models.OrderType
	Method        models.PaymentMethod
	CashReceived  int64
	TransactionID string
	TableID       *string
	CustomerName  string
	CustomerPhone string
	OperatorID    string
}

// Receipt is the result of a successful checkout
type Receipt struct {
	Order  *models.Order `json:"order"`
	Change int64         `json:"change"`
}

// Coordinator runs checkout for every terminal
type Coordinator struct {
	carts  *Carts
	orders OrderCreator
	calc   pricing.Calculator
	logger logger.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewCoordinator creates a coordinator charging taxRate at checkout
func NewCoordinator(carts *Carts, orders OrderCreator, taxRate decimal.Decimal, logger logger.Logger) *Coordinator {
	return &Coordinator{
		carts:    carts,
		orders:   orders,
		calc:     pricing.NewCalculator(taxRate),
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Carts returns the per-terminal cart registry
func (c *Coordinator) Carts() *Carts {
	return c.carts
}

// ComputeTotals prices cart lines at the checkout rate
func (c *Coordinator) ComputeTotals(lines []Line) Totals {
	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		priced = append(priced, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}

	t := c.calc.ComputeLines(priced)
	return Totals{Subtotal: t.Subtotal, Tax: t.Tax, GrandTotal: t.Total}
}

// ValidatePayment checks the tendered amount and returns the change due.
// QRIS payments are confirmed by the payment provider, so only cash is checked.
func ValidatePayment(method models.PaymentMethod, cashReceived, grandTotal int64) (int64, error) {
	switch method {
	case models.PaymentMethodCash:
		if cashReceived < grandTotal {
			return 0, fmt.Errorf("%w: received %d, due %d", ErrInsufficientCash, cashReceived, grandTotal)
		}
		return cashReceived - grandTotal, nil
	case models.PaymentMethodQRIS:
		return 0, nil
	default:
		return 0, ErrUnknownPaymentMethod
	}
}

// ConfirmPayment records the terminal's cart as a completed order. The cart is
// cleared only once the order exists; on any error it is left untouched. A
// second confirm on the same terminal fails while the first is pending.
func (c *Coordinator) ConfirmPayment(ctx context.Context, terminal string, in ConfirmInput) (*Receipt, error) {
	if !c.begin(terminal) {
		c.logger.Warn("Checkout already in progress", "terminal", terminal)
		return nil, ErrCheckoutInFlight
	}
	defer c.end(terminal)

	cart := c.carts.Get(terminal)
	lines, revision := cart.snapshot()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	totals := c.ComputeTotals(lines)
	change, err := ValidatePayment(in.Method, in.CashReceived, totals.GrandTotal)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Method:        in.Method,
		TransactionID: strings.TrimSpace(in.TransactionID),
		Status:        models.PaymentStatusPaid,
	}
	if in.Method == models.PaymentMethodCash {
		payment.CashReceived = in.CashReceived
		payment.Change = change
	} else if payment.TransactionID == "" {
		payment.TransactionID = models.GenerateID("qris")
	}

	orderType := in.Type
	if orderType == "" {
		orderType = models.OrderTypeDineIn
	}

	items := make([]orders.ItemInput, 0, len(lines))
	for _, l := range lines {
		itemID := l.ItemID
		items = append(items, orders.ItemInput{
			ProductID: &itemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Notes:     l.Notes,
		})
	}

	rate := c.calc.Rate()
	order, err := c.orders.Create(ctx, orders.CreateInput{
		Type:          orderType,
		Items:         items,
		TableID:       in.TableID,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Payment:       payment,
		Status:        models.OrderStatusCompleted,
		TaxRate:       &rate,
		CreatedBy:     in.OperatorID,
	})
	if err != nil {
		c.logger.Error("Checkout failed, cart kept", "error", err, "terminal", terminal)
		return nil, err
	}

	if order.Total != totals.GrandTotal {
		c.logger.Warn("Persisted total differs from charged total",
			"orderID", order.ID,
			"charged", totals.GrandTotal,
			"persisted", order.Total)
	}

	if !cart.clearIfUnchanged(revision) {
		c.logger.Warn("Cart edited during checkout, leaving it in place", "terminal", terminal, "orderID", order.ID)
	}

	c.logger.Info("Checkout completed",
		"terminal", terminal,
		"orderID", order.ID,
		"orderNumber", order.OrderNumber,
		"method", in.Method,
		"total", order.Total,
		"change", change)

	return &Receipt{Order: order, Change: change}, nil
}

func (c *Coordinator) begin(terminal string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight[terminal] {
		return false
	}
	c.inFlight[terminal] = true
	return true
}

func (c *Coordinator) end(terminal string) {
	c.mu.Lock()
	delete(c.inFlight, terminal)
	c.mu.Unlock()
}
