package api

import (
	"context"

	"github.com/vaidashi/restaurant-pos/internal/checkout"
	"github.com/vaidashi/restaurant-pos/internal/kitchen"
	"github.com/vaidashi/restaurant-pos/internal/ledger"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/orders"
	"github.com/vaidashi/restaurant-pos/internal/shift"
)

// OrderService is implemented by *orders.Store
type OrderService interface {
	Create(ctx context.Context, in orders.CreateInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (*models.Order, error)
	Get(id string) (*models.Order, bool)
	Active() []*models.Order
	Completed() []*models.Order
	All() []*models.Order
}

// KitchenService is implemented by *kitchen.Board
type KitchenService interface {
	Snapshot() kitchen.Snapshot
	Drop(ctx context.Context, id string, lane models.OrderStatus) (*models.Order, error)
	Advance(ctx context.Context, id string) (*models.Order, error)
	Complete(ctx context.Context, id string) (*models.Order, error)
}

// CheckoutService is implemented by *checkout.Coordinator
type CheckoutService interface {
	Carts() *checkout.Carts
	ComputeTotals(lines []checkout.Line) checkout.Totals
	ConfirmPayment(ctx context.Context, terminal string, in checkout.ConfirmInput) (*checkout.Receipt, error)
}

// ShiftService is implemented by *shift.Manager
type ShiftService interface {
	ActiveShift(ctx context.Context, operatorID string) (*models.Shift, error)
	Open(ctx context.Context, operatorID string, startCash int64) (*models.Shift, error)
	Close(ctx context.Context, operatorID string, actualCash int64) (*shift.CloseResult, error)
	AddCashLog(ctx context.Context, operatorID string, direction models.CashDirection, amount int64, description string) (*models.CashLog, error)
	CashLogs(ctx context.Context, operatorID string) ([]*models.CashLog, error)
	Summary(ctx context.Context, operatorID string) (ledger.Summary, error)
	History(ctx context.Context, operatorID string, limit int) ([]*models.Shift, error)
}

// StockService is implemented by *inventory.Store
type StockService interface {
	List() []models.StockItem
	Low() []models.StockItem
}

// DeadLetterAdmin is implemented by *repository.DeadLetterRepository
type DeadLetterAdmin interface {
	List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]*models.DeadLetterMessage, error)
	GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error)
	ResetToRetry(ctx context.Context, id int64) error
	MarkAsDiscarded(ctx context.Context, id int64, reason string) error
}
