// Package kitchen derives the kitchen board lanes from the order store and
// turns board actions into order status transitions.
package kitchen

import (
	"context"
	"time"

	"github.com/vaidashi/restaurant-pos/internal/models"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

var (
	ErrUnknownLane = apperrors.NewInvalidInputError("lane must be waiting, cooking or ready")
	ErrNotOnBoard  = apperrors.NewNotFoundError("order is not on the kitchen board")
	ErrNotServable = apperrors.NewConflictError("only ready orders can be served")
)

// Urgency classifies how long an order has been cooking
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
)

// Lanes are the board columns, left to right
var Lanes = []models.OrderStatus{
	models.OrderStatusWaiting,
	models.OrderStatusCooking,
	models.OrderStatusReady,
}

// OrderSource is the order store as the board sees it
type OrderSource interface {
	Active() []*models.Order
	Get(id string) (*models.Order, bool)
	UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (*models.Order, error)
}

// Publisher pushes board snapshots to connected displays
type Publisher interface {
	Broadcast(topic string, payload interface{})
}

// Card is an order as shown on the board
type Card struct {
	Order          *models.Order `json:"order"`
	ElapsedSeconds int64         `json:"elapsed_seconds"`
	Urgency        Urgency       `json:"urgency"`
}

// Snapshot is the derived board state at one instant. Nothing in it is persisted.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Waiting     []Card    `json:"waiting"`
	Cooking     []Card    `json:"cooking"`
	Ready       []Card    `json:"ready"`
}

// Config holds the urgency thresholds and tick interval
type Config struct {
	WarnAfter time.Duration
	CritAfter time.Duration
	Tick      time.Duration
	Clock     func() time.Time
}

// Board is the kitchen board controller
type Board struct {
	orders    OrderSource
	publisher Publisher
	cfg       Config
	logger    logger.Logger
}

// NewBoard creates a new Board
func NewBoard(orders OrderSource, publisher Publisher, cfg Config, logger logger.Logger) *Board {
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = 5 * time.Minute
	}
	if cfg.CritAfter <= cfg.WarnAfter {
		cfg.CritAfter = 2 * cfg.WarnAfter
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = models.GetCurrentTime
	}

	return &Board{
		orders:    orders,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Classify maps elapsed time onto an urgency tier: up to warn is normal,
// up to crit is a warning, beyond crit is critical
func Classify(elapsed, warn, crit time.Duration) Urgency {
	switch {
	case elapsed <= warn:
		return UrgencyNormal
	case elapsed <= crit:
		return UrgencyWarning
	default:
		return UrgencyCritical
	}
}

// Snapshot builds the lanes from the active orders, keeping store order within each lane
func (b *Board) Snapshot() Snapshot {
	now := b.cfg.Clock()
	snap := Snapshot{
		GeneratedAt: now,
		Waiting:     []Card{},
		Cooking:     []Card{},
		Ready:       []Card{},
	}

	for _, o := range b.orders.Active() {
		elapsed := now.Sub(o.CreatedAt)
		if elapsed < 0 {
			elapsed = 0
		}

		card := Card{
			Order:          o,
			ElapsedSeconds: int64(elapsed / time.Second),
			Urgency:        UrgencyNormal,
		}

		switch o.Status {
		case models.OrderStatusWaiting:
			snap.Waiting = append(snap.Waiting, card)
		case models.OrderStatusCooking:
			card.Urgency = Classify(elapsed, b.cfg.WarnAfter, b.cfg.CritAfter)
			snap.Cooking = append(snap.Cooking, card)
		case models.OrderStatusReady:
			snap.Ready = append(snap.Ready, card)
		}
	}

	return snap
}

// Drop moves a card onto a lane. Dropping onto its own lane changes nothing.
func (b *Board) Drop(ctx context.Context, id string, lane models.OrderStatus) (*models.Order, error) {
	if !isLane(lane) {
		return nil, ErrUnknownLane
	}

	o, err := b.onBoard(id)
	if err != nil {
		return nil, err
	}
	if o.Status == lane {
		return o, nil
	}

	return b.transition(ctx, id, lane)
}

// Advance runs the lane's action button: waiting starts cooking, cooking
// becomes ready, and ready is recalled to waiting
func (b *Board) Advance(ctx context.Context, id string) (*models.Order, error) {
	o, err := b.onBoard(id)
	if err != nil {
		return nil, err
	}

	var next models.OrderStatus
	switch o.Status {
	case models.OrderStatusWaiting:
		next = models.OrderStatusCooking
	case models.OrderStatusCooking:
		next = models.OrderStatusReady
	case models.OrderStatusReady:
		next = models.OrderStatusWaiting
	}

	return b.transition(ctx, id, next)
}

// Complete hands a ready order over and takes it off the board
func (b *Board) Complete(ctx context.Context, id string) (*models.Order, error) {
	o, err := b.onBoard(id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusReady {
		return nil, ErrNotServable
	}

	return b.transition(ctx, id, models.OrderStatusCompleted)
}

// Run publishes a fresh snapshot every tick until ctx is cancelled
func (b *Board) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Tick)
	defer ticker.Stop()

	b.logger.Info("Kitchen board ticker started", "tick", b.cfg.Tick)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Kitchen board ticker stopped")
			return nil
		case <-ticker.C:
			b.Publish()
		}
	}
}

// Publish pushes the current snapshot to the displays
func (b *Board) Publish() {
	if b.publisher == nil {
		return
	}
	b.publisher.Broadcast("kitchen.snapshot", b.Snapshot())
}

func (b *Board) transition(ctx context.Context, id string, to models.OrderStatus) (*models.Order, error) {
	o, err := b.orders.UpdateStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Kitchen board moved order", "orderID", id, "status", to)
	b.Publish()
	return o, nil
}

func (b *Board) onBoard(id string) (*models.Order, error) {
	o, ok := b.orders.Get(id)
	if !ok || !o.Status.Active() {
		return nil, ErrNotOnBoard
	}
	return o, nil
}

func isLane(s models.OrderStatus) bool {
	for _, l := range Lanes {
		if l == s {
			return true
		}
	}
	return false
}
