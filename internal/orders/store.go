// Package orders keeps the in-memory order state every terminal reads from.
// Local changes are applied optimistically and undone when persistence fails;
// remote changes are merged by row version.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/pricing"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
	"github.com/vaidashi/restaurant-pos/pkg/ratelimit"
)

// Repository persists orders
type Repository interface {
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (int64, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]*models.Order, error)
}

// Sequencer allocates daily order numbers atomically
type Sequencer interface {
	Next(ctx context.Context, day string) (int64, error)
}

// Config holds the store settings
type Config struct {
	TaxRate      decimal.Decimal
	NumberPrefix string
	Location     *time.Location
	StoreTimeout time.Duration
	// Debounce is the minimum gap between two status changes of one order
	Debounce time.Duration
	Clock    func() time.Time
}

// ItemInput is one requested order line
type ItemInput struct {
	ProductID *string `json:"product_id,omitempty"`
	Name      string  `json:"name" validate:"required"`
	Quantity  int     `json:"quantity" validate:"min=1"`
	UnitPrice int64   `json:"unit_price" validate:"min=0"`
	Notes     string  `json:"notes,omitempty"`
}

// CreateInput describes a new order
type CreateInput struct {
	Type          models.OrderType
	Items         []ItemInput
	Discount      int64
	TableID       *string
	CustomerName  string
	CustomerPhone string
	Payment       *models.Payment
	// Status defaults to waiting; checkout records already fulfilled orders as completed
	Status models.OrderStatus
	// TaxRate overrides the store rate when set
	TaxRate   *decimal.Decimal
	CreatedBy string
}

// Store is the process-wide order state
type Store struct {
	repo     Repository
	seq      Sequencer
	calc     pricing.Calculator
	cfg      Config
	debounce *ratelimit.KeyedLimiter
	logger   logger.Logger

	mu       sync.RWMutex
	orders   map[string]*models.Order
	sequence []string // insertion order
	inFlight map[string]bool

	obsMu        sync.Mutex
	observers    map[int]Observer
	nextObserver int
}

// NewStore creates an empty store
func NewStore(repo Repository, seq Sequencer, cfg Config, logger logger.Logger) *Store {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = models.GetCurrentTime
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "NF"
	}

	return &Store{
		repo:      repo,
		seq:       seq,
		calc:      pricing.NewCalculator(cfg.TaxRate),
		cfg:       cfg,
		debounce:  ratelimit.NewKeyedLimiter(cfg.Debounce, 1),
		logger:    logger,
		orders:    make(map[string]*models.Order),
		inFlight:  make(map[string]bool),
		observers: make(map[int]Observer),
	}
}

// TaxRate returns the default rate orders are priced with
func (s *Store) TaxRate() decimal.Decimal {
	return s.calc.Rate()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// Create validates and prices the order, persists it and adds it to the store.
// On failure nothing is added and no order is returned.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	status := in.Status
	if status == "" {
		status = models.OrderStatusWaiting
	}
	if status != models.OrderStatusWaiting && status != models.OrderStatusCompleted {
		return nil, ErrInvalidInitial
	}
	if !in.Type.Valid() {
		return nil, ErrInvalidOrderType
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	now := s.cfg.Clock()
	orderID := models.GenerateID("ord")
	items := make([]models.OrderItem, 0, len(in.Items))
	lines := make([]pricing.Line, 0, len(in.Items))

	for _, it := range in.Items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity < 1 || it.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidItem, it.Name)
		}
		items = append(items, models.OrderItem{
			ID:        models.GenerateID("itm"),
			OrderID:   orderID,
			ProductID: it.ProductID,
			Name:      strings.TrimSpace(it.Name),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Notes:     strings.TrimSpace(it.Notes),
		})
		lines = append(lines, pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}

	calc := s.calc
	if in.TaxRate != nil {
		calc = pricing.NewCalculator(*in.TaxRate)
	}

	totals, err := calc.Compute(pricing.Subtotal(lines), in.Discount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDiscount, err)
	}

	order := &models.Order{
		ID:        orderID,
		Type:      in.Type,
		Status:    status,
		Items:     items,
		Subtotal:  totals.Subtotal,
		Discount:  totals.Discount,
		Tax:       totals.Tax,
		Total:     totals.Total,
		TableID:   in.TableID,
		Payment:   in.Payment,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if name := strings.TrimSpace(in.CustomerName); name != "" {
		initials := models.Initials(name)
		order.CustomerName = &name
		order.CustomerInitials = &initials
	}
	if phone := strings.TrimSpace(in.CustomerPhone); phone != "" {
		order.CustomerPhone = &phone
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	day := repository.DayKey(now, s.cfg.Location)
	n, err := s.seq.Next(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate order number: %w", apperrors.FromContext(ctx, err, "order number allocation timed out"))
	}
	order.OrderNumber = fmt.Sprintf("%s-%s-%03d", s.cfg.NumberPrefix, day, n)

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", apperrors.FromContext(ctx, err, "saving the order timed out"))
	}

	s.mu.Lock()
	s.mergeLocked(order.Clone())
	s.mu.Unlock()

	s.logger.Info("Order created",
		"orderID", order.ID,
		"orderNumber", order.OrderNumber,
		"status", order.Status,
		"total", order.Total)

	s.notify(EventCreated, order)
	return order.Clone(), nil
}

// UpdateStatus applies the transition locally at once, then persists it. If
// persistence fails the status the order had before the call is restored and
// the error is returned. Same-status requests return the order unchanged.
func (s *Store) UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (*models.Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	s.mu.Lock()
	order, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrOrderNotFound
	}
	if order.Status == to {
		snapshot := order.Clone()
		s.mu.Unlock()
		return snapshot, nil
	}
	if !models.CanTransition(order.Status, to) {
		from := order.Status
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if s.inFlight[id] || !s.debounce.Allow(id) {
		s.mu.Unlock()
		return nil, ErrTransitionInFlight
	}

	cmd := newStatusCommand(order, to)
	cmd.apply(order, s.cfg.Clock())
	s.inFlight[id] = true
	optimistic := order.Clone()
	s.mu.Unlock()

	s.notify(EventStatus, optimistic)

	pctx, cancel := s.withTimeout(ctx)
	version, err := s.repo.UpdateStatus(pctx, id, cmd.from, cmd.to)
	err = apperrors.FromContext(pctx, err, "order status update timed out")
	cancel()

	s.mu.Lock()
	delete(s.inFlight, id)
	order = s.orders[id]

	if err != nil {
		undone := cmd.undo(order)
		snapshot := order.Clone()
		s.mu.Unlock()

		s.logger.Warn("Order status update failed",
			"error", err,
			"orderID", id,
			"from", cmd.from,
			"to", cmd.to,
			"rolledBack", undone)

		if undone {
			s.notify(EventRollback, snapshot)
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if version > order.Version {
		order.Version = version
	}
	snapshot := order.Clone()
	s.mu.Unlock()

	s.logger.Info("Order status updated", "orderID", id, "from", cmd.from, "to", cmd.to, "version", version)
	return snapshot, nil
}

// ApplyRemote merges a row pushed by another writer. It is applied only when its
// version is newer than the local copy; unknown orders are added.
func (s *Store) ApplyRemote(order *models.Order) bool {
	if order == nil || order.ID == "" {
		return false
	}

	s.mu.Lock()
	applied := s.mergeLocked(order.Clone())
	s.mu.Unlock()

	if applied {
		s.notify(EventRemote, order)
	}
	return applied
}

// SyncRemote reacts to a change notice carrying only id and version: a newer
// row is fetched and merged, an older or equal one is ignored
func (s *Store) SyncRemote(ctx context.Context, id string, version int64) error {
	s.mu.RLock()
	current, ok := s.orders[id]
	stale := ok && current.Version >= version
	s.mu.RUnlock()

	if stale {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	s.ApplyRemote(order)
	return nil
}

// Refresh loads the orders created since the given time. On failure the
// last-known orders are kept and the error is returned.
func (s *Store) Refresh(ctx context.Context, since time.Time, limit int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fetched, err := s.repo.ListSince(ctx, since, limit)
	if err != nil {
		s.logger.Warn("Failed to refresh orders, keeping last known list", "error", err)
		return err
	}

	var changed []*models.Order

	s.mu.Lock()
	// oldest first so insertion order follows creation time
	for i := len(fetched) - 1; i >= 0; i-- {
		if s.mergeLocked(fetched[i].Clone()) {
			changed = append(changed, fetched[i])
		}
	}
	s.pruneLocked(since)
	s.mu.Unlock()

	s.debounce.Sweep()

	for _, o := range changed {
		s.notify(EventRemote, o)
	}

	s.logger.Debug("Orders refreshed", "fetched", len(fetched), "changed", len(changed))
	return nil
}

// Get returns a copy of one order
func (s *Store) Get(id string) (*models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// Active returns the orders still on the kitchen board, in insertion order
func (s *Store) Active() []*models.Order {
	return s.filter(models.OrderStatus.Active)
}

// Completed returns the orders in a terminal status, in insertion order
func (s *Store) Completed() []*models.Order {
	return s.filter(models.OrderStatus.Terminal)
}

// All returns every known order, in insertion order
func (s *Store) All() []*models.Order {
	return s.filter(func(models.OrderStatus) bool { return true })
}

func (s *Store) filter(keep func(models.OrderStatus) bool) []*models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Order, 0, len(s.sequence))
	for _, id := range s.sequence {
		if o := s.orders[id]; keep(o.Status) {
			out = append(out, o.Clone())
		}
	}
	return out
}

// mergeLocked stores o if it is new or newer than the local copy
func (s *Store) mergeLocked(o *models.Order) bool {
	current, ok := s.orders[o.ID]
	if !ok {
		s.orders[o.ID] = o
		s.sequence = append(s.sequence, o.ID)
		return true
	}
	if o.Version <= current.Version {
		return false
	}
	s.orders[o.ID] = o
	return true
}

// pruneLocked forgets orders that fell out of the loading window
func (s *Store) pruneLocked(since time.Time) {
	kept := s.sequence[:0]
	for _, id := range s.sequence {
		o := s.orders[id]
		if o.CreatedAt.Before(since) && !s.inFlight[id] {
			delete(s.orders, id)
			continue
		}
		kept = append(kept, id)
	}
	s.sequence = kept
}
