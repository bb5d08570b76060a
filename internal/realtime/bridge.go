package realtime

import (
	"context"
	"time"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/orders"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// Table names published by the NOTIFY triggers
const (
	TableOrders = "orders"
	TableStock  = "stock_items"
)

// OrderSync is the part of the order store the bridge drives
type OrderSync interface {
	SyncRemote(ctx context.Context, id string, version int64) error
	Refresh(ctx context.Context, since time.Time, limit int) error
	Subscribe(fn orders.Observer) func()
}

// StockSync is the part of the stock cache the bridge drives
type StockSync interface {
	Sync(ctx context.Context, id string, version int64) error
	Load(ctx context.Context) error
	Subscribe(fn func(models.StockItem)) func()
}

// Window bounds how far back a reload goes
type Window struct {
	Duration time.Duration
	Limit    int
}

// Bridge connects the change feed to the stores and the stores to the hub
type Bridge struct {
	feed   *Feed
	hub    *Hub
	orders OrderSync
	stock  StockSync
	window Window
	logger logger.Logger
	unsubs []func()
}

// NewBridge creates a bridge; feed may be nil when running without LISTEN/NOTIFY
func NewBridge(feed *Feed, hub *Hub, orders OrderSync, stock StockSync, window Window, logger logger.Logger) *Bridge {
	return &Bridge{
		feed:   feed,
		hub:    hub,
		orders: orders,
		stock:  stock,
		window: window,
		logger: logger,
	}
}

// Start registers every subscription
func (b *Bridge) Start() {
	b.unsubs = append(b.unsubs,
		b.orders.Subscribe(func(e orders.Event) {
			b.hub.Broadcast("orders."+string(e.Kind), e.Order)
		}),
		b.stock.Subscribe(func(item models.StockItem) {
			b.hub.Broadcast("stock.changed", item)
		}),
	)

	if b.feed == nil {
		return
	}

	b.unsubs = append(b.unsubs,
		b.feed.Subscribe(TableOrders, func(ctx context.Context, c Change) {
			if err := b.orders.SyncRemote(ctx, c.ID, c.Version); err != nil {
				b.logger.Warn("Failed to sync remote order change", "error", err, "orderID", c.ID)
			}
		}),
		b.feed.Subscribe(TableStock, func(ctx context.Context, c Change) {
			if err := b.stock.Sync(ctx, c.ID, c.Version); err != nil {
				b.logger.Warn("Failed to sync stock change", "error", err, "stockID", c.ID)
			}
		}),
	)

	b.feed.OnReconnect(b.Reload)
}

// Reload refetches both stores; failures keep the last known state
func (b *Bridge) Reload(ctx context.Context) {
	since := models.GetCurrentTime().Add(-b.window.Duration)
	if err := b.orders.Refresh(ctx, since, b.window.Limit); err != nil {
		b.logger.Warn("Order reload failed", "error", err)
	}
	if err := b.stock.Load(ctx); err != nil {
		b.logger.Warn("Stock reload failed", "error", err)
	}
}

// Stop removes every subscription
func (b *Bridge) Stop() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
