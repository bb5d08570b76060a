package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// OrderSink is the part of the order store fed by remote events
type OrderSink interface {
	ApplyRemote(order *models.Order) bool
	SyncRemote(ctx context.Context, id string, version int64) error
}

// OrderEventsHandler feeds order events published by other terminals into the local order store
type OrderEventsHandler struct {
	orders OrderSink
	logger logger.Logger
}

// NewOrderEventsHandler creates a new OrderEventsHandler
func NewOrderEventsHandler(orders OrderSink, logger logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		orders: orders,
		logger: logger,
	}
}

// HandleMessage handles incoming order events from Kafka messages. Events of
// other aggregates are acknowledged and ignored.
func (h *OrderEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// a poison message must not block the partition
		h.logger.Error("Dropping undecodable event", "error", err, "offset", msg.Offset)
		return nil
	}

	switch event.EventType {
	case models.EventOrderCreated:
		return h.handleOrderCreated(event)
	case models.EventOrderStatusChanged:
		return h.handleOrderStatusChanged(ctx, event)
	default:
		return nil
	}
}

func (h *OrderEventsHandler) handleOrderCreated(event models.OutboxMessageEvent) error {
	var order models.Order
	if err := json.Unmarshal(event.Data, &order); err != nil {
		h.logger.Error("Invalid order_created payload", "error", err, "eventID", event.EventID)
		return nil
	}

	if h.orders.ApplyRemote(&order) {
		h.logger.Debug("Applied remote order", "orderID", order.ID, "version", order.Version)
	}
	return nil
}

func (h *OrderEventsHandler) handleOrderStatusChanged(ctx context.Context, event models.OutboxMessageEvent) error {
	var change models.OrderStatusChange
	if err := json.Unmarshal(event.Data, &change); err != nil {
		h.logger.Error("Invalid order_status_changed payload", "error", err, "eventID", event.EventID)
		return nil
	}

	// the event carries no items, so the row is refetched when it is newer
	if err := h.orders.SyncRemote(ctx, change.OrderID, change.Version); err != nil {
		return fmt.Errorf("failed to sync order %s: %w", change.OrderID, err)
	}

	h.logger.Debug("Synced remote status change",
		"orderID", change.OrderID,
		"oldStatus", change.OldStatus,
		"newStatus", change.NewStatus)
	return nil
}
