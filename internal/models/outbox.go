package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types written to the outbox
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventShiftOpened        = "shift_opened"
	EventShiftClosed        = "shift_closed"
	EventCashLogged         = "cash_logged"
)

// EventTypes lists every event type the outbox publishes
var EventTypes = []string{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventShiftOpened,
	EventShiftClosed,
	EventCashLogged,
}

// OutboxMessage represents a message to be published from the outbox table
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the envelope published to the brokers
type OutboxMessageEvent struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// OrderStatusChange is the data of an order_status_changed event
type OrderStatusChange struct {
	OrderID   string      `json:"order_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	Version   int64       `json:"version"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ShiftClosed is the data of a shift_closed event
type ShiftClosed struct {
	Shift          *Shift         `json:"shift"`
	Reconciliation Reconciliation `json:"reconciliation"`
}

func newOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	now := GetCurrentTime()
	payload, err := json.Marshal(OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  now,
		Data:        raw,
	})
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent creates a new order created event
func NewOrderCreatedEvent(order *Order) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderCreated, order)
}

// NewOrderStatusChangedEvent creates a new event for order status change
func NewOrderStatusChangedEvent(order *Order, oldStatus OrderStatus) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderStatusChanged, OrderStatusChange{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		Version:   order.Version,
		UpdatedAt: order.UpdatedAt,
	})
}

// NewShiftOpenedEvent creates a shift opened event
func NewShiftOpenedEvent(shift *Shift) (*OutboxMessage, error) {
	return newOutboxMessage("shift", shift.ID, EventShiftOpened, shift)
}

// NewShiftClosedEvent creates a shift closed event carrying the reconciliation
func NewShiftClosedEvent(shift *Shift, rec Reconciliation) (*OutboxMessage, error) {
	return newOutboxMessage("shift", shift.ID, EventShiftClosed, ShiftClosed{Shift: shift, Reconciliation: rec})
}

// NewCashLoggedEvent creates a cash log event
func NewCashLoggedEvent(entry *CashLog) (*OutboxMessage, error) {
	return newOutboxMessage("shift", entry.ShiftID, EventCashLogged, entry)
}
