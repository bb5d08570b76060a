package outbox

import (
	"context"
	"fmt"

	"github.com/vaidashi/restaurant-pos/internal/models"
)

// AMQPPublisher publishes a typed message to an exchange
type AMQPPublisher interface {
	Publish(ctx context.Context, eventType string, body []byte) error
}

// AMQPHandler forwards outbox messages to the notification exchange read by
// kitchen printers and displays
type AMQPHandler struct {
	publisher AMQPPublisher
}

// NewAMQPHandler creates a new AMQPHandler
func NewAMQPHandler(publisher AMQPPublisher) *AMQPHandler {
	return &AMQPHandler{publisher: publisher}
}

// HandleMessage publishes the raw event envelope
func (h *AMQPHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	if err := h.publisher.Publish(ctx, message.EventType, message.Payload); err != nil {
		return fmt.Errorf("failed to publish message to RabbitMQ: %w", err)
	}
	return nil
}
