package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// Sender publishes a keyed message to a Kafka topic
type Sender interface {
	SendMessage(ctx context.Context, topic string, key string, value []byte, headers map[string]string) error
}

// KafkaHandler publishes outbox messages to Kafka behind a circuit breaker
type KafkaHandler struct {
	logger   logger.Logger
	producer Sender
	breaker  *circuitbreaker.CircuitBreaker
	topic    string
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer Sender, topic string, breaker *circuitbreaker.CircuitBreaker, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		breaker:  breaker,
		logger:   logger,
	}
}

// HandleMessage publishes the event keyed by its aggregate so one order's events stay in order
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	headers := map[string]string{
		"event_type":     message.EventType,
		"aggregate_type": message.AggregateType,
	}

	err := h.breaker.Execute(func() error {
		return h.producer.SendMessage(ctx, h.topic, message.AggregateID, message.Payload, headers)
	})

	if errors.Is(err, circuitbreaker.ErrOpen) {
		h.logger.Warn("Kafka circuit open, deferring message",
			"messageID", message.ID,
			"aggregateID", message.AggregateID)
		return fmt.Errorf("%w: %v", apperrors.ErrServiceUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	h.logger.Debug("Published message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	return nil
}
