package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// LoggingHandler logs outbox messages; it is the sink when no broker is configured
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{
		logger: logger,
	}
}

// HandleMessage handles the outbox message by logging it
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	h.logger.Info("POS event",
		"messageID", message.ID,
		"eventType", message.EventType,
		"aggregateID", message.AggregateID,
		"eventID", event.EventID,
		"occurredAt", event.OccurredAt)

	return nil
}

// Fanout delivers a message to every handler. A message counts as delivered
// only when all of them succeed, so a retry may repeat earlier deliveries.
type Fanout []MessageHandler

// HandleMessage calls every handler and joins their errors
func (f Fanout) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var errs []error
	for _, h := range f {
		if err := h.HandleMessage(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
