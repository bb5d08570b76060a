package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/restaurant-pos/internal/database"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

const outboxColumns = `
	id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, processing_attempts, last_error, status`

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *database.Database, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// insertOutbox writes an event in the caller's transaction so it commits with the state change
func insertOutbox(ctx context.Context, q sqlx.QueryerContext, message *models.OutboxMessage) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO outbox_messages (
			aggregate_type, aggregate_id, event_type, payload, created_at, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&message.ID)

	if err != nil {
		return fmt.Errorf("%w: failed to create outbox message: %v", ErrDatabase, err)
	}

	return nil
}

// Create inserts a new outbox message outside of any business transaction
func (r *OutboxRepository) Create(ctx context.Context, message *models.OutboxMessage) error {
	if err := insertOutbox(ctx, r.db.DB, message); err != nil {
		r.logger.Error("Failed to create outbox message", "error", err)
		return err
	}
	return nil
}

// GetPendingMessages retrieves pending outbox messages, oldest first
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	var messages []*models.OutboxMessage

	err := r.db.DB.SelectContext(ctx, &messages, `
		SELECT `+outboxColumns+`
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`,
		models.OutboxStatusPending,
		limit,
	)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsProcessing counts a delivery attempt
func (r *OutboxRepository) MarkAsProcessing(ctx context.Context, id int64) error {
	_, err := r.db.DB.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1
		WHERE id = $2`,
		models.OutboxStatusProcessing,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to mark outbox message as processing", "error", err, "messageID", id)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return nil
}

// MarkAsPending returns a message to the queue after a failed attempt
func (r *OutboxRepository) MarkAsPending(ctx context.Context, id int64, errorMessage string) error {
	_, err := r.db.DB.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3`,
		models.OutboxStatusPending,
		errorMessage,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to return outbox message to pending", "error", err, "messageID", id)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return nil
}

// MarkAsCompleted updates the status of an outbox message to completed
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	_, err := r.db.DB.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2
		WHERE id = $3`,
		models.OutboxStatusCompleted,
		models.GetCurrentTime(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to mark outbox message as completed", "error", err, "messageID", id)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return nil
}

// MarkAsFailed moves an exhausted message to the dead letter queue atomically
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, message *models.OutboxMessage, errorMessage, reason string) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE outbox_messages
			SET status = $1, last_error = $2
			WHERE id = $3`,
			models.OutboxStatusFailed,
			errorMessage,
			message.ID,
		); err != nil {
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}

		return insertDeadLetter(ctx, tx, models.NewDeadLetterMessage(message, errorMessage, reason))
	})

	if err != nil {
		r.logger.Error("Failed to mark outbox message as failed", "error", err, "messageID", message.ID)
		return err
	}

	return nil
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	var message models.OutboxMessage

	err := r.db.DB.GetContext(ctx, &message, `SELECT `+outboxColumns+` FROM outbox_messages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get outbox message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return &message, nil
}
