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

const deadLetterColumns = `
	id, original_message_id, aggregate_type, aggregate_id, event_type, payload,
	error_message, failure_reason, retry_count, last_retry_at, status, created_at, resolved_at`

// DeadLetterRepository handles database operations related to dead letter messages
type DeadLetterRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewDeadLetterRepository creates a new DeadLetterRepository
func NewDeadLetterRepository(db *database.Database, logger logger.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{
		db:     db,
		logger: logger,
	}
}

func insertDeadLetter(ctx context.Context, q sqlx.QueryerContext, message *models.DeadLetterMessage) error {
	err := q.QueryRowxContext(ctx, `
		INSERT INTO dead_letter_messages (
			original_message_id, aggregate_type, aggregate_id, event_type, payload,
			error_message, failure_reason, retry_count, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		message.OriginalMessageID,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.ErrorMessage,
		message.FailureReason,
		message.RetryCount,
		message.Status,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		return fmt.Errorf("%w: failed to create dead letter message: %v", ErrDatabase, err)
	}

	return nil
}

// Create inserts a new dead letter message
func (r *DeadLetterRepository) Create(ctx context.Context, message *models.DeadLetterMessage) error {
	if err := insertDeadLetter(ctx, r.db.DB, message); err != nil {
		r.logger.Error("Failed to create dead letter message", "error", err)
		return err
	}
	return nil
}

// GetPendingMessages retrieves pending dead letter messages
func (r *DeadLetterRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	return r.list(ctx, models.DeadLetterStatusPending, limit)
}

// List returns dead letter messages in the given status, oldest first
func (r *DeadLetterRepository) List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]*models.DeadLetterMessage, error) {
	return r.list(ctx, status, limit)
}

func (r *DeadLetterRepository) list(ctx context.Context, status models.DeadLetterStatus, limit int) ([]*models.DeadLetterMessage, error) {
	var messages []*models.DeadLetterMessage

	err := r.db.DB.SelectContext(ctx, &messages, `
		SELECT `+deadLetterColumns+`
		FROM dead_letter_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`,
		status,
		limit,
	)
	if err != nil {
		r.logger.Error("Failed to list dead letter messages", "error", err, "status", status)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsRetrying marks a message as being retried
func (r *DeadLetterRepository) MarkAsRetrying(ctx context.Context, id int64) error {
	_, err := r.db.DB.ExecContext(ctx, `
		UPDATE dead_letter_messages
		SET status = $1, retry_count = retry_count + 1, last_retry_at = $2
		WHERE id = $3`,
		models.DeadLetterStatusRetrying,
		models.GetCurrentTime(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to mark dead letter message as retrying", "error", err, "messageID", id)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return nil
}

// MarkAsResolved marks a message as resolved
func (r *DeadLetterRepository) MarkAsResolved(ctx context.Context, id int64) error {
	_, err := r.db.DB.ExecContext(ctx, `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = $2
		WHERE id = $3`,
		models.DeadLetterStatusResolved,
		models.GetCurrentTime(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to mark dead letter message as resolved", "error", err, "messageID", id)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return nil
}

// MarkAsDiscarded marks a message as permanently discarded
func (r *DeadLetterRepository) MarkAsDiscarded(ctx context.Context, id int64, reason string) error {
	res, err := r.db.DB.ExecContext(ctx, `
		UPDATE dead_letter_messages
		SET status = $1, failure_reason = CONCAT(failure_reason, ' | Discarded: ', $2::text), resolved_at = $3
		WHERE id = $4 AND status IN ($5, $6)`,
		models.DeadLetterStatusDiscarded,
		reason,
		models.GetCurrentTime(),
		id,
		models.DeadLetterStatusPending,
		models.DeadLetterStatusRetrying,
	)
	if err != nil {
		r.logger.Error("Failed to mark dead letter message as discarded", "error", err, "messageID", id)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// ResetToRetry puts a retrying or discarded message back in the pending queue
func (r *DeadLetterRepository) ResetToRetry(ctx context.Context, id int64) error {
	res, err := r.db.DB.ExecContext(ctx, `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = NULL
		WHERE id = $2 AND status IN ($3, $4)`,
		models.DeadLetterStatusPending,
		id,
		models.DeadLetterStatusRetrying,
		models.DeadLetterStatusDiscarded,
	)
	if err != nil {
		r.logger.Error("Failed to reset dead letter message to pending", "error", err, "messageID", id)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// GetMessage retrieves a message by ID
func (r *DeadLetterRepository) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	var message models.DeadLetterMessage

	err := r.db.DB.GetContext(ctx, &message, `SELECT `+deadLetterColumns+` FROM dead_letter_messages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get dead letter message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return &message, nil
}
