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

const shiftColumns = `
	id, operator_id, start_cash, status, opened_at, closed_at,
	expected_cash, actual_cash, difference`

// ReconcileFunc computes the closing figures for a locked open shift using
// ledger reads that run inside the closing transaction
type ReconcileFunc func(ctx context.Context, shift *models.Shift, ledger LedgerReader) (models.Reconciliation, error)

// ShiftRepository handles database operations for shifts
type ShiftRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewShiftRepository creates a new ShiftRepository
func NewShiftRepository(db *database.Database, logger logger.Logger) *ShiftRepository {
	return &ShiftRepository{
		db:     db,
		logger: logger,
	}
}

// FindOpen returns the operator's most recent open shift, or ErrNotFound
func (r *ShiftRepository) FindOpen(ctx context.Context, operatorID string) (*models.Shift, error) {
	var shift models.Shift

	err := r.db.DB.GetContext(ctx, &shift, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE operator_id = $1 AND status = $2
		ORDER BY opened_at DESC
		LIMIT 1`,
		operatorID,
		models.ShiftStatusOpen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to find open shift", "error", err, "operatorID", operatorID)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return &shift, nil
}

// Create inserts an open shift; a second open shift for the operator is ErrConflict
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shifts (id, operator_id, start_cash, status, opened_at)
			VALUES ($1, $2, $3, $4, $5)`,
			shift.ID, shift.OperatorID, shift.StartCash, shift.Status, shift.OpenedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: operator %s already has an open shift", ErrConflict, shift.OperatorID)
			}
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}

		event, err := models.NewShiftOpenedEvent(shift)
		if err != nil {
			return fmt.Errorf("failed to build shift event: %w", err)
		}

		return insertOutbox(ctx, tx, event)
	})

	if err != nil {
		r.logger.Error("Failed to create shift", "error", err, "operatorID", shift.OperatorID)
		return err
	}

	return nil
}

// CloseOpen locks the operator's open shift, reconciles it and closes it in a
// single transaction. On any error the shift stays open.
func (r *ShiftRepository) CloseOpen(ctx context.Context, operatorID string, reconcile ReconcileFunc) (*models.Shift, models.Reconciliation, error) {
	var (
		closed models.Shift
		rec    models.Reconciliation
	)

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &closed, `
			SELECT `+shiftColumns+`
			FROM shifts
			WHERE operator_id = $1 AND status = $2
			ORDER BY opened_at DESC
			LIMIT 1
			FOR UPDATE`,
			operatorID,
			models.ShiftStatusOpen,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}

		rec, err = reconcile(ctx, &closed, ledgerQueries{q: tx})
		if err != nil {
			return err
		}

		now := models.GetCurrentTime()
		_, err = tx.ExecContext(ctx, `
			UPDATE shifts
			SET status = $2, closed_at = $3, expected_cash = $4, actual_cash = $5, difference = $6
			WHERE id = $1 AND status = $7`,
			closed.ID, models.ShiftStatusClosed, now,
			rec.Expected, rec.Actual, rec.Difference,
			models.ShiftStatusOpen,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}

		closed.Status = models.ShiftStatusClosed
		closed.ClosedAt = &now
		closed.ExpectedCash = &rec.Expected
		closed.ActualCash = &rec.Actual
		closed.Difference = &rec.Difference

		event, err := models.NewShiftClosedEvent(&closed, rec)
		if err != nil {
			return fmt.Errorf("failed to build shift event: %w", err)
		}

		return insertOutbox(ctx, tx, event)
	})

	if err != nil {
		r.logger.Error("Failed to close shift", "error", err, "operatorID", operatorID)
		return nil, models.Reconciliation{}, err
	}

	return &closed, rec, nil
}

// History returns the operator's closed shifts, most recent first
func (r *ShiftRepository) History(ctx context.Context, operatorID string, limit int) ([]*models.Shift, error) {
	var shifts []*models.Shift

	err := r.db.DB.SelectContext(ctx, &shifts, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE operator_id = $1 AND status = $2
		ORDER BY closed_at DESC
		LIMIT $3`,
		operatorID,
		models.ShiftStatusClosed,
		limit,
	)
	if err != nil {
		r.logger.Error("Failed to load shift history", "error", err, "operatorID", operatorID)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return shifts, nil
}
