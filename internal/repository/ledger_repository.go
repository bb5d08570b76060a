package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/restaurant-pos/internal/database"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// LedgerReader reads the figures expected cash is computed from
type LedgerReader interface {
	CashRevenueSince(ctx context.Context, since time.Time) (int64, error)
	CashTotals(ctx context.Context, shiftID string) (cashIn, cashOut int64, err error)
}

// ledgerQueries runs ledger reads against either the pool or a transaction
type ledgerQueries struct {
	q sqlx.QueryerContext
}

// CashRevenueSince sums completed cash-paid order totals created at or after since.
// Each order is counted once no matter how often its status changed.
func (l ledgerQueries) CashRevenueSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64

	err := sqlx.GetContext(ctx, l.q, &total, `
		SELECT COALESCE(SUM(total), 0)
		FROM orders
		WHERE status = $1 AND payment_method = $2 AND created_at >= $3`,
		models.OrderStatusCompleted,
		models.PaymentMethodCash,
		since,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return total, nil
}

// CashTotals sums the manual cash-in and cash-out entries of a shift
func (l ledgerQueries) CashTotals(ctx context.Context, shiftID string) (int64, int64, error) {
	var totals struct {
		In  int64 `db:"cash_in"`
		Out int64 `db:"cash_out"`
	}

	err := sqlx.GetContext(ctx, l.q, &totals, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE direction = 'in'), 0) AS cash_in,
			COALESCE(SUM(amount) FILTER (WHERE direction = 'out'), 0) AS cash_out
		FROM cash_logs
		WHERE shift_id = $1`,
		shiftID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return totals.In, totals.Out, nil
}

// LedgerRepository persists cash log entries and aggregates shift revenue
type LedgerRepository struct {
	ledgerQueries
	db     *database.Database
	logger logger.Logger
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *database.Database, logger logger.Logger) *LedgerRepository {
	return &LedgerRepository{
		ledgerQueries: ledgerQueries{q: db.DB},
		db:            db,
		logger:        logger,
	}
}

// AppendCashLog inserts the entry only while its shift is still open.
// ErrNotFound means the shift does not exist or has been closed.
func (r *LedgerRepository) AppendCashLog(ctx context.Context, entry *models.CashLog) error {
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO cash_logs (id, shift_id, direction, amount, description, created_by, created_at)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE EXISTS (SELECT 1 FROM shifts WHERE id = $2 AND status = $8)`,
			entry.ID, entry.ShiftID, entry.Direction, entry.Amount,
			entry.Description, entry.CreatedBy, entry.CreatedAt,
			models.ShiftStatusOpen,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDatabase, err)
		}
		if n == 0 {
			return ErrNotFound
		}

		event, err := models.NewCashLoggedEvent(entry)
		if err != nil {
			return fmt.Errorf("failed to build cash log event: %w", err)
		}

		return insertOutbox(ctx, tx, event)
	})

	if err != nil {
		r.logger.Error("Failed to append cash log", "error", err, "shiftID", entry.ShiftID)
		return err
	}

	return nil
}

// ListCashLogs returns a shift's entries in the order they were recorded
func (r *LedgerRepository) ListCashLogs(ctx context.Context, shiftID string) ([]*models.CashLog, error) {
	var entries []*models.CashLog

	err := r.db.DB.SelectContext(ctx, &entries, `
		SELECT id, shift_id, direction, amount, description, created_by, created_at
		FROM cash_logs
		WHERE shift_id = $1
		ORDER BY created_at ASC`,
		shiftID,
	)
	if err != nil {
		r.logger.Error("Failed to list cash logs", "error", err, "shiftID", shiftID)
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}

	return entries, nil
}
