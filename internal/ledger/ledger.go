// Package ledger records manual cash movements against a shift and derives
// expected drawer cash from the order ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

var (
	ErrInvalidAmount    = apperrors.NewInvalidInputError("amount must be positive")
	ErrInvalidDirection = apperrors.NewInvalidInputError("direction must be in or out")
	ErrShiftClosed      = apperrors.NewConflictError("shift is closed")
)

// Reader reads the figures expected cash is computed from
type Reader interface {
	CashRevenueSince(ctx context.Context, since time.Time) (int64, error)
	CashTotals(ctx context.Context, shiftID string) (cashIn, cashOut int64, err error)
}

// Repository persists cash log entries
type Repository interface {
	Reader
	AppendCashLog(ctx context.Context, entry *models.CashLog) error
	ListCashLogs(ctx context.Context, shiftID string) ([]*models.CashLog, error)
}

// Summary is the live cash position of a shift
type Summary struct {
	ShiftID     string    `json:"shift_id"`
	OpenedAt    time.Time `json:"opened_at"`
	StartCash   int64     `json:"start_cash"`
	CashRevenue int64     `json:"cash_revenue"`
	CashIn      int64     `json:"cash_in"`
	CashOut     int64     `json:"cash_out"`
	Expected    int64     `json:"expected"`
}

// ExpectedCash is the cash that should be in the drawer
func ExpectedCash(startCash, cashRevenue, cashIn, cashOut int64) int64 {
	return startCash + cashRevenue + cashIn - cashOut
}

// Reconcile compares a counted drawer against the expected amount
func Reconcile(expected, actual int64) models.Reconciliation {
	return models.Reconciliation{
		Expected:   expected,
		Actual:     actual,
		Difference: actual - expected,
	}
}

// Summarize recomputes a shift's cash position from source transactions
func Summarize(ctx context.Context, r Reader, shift *models.Shift) (Summary, error) {
	revenue, err := r.CashRevenueSince(ctx, shift.OpenedAt)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to sum cash revenue: %w", err)
	}

	cashIn, cashOut, err := r.CashTotals(ctx, shift.ID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to sum cash logs: %w", err)
	}

	return Summary{
		ShiftID:     shift.ID,
		OpenedAt:    shift.OpenedAt,
		StartCash:   shift.StartCash,
		CashRevenue: revenue,
		CashIn:      cashIn,
		CashOut:     cashOut,
		Expected:    ExpectedCash(shift.StartCash, revenue, cashIn, cashOut),
	}, nil
}

// Store is the append-only cash ledger
type Store struct {
	repo   Repository
	logger logger.Logger
}

// NewStore creates a new ledger Store
func NewStore(repo Repository, logger logger.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
	}
}

// Append records a manual cash movement against an open shift
func (s *Store) Append(ctx context.Context, shift *models.Shift, direction models.CashDirection, amount int64, description, createdBy string) (*models.CashLog, error) {
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if shift.Status != models.ShiftStatusOpen {
		return nil, ErrShiftClosed
	}

	entry := &models.CashLog{
		ID:          models.GenerateID("cash"),
		ShiftID:     shift.ID,
		Direction:   direction,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		CreatedBy:   createdBy,
		CreatedAt:   models.GetCurrentTime(),
	}

	if err := s.repo.AppendCashLog(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShiftClosed
		}
		return nil, err
	}

	s.logger.Info("Cash log recorded",
		"shiftID", shift.ID,
		"direction", direction,
		"amount", amount)

	return entry, nil
}

// List returns the entries of a shift in recording order
func (s *Store) List(ctx context.Context, shiftID string) ([]*models.CashLog, error) {
	return s.repo.ListCashLogs(ctx, shiftID)
}

// Summary returns the current expected cash of a shift
func (s *Store) Summary(ctx context.Context, shift *models.Shift) (Summary, error) {
	return Summarize(ctx, s.repo, shift)
}
