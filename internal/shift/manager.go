// Package shift manages the cashier shift lifecycle: open, cash movements and
// the closing reconciliation.
package shift

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vaidashi/restaurant-pos/internal/ledger"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

var (
	ErrUnauthenticated  = apperrors.NewUnauthorizedError("operator is not authenticated")
	ErrNoActiveShift    = apperrors.NewConflictError("no active shift")
	ErrShiftAlreadyOpen = apperrors.NewConflictError("operator already has an open shift")
	ErrNegativeCash     = apperrors.NewInvalidInputError("cash amount must not be negative")
)

// Repository persists shifts
type Repository interface {
	FindOpen(ctx context.Context, operatorID string) (*models.Shift, error)
	Create(ctx context.Context, shift *models.Shift) error
	CloseOpen(ctx context.Context, operatorID string, reconcile repository.ReconcileFunc) (*models.Shift, models.Reconciliation, error)
	History(ctx context.Context, operatorID string, limit int) ([]*models.Shift, error)
}

// Ledger is the cash ledger the manager records movements in
type Ledger interface {
	Append(ctx context.Context, shift *models.Shift, direction models.CashDirection, amount int64, description, createdBy string) (*models.CashLog, error)
	List(ctx context.Context, shiftID string) ([]*models.CashLog, error)
	Summary(ctx context.Context, shift *models.Shift) (ledger.Summary, error)
}

// CloseResult is what the caller shows once the drawer is counted. The
// reconciliation is also stored on the shift row.
type CloseResult struct {
	Shift          *models.Shift         `json:"shift"`
	Reconciliation models.Reconciliation `json:"reconciliation"`
}

// Manager owns shift state transitions
type Manager struct {
	repo    Repository
	ledger  Ledger
	timeout time.Duration
	logger  logger.Logger
}

// NewManager creates a new Manager. Every store call is bounded by timeout.
func NewManager(repo Repository, ledger Ledger, timeout time.Duration, logger logger.Logger) *Manager {
	return &Manager{
		repo:    repo,
		ledger:  ledger,
		timeout: timeout,
		logger:  logger,
	}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// ActiveShift returns the operator's open shift, or nil when there is none
func (m *Manager) ActiveShift(ctx context.Context, operatorID string) (*models.Shift, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrUnauthenticated
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	shift, err := m.repo.FindOpen(ctx, operatorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FromContext(ctx, err, "shift lookup timed out")
	}

	return shift, nil
}

// Open starts a shift with the counted opening float
func (m *Manager) Open(ctx context.Context, operatorID string, startCash int64) (*models.Shift, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrUnauthenticated
	}
	if startCash < 0 {
		return nil, ErrNegativeCash
	}

	current, err := m.ActiveShift(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrShiftAlreadyOpen
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	shift := models.NewShift(operatorID, startCash)
	if err := m.repo.Create(ctx, shift); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrShiftAlreadyOpen
		}
		return nil, apperrors.FromContext(ctx, err, "opening the shift timed out")
	}

	m.logger.Info("Shift opened", "shiftID", shift.ID, "operatorID", operatorID, "startCash", startCash)
	return shift, nil
}

// Close counts the drawer against the recomputed expected cash and closes the
// shift. Either the close commits as a whole or the shift stays open.
func (m *Manager) Close(ctx context.Context, operatorID string, actualCash int64) (*CloseResult, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrUnauthenticated
	}
	if actualCash < 0 {
		return nil, ErrNegativeCash
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	reconcile := func(ctx context.Context, s *models.Shift, r repository.LedgerReader) (models.Reconciliation, error) {
		sum, err := ledger.Summarize(ctx, r, s)
		if err != nil {
			return models.Reconciliation{}, err
		}
		return ledger.Reconcile(sum.Expected, actualCash), nil
	}

	shift, rec, err := m.repo.CloseOpen(ctx, operatorID, reconcile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveShift
		}
		return nil, apperrors.FromContext(ctx, err, "closing the shift timed out")
	}

	m.logger.Info("Shift closed",
		"shiftID", shift.ID,
		"operatorID", operatorID,
		"expected", rec.Expected,
		"actual", rec.Actual,
		"difference", rec.Difference)

	return &CloseResult{Shift: shift, Reconciliation: rec}, nil
}

// AddCashLog records a manual cash movement on the operator's active shift
func (m *Manager) AddCashLog(ctx context.Context, operatorID string, direction models.CashDirection, amount int64, description string) (*models.CashLog, error) {
	shift, err := m.requireActive(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	entry, err := m.ledger.Append(ctx, shift, direction, amount, description, operatorID)
	if errors.Is(err, ledger.ErrShiftClosed) {
		// closed by another terminal after we looked it up
		return nil, ErrNoActiveShift
	}
	if err != nil {
		return nil, apperrors.FromContext(ctx, err, "recording the cash movement timed out")
	}
	return entry, nil
}

// CashLogs lists the movements of the operator's active shift
func (m *Manager) CashLogs(ctx context.Context, operatorID string) ([]*models.CashLog, error) {
	shift, err := m.requireActive(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	logs, err := m.ledger.List(ctx, shift.ID)
	if err != nil {
		return nil, apperrors.FromContext(ctx, err, "loading cash logs timed out")
	}
	return logs, nil
}

// Summary previews expected cash for the active shift without closing it
func (m *Manager) Summary(ctx context.Context, operatorID string) (ledger.Summary, error) {
	shift, err := m.requireActive(ctx, operatorID)
	if err != nil {
		return ledger.Summary{}, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	sum, err := m.ledger.Summary(ctx, shift)
	if err != nil {
		return ledger.Summary{}, apperrors.FromContext(ctx, err, "computing the shift summary timed out")
	}
	return sum, nil
}

// History lists the operator's closed shifts
func (m *Manager) History(ctx context.Context, operatorID string, limit int) ([]*models.Shift, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	shifts, err := m.repo.History(ctx, operatorID, limit)
	if err != nil {
		return nil, apperrors.FromContext(ctx, err, "loading shift history timed out")
	}
	return shifts, nil
}

func (m *Manager) requireActive(ctx context.Context, operatorID string) (*models.Shift, error) {
	shift, err := m.ActiveShift(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ErrNoActiveShift
	}
	return shift, nil
}
