package shift

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/restaurant-pos/internal/ledger"
	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

// memStore backs both the shift repository and the ledger repository
type memStore struct {
	mu       sync.Mutex
	shifts   []*models.Shift
	logs     []*models.CashLog
	revenue  int64
	closeErr error
}

func (s *memStore) FindOpen(_ context.Context, operatorID string) (*models.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.shifts) - 1; i >= 0; i-- {
		if sh := s.shifts[i]; sh.OperatorID == operatorID && sh.Status == models.ShiftStatusOpen {
			c := *sh
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) Create(_ context.Context, shift *models.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sh := range s.shifts {
		if sh.OperatorID == shift.OperatorID && sh.Status == models.ShiftStatusOpen {
			return repository.ErrConflict
		}
	}
	c := *shift
	s.shifts = append(s.shifts, &c)
	return nil
}

func (s *memStore) CloseOpen(ctx context.Context, operatorID string, reconcile repository.ReconcileFunc) (*models.Shift, models.Reconciliation, error) {
	open, err := s.FindOpen(ctx, operatorID)
	if err != nil {
		return nil, models.Reconciliation{}, err
	}

	rec, err := reconcile(ctx, open, s)
	if err != nil {
		return nil, models.Reconciliation{}, err
	}
	if s.closeErr != nil {
		return nil, models.Reconciliation{}, s.closeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shifts {
		if sh.ID == open.ID {
			now := time.Now().UTC()
			sh.Status = models.ShiftStatusClosed
			sh.ClosedAt = &now
			sh.ExpectedCash = &rec.Expected
			sh.ActualCash = &rec.Actual
			sh.Difference = &rec.Difference
			c := *sh
			return &c, rec, nil
		}
	}
	return nil, models.Reconciliation{}, repository.ErrNotFound
}

func (s *memStore) History(_ context.Context, operatorID string, limit int) ([]*models.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Shift
	for i := len(s.shifts) - 1; i >= 0 && len(out) < limit; i-- {
		if sh := s.shifts[i]; sh.OperatorID == operatorID && sh.Status == models.ShiftStatusClosed {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (s *memStore) CashRevenueSince(context.Context, time.Time) (int64, error) {
	return s.revenue, nil
}

func (s *memStore) CashTotals(_ context.Context, shiftID string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var in, out int64
	for _, l := range s.logs {
		if l.ShiftID != shiftID {
			continue
		}
		if l.Direction == models.CashIn {
			in += l.Amount
		} else {
			out += l.Amount
		}
	}
	return in, out, nil
}

func (s *memStore) AppendCashLog(_ context.Context, entry *models.CashLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sh := range s.shifts {
		if sh.ID == entry.ShiftID && sh.Status == models.ShiftStatusOpen {
			s.logs = append(s.logs, entry)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memStore) ListCashLogs(_ context.Context, shiftID string) ([]*models.CashLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.CashLog
	for _, l := range s.logs {
		if l.ShiftID == shiftID {
			out = append(out, l)
		}
	}
	return out, nil
}

func newManager(store *memStore) *Manager {
	return NewManager(store, ledger.NewStore(store, logger.Nop()), time.Second, logger.Nop())
}

func TestOpenRequiresOperator(t *testing.T) {
	m := newManager(&memStore{})

	_, err := m.Open(context.Background(), "", 100000)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestOpenValidatesStartCash(t *testing.T) {
	store := &memStore{}
	m := newManager(store)

	_, err := m.Open(context.Background(), "op-1", -1)
	assert.ErrorIs(t, err, ErrNegativeCash)
	assert.Empty(t, store.shifts)

	shift, err := m.Open(context.Background(), "op-1", 0)
	require.NoError(t, err)
	assert.Equal(t, models.ShiftStatusOpen, shift.Status)
}

func TestOpenRejectsSecondOpenShift(t *testing.T) {
	m := newManager(&memStore{})
	ctx := context.Background()

	_, err := m.Open(ctx, "op-1", 100000)
	require.NoError(t, err)

	_, err = m.Open(ctx, "op-1", 100000)
	assert.ErrorIs(t, err, ErrShiftAlreadyOpen)

	// another operator is independent
	_, err = m.Open(ctx, "op-2", 50000)
	assert.NoError(t, err)
}

func TestActiveShiftAbsentIsNotAnError(t *testing.T) {
	m := newManager(&memStore{})

	shift, err := m.ActiveShift(context.Background(), "op-1")
	assert.NoError(t, err)
	assert.Nil(t, shift)
}

func TestCloseReconcilesFromSources(t *testing.T) {
	store := &memStore{revenue: 78732}
	m := newManager(store)
	ctx := context.Background()

	_, err := m.Open(ctx, "op-1", 200000)
	require.NoError(t, err)

	_, err = m.AddCashLog(ctx, "op-1", models.CashIn, 50000, "float top-up")
	require.NoError(t, err)
	_, err = m.AddCashLog(ctx, "op-1", models.CashOut, 20000, "supplier")
	require.NoError(t, err)

	preview, err := m.Summary(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, int64(308732), preview.Expected)

	res, err := m.Close(ctx, "op-1", 310000)
	require.NoError(t, err)

	assert.Equal(t, models.Reconciliation{Expected: 308732, Actual: 310000, Difference: 1268}, res.Reconciliation)
	assert.Equal(t, models.ShiftStatusClosed, res.Shift.Status)
	require.NotNil(t, res.Shift.Difference)
	assert.Equal(t, int64(1268), *res.Shift.Difference)

	active, err := m.ActiveShift(ctx, "op-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	history, err := m.History(ctx, "op-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCloseFailureLeavesShiftOpen(t *testing.T) {
	store := &memStore{closeErr: errors.New("connection reset")}
	m := newManager(store)
	ctx := context.Background()

	opened, err := m.Open(ctx, "op-1", 1000)
	require.NoError(t, err)

	_, err = m.Close(ctx, "op-1", 1000)
	assert.Error(t, err)

	active, err := m.ActiveShift(ctx, "op-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, opened.ID, active.ID)
}

func TestCloseTimeoutIsRetryable(t *testing.T) {
	store := &memStore{closeErr: fmt.Errorf("%w: %w", repository.ErrDatabase, context.DeadlineExceeded)}
	m := newManager(store)
	ctx := context.Background()

	_, err := m.Open(ctx, "op-1", 1000)
	require.NoError(t, err)

	_, err = m.Close(ctx, "op-1", 1000)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, apperrors.StatusCode(err))
	assert.True(t, apperrors.IsRetryable(err))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Context["cause"], "context deadline exceeded")
}

func TestCloseWithoutShift(t *testing.T) {
	m := newManager(&memStore{})

	_, err := m.Close(context.Background(), "op-1", 1000)
	assert.ErrorIs(t, err, ErrNoActiveShift)

	_, err = m.Close(context.Background(), "op-1", -5)
	assert.ErrorIs(t, err, ErrNegativeCash)
}

func TestAddCashLogRequiresActiveShift(t *testing.T) {
	store := &memStore{}
	m := newManager(store)

	_, err := m.AddCashLog(context.Background(), "op-1", models.CashIn, 1000, "")
	assert.ErrorIs(t, err, ErrNoActiveShift)
	assert.Empty(t, store.logs)
}

func TestAddCashLogRejectsNonPositiveAmount(t *testing.T) {
	store := &memStore{}
	m := newManager(store)
	ctx := context.Background()

	_, err := m.Open(ctx, "op-1", 0)
	require.NoError(t, err)

	_, err = m.AddCashLog(ctx, "op-1", models.CashOut, 0, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	logs, err := m.CashLogs(ctx, "op-1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
