package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/repository"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

type fakeRepo struct {
	revenue  int64
	entries  []*models.CashLog
	closed   map[string]bool
	sumErr   error
	sinceArg time.Time
}

func (f *fakeRepo) CashRevenueSince(_ context.Context, since time.Time) (int64, error) {
	f.sinceArg = since
	return f.revenue, f.sumErr
}

func (f *fakeRepo) CashTotals(_ context.Context, shiftID string) (int64, int64, error) {
	var in, out int64
	for _, e := range f.entries {
		if e.ShiftID != shiftID {
			continue
		}
		if e.Direction == models.CashIn {
			in += e.Amount
		} else {
			out += e.Amount
		}
	}
	return in, out, nil
}

func (f *fakeRepo) AppendCashLog(_ context.Context, entry *models.CashLog) error {
	if f.closed[entry.ShiftID] {
		return repository.ErrNotFound
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRepo) ListCashLogs(_ context.Context, shiftID string) ([]*models.CashLog, error) {
	var out []*models.CashLog
	for _, e := range f.entries {
		if e.ShiftID == shiftID {
			out = append(out, e)
		}
	}
	return out, nil
}

func openShift(start int64) *models.Shift {
	s := models.NewShift("op-1", start)
	s.OpenedAt = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	return s
}

func TestExpectedCashScenario(t *testing.T) {
	repo := &fakeRepo{revenue: 78732}
	store := NewStore(repo, logger.Nop())
	shift := openShift(200000)
	ctx := context.Background()

	_, err := store.Append(ctx, shift, models.CashIn, 50000, "change float top-up", "op-1")
	require.NoError(t, err)
	_, err = store.Append(ctx, shift, models.CashOut, 20000, "petty cash", "op-1")
	require.NoError(t, err)

	sum, err := store.Summary(ctx, shift)
	require.NoError(t, err)

	assert.Equal(t, int64(308732), sum.Expected)
	assert.Equal(t, shift.OpenedAt, repo.sinceArg)

	// recomputing from the same sources is stable
	again, err := store.Summary(ctx, shift)
	require.NoError(t, err)
	assert.Equal(t, sum, again)
}

func TestReconcileDifference(t *testing.T) {
	rec := Reconcile(308732, 300000)

	assert.Equal(t, int64(-8732), rec.Difference)
	assert.Equal(t, int64(0), Reconcile(1000, 1000).Difference)
}

func TestAppendValidatesBeforePersisting(t *testing.T) {
	repo := &fakeRepo{}
	store := NewStore(repo, logger.Nop())
	shift := openShift(0)

	_, err := store.Append(context.Background(), shift, models.CashIn, 0, "", "op-1")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = store.Append(context.Background(), shift, models.CashDirection("sideways"), 10, "", "op-1")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	assert.Empty(t, repo.entries)
}

func TestAppendRefusesClosedShift(t *testing.T) {
	shift := openShift(1000)
	repo := &fakeRepo{closed: map[string]bool{shift.ID: true}}
	store := NewStore(repo, logger.Nop())

	_, err := store.Append(context.Background(), shift, models.CashOut, 100, "late", "op-1")
	assert.ErrorIs(t, err, ErrShiftClosed)

	shift.Status = models.ShiftStatusClosed
	_, err = store.Append(context.Background(), shift, models.CashOut, 100, "late", "op-1")
	assert.ErrorIs(t, err, ErrShiftClosed)
}

func TestSummaryPropagatesQueryFailure(t *testing.T) {
	repo := &fakeRepo{sumErr: errors.New("connection reset")}
	store := NewStore(repo, logger.Nop())

	_, err := store.Summary(context.Background(), openShift(0))
	assert.Error(t, err)
}
