package kitchen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

type fakeOrders struct {
	mu      sync.Mutex
	orders  []*models.Order
	calls   []models.OrderStatus
	failErr error
}

func (f *fakeOrders) Active() []*models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Order
	for _, o := range f.orders {
		if o.Status.Active() {
			out = append(out, o.Clone())
		}
	}
	return out
}

func (f *fakeOrders) Get(id string) (*models.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range f.orders {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return nil, false
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, to models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, to)
	if f.failErr != nil {
		return nil, f.failErr
	}
	for _, o := range f.orders {
		if o.ID == id {
			o.Status = to
			return o.Clone(), nil
		}
	}
	return nil, errors.New("missing")
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Broadcast(topic string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

var now = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

func order(id string, status models.OrderStatus, age time.Duration) *models.Order {
	return &models.Order{ID: id, Status: status, CreatedAt: now.Add(-age), Version: 1}
}

func newBoard(src *fakeOrders, pub Publisher) *Board {
	return NewBoard(src, pub, Config{
		WarnAfter: 5 * time.Minute,
		CritAfter: 10 * time.Minute,
		Tick:      10 * time.Millisecond,
		Clock:     func() time.Time { return now },
	}, logger.Nop())
}

func TestClassifyThresholds(t *testing.T) {
	warn, crit := 5*time.Minute, 10*time.Minute

	assert.Equal(t, UrgencyNormal, Classify(0, warn, crit))
	assert.Equal(t, UrgencyNormal, Classify(5*time.Minute, warn, crit))
	assert.Equal(t, UrgencyWarning, Classify(5*time.Minute+time.Second, warn, crit))
	assert.Equal(t, UrgencyWarning, Classify(10*time.Minute, warn, crit))
	assert.Equal(t, UrgencyCritical, Classify(10*time.Minute+time.Second, warn, crit))
}

func TestSnapshotLanesAndUrgency(t *testing.T) {
	src := &fakeOrders{orders: []*models.Order{
		order("a", models.OrderStatusCooking, 12*time.Minute),
		order("b", models.OrderStatusWaiting, 20*time.Minute),
		order("c", models.OrderStatusCooking, 7*time.Minute),
		order("d", models.OrderStatusReady, time.Minute),
		order("e", models.OrderStatusCompleted, time.Hour),
		order("f", models.OrderStatusCooking, time.Minute),
	}}

	snap := newBoard(src, nil).Snapshot()

	require.Len(t, snap.Waiting, 1)
	assert.Equal(t, UrgencyNormal, snap.Waiting[0].Urgency, "waiting lane is not alerted")
	assert.Equal(t, int64(1200), snap.Waiting[0].ElapsedSeconds)

	require.Len(t, snap.Cooking, 3)
	assert.Equal(t, []string{"a", "c", "f"}, []string{snap.Cooking[0].Order.ID, snap.Cooking[1].Order.ID, snap.Cooking[2].Order.ID})
	assert.Equal(t, UrgencyCritical, snap.Cooking[0].Urgency)
	assert.Equal(t, UrgencyWarning, snap.Cooking[1].Urgency)
	assert.Equal(t, UrgencyNormal, snap.Cooking[2].Urgency)

	require.Len(t, snap.Ready, 1)
}

func TestDropOntoSameLaneIsNoop(t *testing.T) {
	src := &fakeOrders{orders: []*models.Order{order("a", models.OrderStatusCooking, 0)}}
	b := newBoard(src, nil)

	o, err := b.Drop(context.Background(), "a", models.OrderStatusCooking)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCooking, o.Status)
	assert.Empty(t, src.calls)
}

func TestDropIssuesTransition(t *testing.T) {
	src := &fakeOrders{orders: []*models.Order{order("a", models.OrderStatusWaiting, 0)}}
	pub := &recordingPublisher{}
	b := newBoard(src, pub)

	o, err := b.Drop(context.Background(), "a", models.OrderStatusCooking)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCooking, o.Status)
	assert.Equal(t, 1, pub.count())

	_, err = b.Drop(context.Background(), "a", models.OrderStatusCompleted)
	assert.ErrorIs(t, err, ErrUnknownLane)
}

func TestAdvanceFollowsLaneAction(t *testing.T) {
	src := &fakeOrders{orders: []*models.Order{order("a", models.OrderStatusWaiting, 0)}}
	b := newBoard(src, nil)
	ctx := context.Background()

	for _, want := range []models.OrderStatus{
		models.OrderStatusCooking,
		models.OrderStatusReady,
		models.OrderStatusWaiting,
	} {
		o, err := b.Advance(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, want, o.Status)
	}
}

func TestCompleteOnlyFromReady(t *testing.T) {
	src := &fakeOrders{orders: []*models.Order{order("a", models.OrderStatusCooking, 0)}}
	b := newBoard(src, nil)

	_, err := b.Complete(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotServable)

	src.orders[0].Status = models.OrderStatusReady
	o, err := b.Complete(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)

	_, err = b.Advance(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotOnBoard)
}

func TestFailedTransitionSurfacesError(t *testing.T) {
	src := &fakeOrders{orders: []*models.Order{order("a", models.OrderStatusWaiting, 0)}, failErr: errors.New("store down")}
	pub := &recordingPublisher{}
	b := newBoard(src, pub)

	_, err := b.Advance(context.Background(), "a")
	assert.Error(t, err)
	assert.Equal(t, 0, pub.count())
}

func TestRunPublishesUntilCancelled(t *testing.T) {
	pub := &recordingPublisher{}
	b := newBoard(&fakeOrders{}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
