package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
	"github.com/vaidashi/restaurant-pos/pkg/retry"
)

type fakeStore struct {
	mu        sync.Mutex
	pending   []*models.OutboxMessage
	status    map[int64]models.OutboxStatus
	attempts  map[int64]int
	lastError map[int64]string
	dead      []string
}

func newFakeStore(msgs ...*models.OutboxMessage) *fakeStore {
	return &fakeStore{
		pending:   msgs,
		status:    make(map[int64]models.OutboxStatus),
		attempts:  make(map[int64]int),
		lastError: make(map[int64]string),
	}
}

func (s *fakeStore) GetPendingMessages(_ context.Context, limit int) ([]*models.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OutboxMessage
	for _, m := range s.pending {
		if st, ok := s.status[m.ID]; ok && st != models.OutboxStatusPending {
			continue
		}
		cp := *m
		cp.ProcessingAttempts = s.attempts[m.ID]
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAsProcessing(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = models.OutboxStatusProcessing
	s.attempts[id]++
	return nil
}

func (s *fakeStore) MarkAsPending(_ context.Context, id int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = models.OutboxStatusPending
	s.lastError[id] = errorMessage
	return nil
}

func (s *fakeStore) MarkAsCompleted(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = models.OutboxStatusCompleted
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, m *models.OutboxMessage, _, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[m.ID] = models.OutboxStatusFailed
	s.dead = append(s.dead, reason)
	return nil
}

func message(id int64, eventType string) *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   "ord-1",
		EventType:     eventType,
		Payload:       []byte(`{"event_type":"` + eventType + `","event_id":"evt-1"}`),
		Status:        models.OutboxStatusPending,
	}
}

func newTestProcessor(store Store, maxRetries int) *Processor {
	return NewProcessor(store, ProcessorConfig{
		PollingInterval: time.Second,
		BatchSize:       10,
		MaxRetries:      maxRetries,
	}, logger.Nop())
}

func TestProcessorCompletesHandledMessages(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderCreated))
	p := newTestProcessor(store, 3)

	var got []string
	p.RegisterHandler(models.EventOrderCreated, HandlerFunc(func(_ context.Context, m *models.OutboxMessage) error {
		got = append(got, m.AggregateID)
		return nil
	}))

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []string{"ord-1"}, got)
	assert.Equal(t, models.OutboxStatusCompleted, store.status[1])
}

func TestProcessorRetriesThenDeadLetters(t *testing.T) {
	store := newFakeStore(message(1, models.EventOrderStatusChanged))
	p := newTestProcessor(store, 2)
	p.RegisterHandler(models.EventOrderStatusChanged, HandlerFunc(func(context.Context, *models.OutboxMessage) error {
		return errors.New("broker down")
	}))

	require.NoError(t, p.processBatch(context.Background()))
	assert.Equal(t, models.OutboxStatusPending, store.status[1])
	assert.Equal(t, "broker down", store.lastError[1])

	require.NoError(t, p.processBatch(context.Background()))
	assert.Equal(t, models.OutboxStatusFailed, store.status[1])
	require.Len(t, store.dead, 1)
	assert.Contains(t, store.dead[0], "2 attempts")
}

func TestProcessorDeadLettersUnknownEvents(t *testing.T) {
	store := newFakeStore(message(7, "menu_updated"))
	p := newTestProcessor(store, 3)

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, models.OutboxStatusFailed, store.status[7])
	assert.Equal(t, []string{"No handler available"}, store.dead)
}

type fakeSender struct {
	err     error
	calls   int
	key     string
	headers map[string]string
}

func (s *fakeSender) SendMessage(_ context.Context, _ string, key string, _ []byte, headers map[string]string) error {
	s.calls++
	s.key = key
	s.headers = headers
	return s.err
}

func TestKafkaHandlerKeysByAggregate(t *testing.T) {
	sender := &fakeSender{}
	h := NewKafkaHandler(sender, "pos.events", circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, ResetTimeout: time.Minute}), logger.Nop())

	require.NoError(t, h.HandleMessage(context.Background(), message(1, models.EventOrderCreated)))

	assert.Equal(t, "ord-1", sender.key)
	assert.Equal(t, models.EventOrderCreated, sender.headers["event_type"])
}

func TestKafkaHandlerStopsCallingWhenCircuitOpens(t *testing.T) {
	sender := &fakeSender{err: errors.New("no leader")}
	h := NewKafkaHandler(sender, "pos.events", circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, ResetTimeout: time.Minute}), logger.Nop())

	for i := 0; i < 2; i++ {
		require.Error(t, h.HandleMessage(context.Background(), message(1, models.EventOrderCreated)))
	}

	err := h.HandleMessage(context.Background(), message(1, models.EventOrderCreated))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavailable))
	assert.Equal(t, 2, sender.calls)
}

type fakePublisher struct {
	eventTypes []string
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, _ []byte) error {
	p.eventTypes = append(p.eventTypes, eventType)
	return nil
}

func TestFanoutJoinsErrors(t *testing.T) {
	pub := &fakePublisher{}
	failing := HandlerFunc(func(context.Context, *models.OutboxMessage) error { return errors.New("kafka down") })

	err := Fanout{NewAMQPHandler(pub), failing, NewLoggingHandler(logger.Nop())}.
		HandleMessage(context.Background(), message(1, models.EventShiftClosed))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka down")
	assert.Equal(t, []string{models.EventShiftClosed}, pub.eventTypes)
}

type fakeDeadLetters struct {
	pending   []*models.DeadLetterMessage
	status    map[int64]models.DeadLetterStatus
	discarded map[int64]string
}

func (s *fakeDeadLetters) GetPendingMessages(context.Context, int) ([]*models.DeadLetterMessage, error) {
	return s.pending, nil
}

func (s *fakeDeadLetters) MarkAsRetrying(_ context.Context, id int64) error {
	s.status[id] = models.DeadLetterStatusRetrying
	return nil
}

func (s *fakeDeadLetters) MarkAsResolved(_ context.Context, id int64) error {
	s.status[id] = models.DeadLetterStatusResolved
	return nil
}

func (s *fakeDeadLetters) MarkAsDiscarded(_ context.Context, id int64, reason string) error {
	s.status[id] = models.DeadLetterStatusDiscarded
	s.discarded[id] = reason
	return nil
}

func TestDeadLetterProcessorResolvesAndDiscards(t *testing.T) {
	store := &fakeDeadLetters{
		pending: []*models.DeadLetterMessage{
			{ID: 1, OriginalMessageID: 11, AggregateID: "ord-1", EventType: models.EventOrderCreated},
			{ID: 2, OriginalMessageID: 12, AggregateID: "shf-1", EventType: models.EventShiftClosed},
		},
		status:    make(map[int64]models.DeadLetterStatus),
		discarded: make(map[int64]string),
	}

	p := NewDeadLetterProcessor(store, DeadLetterProcessorConfig{
		PollingInterval: time.Second,
		BatchSize:       10,
		MaxRetries:      2,
		BackoffStrategy: &retry.ConstantBackoff{Interval: time.Millisecond},
	}, logger.Nop())

	var seen []int64
	p.RegisterHandler(models.EventOrderCreated, HandlerFunc(func(_ context.Context, m *models.OutboxMessage) error {
		seen = append(seen, m.ID)
		return nil
	}))
	p.RegisterHandler(models.EventShiftClosed, HandlerFunc(func(context.Context, *models.OutboxMessage) error {
		return errors.New("still down")
	}))

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []int64{11}, seen)
	assert.Equal(t, models.DeadLetterStatusResolved, store.status[1])
	assert.Equal(t, models.DeadLetterStatusDiscarded, store.status[2])
	assert.Contains(t, store.discarded[2], "still down")
}
