package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

type fakeSink struct {
	applied []*models.Order
	synced  map[string]int64
	syncErr error
}

func (s *fakeSink) ApplyRemote(order *models.Order) bool {
	s.applied = append(s.applied, order)
	return true
}

func (s *fakeSink) SyncRemote(_ context.Context, id string, version int64) error {
	if s.syncErr != nil {
		return s.syncErr
	}
	s.synced[id] = version
	return nil
}

func consumerMessage(t *testing.T, msg *models.OutboxMessage) *sarama.ConsumerMessage {
	t.Helper()
	return &sarama.ConsumerMessage{Topic: "pos.events", Value: msg.Payload}
}

func TestOrderCreatedIsAppliedToStore(t *testing.T) {
	sink := &fakeSink{synced: map[string]int64{}}
	h := NewOrderEventsHandler(sink, logger.Nop())

	order := &models.Order{ID: "ord-1", OrderNumber: "NF-261018-001", Status: models.OrderStatusWaiting, Version: 1, CreatedAt: time.Now()}
	msg, err := models.NewOrderCreatedEvent(order)
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), consumerMessage(t, msg)))

	require.Len(t, sink.applied, 1)
	assert.Equal(t, "NF-261018-001", sink.applied[0].OrderNumber)
	assert.Equal(t, int64(1), sink.applied[0].Version)
}

func TestStatusChangeSyncsByVersion(t *testing.T) {
	sink := &fakeSink{synced: map[string]int64{}}
	h := NewOrderEventsHandler(sink, logger.Nop())

	order := &models.Order{ID: "ord-1", Status: models.OrderStatusCooking, Version: 3}
	msg, err := models.NewOrderStatusChangedEvent(order, models.OrderStatusWaiting)
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), consumerMessage(t, msg)))
	assert.Equal(t, int64(3), sink.synced["ord-1"])
}

func TestSyncFailureIsRedelivered(t *testing.T) {
	sink := &fakeSink{synced: map[string]int64{}, syncErr: errors.New("db down")}
	h := NewOrderEventsHandler(sink, logger.Nop())

	msg, err := models.NewOrderStatusChangedEvent(&models.Order{ID: "ord-1", Status: models.OrderStatusReady, Version: 4}, models.OrderStatusCooking)
	require.NoError(t, err)

	assert.Error(t, h.HandleMessage(context.Background(), consumerMessage(t, msg)))
}

func TestUnrelatedAndMalformedEventsAreAcknowledged(t *testing.T) {
	sink := &fakeSink{synced: map[string]int64{}}
	h := NewOrderEventsHandler(sink, logger.Nop())

	shiftMsg, err := models.NewShiftOpenedEvent(&models.Shift{ID: "shf-1"})
	require.NoError(t, err)

	assert.NoError(t, h.HandleMessage(context.Background(), consumerMessage(t, shiftMsg)))
	assert.NoError(t, h.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))
	assert.Empty(t, sink.applied)
	assert.Empty(t, sink.synced)
}
