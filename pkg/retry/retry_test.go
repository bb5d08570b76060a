package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker unavailable")

func quickConfig(attempts int, retryable ...error) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		BackoffStrategy: &ConstantBackoff{Interval: time.Millisecond},
		RetryableErrors: retryable,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errBroker
		}
		return nil
	}, quickConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("bad payload")
	calls := 0

	err := Retry(context.Background(), func() error {
		calls++
		return permanent
	}, quickConfig(5, errBroker))

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithDiscardRunsPolicy(t *testing.T) {
	discarded := false

	err := RetryWithDiscard(context.Background(), func() error { return errBroker }, quickConfig(2), func(err error) error {
		discarded = true
		return err
	})

	assert.ErrorIs(t, err, errBroker)
	assert.True(t, discarded)
}

func TestExponentialBackoffIsCapped(t *testing.T) {
	b := &ExponentialBackoff{InitialInterval: time.Second, MaxInterval: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, b.NextBackoff(1))
	assert.Equal(t, 4*time.Second, b.NextBackoff(3))
	assert.Equal(t, 5*time.Second, b.NextBackoff(10))
}
