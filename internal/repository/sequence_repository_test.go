package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKeyUsesBusinessTimezone(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	// 18:30 UTC on the 31st is already the 1st in Jakarta (UTC+7)
	ts := time.Date(2026, time.January, 31, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, "260131", DayKey(ts, time.UTC))
	assert.Equal(t, "260201", DayKey(ts, jakarta))
}
