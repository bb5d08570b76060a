package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsPairsKeysAndValues(t *testing.T) {
	f := fields([]interface{}{"orderID", "ord-1", "attempt", 2})

	assert.Equal(t, "ord-1", f["orderID"])
	assert.Equal(t, 2, f["attempt"])
}

func TestFieldsMarksMissingValue(t *testing.T) {
	f := fields([]interface{}{"shiftID"})

	assert.Equal(t, "missing", f["shiftID"])
}

func TestWithCarriesFields(t *testing.T) {
	l := Nop().With("component", "kitchen")

	child, ok := l.(*logrusLogger)
	assert.True(t, ok)
	assert.Equal(t, "kitchen", child.entry.Data["component"])
}
