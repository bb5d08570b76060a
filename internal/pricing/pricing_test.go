package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLinesCheckoutScenario(t *testing.T) {
	c := NewCalculator(decimal.RequireFromString("0.10"))

	totals := c.ComputeLines([]Line{
		{UnitPrice: 25000, Quantity: 2},
		{UnitPrice: 5000, Quantity: 2},
	})

	assert.Equal(t, int64(60000), totals.Subtotal)
	assert.Equal(t, int64(6000), totals.Tax)
	assert.Equal(t, int64(66000), totals.Total)
}

func TestComputeTaxesDiscountedSubtotal(t *testing.T) {
	c := NewCalculator(decimal.RequireFromString("0.08"))

	totals, err := c.Compute(50000, 10000)
	require.NoError(t, err)

	assert.Equal(t, int64(3200), totals.Tax)
	assert.Equal(t, int64(43200), totals.Total)
	assert.Equal(t, totals.Subtotal-totals.Discount+totals.Tax, totals.Total)
}

func TestComputeRejectsBadDiscounts(t *testing.T) {
	c := NewCalculator(decimal.RequireFromString("0.10"))

	_, err := c.Compute(1000, 1001)
	assert.ErrorIs(t, err, ErrDiscountExceedsSubtotal)

	_, err = c.Compute(1000, -1)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	totals, err := c.Compute(1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.Total)
}

func TestTaxRoundsHalfAwayFromZero(t *testing.T) {
	rate := decimal.RequireFromString("0.10")

	assert.Equal(t, int64(1), Tax(5, rate))
	assert.Equal(t, int64(0), Tax(4, rate))
	assert.Equal(t, int64(2), Tax(15, rate))
}
