// Package pricing holds the tax and total arithmetic shared by order creation and checkout.
// Amounts are whole currency units.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount          = errors.New("amounts must not be negative")
	ErrDiscountExceedsSubtotal = errors.New("discount exceeds subtotal")
)

// Line is a priced quantity
type Line struct {
	UnitPrice int64
	Quantity  int
}

// Totals is the breakdown of a priced order
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// Calculator applies a fixed tax rate
type Calculator struct {
	rate decimal.Decimal
}

// NewCalculator creates a calculator for rate, e.g. 0.10 for 10%
func NewCalculator(rate decimal.Decimal) Calculator {
	return Calculator{rate: rate}
}

// Rate returns the tax rate
func (c Calculator) Rate() decimal.Decimal {
	return c.rate
}

// Subtotal sums price times quantity
func Subtotal(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.UnitPrice * int64(l.Quantity)
	}
	return sum
}

// Tax returns round(base * rate), halves rounded away from zero
func Tax(base int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(base).Mul(rate).Round(0).IntPart()
}

// Compute prices an order: tax is charged on the discounted subtotal and
// total = subtotal - discount + tax
func (c Calculator) Compute(subtotal, discount int64) (Totals, error) {
	if subtotal < 0 || discount < 0 {
		return Totals{}, ErrNegativeAmount
	}
	if discount > subtotal {
		return Totals{}, fmt.Errorf("%w: %d > %d", ErrDiscountExceedsSubtotal, discount, subtotal)
	}

	tax := Tax(subtotal-discount, c.rate)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal - discount + tax,
	}, nil
}

// ComputeLines prices a set of lines with no discount
func (c Calculator) ComputeLines(lines []Line) Totals {
	// subtotal of validated lines is never negative and there is no discount
	t, _ := c.Compute(Subtotal(lines), 0)
	return t
}
