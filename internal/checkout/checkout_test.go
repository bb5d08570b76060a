package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/restaurant-pos/internal/models"
	"github.com/vaidashi/restaurant-pos/internal/orders"
	"github.com/vaidashi/restaurant-pos/internal/pricing"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

var (
	nasi = MenuItem{ID: "menu-nasi", Name: "Nasi Goreng", Price: 25000}
	teh  = MenuItem{ID: "menu-teh", Name: "Es Teh", Price: 5000}
)

type fakeCreator struct {
	err   error
	calls []orders.CreateInput
}

func (f *fakeCreator) Create(_ context.Context, in orders.CreateInput) (*models.Order, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}

	lines := make([]pricing.Line, 0, len(in.Items))
	for _, it := range in.Items {
		lines = append(lines, pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	t := pricing.NewCalculator(*in.TaxRate).ComputeLines(lines)

	return &models.Order{
		ID:          "ord-1",
		OrderNumber: "NF-260302-001",
		Status:      in.Status,
		Subtotal:    t.Subtotal,
		Tax:         t.Tax,
		Total:       t.Total,
		Payment:     in.Payment,
	}, nil
}

// slowCreator holds every Create until release is closed
type slowCreator struct {
	fakeCreator
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
}

func newSlowCreator() *slowCreator {
	return &slowCreator{entered: make(chan struct{}, 2), release: make(chan struct{})}
}

func (s *slowCreator) Create(ctx context.Context, in orders.CreateInput) (*models.Order, error) {
	s.entered <- struct{}{}
	<-s.release

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fakeCreator.Create(ctx, in)
}

func (s *slowCreator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newCoordinator(creator OrderCreator) *Coordinator {
	return NewCoordinator(NewCarts(), creator, decimal.RequireFromString("0.10"), logger.Nop())
}

func fillScenarioCart(t *testing.T, c *Cart) {
	t.Helper()
	_, err := c.Add(nasi, 2, "")
	require.NoError(t, err)
	_, err = c.Add(teh, 2, "")
	require.NoError(t, err)
}

func TestCartLinesKeyedByItemAndNotes(t *testing.T) {
	c := &Cart{}

	_, err := c.Add(teh, 1, "")
	require.NoError(t, err)
	_, err = c.Add(teh, 1, "no ice")
	require.NoError(t, err)
	merged, err := c.Add(teh, 2, "")
	require.NoError(t, err)

	assert.Equal(t, 3, merged.Quantity)
	assert.Len(t, c.Lines(), 2)
	assert.NotEqual(t, LineKey(teh.ID, ""), LineKey(teh.ID, "no ice"))
}

func TestCartZeroQuantityRemovesLine(t *testing.T) {
	c := &Cart{}

	line, err := c.Add(nasi, 3, "")
	require.NoError(t, err)

	require.NoError(t, c.SetQuantity(line.Key, 0))
	assert.Empty(t, c.Lines())

	again, err := c.Add(nasi, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Quantity, "re-adding starts a fresh line")

	assert.ErrorIs(t, c.SetQuantity("missing", 1), ErrLineNotFound)
	assert.ErrorIs(t, c.SetQuantity(again.Key, -1), ErrInvalidQuantity)

	_, err = c.Add(nasi, 0, "")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestComputeTotalsScenario(t *testing.T) {
	co := newCoordinator(&fakeCreator{})
	cart := co.Carts().Get("till-1")
	fillScenarioCart(t, cart)

	totals := co.ComputeTotals(cart.Lines())

	assert.Equal(t, Totals{Subtotal: 60000, Tax: 6000, GrandTotal: 66000}, totals)
}

func TestValidatePayment(t *testing.T) {
	change, err := ValidatePayment(models.PaymentMethodCash, 70000, 66000)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), change)

	change, err = ValidatePayment(models.PaymentMethodCash, 66000, 66000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), change)

	_, err = ValidatePayment(models.PaymentMethodCash, 65999, 66000)
	assert.ErrorIs(t, err, ErrInsufficientCash)

	_, err = ValidatePayment(models.PaymentMethodQRIS, 0, 66000)
	assert.NoError(t, err)

	_, err = ValidatePayment("card", 0, 66000)
	assert.ErrorIs(t, err, ErrUnknownPaymentMethod)
}

func TestConfirmPaymentCreatesCompletedOrderAndClearsCart(t *testing.T) {
	creator := &fakeCreator{}
	co := newCoordinator(creator)
	fillScenarioCart(t, co.Carts().Get("till-1"))

	receipt, err := co.ConfirmPayment(context.Background(), "till-1", ConfirmInput{
		Method:       models.PaymentMethodCash,
		CashReceived: 70000,
		OperatorID:   "op-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4000), receipt.Change)
	assert.Equal(t, int64(66000), receipt.Order.Total)
	assert.Empty(t, co.Carts().Get("till-1").Lines())

	require.Len(t, creator.calls, 1)
	call := creator.calls[0]
	assert.Equal(t, models.OrderStatusCompleted, call.Status)
	assert.True(t, call.TaxRate.Equal(decimal.RequireFromString("0.10")))
	assert.Equal(t, models.PaymentStatusPaid, call.Payment.Status)
	assert.Equal(t, int64(70000), call.Payment.CashReceived)
	assert.Len(t, call.Items, 2)
}

func TestConfirmPaymentInsufficientCashCreatesNothing(t *testing.T) {
	creator := &fakeCreator{}
	co := newCoordinator(creator)
	fillScenarioCart(t, co.Carts().Get("till-1"))

	_, err := co.ConfirmPayment(context.Background(), "till-1", ConfirmInput{
		Method:       models.PaymentMethodCash,
		CashReceived: 50000,
	})
	assert.ErrorIs(t, err, ErrInsufficientCash)
	assert.Empty(t, creator.calls)
	assert.Len(t, co.Carts().Get("till-1").Lines(), 2)
}

func TestConfirmPaymentFailureKeepsCart(t *testing.T) {
	creator := &fakeCreator{err: errors.New("insert failed")}
	co := newCoordinator(creator)
	fillScenarioCart(t, co.Carts().Get("till-1"))

	receipt, err := co.ConfirmPayment(context.Background(), "till-1", ConfirmInput{Method: models.PaymentMethodQRIS})
	assert.Error(t, err)
	assert.Nil(t, receipt)
	assert.Len(t, co.Carts().Get("till-1").Lines(), 2)
}

func TestConfirmPaymentRejectsConcurrentSubmit(t *testing.T) {
	creator := newSlowCreator()
	co := newCoordinator(creator)
	fillScenarioCart(t, co.Carts().Get("till-1"))

	pay := ConfirmInput{Method: models.PaymentMethodCash, CashReceived: 70000, OperatorID: "op-1"}

	type result struct {
		receipt *Receipt
		err     error
	}
	first := make(chan result, 1)
	go func() {
		r, err := co.ConfirmPayment(context.Background(), "till-1", pay)
		first <- result{r, err}
	}()
	<-creator.entered

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = co.ConfirmPayment(context.Background(), "till-1", pay)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrCheckoutInFlight)
	}

	// other terminals are not held up
	_, err := co.ConfirmPayment(context.Background(), "till-2", pay)
	assert.ErrorIs(t, err, ErrEmptyCart)

	close(creator.release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, int64(4000), res.receipt.Change)
	assert.Equal(t, 1, creator.callCount())
	assert.Empty(t, co.Carts().Get("till-1").Lines())

	// guard is released once the first checkout finishes
	_, err = co.ConfirmPayment(context.Background(), "till-1", pay)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestConfirmPaymentEmptyCart(t *testing.T) {
	creator := &fakeCreator{}
	co := newCoordinator(creator)

	_, err := co.ConfirmPayment(context.Background(), "till-9", ConfirmInput{Method: models.PaymentMethodQRIS})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, creator.calls)
}

func TestCartsAreIsolatedPerTerminal(t *testing.T) {
	carts := NewCarts()

	_, err := carts.Get("till-1").Add(nasi, 1, "")
	require.NoError(t, err)

	assert.Empty(t, carts.Get("till-2").Lines())
	assert.Equal(t, 2, carts.Len())
}
