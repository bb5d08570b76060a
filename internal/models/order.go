package models

import (
	"strings"
	"time"
)

// OrderType is how the customer receives the order
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// Valid reports whether t is a known order type
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	}
	return false
}

// PaymentMethod is how an order was paid
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodQRIS PaymentMethod = "qris"
)

// PaymentStatus is the state of the payment record
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Order represents a restaurant order. Money fields are whole currency units.
type Order struct {
	ID          string      `db:"id" json:"id"`
	OrderNumber string      `db:"order_number" json:"order_number"`
	Type        OrderType   `db:"type" json:"type"`
	Status      OrderStatus `db:"status" json:"status"`
	Items       []OrderItem `db:"-" json:"items"`

	Subtotal int64 `db:"subtotal" json:"subtotal"`
	Discount int64 `db:"discount" json:"discount"`
	Tax      int64 `db:"tax" json:"tax"`
	Total    int64 `db:"total" json:"total"`

	TableID *string `db:"table_id" json:"table_id,omitempty"`

	// Customer snapshot copied at creation time
	CustomerName     *string `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone    *string `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerInitials *string `db:"customer_initials" json:"customer_initials,omitempty"`

	Payment *Payment `db:"-" json:"payment,omitempty"`

	CreatedBy string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Version   int64     `db:"version" json:"version"`
}

// OrderItem is one line of an order
type OrderItem struct {
	ID        string  `db:"id" json:"id"`
	OrderID   string  `db:"order_id" json:"order_id"`
	ProductID *string `db:"product_id" json:"product_id,omitempty"`
	Name      string  `db:"name" json:"name"`
	Quantity  int     `db:"quantity" json:"quantity"`
	UnitPrice int64   `db:"unit_price" json:"unit_price"`
	Notes     string  `db:"notes" json:"notes,omitempty"`
}

// LineTotal is price times quantity
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Payment is the payment captured at checkout
type Payment struct {
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Status        PaymentStatus `json:"status"`
	CashReceived  int64         `json:"cash_received,omitempty"`
	Change        int64         `json:"change,omitempty"`
}

// Clone returns a deep copy so callers can never mutate shared state
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}

	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.Payment != nil {
		p := *o.Payment
		c.Payment = &p
	}
	return &c
}

// Initials derives the customer initials shown on kitchen cards
func Initials(name string) string {
	initials := make([]rune, 0, 2)

	for _, part := range strings.Fields(name) {
		initials = append(initials, []rune(strings.ToUpper(part))[0])
		if len(initials) == 2 {
			break
		}
	}

	return string(initials)
}
