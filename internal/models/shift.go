package models

import "time"

// ShiftStatus is the lifecycle state of a cashier shift
type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "open"
	ShiftStatusClosed ShiftStatus = "closed"
)

// Shift is a cashier work session bracketed by an opening float and a closing count
type Shift struct {
	ID           string      `db:"id" json:"id"`
	OperatorID   string      `db:"operator_id" json:"operator_id"`
	StartCash    int64       `db:"start_cash" json:"start_cash"`
	Status       ShiftStatus `db:"status" json:"status"`
	OpenedAt     time.Time   `db:"opened_at" json:"opened_at"`
	ClosedAt     *time.Time  `db:"closed_at" json:"closed_at,omitempty"`
	ExpectedCash *int64      `db:"expected_cash" json:"expected_cash,omitempty"`
	ActualCash   *int64      `db:"actual_cash" json:"actual_cash,omitempty"`
	Difference   *int64      `db:"difference" json:"difference,omitempty"`
}

// NewShift opens a shift for the operator
func NewShift(operatorID string, startCash int64) *Shift {
	return &Shift{
		ID:         GenerateID("shf"),
		OperatorID: operatorID,
		StartCash:  startCash,
		Status:     ShiftStatusOpen,
		OpenedAt:   GetCurrentTime(),
	}
}

// Reconciliation is the result of counting the drawer at close
type Reconciliation struct {
	Expected   int64 `json:"expected"`
	Actual     int64 `json:"actual"`
	Difference int64 `json:"difference"`
}

// CashDirection tells whether a manual movement put cash in or took it out
type CashDirection string

const (
	CashIn  CashDirection = "in"
	CashOut CashDirection = "out"
)

// Valid reports whether d is a known direction
func (d CashDirection) Valid() bool {
	return d == CashIn || d == CashOut
}

// CashLog is an append-only manual cash movement recorded against an open shift
type CashLog struct {
	ID          string        `db:"id" json:"id"`
	ShiftID     string        `db:"shift_id" json:"shift_id"`
	Direction   CashDirection `db:"direction" json:"direction"`
	Amount      int64         `db:"amount" json:"amount"`
	Description string        `db:"description" json:"description"`
	CreatedBy   string        `db:"created_by" json:"created_by"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}
