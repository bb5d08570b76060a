package models

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusWaiting   OrderStatus = "waiting"
	OrderStatusCooking   OrderStatus = "cooking"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// allowedTransitions defines valid status transitions.
// ready -> waiting is the recall edge used to undo a premature "done".
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusWaiting: {OrderStatusCooking, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusCooking: {OrderStatusReady, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusReady:   {OrderStatusCompleted, OrderStatusWaiting, OrderStatusRefunded, OrderStatusCancelled},
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusWaiting, OrderStatusCooking, OrderStatusReady,
		OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled:
		return true
	}
	return false
}

// Active reports whether the order is still on the kitchen board
func (s OrderStatus) Active() bool {
	switch s {
	case OrderStatusWaiting, OrderStatusCooking, OrderStatusReady:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the order state machine
func CanTransition(from, to OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
