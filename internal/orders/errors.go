package orders

import (
	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
)

var (
	ErrOrderNotFound      = apperrors.NewNotFoundError("order not found")
	ErrInvalidTransition  = apperrors.NewConflictError("invalid status transition")
	ErrTransitionInFlight = apperrors.NewRateLimitedError("a status change for this order is already in progress")
	ErrInvalidStatus      = apperrors.NewInvalidInputError("unknown order status")
	ErrEmptyOrder         = apperrors.NewInvalidInputError("order has no items")
	ErrInvalidItem        = apperrors.NewInvalidInputError("items need a name, a quantity of at least 1 and a non-negative price")
	ErrInvalidOrderType   = apperrors.NewInvalidInputError("order type must be dine-in, takeaway or delivery")
	ErrInvalidDiscount    = apperrors.NewInvalidInputError("discount must be between 0 and the subtotal")
	ErrInvalidInitial     = apperrors.NewInvalidInputError("orders start as waiting or completed")
)
