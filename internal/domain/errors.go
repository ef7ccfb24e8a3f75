package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrPaymentNotFound  = errors.New("payment not found")

	ErrDuplicatePayment        = errors.New("payment already exists for this order")
	ErrOrderNotAwaitingPayment = errors.New("order is not awaiting payment")

	ErrForbidden = errors.New("access denied")
)

// InsufficientStockError is returned when a reservation is denied.
// It carries enough data for the caller to render a precise message.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// InvalidTransitionError is returned when a state-machine guard rejects a transition.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}

// InvalidPaymentStateError is returned when a payment operation is attempted
// in a state it is not defined for.
type InvalidPaymentStateError struct {
	Status    PaymentStatus
	Operation string
}

func (e InvalidPaymentStateError) Error() string {
	return fmt.Sprintf("payment cannot be %s in status %s", e.Operation, e.Status)
}

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
