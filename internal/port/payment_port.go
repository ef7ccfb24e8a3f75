package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/ordermgmt/ordercore/internal/domain"
)

type PaymentRepository interface {
	// InsertPayment fails with domain.ErrDuplicatePayment when the order
	// already has a payment; the uniqueness is enforced by a constraint,
	// not only by a prior read.
	InsertPayment(ctx context.Context, payment domain.Payment) (domain.Payment, error)

	GetPayment(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (domain.Payment, error)

	UpdatePayment(ctx context.Context, payment domain.Payment) (domain.Payment, error)
}
