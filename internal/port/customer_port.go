package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/ordermgmt/ordercore/internal/domain"
)

type CustomerRepository interface {
	GetCustomer(ctx context.Context, customerID uuid.UUID) (domain.Customer, error)

	InsertCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
}
