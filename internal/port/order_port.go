package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/ordermgmt/ordercore/internal/domain"
)

type OrderRepository interface {
	InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (domain.Order, error)

	// GetOrderForUpdate locks the order row for the duration of the
	// surrounding transaction, so a concurrent read-modify-write on the
	// same order observes either the pre- or post-transition state,
	// never a mix.
	GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (domain.Order, error)

	// UpdateOrder persists status, totals, notes and lifecycle timestamps.
	// Line items are immutable after insertion.
	UpdateOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	SearchOrders(ctx context.Context, filter domain.OrderFilter, page domain.Page) ([]domain.Order, int64, error)

	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error)
}
