package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/ordermgmt/ordercore/internal/domain"
)

// ProductRepository is the inventory ledger: stock rows are mutated only
// through ReserveStock and ReleaseStock, never by direct assignment.
type ProductRepository interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error)

	// ReserveStock atomically checks availability and decrements in a
	// single statement. On denial it returns domain.InsufficientStockError
	// with the requested and available quantities.
	ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) error

	// ReleaseStock atomically increments available quantity. It has no
	// upper bound; capacity limits are a catalog concern.
	ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) error

	InsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}
