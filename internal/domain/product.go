package domain

import (
	"github.com/google/uuid"
)

// Product is owned by the catalog; the core only reads it to snapshot
// prices and to reserve stock.
type Product struct {
	ID            uuid.UUID
	Name          string
	SKU           string
	Price         Money
	StockQuantity int
	Active        bool
}

func (p Product) HasStock(quantity int) bool {
	return p.StockQuantity >= quantity
}
