package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/port"
)

type productRepository struct {
	db querier
}

func NewProduct(pool *pgxpool.Pool) port.ProductRepository {
	return &productRepository{db: pool}
}

func NewProductWithTx(tx pgx.Tx) port.ProductRepository {
	return &productRepository{db: tx}
}

func (r *productRepository) GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	var p domain.Product

	row := r.db.QueryRow(ctx,
		`SELECT id, name, sku, price_amount, price_currency, stock_quantity, active
		 FROM products WHERE id = $1`, productID)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("scanProduct: %w", domain.ErrProductNotFound)
		}
		return p, fmt.Errorf("scanProduct: %w", err)
	}

	return product, nil
}

// ReserveStock is the check-and-decrement of the inventory ledger. The
// conditional UPDATE is a single atomic statement: two concurrent
// reservations on the same product serialize on the row lock and the
// loser re-evaluates the stock predicate against the committed value.
func (r *productRepository) ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $2, updated_at = now()
		 WHERE id = $1 AND stock_quantity >= $2`, productID, quantity)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// Denied: re-read to tell "no such product" from "not enough stock"
	// and to report the available quantity.
	var (
		name      string
		available int
	)
	err = r.db.QueryRow(ctx,
		`SELECT name, stock_quantity FROM products WHERE id = $1`, productID).
		Scan(&name, &available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("select stock: %w", domain.ErrProductNotFound)
		}
		return fmt.Errorf("select stock: %w", err)
	}

	return domain.InsufficientStockError{
		ProductID:   productID,
		ProductName: name,
		Requested:   quantity,
		Available:   available,
	}
}

func (r *productRepository) ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $2, updated_at = now()
		 WHERE id = $1`, productID, quantity)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("update stock: %w", domain.ErrProductNotFound)
	}

	return nil
}

func (r *productRepository) InsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	var p domain.Product

	if product.StockQuantity < 0 {
		return p, domain.ValidationError{Field: "stockQuantity", Reason: "must not be negative"}
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO products (name, sku, price_amount, price_currency, stock_quantity, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		product.Name, product.SKU, product.Price.Amount, product.Price.Currency.String(),
		product.StockQuantity, product.Active).
		Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err, "products_sku_key") {
			return p, fmt.Errorf("insert product: duplicate sku %q", product.SKU)
		}
		return p, fmt.Errorf("insert product: %w", err)
	}

	return product, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p            domain.Product
		priceAmount  decimal.Decimal
		currencyCode string
	)

	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &priceAmount, &currencyCode, &p.StockQuantity, &p.Active); err != nil {
		return p, err
	}

	parsedCurrency, err := currency.ParseISO(currencyCode)
	if err != nil {
		return p, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	p.Price = domain.Money{Amount: priceAmount, Currency: parsedCurrency}
	return p, nil
}
