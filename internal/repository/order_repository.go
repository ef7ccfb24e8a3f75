package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/port"
)

// ErrDuplicateOrderNumber signals an order-number collision; the caller
// regenerates the number and retries.
var ErrDuplicateOrderNumber = errors.New("duplicate order number")

type orderRepository struct {
	db querier
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{db: pool}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{db: tx}
}

const orderColumns = `id, order_number, customer_id, status,
	subtotal, discount, shipping_cost, total, currency,
	shipping_street, shipping_number, shipping_complement, shipping_neighborhood,
	shipping_city, shipping_state, shipping_zip_code,
	notes, paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func (r *orderRepository) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	var o domain.Order

	if len(order.Items) == 0 {
		return o, domain.ValidationError{Field: "items", Reason: "order has no items"}
	}

	inserted, err := WithTx(ctx, r.db, func(tx pgx.Tx) (domain.Order, error) {
		addr := addressFields(order.ShippingAddress)

		err := tx.QueryRow(ctx,
			`INSERT INTO orders (order_number, customer_id, status,
			                     subtotal, discount, shipping_cost, total, currency,
			                     shipping_street, shipping_number, shipping_complement, shipping_neighborhood,
			                     shipping_city, shipping_state, shipping_zip_code, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			 RETURNING id, created_at, updated_at`,
			order.Number, order.CustomerID, string(order.Status),
			order.Subtotal.Amount, order.Discount.Amount, order.ShippingCost.Amount, order.Total.Amount,
			order.Subtotal.Currency.String(),
			addr[0], addr[1], addr[2], addr[3], addr[4], addr[5], addr[6],
			order.Notes).
			Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "orders_order_number_key") {
				return o, fmt.Errorf("insert order: %w", ErrDuplicateOrderNumber)
			}
			return o, fmt.Errorf("insert order: %w", err)
		}

		for _, item := range order.Items {
			_, err := tx.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, name, sku,
				                          unit_price_amount, unit_price_currency, quantity, total_amount)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				order.ID, item.ProductID, item.Name, item.SKU,
				item.UnitPrice.Amount, item.UnitPrice.Currency.String(), item.Quantity, item.Total.Amount)
			if err != nil {
				return o, fmt.Errorf("insert order item: %w", err)
			}
		}

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return inserted, nil
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return r.getOrder(ctx, "id = $1", orderID, false)
}

func (r *orderRepository) GetOrderByNumber(ctx context.Context, number string) (domain.Order, error) {
	return r.getOrder(ctx, "order_number = $1", number, false)
}

// GetOrderForUpdate must run inside a caller-provided transaction; the
// row lock is released on commit or rollback.
func (r *orderRepository) GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return r.getOrder(ctx, "id = $1", orderID, true)
}

func (r *orderRepository) getOrder(ctx context.Context, where string, arg any, forUpdate bool) (domain.Order, error) {
	var o domain.Order

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where
	if forUpdate {
		query += " FOR UPDATE"
	}

	order, err := WithTx(ctx, r.db, func(tx pgx.Tx) (domain.Order, error) {
		order, err := scanOrder(tx.QueryRow(ctx, query, arg))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return o, fmt.Errorf("scanOrder: %w", domain.ErrOrderNotFound)
			}
			return o, fmt.Errorf("scanOrder: %w", err)
		}

		itemsByOrder, err := loadItems(ctx, tx, []uuid.UUID{order.ID})
		if err != nil {
			return o, fmt.Errorf("loadItems: %w", err)
		}
		order.Items = itemsByOrder[order.ID]

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return order, nil
}

func (r *orderRepository) UpdateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	var o domain.Order

	err := r.db.QueryRow(ctx,
		`UPDATE orders
		 SET status        = $2,
		     subtotal      = $3,
		     discount      = $4,
		     shipping_cost = $5,
		     total         = $6,
		     notes         = $7,
		     paid_at       = $8,
		     shipped_at    = $9,
		     delivered_at  = $10,
		     cancelled_at  = $11,
		     updated_at    = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		order.ID, string(order.Status),
		order.Subtotal.Amount, order.Discount.Amount, order.ShippingCost.Amount, order.Total.Amount,
		order.Notes, order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt).
		Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("update order: %w", domain.ErrOrderNotFound)
		}
		return o, fmt.Errorf("update order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) SearchOrders(ctx context.Context, filter domain.OrderFilter, page domain.Page) ([]domain.Order, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, fmt.Errorf("filter.Validate: %w", err)
	}
	page = page.Normalize()

	statuses := lo.Map(filter.Statuses, func(s domain.OrderStatus, _ int) string { return string(s) })

	var createdAfter, createdBefore *time.Time
	if filter.CreatedAt != nil {
		createdAfter = filter.CreatedAt.After
		createdBefore = filter.CreatedAt.Before
	}

	args := []any{
		nilSliceIfEmpty(filter.CustomerIDs),
		nilSliceIfEmpty(statuses),
		createdAfter,
		createdBefore,
	}

	where := `($1::uuid[] IS NULL OR customer_id = ANY($1))
	      AND ($2::text[] IS NULL OR status = ANY($2))
	      AND ($3::timestamptz IS NULL OR created_at >= $3)
	      AND ($4::timestamptz IS NULL OR created_at <= $4)`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT $5 OFFSET $6`,
		append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanOrder: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows.Err: %w", err)
	}

	if len(orders) == 0 {
		return nil, total, nil
	}

	// Batched item load instead of one query per order.
	orderIDs := lo.Map(orders, func(o domain.Order, _ int) uuid.UUID { return o.ID })
	itemsByOrder, err := loadItems(ctx, r.db, orderIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("loadItems: %w", err)
	}
	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
	}

	return orders, total, nil
}

func (r *orderRepository) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OrderStatus]int64, len(domain.OrderStatuses()))
	for _, status := range domain.OrderStatuses() {
		counts[status] = 0
	}

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		orderStatus, err := domain.ToOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
		}
		counts[orderStatus] = count
	}

	return counts, rows.Err()
}

func loadItems(ctx context.Context, db querier, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	rows, err := db.Query(ctx,
		`SELECT order_id, product_id, name, sku, unit_price_amount, unit_price_currency, quantity, total_amount
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	itemsByOrder := make(map[uuid.UUID][]domain.OrderItem)
	for rows.Next() {
		var (
			orderID      uuid.UUID
			item         domain.OrderItem
			unitAmount   decimal.Decimal
			currencyCode string
			totalAmount  decimal.Decimal
		)
		err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.SKU,
			&unitAmount, &currencyCode, &item.Quantity, &totalAmount)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		parsedCurrency, err := currency.ParseISO(currencyCode)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
		}

		item.UnitPrice = domain.Money{Amount: unitAmount, Currency: parsedCurrency}
		item.Total = domain.Money{Amount: totalAmount, Currency: parsedCurrency}
		itemsByOrder[orderID] = append(itemsByOrder[orderID], item)
	}

	return itemsByOrder, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o            domain.Order
		status       string
		subtotal     decimal.Decimal
		discount     decimal.Decimal
		shipping     decimal.Decimal
		total        decimal.Decimal
		currencyCode string
		addr         [7]*string
	)

	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &status,
		&subtotal, &discount, &shipping, &total, &currencyCode,
		&addr[0], &addr[1], &addr[2], &addr[3], &addr[4], &addr[5], &addr[6],
		&o.Notes, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}

	orderStatus, err := domain.ToOrderStatus(status)
	if err != nil {
		return o, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}
	o.Status = orderStatus

	parsedCurrency, err := currency.ParseISO(currencyCode)
	if err != nil {
		return o, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	o.Subtotal = domain.Money{Amount: subtotal, Currency: parsedCurrency}
	o.Discount = domain.Money{Amount: discount, Currency: parsedCurrency}
	o.ShippingCost = domain.Money{Amount: shipping, Currency: parsedCurrency}
	o.Total = domain.Money{Amount: total, Currency: parsedCurrency}
	o.ShippingAddress = mapAddress(addr)

	return o, nil
}

func addressFields(a *domain.Address) [7]*string {
	var fields [7]*string
	if a == nil {
		return fields
	}
	return [7]*string{
		lo.ToPtr(a.Street), lo.ToPtr(a.Number), lo.ToPtr(a.Complement), lo.ToPtr(a.Neighborhood),
		lo.ToPtr(a.City), lo.ToPtr(a.State), lo.ToPtr(a.ZipCode),
	}
}

func mapAddress(fields [7]*string) *domain.Address {
	empty := true
	for _, f := range fields {
		if lo.FromPtr(f) != "" {
			empty = false
			break
		}
	}
	if empty {
		return nil
	}

	return &domain.Address{
		Street:       lo.FromPtr(fields[0]),
		Number:       lo.FromPtr(fields[1]),
		Complement:   lo.FromPtr(fields[2]),
		Neighborhood: lo.FromPtr(fields[3]),
		City:         lo.FromPtr(fields[4]),
		State:        lo.FromPtr(fields[5]),
		ZipCode:      lo.FromPtr(fields[6]),
	}
}

func nilSliceIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
