package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordermgmt/ordercore/internal/cache"
	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/outbox"
	"github.com/ordermgmt/ordercore/internal/repository"
	"github.com/ordermgmt/ordercore/pkg/contracts"
	"github.com/ordermgmt/ordercore/pkg/metrics"
)

const (
	orderNumberAttempts = 3

	orderViewTTL = 30 * time.Second
	statsTTL     = 10 * time.Second
)

type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type CreateOrderInput struct {
	// CustomerID may be zero, in which case the acting customer owns the
	// order. Elevated roles may create orders for any customer.
	CustomerID      uuid.UUID
	Items           []CreateOrderItemInput
	ShippingAddress *domain.Address
	Notes           string
	CouponCode      string
}

// OrderService orchestrates the inventory ledger, the order aggregate
// and the pricing policy. Every mutating operation is one transaction:
// it commits whole or leaves no trace.
type OrderService struct {
	pool    *pgxpool.Pool
	cache   cache.Cache           // optional, nil-safe
	metrics *metrics.OrderMetrics // optional, nil-safe
	now     func() time.Time
}

func NewOrderService(pool *pgxpool.Pool, c cache.Cache, m *metrics.OrderMetrics) *OrderService {
	return &OrderService{
		pool:    pool,
		cache:   c,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Principal, input CreateOrderInput) (OrderView, error) {
	var v OrderView

	if len(input.Items) == 0 {
		return v, domain.ValidationError{Field: "items", Reason: "at least one item is required"}
	}

	customerID := input.CustomerID
	if customerID == uuid.Nil {
		customerID = actor.CustomerID
	}
	if err := Authorize(actor, customerID); err != nil {
		return v, err
	}

	var (
		order domain.Order
		err   error
	)

	// Retried only on an order-number collision; any other failure
	// aborts with the unit rolled back, stock included.
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order, err = repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Order, error) {
			return s.createOrderTx(ctx, tx, customerID, input)
		})
		if err == nil || !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			break
		}
	}
	if err != nil {
		var stockErr domain.InsufficientStockError
		if errors.As(err, &stockErr) && s.metrics != nil {
			s.metrics.ReservationsDenied.Inc()
		}
		return v, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.invalidateStats(ctx)

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID, "order_number", order.Number, "total", order.Total.String())

	return mapOrderToView(order), nil
}

func (s *OrderService) createOrderTx(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, input CreateOrderInput) (domain.Order, error) {
	var o domain.Order

	products := repository.NewProductWithTx(tx)
	orders := repository.NewOrderWithTx(tx)
	customers := repository.NewCustomerWithTx(tx)

	customer, err := customers.GetCustomer(ctx, customerID)
	if err != nil {
		return o, fmt.Errorf("customers.GetCustomer: %w", err)
	}

	order := domain.NewOrder(GenerateOrderNumber(s.now()), customerID, domain.DefaultCurrency)
	order.Notes = input.Notes

	if input.ShippingAddress != nil {
		order.ShippingAddress = input.ShippingAddress
	} else if customer.Address != nil {
		order.ShippingAddress = customer.Address
	}

	// Reservations precede order persistence; if any fails, the whole
	// unit rolls back and no stock change survives.
	for _, itemInput := range input.Items {
		product, err := products.GetProduct(ctx, itemInput.ProductID)
		if err != nil {
			return o, fmt.Errorf("products.GetProduct: %w", err)
		}
		if !product.Active {
			return o, domain.ValidationError{Field: "productId", Reason: fmt.Sprintf("product %q is not active", product.Name)}
		}

		item, err := domain.NewOrderItem(product, itemInput.Quantity)
		if err != nil {
			return o, err
		}

		if err := products.ReserveStock(ctx, product.ID, itemInput.Quantity); err != nil {
			return o, fmt.Errorf("products.ReserveStock: %w", err)
		}

		order, err = order.WithItem(item)
		if err != nil {
			return o, fmt.Errorf("order.WithItem: %w", err)
		}
	}

	order, err = order.WithShippingCost(ShippingCost(order))
	if err != nil {
		return o, fmt.Errorf("order.WithShippingCost: %w", err)
	}

	order, err = order.WithDiscount(CouponDiscount(input.CouponCode, order.Subtotal))
	if err != nil {
		return o, fmt.Errorf("order.WithDiscount: %w", err)
	}

	inserted, err := orders.InsertOrder(ctx, order)
	if err != nil {
		return o, fmt.Errorf("orders.InsertOrder: %w", err)
	}

	if err := s.publish(ctx, tx, contracts.EventOrderCreated, inserted, map[string]any{
		"order_number": inserted.Number,
		"total":        inserted.Total.Amount.StringFixed(2),
		"currency":     inserted.Total.Currency.String(),
	}); err != nil {
		return o, err
	}

	return inserted, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Principal, orderID uuid.UUID) (OrderView, error) {
	var v OrderView

	if view, ok := s.cachedOrderView(ctx, actor, orderID.String()); ok {
		return view, nil
	}

	order, err := repository.NewOrder(s.pool).GetOrder(ctx, orderID)
	if err != nil {
		return v, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := Authorize(actor, order.CustomerID); err != nil {
		return v, err
	}

	view := mapOrderToView(order)
	s.cacheOrderView(ctx, view)
	return view, nil
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, actor domain.Principal, number string) (OrderView, error) {
	var v OrderView

	order, err := repository.NewOrder(s.pool).GetOrderByNumber(ctx, number)
	if err != nil {
		return v, fmt.Errorf("orders.GetOrderByNumber: %w", err)
	}

	if err := Authorize(actor, order.CustomerID); err != nil {
		return v, err
	}

	return mapOrderToView(order), nil
}

func (s *OrderService) ListOrders(ctx context.Context, actor domain.Principal, filter domain.OrderFilter, page domain.Page) (PageView[OrderView], error) {
	var v PageView[OrderView]

	// Customers only see their own orders regardless of the filter.
	if !actor.Elevated() {
		filter.CustomerIDs = []uuid.UUID{actor.CustomerID}
	}

	page = page.Normalize()
	orders, total, err := repository.NewOrder(s.pool).SearchOrders(ctx, filter, page)
	if err != nil {
		return v, fmt.Errorf("orders.SearchOrders: %w", err)
	}

	items := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		items = append(items, mapOrderToView(order))
	}

	return PageView[OrderView]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// UpdateOrderStatus dispatches to the aggregate's guarded transition.
// The order row stays locked for the whole read-modify-write, so a
// racing cancel and deliver resolve deterministically: one commits, the
// other fails its guard.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor domain.Principal, orderID uuid.UUID, target domain.OrderStatus, reason string) (OrderView, error) {
	var v OrderView

	if err := AuthorizeElevated(actor); err != nil {
		return v, err
	}

	order, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Order, error) {
		return s.transitionTx(ctx, tx, orderID, target, reason)
	})
	if err != nil {
		return v, err
	}

	if target == domain.OrderStatusCancelled && s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	s.invalidateOrder(ctx, orderID)

	slog.InfoContext(ctx, "order status updated", "order_id", orderID, "status", order.Status)

	return mapOrderToView(order), nil
}

func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Principal, orderID uuid.UUID, reason string) (OrderView, error) {
	var v OrderView

	order, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Order, error) {
		var o domain.Order

		orders := repository.NewOrderWithTx(tx)

		order, err := orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return o, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
		}

		if err := Authorize(actor, order.CustomerID); err != nil {
			return o, err
		}

		return s.cancelLockedTx(ctx, tx, order, reason)
	})
	if err != nil {
		return v, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	s.invalidateOrder(ctx, orderID)

	slog.InfoContext(ctx, "order cancelled", "order_id", orderID, "reason", reason)

	return mapOrderToView(order), nil
}

func (s *OrderService) GetOrderStats(ctx context.Context, actor domain.Principal) (OrderStats, error) {
	var stats OrderStats

	if err := AuthorizeElevated(actor); err != nil {
		return stats, err
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cache.GenerateKey("stats", "all")); err == nil && cached != "" {
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return stats, nil
			}
		}
	}

	counts, err := repository.NewOrder(s.pool).CountByStatus(ctx)
	if err != nil {
		return stats, fmt.Errorf("orders.CountByStatus: %w", err)
	}

	stats = mapStats(counts)

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(ctx, s.cache.GenerateKey("stats", "all"), string(data), statsTTL)
		}
	}

	return stats, nil
}

// transitionTx runs inside a transaction with the order row locked.
func (s *OrderService) transitionTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, target domain.OrderStatus, reason string) (domain.Order, error) {
	var o domain.Order

	orders := repository.NewOrderWithTx(tx)

	order, err := orders.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
	}

	now := s.now()

	switch target {
	case domain.OrderStatusPaid:
		order, err = order.ConfirmPayment(now)
	case domain.OrderStatusProcessing:
		order, err = order.MoveToProcessing()
	case domain.OrderStatusShipped:
		order, err = order.Ship(now)
	case domain.OrderStatusDelivered:
		order, err = order.Deliver(now)
	case domain.OrderStatusCancelled:
		return s.cancelLockedTx(ctx, tx, order, reason)
	default:
		return o, domain.InvalidTransitionError{From: order.Status, To: target}
	}
	if err != nil {
		return o, err
	}

	updated, err := orders.UpdateOrder(ctx, order)
	if err != nil {
		return o, fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	if err := s.publish(ctx, tx, contracts.EventOrderStatusChanged, updated, map[string]any{
		"status": string(updated.Status),
	}); err != nil {
		return o, err
	}

	return updated, nil
}

// cancelLockedTx cancels an already-locked order: every line item's
// stock is released before the CANCELLED status is persisted, all in
// the caller's transaction. Cancel always restocks, even for shipped
// orders; only DELIVERED blocks it.
func (s *OrderService) cancelLockedTx(ctx context.Context, tx pgx.Tx, order domain.Order, reason string) (domain.Order, error) {
	var o domain.Order

	orders := repository.NewOrderWithTx(tx)
	products := repository.NewProductWithTx(tx)

	cancelled, err := order.Cancel(s.now())
	if err != nil {
		return o, err
	}

	for _, item := range cancelled.Items {
		if err := products.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			return o, fmt.Errorf("products.ReleaseStock: %w", err)
		}
	}

	if reason != "" {
		cancelled = cancelled.AppendNote("cancelled: " + reason)
	}

	updated, err := orders.UpdateOrder(ctx, cancelled)
	if err != nil {
		return o, fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	if err := s.publish(ctx, tx, contracts.EventOrderCancelled, updated, map[string]any{
		"reason": reason,
	}); err != nil {
		return o, err
	}

	return updated, nil
}

func (s *OrderService) publish(ctx context.Context, tx pgx.Tx, eventType string, order domain.Order, payload map[string]any) error {
	event := contracts.Event{
		EventID:   uuid.NewString(),
		OrderID:   order.ID.String(),
		Type:      eventType,
		CreatedAt: s.now(),
		Payload:   payload,
	}

	if err := outbox.Insert(ctx, tx, contracts.TopicOrderEvents, event.OrderID, event); err != nil {
		return fmt.Errorf("outbox.Insert: %w", err)
	}
	return nil
}

func (s *OrderService) cachedOrderView(ctx context.Context, actor domain.Principal, orderID string) (OrderView, bool) {
	var view OrderView

	if s.cache == nil {
		return view, false
	}

	cached, err := s.cache.Get(ctx, s.cache.GenerateKey("order", orderID))
	if err != nil || cached == "" {
		return view, false
	}
	if err := json.Unmarshal([]byte(cached), &view); err != nil {
		return view, false
	}

	// Authorization applies on cache hits too.
	ownerID, err := uuid.Parse(view.CustomerID)
	if err != nil || Authorize(actor, ownerID) != nil {
		return OrderView{}, false
	}

	return view, true
}

func (s *OrderService) cacheOrderView(ctx context.Context, view OrderView) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(view); err == nil {
		_ = s.cache.Set(ctx, s.cache.GenerateKey("order", view.ID), string(data), orderViewTTL)
	}
}

func (s *OrderService) invalidateOrder(ctx context.Context, orderID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx,
		s.cache.GenerateKey("order", orderID.String()),
		s.cache.GenerateKey("stats", "all"))
}

func (s *OrderService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, s.cache.GenerateKey("stats", "all"))
}
