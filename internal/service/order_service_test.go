package service_test

import (
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/service"
)

func (suite *serviceSuite) TestCreateOrder() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("50.00", 10)

	view, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
		Items:      []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 2}},
		CouponCode: "first10",
		Notes:      "leave at the door",
	})
	require.NoError(t, err)

	require.Regexp(t, `^ORD-\d{8}-[0-9A-F]{5}$`, view.Number)
	require.Equal(t, string(domain.OrderStatusPendingPayment), view.Status)
	require.Equal(t, "100.00", view.Subtotal)
	require.Equal(t, "10.00", view.Discount)
	require.Equal(t, "15.00", view.ShippingCost)
	require.Equal(t, "105.00", view.Total)
	require.Equal(t, "BRL", view.Currency)
	require.Equal(t, "leave at the door", view.Notes)
	require.Len(t, view.Items, 1)
	require.Equal(t, 2, view.Items[0].Quantity)

	// the customer's address backfills a missing shipping address
	require.NotNil(t, view.ShippingAddress)
	require.Equal(t, customer.Address.Street, view.ShippingAddress.Street)

	require.Equal(t, 8, suite.stockOf(product.ID))
	require.GreaterOrEqual(t, suite.outboxCount("order.created"), 1)
}

// The same product may appear on several line items; each keeps its own
// row and its own reservation.
func (suite *serviceSuite) TestCreateOrderRepeatedProduct() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", 10)

	view, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	require.Equal(t, 2, view.Items[0].Quantity)
	require.Equal(t, 3, view.Items[1].Quantity)
	require.Equal(t, "50.00", view.Subtotal)
	require.Equal(t, "65.00", view.Total)
	require.Equal(t, 5, suite.stockOf(product.ID))

	// the persisted order carries both line items as well
	stored, err := suite.orders.GetOrder(ctx, asCustomer(customer.ID), uuid.MustParse(view.ID))
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
}

func (suite *serviceSuite) TestCreateOrderInsufficientStock() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	cheap := suite.createProduct("10.00", 10)
	scarce := suite.createProduct("20.00", 1)

	_, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{
			{ProductID: cheap.ID, Quantity: 3},
			{ProductID: scarce.ID, Quantity: 2},
		},
	})

	var stockErr domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 2, stockErr.Requested)
	require.Equal(t, 1, stockErr.Available)

	// the whole unit rolled back, including the first reservation
	require.Equal(t, 10, suite.stockOf(cheap.ID))
	require.Equal(t, 1, suite.stockOf(scarce.ID))
}

func (suite *serviceSuite) TestCreateOrderValidation() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	inactive := suite.createProduct("10.00", 10)

	_, err := suite.pool.Exec(ctx, `UPDATE products SET active = false WHERE id = $1`, inactive.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		input     service.CreateOrderInput
		wantError string
	}{
		{
			name:      "no items",
			input:     service.CreateOrderInput{},
			wantError: "at least one item is required",
		},
		{
			name: "inactive product",
			input: service.CreateOrderInput{
				Items: []service.CreateOrderItemInput{{ProductID: inactive.ID, Quantity: 1}},
			},
			wantError: "is not active",
		},
		{
			name: "non-positive quantity",
			input: service.CreateOrderInput{
				Items: []service.CreateOrderItemInput{{ProductID: inactive.ID, Quantity: 0}},
			},
			wantError: "invalid quantity",
		},
		{
			name: "unknown product",
			input: service.CreateOrderInput{
				Items: []service.CreateOrderItemInput{{ProductID: uuid.New(), Quantity: 1}},
			},
			wantError: "product not found",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()

			_, err := suite.orders.CreateOrder(t.Context(), asCustomer(customer.ID), tt.input)
			require.ErrorContains(t, err, tt.wantError)
		})
	}
}

func (suite *serviceSuite) TestCreateOrderForbidden() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	other := suite.createCustomer()
	product := suite.createProduct("10.00", 10)

	_, err := suite.orders.CreateOrder(ctx, asCustomer(other.ID), service.CreateOrderInput{
		CustomerID: customer.ID,
		Items:      []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	// elevated roles may order on behalf of any customer
	_, err = suite.orders.CreateOrder(ctx, asAdmin(), service.CreateOrderInput{
		CustomerID: customer.ID,
		Items:      []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
}

// Concurrent orders against the same product must never oversell it.
func (suite *serviceSuite) TestCreateOrderConcurrent() {
	t := suite.T()
	ctx := t.Context()

	const (
		stock   = 5
		workers = 12
	)

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", stock)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
				Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
			})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, stock, created)
	require.Equal(t, 0, suite.stockOf(product.ID))
}

func (suite *serviceSuite) TestCancelOrder() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", 10)
	actor := asCustomer(customer.ID)

	view, err := suite.orders.CreateOrder(ctx, actor, service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 4}},
		Notes: "gift wrap",
	})
	require.NoError(t, err)
	require.Equal(t, 6, suite.stockOf(product.ID))

	orderID := uuid.MustParse(view.ID)

	cancelled, err := suite.orders.CancelOrder(ctx, actor, orderID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, string(domain.OrderStatusCancelled), cancelled.Status)
	require.Equal(t, "gift wrap | cancelled: changed my mind", cancelled.Notes)
	require.NotNil(t, cancelled.CancelledAt)

	// cancellation returned every reserved unit
	require.Equal(t, 10, suite.stockOf(product.ID))

	suite.Run("second cancel: conflict", func() {
		_, err := suite.orders.CancelOrder(ctx, actor, orderID, "again")

		var transitionErr domain.InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
	})

	suite.Run("cancel by another customer: forbidden", func() {
		other := suite.createCustomer()

		_, err := suite.orders.CancelOrder(ctx, asCustomer(other.ID), orderID, "not mine")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func (suite *serviceSuite) TestCancelDeliveredOrder() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", 10)
	admin := asAdmin()

	view, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	orderID := uuid.MustParse(view.ID)

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPaid,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		_, err = suite.orders.UpdateOrderStatus(ctx, admin, orderID, status, "")
		require.NoError(t, err)
	}

	_, err = suite.orders.CancelOrder(ctx, admin, orderID, "too late")

	var transitionErr domain.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, domain.OrderStatusDelivered, transitionErr.From)

	// the delivered order kept its stock
	require.Equal(t, 9, suite.stockOf(product.ID))
}

func (suite *serviceSuite) TestCancelShippedOrderRestocks() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", 10)
	admin := asAdmin()

	view, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	orderID := uuid.MustParse(view.ID)

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPaid,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
	} {
		_, err = suite.orders.UpdateOrderStatus(ctx, admin, orderID, status, "")
		require.NoError(t, err)
	}

	cancelled, err := suite.orders.UpdateOrderStatus(ctx, admin, orderID, domain.OrderStatusCancelled, "lost in transit")
	require.NoError(t, err)
	require.Equal(t, string(domain.OrderStatusCancelled), cancelled.Status)
	require.Equal(t, 10, suite.stockOf(product.ID))
}

// Cancel and deliver race on a shipped order; the row lock serializes
// them so exactly one observes SHIPPED and wins.
func (suite *serviceSuite) TestConcurrentCancelAndDeliver() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", 10)
	admin := asAdmin()

	view, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	orderID := uuid.MustParse(view.ID)

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPaid,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
	} {
		_, err = suite.orders.UpdateOrderStatus(ctx, admin, orderID, status, "")
		require.NoError(t, err)
	}

	var (
		wg         sync.WaitGroup
		cancelErr  error
		deliverErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = suite.orders.CancelOrder(ctx, admin, orderID, "buyer backed out")
	}()
	go func() {
		defer wg.Done()
		_, deliverErr = suite.orders.UpdateOrderStatus(ctx, admin, orderID, domain.OrderStatusDelivered, "")
	}()
	wg.Wait()

	require.NotEqual(t, cancelErr == nil, deliverErr == nil, "exactly one operation must win")

	loser := cancelErr
	if loser == nil {
		loser = deliverErr
	}
	var transitionErr domain.InvalidTransitionError
	require.ErrorAs(t, loser, &transitionErr)

	final, err := suite.orders.GetOrder(ctx, admin, orderID)
	require.NoError(t, err)

	if cancelErr == nil {
		require.Equal(t, string(domain.OrderStatusCancelled), final.Status)
		require.Equal(t, domain.OrderStatusCancelled, transitionErr.From)
		require.Equal(t, 10, suite.stockOf(product.ID), "cancellation returns the reserved units")
	} else {
		require.Equal(t, string(domain.OrderStatusDelivered), final.Status)
		require.Equal(t, domain.OrderStatusDelivered, transitionErr.From)
		require.Equal(t, 6, suite.stockOf(product.ID), "a delivered order keeps its stock")
	}
}

func (suite *serviceSuite) TestUpdateOrderStatus() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", 10)

	view, err := suite.orders.CreateOrder(ctx, asCustomer(customer.ID), service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	orderID := uuid.MustParse(view.ID)

	suite.Run("customer: forbidden", func() {
		_, err := suite.orders.UpdateOrderStatus(ctx, asCustomer(customer.ID), orderID, domain.OrderStatusPaid, "")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	suite.Run("skipping a step: conflict", func() {
		_, err := suite.orders.UpdateOrderStatus(ctx, asAdmin(), orderID, domain.OrderStatusShipped, "")

		var transitionErr domain.InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
	})

	suite.Run("full lifecycle: ok", func() {
		admin := asAdmin()

		updated, err := suite.orders.UpdateOrderStatus(ctx, admin, orderID, domain.OrderStatusPaid, "")
		require.NoError(t, err)
		require.NotNil(t, updated.PaidAt)

		updated, err = suite.orders.UpdateOrderStatus(ctx, admin, orderID, domain.OrderStatusProcessing, "")
		require.NoError(t, err)

		updated, err = suite.orders.UpdateOrderStatus(ctx, admin, orderID, domain.OrderStatusShipped, "")
		require.NoError(t, err)
		require.NotNil(t, updated.ShippedAt)

		updated, err = suite.orders.UpdateOrderStatus(ctx, admin, orderID, domain.OrderStatusDelivered, "")
		require.NoError(t, err)
		require.NotNil(t, updated.DeliveredAt)
	})
}

func (suite *serviceSuite) TestListOrders() {
	t := suite.T()
	ctx := t.Context()

	customer1 := suite.createCustomer()
	customer2 := suite.createCustomer()
	product := suite.createProduct("10.00", 100)

	for _, customerID := range []uuid.UUID{customer1.ID, customer1.ID, customer2.ID} {
		_, err := suite.orders.CreateOrder(ctx, asCustomer(customerID), service.CreateOrderInput{
			Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	// a customer's listing is forced onto their own orders
	page, err := suite.orders.ListOrders(ctx, asCustomer(customer1.ID), domain.OrderFilter{
		CustomerIDs: []uuid.UUID{customer2.ID},
	}, domain.Page{})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	for _, order := range page.Items {
		require.Equal(t, customer1.ID.String(), order.CustomerID)
	}

	// elevated roles can filter freely
	page, err = suite.orders.ListOrders(ctx, asAdmin(), domain.OrderFilter{
		CustomerIDs: []uuid.UUID{customer2.ID},
	}, domain.Page{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
}

func (suite *serviceSuite) TestGetOrderStats() {
	t := suite.T()
	ctx := t.Context()

	_, err := suite.orders.GetOrderStats(ctx, asCustomer(uuid.New()))
	require.ErrorIs(t, err, domain.ErrForbidden)

	stats, err := suite.orders.GetOrderStats(ctx, asAdmin())
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.PendingPayment, int64(0))
}

func (suite *serviceSuite) TestGetOrder() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	product := suite.createProduct("10.00", 10)
	actor := asCustomer(customer.ID)

	view, err := suite.orders.CreateOrder(ctx, actor, service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	byID, err := suite.orders.GetOrder(ctx, actor, uuid.MustParse(view.ID))
	require.NoError(t, err)
	require.Equal(t, view.Number, byID.Number)

	byNumber, err := suite.orders.GetOrderByNumber(ctx, actor, view.Number)
	require.NoError(t, err)
	require.Equal(t, view.ID, byNumber.ID)

	suite.Run("another customer: forbidden", func() {
		other := suite.createCustomer()

		_, err := suite.orders.GetOrder(ctx, asCustomer(other.ID), uuid.MustParse(view.ID))
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	suite.Run("unknown order: not found", func() {
		_, err := suite.orders.GetOrder(ctx, actor, uuid.New())
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}
