package service_test

import (
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/service"
)

func (suite *serviceSuite) createPendingOrder(actor domain.Principal, productStock int) (uuid.UUID, uuid.UUID) {
	t := suite.T()

	product := suite.createProduct("50.00", productStock)

	view, err := suite.orders.CreateOrder(t.Context(), actor, service.CreateOrderInput{
		Items: []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	return uuid.MustParse(view.ID), product.ID
}

func (suite *serviceSuite) TestProcessPaymentPix() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	actor := asCustomer(customer.ID)
	orderID, _ := suite.createPendingOrder(actor, 10)

	payment, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
		OrderID: orderID,
		Method:  domain.PaymentMethodPix,
	})
	require.NoError(t, err)

	require.Equal(t, string(domain.PaymentStatusPaid), payment.Status)
	require.Regexp(t, `^PIX-[0-9A-F]{12}$`, payment.TransactionID)
	// charged the order total: 50.00 + 15.00 shipping
	require.Equal(t, "65.00", payment.Amount)
	require.Equal(t, 1, payment.Installments)
	require.NotNil(t, payment.PaidAt)

	order, err := suite.orders.GetOrder(ctx, actor, orderID)
	require.NoError(t, err)
	require.Equal(t, string(domain.OrderStatusPaid), order.Status)

	suite.Run("second payment: conflict", func() {
		_, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
			OrderID: orderID,
			Method:  domain.PaymentMethodPix,
		})
		require.ErrorIs(t, err, domain.ErrOrderNotAwaitingPayment)
	})
}

func (suite *serviceSuite) TestProcessPaymentCard() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	actor := asCustomer(customer.ID)

	suite.Run("with token: settles in installments", func() {
		orderID, _ := suite.createPendingOrder(actor, 10)

		payment, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
			OrderID:      orderID,
			Method:       domain.PaymentMethodCreditCard,
			Installments: 3,
			CardToken:    "tok_visa",
		})
		require.NoError(t, err)
		require.Equal(t, string(domain.PaymentStatusPaid), payment.Status)
		require.Regexp(t, `^CC-[0-9A-F]{12}$`, payment.TransactionID)
		require.Equal(t, 3, payment.Installments)
	})

	suite.Run("without token: declined, stock stays reserved", func() {
		orderID, productID := suite.createPendingOrder(actor, 10)
		require.Equal(t, 9, suite.stockOf(productID))

		payment, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
			OrderID: orderID,
			Method:  domain.PaymentMethodDebitCard,
		})
		require.NoError(t, err)
		require.Equal(t, string(domain.PaymentStatusFailed), payment.Status)
		require.Empty(t, payment.TransactionID)

		// a declined charge leaves the order waiting and the stock held
		order, err := suite.orders.GetOrder(ctx, actor, orderID)
		require.NoError(t, err)
		require.Equal(t, string(domain.OrderStatusPendingPayment), order.Status)
		require.Equal(t, 9, suite.stockOf(productID))
	})
}

func (suite *serviceSuite) TestProcessPaymentGuards() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	actor := asCustomer(customer.ID)
	orderID, _ := suite.createPendingOrder(actor, 10)

	suite.Run("another customer: forbidden", func() {
		other := suite.createCustomer()

		_, err := suite.payments.ProcessPayment(ctx, asCustomer(other.ID), service.ProcessPaymentInput{
			OrderID: orderID,
			Method:  domain.PaymentMethodPix,
		})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	suite.Run("unknown order: not found", func() {
		_, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
			OrderID: uuid.New(),
			Method:  domain.PaymentMethodPix,
		})
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	suite.Run("cancelled order: not awaiting payment", func() {
		cancelledID, _ := suite.createPendingOrder(actor, 10)

		_, err := suite.orders.CancelOrder(ctx, actor, cancelledID, "no longer needed")
		require.NoError(t, err)

		_, err = suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
			OrderID: cancelledID,
			Method:  domain.PaymentMethodPix,
		})
		require.ErrorIs(t, err, domain.ErrOrderNotAwaitingPayment)
	})

	suite.Run("declined charge allows a retry", func() {
		retryID, _ := suite.createPendingOrder(actor, 10)

		declined, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
			OrderID: retryID,
			Method:  domain.PaymentMethodCreditCard,
		})
		require.NoError(t, err)
		require.Equal(t, string(domain.PaymentStatusFailed), declined.Status)

		// the failed payment row blocks a second one for the same order
		_, err = suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
			OrderID:   retryID,
			Method:    domain.PaymentMethodCreditCard,
			CardToken: "tok_visa",
		})
		require.ErrorIs(t, err, domain.ErrDuplicatePayment)
	})
}

func (suite *serviceSuite) TestRefundPayment() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	actor := asCustomer(customer.ID)
	orderID, _ := suite.createPendingOrder(actor, 10)

	payment, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
		OrderID: orderID,
		Method:  domain.PaymentMethodPix,
	})
	require.NoError(t, err)

	paymentID := uuid.MustParse(payment.ID)

	suite.Run("customer: forbidden", func() {
		_, err := suite.payments.RefundPayment(ctx, actor, paymentID)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	suite.Run("admin: ok, once", func() {
		refunded, err := suite.payments.RefundPayment(ctx, asAdmin(), paymentID)
		require.NoError(t, err)
		require.Equal(t, string(domain.PaymentStatusRefunded), refunded.Status)
		require.NotNil(t, refunded.RefundedAt)

		_, err = suite.payments.RefundPayment(ctx, asAdmin(), paymentID)

		var stateErr domain.InvalidPaymentStateError
		require.ErrorAs(t, err, &stateErr)
	})
}

func (suite *serviceSuite) TestGetPaymentByOrder() {
	t := suite.T()
	ctx := t.Context()

	customer := suite.createCustomer()
	actor := asCustomer(customer.ID)
	orderID, _ := suite.createPendingOrder(actor, 10)

	suite.Run("no payment yet: not found", func() {
		_, err := suite.payments.GetPaymentByOrder(ctx, actor, orderID)
		require.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})

	created, err := suite.payments.ProcessPayment(ctx, actor, service.ProcessPaymentInput{
		OrderID: orderID,
		Method:  domain.PaymentMethodBankSlip,
	})
	require.NoError(t, err)
	require.Regexp(t, `^BOL-[0-9A-F]{12}$`, created.TransactionID)

	actual, err := suite.payments.GetPaymentByOrder(ctx, actor, orderID)
	require.NoError(t, err)
	require.Equal(t, created.ID, actual.ID)

	suite.Run("another customer: forbidden", func() {
		other := suite.createCustomer()

		_, err := suite.payments.GetPaymentByOrder(ctx, asCustomer(other.ID), orderID)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}
