package service

import (
	"context"
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

type ProcessPaymentInput struct {
	OrderID      uuid.UUID
	Method       domain.PaymentMethod
	Installments int
	CardToken    string
}

// PaymentService settles and refunds payments. A payment is always
// charged for the order's current total; the caller never supplies an
// amount.
type PaymentService struct {
	pool    *pgxpool.Pool
	gateway Gateway
	cache   cache.Cache           // optional, nil-safe
	metrics *metrics.OrderMetrics // optional, nil-safe
	now     func() time.Time
}

func NewPaymentService(pool *pgxpool.Pool, gateway Gateway, c cache.Cache, m *metrics.OrderMetrics) *PaymentService {
	return &PaymentService{
		pool:    pool,
		gateway: gateway,
		cache:   c,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ProcessPayment charges the order total and records the outcome. On
// approval the order moves to PAID; on decline the payment is stored as
// FAILED and the order keeps waiting, its stock still reserved.
func (s *PaymentService) ProcessPayment(ctx context.Context, actor domain.Principal, input ProcessPaymentInput) (PaymentView, error) {
	var v PaymentView

	payment, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Payment, error) {
		return s.processPaymentTx(ctx, tx, actor, input)
	})
	if err != nil {
		return v, err
	}

	if s.metrics != nil {
		outcome := "settled"
		if payment.Status == domain.PaymentStatusFailed {
			outcome = "declined"
		}
		s.metrics.PaymentsSettled.WithLabelValues(outcome).Inc()
	}
	s.invalidateOrder(ctx, input.OrderID)

	slog.InfoContext(ctx, "payment processed",
		"order_id", input.OrderID, "method", payment.Method, "status", payment.Status)

	return mapPaymentToView(payment), nil
}

func (s *PaymentService) processPaymentTx(ctx context.Context, tx pgx.Tx, actor domain.Principal, input ProcessPaymentInput) (domain.Payment, error) {
	var p domain.Payment

	orders := repository.NewOrderWithTx(tx)
	payments := repository.NewPaymentWithTx(tx)

	// The row lock serializes concurrent attempts on the same order;
	// the unique constraint on order_id backs up the duplicate check.
	order, err := orders.GetOrderForUpdate(ctx, input.OrderID)
	if err != nil {
		return p, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
	}

	if err := Authorize(actor, order.CustomerID); err != nil {
		return p, err
	}

	if order.Status != domain.OrderStatusPendingPayment {
		return p, domain.ErrOrderNotAwaitingPayment
	}

	if _, err := payments.GetPaymentByOrder(ctx, order.ID); err == nil {
		return p, domain.ErrDuplicatePayment
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return p, fmt.Errorf("payments.GetPaymentByOrder: %w", err)
	}

	payment := domain.NewPayment(order.ID, input.Method, order.Total, input.Installments)

	approved, err := s.gateway.Charge(ctx, payment, input.CardToken)
	if err != nil {
		return p, fmt.Errorf("gateway.Charge: %w", err)
	}

	now := s.now()

	if approved {
		payment, err = payment.Confirm(GenerateTransactionID(transactionPrefixes[payment.Method]), now)
		if err != nil {
			return p, err
		}

		order, err = order.ConfirmPayment(now)
		if err != nil {
			return p, err
		}
		if _, err := orders.UpdateOrder(ctx, order); err != nil {
			return p, fmt.Errorf("orders.UpdateOrder: %w", err)
		}
	} else {
		payment, err = payment.Fail()
		if err != nil {
			return p, err
		}
	}

	inserted, err := payments.InsertPayment(ctx, payment)
	if err != nil {
		return p, fmt.Errorf("payments.InsertPayment: %w", err)
	}

	if inserted.Status == domain.PaymentStatusPaid {
		event := contracts.Event{
			EventID:   uuid.NewString(),
			OrderID:   order.ID.String(),
			Type:      contracts.EventPaymentSettled,
			CreatedAt: now,
			Payload: map[string]any{
				"payment_id":     inserted.ID.String(),
				"method":         string(inserted.Method),
				"transaction_id": inserted.TransactionID,
				"amount":         inserted.Amount.Amount.StringFixed(2),
			},
		}
		if err := outbox.Insert(ctx, tx, contracts.TopicOrderEvents, event.OrderID, event); err != nil {
			return p, fmt.Errorf("outbox.Insert: %w", err)
		}
	}

	return inserted, nil
}

// RefundPayment reverses a settled payment. It does not touch the order
// status or stock; cancellation is a separate, explicit step.
func (s *PaymentService) RefundPayment(ctx context.Context, actor domain.Principal, paymentID uuid.UUID) (PaymentView, error) {
	var v PaymentView

	if err := AuthorizeElevated(actor); err != nil {
		return v, err
	}

	payment, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Payment, error) {
		var p domain.Payment

		payments := repository.NewPaymentWithTx(tx)

		payment, err := payments.GetPayment(ctx, paymentID)
		if err != nil {
			return p, fmt.Errorf("payments.GetPayment: %w", err)
		}

		now := s.now()

		payment, err = payment.Refund(now)
		if err != nil {
			return p, err
		}

		updated, err := payments.UpdatePayment(ctx, payment)
		if err != nil {
			return p, fmt.Errorf("payments.UpdatePayment: %w", err)
		}

		event := contracts.Event{
			EventID:   uuid.NewString(),
			OrderID:   updated.OrderID.String(),
			Type:      contracts.EventPaymentRefunded,
			CreatedAt: now,
			Payload: map[string]any{
				"payment_id": updated.ID.String(),
				"amount":     updated.Amount.Amount.StringFixed(2),
			},
		}
		if err := outbox.Insert(ctx, tx, contracts.TopicOrderEvents, event.OrderID, event); err != nil {
			return p, fmt.Errorf("outbox.Insert: %w", err)
		}

		return updated, nil
	})
	if err != nil {
		return v, err
	}

	s.invalidateOrder(ctx, payment.OrderID)

	slog.InfoContext(ctx, "payment refunded", "order_id", payment.OrderID, "payment_id", payment.ID)

	return mapPaymentToView(payment), nil
}

func (s *PaymentService) GetPaymentByOrder(ctx context.Context, actor domain.Principal, orderID uuid.UUID) (PaymentView, error) {
	var v PaymentView

	order, err := repository.NewOrder(s.pool).GetOrder(ctx, orderID)
	if err != nil {
		return v, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := Authorize(actor, order.CustomerID); err != nil {
		return v, err
	}

	payment, err := repository.NewPayment(s.pool).GetPaymentByOrder(ctx, orderID)
	if err != nil {
		return v, fmt.Errorf("payments.GetPaymentByOrder: %w", err)
	}

	return mapPaymentToView(payment), nil
}

func (s *PaymentService) invalidateOrder(ctx context.Context, orderID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx,
		s.cache.GenerateKey("order", orderID.String()),
		s.cache.GenerateKey("stats", "all"))
}
