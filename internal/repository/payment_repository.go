package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/port"
)

type paymentRepository struct {
	db querier
}

func NewPayment(pool *pgxpool.Pool) port.PaymentRepository {
	return &paymentRepository{db: pool}
}

func NewPaymentWithTx(tx pgx.Tx) port.PaymentRepository {
	return &paymentRepository{db: tx}
}

const paymentColumns = `id, order_id, method, status, amount, currency, installments,
	transaction_id, paid_at, refunded_at, created_at, updated_at`

// InsertPayment relies on the unique order_id constraint, so the
// check-then-act of the payment workflow cannot race into a second row.
func (r *paymentRepository) InsertPayment(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	var p domain.Payment

	err := r.db.QueryRow(ctx,
		`INSERT INTO payments (order_id, method, status, amount, currency, installments, transaction_id, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		payment.OrderID, string(payment.Method), string(payment.Status),
		payment.Amount.Amount, payment.Amount.Currency.String(), payment.Installments,
		emptyToNil(payment.TransactionID), payment.PaidAt).
		Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "payments_order_id_key") {
			return p, fmt.Errorf("insert payment: %w", domain.ErrDuplicatePayment)
		}
		return p, fmt.Errorf("insert payment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) GetPayment(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	return r.getPayment(ctx, "id = $1", paymentID)
}

func (r *paymentRepository) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (domain.Payment, error) {
	return r.getPayment(ctx, "order_id = $1", orderID)
}

func (r *paymentRepository) getPayment(ctx context.Context, where string, arg any) (domain.Payment, error) {
	var p domain.Payment

	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE `+where, arg)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("scanPayment: %w", domain.ErrPaymentNotFound)
		}
		return p, fmt.Errorf("scanPayment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) UpdatePayment(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	var p domain.Payment

	err := r.db.QueryRow(ctx,
		`UPDATE payments
		 SET status         = $2,
		     transaction_id = $3,
		     paid_at        = $4,
		     refunded_at    = $5,
		     updated_at     = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		payment.ID, string(payment.Status), emptyToNil(payment.TransactionID),
		payment.PaidAt, payment.RefundedAt).
		Scan(&payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("update payment: %w", domain.ErrPaymentNotFound)
		}
		return p, fmt.Errorf("update payment: %w", err)
	}

	return payment, nil
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var (
		p             domain.Payment
		method        string
		status        string
		amount        decimal.Decimal
		currencyCode  string
		transactionID *string
	)

	err := row.Scan(&p.ID, &p.OrderID, &method, &status, &amount, &currencyCode, &p.Installments,
		&transactionID, &p.PaidAt, &p.RefundedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}

	paymentMethod, err := domain.ToPaymentMethod(method)
	if err != nil {
		return p, fmt.Errorf("domain.ToPaymentMethod[%s]: %w", method, err)
	}
	p.Method = paymentMethod

	paymentStatus, err := domain.ToPaymentStatus(status)
	if err != nil {
		return p, fmt.Errorf("domain.ToPaymentStatus[%s]: %w", status, err)
	}
	p.Status = paymentStatus

	parsedCurrency, err := currency.ParseISO(currencyCode)
	if err != nil {
		return p, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}
	p.Amount = domain.Money{Amount: amount, Currency: parsedCurrency}
	p.TransactionID = lo.FromPtr(transactionID)

	return p, nil
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
