package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard    PaymentMethod = "DEBIT_CARD"
	PaymentMethodPix          PaymentMethod = "PIX"
	PaymentMethodBankSlip     PaymentMethod = "BANK_SLIP"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

var validPaymentMethods = map[PaymentMethod]struct{}{
	PaymentMethodCreditCard:   {},
	PaymentMethodDebitCard:    {},
	PaymentMethodPix:          {},
	PaymentMethodBankSlip:     {},
	PaymentMethodBankTransfer: {},
}

func ToPaymentMethod(s string) (PaymentMethod, error) {
	method := PaymentMethod(s)
	if _, ok := validPaymentMethods[method]; ok {
		return method, nil
	}

	return "", errors.New("invalid payment method")
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	// PaymentStatusCancelled is reserved; no current flow reaches it.
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func ToPaymentStatus(s string) (PaymentStatus, error) {
	switch status := PaymentStatus(s); status {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return status, nil
	}

	return "", errors.New("invalid payment status")
}

// Payment is one-to-one with an Order. It starts PENDING and is resolved
// within the same operation that created it.
type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Method        PaymentMethod
	Status        PaymentStatus
	Amount        Money
	Installments  int
	TransactionID string

	PaidAt     *time.Time
	RefundedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPayment builds a PENDING payment for the order's total.
func NewPayment(orderID uuid.UUID, method PaymentMethod, amount Money, installments int) Payment {
	if installments < 1 {
		installments = 1
	}
	return Payment{
		OrderID:      orderID,
		Method:       method,
		Status:       PaymentStatusPending,
		Amount:       amount,
		Installments: installments,
	}
}

// Confirm settles the payment, recording the transaction id. Only a
// PENDING payment can be confirmed.
func (p Payment) Confirm(transactionID string, now time.Time) (Payment, error) {
	if p.Status != PaymentStatusPending {
		return p, InvalidPaymentStateError{Status: p.Status, Operation: "confirmed"}
	}
	p.Status = PaymentStatusPaid
	p.TransactionID = transactionID
	p.PaidAt = &now
	return p, nil
}

// Fail marks a PENDING payment as FAILED, a valid terminal outcome.
func (p Payment) Fail() (Payment, error) {
	if p.Status != PaymentStatusPending {
		return p, InvalidPaymentStateError{Status: p.Status, Operation: "failed"}
	}
	p.Status = PaymentStatusFailed
	return p, nil
}

// Refund is only defined for PAID payments.
func (p Payment) Refund(now time.Time) (Payment, error) {
	if p.Status != PaymentStatusPaid {
		return p, InvalidPaymentStateError{Status: p.Status, Operation: "refunded"}
	}
	p.Status = PaymentStatusRefunded
	p.RefundedAt = &now
	return p, nil
}
