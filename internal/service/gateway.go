package service

import (
	"context"
	"time"

	"github.com/ordermgmt/ordercore/internal/domain"
)

// Gateway decides whether a charge settles. Implementations must be
// safe for concurrent use.
type Gateway interface {
	Charge(ctx context.Context, payment domain.Payment, cardToken string) (bool, error)
}

// SimulatedGateway approves PIX and bank-slip charges unconditionally;
// every other method settles only when a card token is present. It
// stands in for a real acquirer integration.
type SimulatedGateway struct {
	// Delay mimics acquirer latency; zero means no wait.
	Delay time.Duration
}

func (g SimulatedGateway) Charge(ctx context.Context, payment domain.Payment, cardToken string) (bool, error) {
	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	switch payment.Method {
	case domain.PaymentMethodPix, domain.PaymentMethodBankSlip:
		return true, nil
	default:
		return cardToken != "", nil
	}
}

// transactionPrefixes follow the acquirer's reference conventions.
var transactionPrefixes = map[domain.PaymentMethod]string{
	domain.PaymentMethodCreditCard:   "CC",
	domain.PaymentMethodDebitCard:    "DC",
	domain.PaymentMethodPix:          "PIX",
	domain.PaymentMethodBankSlip:     "BOL",
	domain.PaymentMethodBankTransfer: "TED",
}
