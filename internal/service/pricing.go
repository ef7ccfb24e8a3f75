package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ordermgmt/ordercore/internal/domain"
)

// The single recognized coupon code. There is no coupon engine; unknown
// codes yield a zero discount, not an error.
const couponFirst10 = "FIRST10"

var (
	flatShippingFee = decimal.RequireFromString("15.00")
	first10Rate     = decimal.RequireFromString("0.10")
)

// ShippingCost is a flat fee per order.
func ShippingCost(order domain.Order) domain.Money {
	return domain.NewMoney(flatShippingFee, order.Subtotal.Currency)
}

// CouponDiscount maps a coupon code to a discount on the subtotal.
func CouponDiscount(code string, subtotal domain.Money) domain.Money {
	if strings.EqualFold(code, couponFirst10) {
		return domain.NewMoney(subtotal.Amount.Mul(first10Rate).Round(2), subtotal.Currency)
	}
	return domain.ZeroMoney(subtotal.Currency)
}
