package service

import (
	"time"

	"github.com/samber/lo"

	"github.com/ordermgmt/ordercore/internal/domain"
)

// Views are flat snapshots handed to the HTTP layer; no entity graph
// navigation happens outside the service.

type AddressView struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
}

type OrderItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
}

type OrderView struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	CustomerID string          `json:"customer_id"`
	Status     string          `json:"status"`
	Items      []OrderItemView `json:"items"`

	Subtotal     string `json:"subtotal"`
	Discount     string `json:"discount"`
	ShippingCost string `json:"shipping_cost"`
	Total        string `json:"total"`
	Currency     string `json:"currency"`

	ShippingAddress *AddressView `json:"shipping_address,omitempty"`
	Notes           string       `json:"notes,omitempty"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PaymentView struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Installments  int        `json:"installments"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type PageView[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

type OrderStats struct {
	PendingPayment int64 `json:"pending_payment"`
	Paid           int64 `json:"paid"`
	Processing     int64 `json:"processing"`
	Shipped        int64 `json:"shipped"`
	Delivered      int64 `json:"delivered"`
	Cancelled      int64 `json:"cancelled"`
}

func mapOrderToView(order domain.Order) OrderView {
	return OrderView{
		ID:         order.ID.String(),
		Number:     order.Number,
		CustomerID: order.CustomerID.String(),
		Status:     string(order.Status),
		Items: lo.Map(order.Items, func(item domain.OrderItem, _ int) OrderItemView {
			return OrderItemView{
				ProductID: item.ProductID.String(),
				Name:      item.Name,
				SKU:       item.SKU,
				UnitPrice: item.UnitPrice.Amount.StringFixed(2),
				Quantity:  item.Quantity,
				Total:     item.Total.Amount.StringFixed(2),
			}
		}),
		Subtotal:        order.Subtotal.Amount.StringFixed(2),
		Discount:        order.Discount.Amount.StringFixed(2),
		ShippingCost:    order.ShippingCost.Amount.StringFixed(2),
		Total:           order.Total.Amount.StringFixed(2),
		Currency:        order.Total.Currency.String(),
		ShippingAddress: mapAddressToView(order.ShippingAddress),
		Notes:           order.Notes,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func mapAddressToView(a *domain.Address) *AddressView {
	if a == nil {
		return nil
	}
	return &AddressView{
		Street:       a.Street,
		Number:       a.Number,
		Complement:   a.Complement,
		Neighborhood: a.Neighborhood,
		City:         a.City,
		State:        a.State,
		ZipCode:      a.ZipCode,
	}
}

func mapPaymentToView(payment domain.Payment) PaymentView {
	return PaymentView{
		ID:            payment.ID.String(),
		OrderID:       payment.OrderID.String(),
		Method:        string(payment.Method),
		Status:        string(payment.Status),
		Amount:        payment.Amount.Amount.StringFixed(2),
		Currency:      payment.Amount.Currency.String(),
		Installments:  payment.Installments,
		TransactionID: payment.TransactionID,
		PaidAt:        payment.PaidAt,
		RefundedAt:    payment.RefundedAt,
		CreatedAt:     payment.CreatedAt,
	}
}

func mapStats(counts map[domain.OrderStatus]int64) OrderStats {
	return OrderStats{
		PendingPayment: counts[domain.OrderStatusPendingPayment],
		Paid:           counts[domain.OrderStatusPaid],
		Processing:     counts[domain.OrderStatusProcessing],
		Shipped:        counts[domain.OrderStatusShipped],
		Delivered:      counts[domain.OrderStatusDelivered],
		Cancelled:      counts[domain.OrderStatusCancelled],
	}
}
