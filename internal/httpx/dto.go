package httpx

import (
	"github.com/google/uuid"

	"github.com/ordermgmt/ordercore/internal/domain"
	"github.com/ordermgmt/ordercore/internal/service"
)

type addressRequest struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
}

func (a *addressRequest) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		Street:       a.Street,
		Number:       a.Number,
		Complement:   a.Complement,
		Neighborhood: a.Neighborhood,
		City:         a.City,
		State:        a.State,
		ZipCode:      a.ZipCode,
	}
}

type createOrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID      uuid.UUID                `json:"customer_id"`
	Items           []createOrderItemRequest `json:"items"`
	ShippingAddress *addressRequest          `json:"shipping_address"`
	Notes           string                   `json:"notes"`
	CouponCode      string                   `json:"coupon_code"`
}

func (r createOrderRequest) toInput() service.CreateOrderInput {
	items := make([]service.CreateOrderItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, service.CreateOrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return service.CreateOrderInput{
		CustomerID:      r.CustomerID,
		Items:           items,
		ShippingAddress: r.ShippingAddress.toDomain(),
		Notes:           r.Notes,
		CouponCode:      r.CouponCode,
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type processPaymentRequest struct {
	OrderID      uuid.UUID `json:"order_id"`
	Method       string    `json:"method"`
	Installments int       `json:"installments"`
	CardToken    string    `json:"card_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}
