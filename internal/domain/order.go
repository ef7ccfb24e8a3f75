package domain

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

// OrderItem snapshots the product at order-creation time: later catalog
// changes never affect an existing order.
type OrderItem struct {
	ProductID uuid.UUID
	Name      string
	SKU       string
	UnitPrice Money
	Quantity  int
	Total     Money
}

// NewOrderItem builds a line item from a product snapshot.
func NewOrderItem(product Product, quantity int) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	return OrderItem{
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		UnitPrice: product.Price,
		Quantity:  quantity,
		Total:     product.Price.MulInt(quantity),
	}, nil
}

type Order struct {
	ID         uuid.UUID
	Number     string
	CustomerID uuid.UUID
	Status     OrderStatus
	Items      []OrderItem

	Subtotal     Money
	Discount     Money
	ShippingCost Money
	Total        Money

	ShippingAddress *Address
	Notes           string

	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder starts an order in PENDING_PAYMENT with zeroed totals in the
// given currency. Items are added while composing, before persistence.
func NewOrder(number string, customerID uuid.UUID, unit currency.Unit) Order {
	zero := ZeroMoney(unit)
	return Order{
		Number:       number,
		CustomerID:   customerID,
		Status:       OrderStatusPendingPayment,
		Subtotal:     zero,
		Discount:     zero,
		ShippingCost: zero,
		Total:        zero,
	}
}

// WithItem appends a line item and recalculates totals.
func (o Order) WithItem(item OrderItem) (Order, error) {
	o.Items = append(append([]OrderItem(nil), o.Items...), item)
	return o.Recalculate()
}

// WithoutItem removes the line item for the given product and recalculates.
func (o Order) WithoutItem(productID uuid.UUID) (Order, error) {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	o.Items = items
	return o.Recalculate()
}

// WithDiscount sets the discount and recalculates.
func (o Order) WithDiscount(discount Money) (Order, error) {
	if discount.IsNegative() {
		return o, ValidationError{Field: "discount", Reason: "must not be negative"}
	}
	o.Discount = discount
	return o.Recalculate()
}

// WithShippingCost sets the shipping cost and recalculates.
func (o Order) WithShippingCost(cost Money) (Order, error) {
	if cost.IsNegative() {
		return o, ValidationError{Field: "shippingCost", Reason: "must not be negative"}
	}
	o.ShippingCost = cost
	return o.Recalculate()
}

// Recalculate is the single source of truth for subtotal and total:
// subtotal = sum(item.Total), total = subtotal - discount + shippingCost.
// It is idempotent.
func (o Order) Recalculate() (Order, error) {
	unit := o.Subtotal.Currency
	if len(o.Items) > 0 {
		unit = o.Items[0].UnitPrice.Currency
	}

	subtotal := ZeroMoney(unit)
	for _, item := range o.Items {
		var err error
		subtotal, err = subtotal.Add(item.Total)
		if err != nil {
			return o, err
		}
	}

	afterDiscount, err := subtotal.Sub(o.Discount)
	if err != nil {
		return o, err
	}
	total, err := afterDiscount.Add(o.ShippingCost)
	if err != nil {
		return o, err
	}

	o.Subtotal = subtotal
	o.Total = total
	return o, nil
}

// ConfirmPayment moves PENDING_PAYMENT to PAID.
func (o Order) ConfirmPayment(now time.Time) (Order, error) {
	if o.Status != OrderStatusPendingPayment {
		return o, InvalidTransitionError{From: o.Status, To: OrderStatusPaid}
	}
	o.Status = OrderStatusPaid
	o.PaidAt = &now
	return o, nil
}

// MoveToProcessing moves PAID to PROCESSING.
func (o Order) MoveToProcessing() (Order, error) {
	if o.Status != OrderStatusPaid {
		return o, InvalidTransitionError{From: o.Status, To: OrderStatusProcessing}
	}
	o.Status = OrderStatusProcessing
	return o, nil
}

// Ship moves PAID or PROCESSING to SHIPPED.
func (o Order) Ship(now time.Time) (Order, error) {
	if o.Status != OrderStatusPaid && o.Status != OrderStatusProcessing {
		return o, InvalidTransitionError{From: o.Status, To: OrderStatusShipped}
	}
	o.Status = OrderStatusShipped
	o.ShippedAt = &now
	return o, nil
}

// Deliver moves SHIPPED to DELIVERED.
func (o Order) Deliver(now time.Time) (Order, error) {
	if o.Status != OrderStatusShipped {
		return o, InvalidTransitionError{From: o.Status, To: OrderStatusDelivered}
	}
	o.Status = OrderStatusDelivered
	o.DeliveredAt = &now
	return o, nil
}

// Cancel is allowed from every status except DELIVERED, including a
// second cancel attempt: that fails the guard instead of silently
// passing, so retries are detectable.
func (o Order) Cancel(now time.Time) (Order, error) {
	if o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled {
		return o, InvalidTransitionError{From: o.Status, To: OrderStatusCancelled}
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	return o, nil
}

// AppendNote adds a note, separated from existing notes with " | ".
func (o Order) AppendNote(note string) Order {
	if o.Notes != "" {
		o.Notes = o.Notes + " | " + note
	} else {
		o.Notes = note
	}
	return o
}
