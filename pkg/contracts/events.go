package contracts

import "time"

// Event is the envelope published for every order lifecycle change.
type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventPaymentSettled     = "payment.settled"
	EventPaymentRefunded    = "payment.refunded"
)

// TopicOrderEvents carries all order and payment lifecycle events,
// keyed by order id so per-order ordering is preserved.
const TopicOrderEvents = "order-events"
