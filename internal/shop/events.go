package shop

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
	EventOrderExpired   = "OrderExpired"
	EventCartExpired    = "CartExpired"
)

// Envelope wraps every published event. Payload holds the event-specific
// body; CorrelationID is the order id (or user id for cart events) so all
// events for one aggregate stay on one partition.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type EventItem struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID  int64       `json:"order_id"`
	UserID   int64       `json:"user_id"`
	Subtotal string      `json:"subtotal"`
	Items    []EventItem `json:"items"`
}

type OrderPaidPayload struct {
	OrderID int64       `json:"order_id"`
	UserID  int64       `json:"user_id"`
	Items   []EventItem `json:"items"`
}

type OrderCancelledPayload struct {
	OrderID int64       `json:"order_id"`
	UserID  int64       `json:"user_id"`
	Items   []EventItem `json:"items"`
}

type OrderExpiredPayload struct {
	OrderID int64       `json:"order_id"`
	UserID  int64       `json:"user_id"`
	Items   []EventItem `json:"items"`
}

type CartExpiredPayload struct {
	CartID int64       `json:"cart_id"`
	UserID int64       `json:"user_id"`
	Items  []EventItem `json:"items"`
}
