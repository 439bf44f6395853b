// Package queue carries checkout audit events over RabbitMQ: a
// publisher used by the checkout service and a consumer that appends
// each event to logs/checkout.log.
package queue

// CheckoutCreatedQueue is the durable queue both sides declare.
const CheckoutCreatedQueue = "checkout.created"

// CheckoutCreatedEvent is published after the payment processor opened
// a checkout session.  It holds enough detail for downstream consumers
// to audit or reconcile without calling the processor.
type CheckoutCreatedEvent struct {
	SessionID        string      `json:"session_id"`
	CheckoutRef      string      `json:"checkout_ref"`
	UserID           string      `json:"user_id"`
	CustomerEmail    string      `json:"customer_email,omitempty"`
	Currency         string      `json:"currency"`
	TotalAmountCents int64       `json:"total_amount_cents"`
	Items            []EventItem `json:"items"`
	CreatedAt        string      `json:"created_at"`
}

// EventItem is one cart line of a CheckoutCreatedEvent.
type EventItem struct {
	Name            string `json:"name"`
	Quantity        int64  `json:"quantity"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
}
