// Package payment talks to the hosted payment processor.  The rest of
// the application only sees the Processor interface and the plain
// types below; the Stripe adapter and the circuit breaker live behind
// it.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSessionNotFound is returned when the processor has no session
// with the requested id.
var ErrSessionNotFound = errors.New("checkout session not found")

// ErrUnavailable is returned without calling the processor while the
// circuit breaker is open.
var ErrUnavailable = errors.New("payment processor unavailable")

// Processor creates and reads hosted checkout sessions.
type Processor interface {
	CreateSession(ctx context.Context, p CreateParams) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
}

// Item is one line sent to the processor.  UnitAmount is in minor units.
type Item struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CreateParams describes a checkout session to open.
type CreateParams struct {
	Items          []Item
	Currency       string
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
}

// Session is the processor's record of a checkout attempt.
type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url,omitempty"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	Created       time.Time         `json:"created"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// LineItem is a purchased line as reported by the processor.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	AmountTotal int64  `json:"amount_total"`
	Currency    string `json:"currency"`
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit price to minor units, rounding
// half away from zero.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a major-unit decimal.
func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}
