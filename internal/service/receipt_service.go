package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/storefront/internal/payment"
)

// Receipt is a read-only projection of a checkout session.  It is
// rebuilt from the processor on every request and never stored.
type Receipt struct {
	Session   payment.Session    `json:"session"`
	LineItems []payment.LineItem `json:"lineItems"`
	Total     int64              `json:"total"` // minor units
	Lines     []string           `json:"lines"`
}

// Outcome is the state the buyer lands in after the processor redirects back.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeUnknown   Outcome = "unknown"
)

// RedirectResult is what the confirmation page renders.
type RedirectResult struct {
	Outcome Outcome
	Receipt *Receipt
	Err     error
}

// ReceiptService fetches confirmations from the payment processor.
type ReceiptService struct {
	processor payment.Processor
	timeout   time.Duration
	log       *slog.Logger
}

func NewReceiptService(p payment.Processor, timeout time.Duration, log *slog.Logger) *ReceiptService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReceiptService{processor: p, timeout: timeout, log: log}
}

// GetReceipt retrieves the session and its line items.  It performs no
// mutation, so repeated calls for the same id return the same receipt.
func (s *ReceiptService) GetReceipt(ctx context.Context, sessionID string) (Receipt, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Receipt{}, fmt.Errorf("%w: session id is required", ErrValidation)
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sess, err := s.processor.GetSession(pctx, sessionID)
	if err != nil {
		s.log.WarnContext(ctx, "receipt session lookup failed", slog.String("session_id", sessionID), slog.Any("err", err))
		return Receipt{}, processorError(pctx, err)
	}
	items, err := s.processor.ListLineItems(pctx, sessionID)
	if err != nil {
		s.log.WarnContext(ctx, "receipt line items lookup failed", slog.String("session_id", sessionID), slog.Any("err", err))
		return Receipt{}, processorError(pctx, err)
	}
	return buildReceipt(sess, items), nil
}

func buildReceipt(sess payment.Session, items []payment.LineItem) Receipt {
	if items == nil {
		items = []payment.LineItem{}
	}
	var sum int64
	lines := make([]string, 0, len(items))
	for _, li := range items {
		sum += li.AmountTotal
		currency := li.Currency
		if currency == "" {
			currency = sess.Currency
		}
		lines = append(lines, fmt.Sprintf("%d x %s — %s", li.Quantity, li.Description, FormatAmount(li.AmountTotal, currency)))
	}
	total := sess.AmountTotal
	if total == 0 {
		total = sum
	}
	return Receipt{Session: sess, LineItems: items, Total: total, Lines: lines}
}

// FormatAmount renders minor units for display: "$39.98" for USD, the
// upper-case currency code followed by the amount otherwise.
func FormatAmount(minor int64, currency string) string {
	amount := payment.FromMinorUnits(minor).StringFixed(2)
	if currency == "" || strings.EqualFold(currency, "usd") {
		return "$" + amount
	}
	return strings.ToUpper(currency) + " " + amount
}

// ResolveRedirect maps the status on the processor's return URL to an
// outcome.  Only a success with a session id contacts the processor.
func (s *ReceiptService) ResolveRedirect(ctx context.Context, status, sessionID string) RedirectResult {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		if strings.TrimSpace(sessionID) == "" {
			return RedirectResult{Outcome: OutcomeUnknown}
		}
		r, err := s.GetReceipt(ctx, sessionID)
		if err != nil {
			return RedirectResult{Outcome: OutcomeFailed, Err: err}
		}
		return RedirectResult{Outcome: OutcomeSuccess, Receipt: &r}
	case "cancel", "cancelled", "canceled":
		return RedirectResult{Outcome: OutcomeCancelled}
	default:
		return RedirectResult{Outcome: OutcomeUnknown}
	}
}
