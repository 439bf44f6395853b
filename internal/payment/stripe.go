package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProcessor implements Processor with Stripe Checkout.
type StripeProcessor struct {
	api *client.API
}

// StripeOption customizes the Stripe backend.
type StripeOption func(*stripe.BackendConfig)

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(url string, hc *http.Client) StripeOption {
	return func(c *stripe.BackendConfig) {
		c.URL = stripe.String(url)
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewStripeProcessor builds a client for secretKey.  Network retries are
// disabled: a failed call surfaces to the caller immediately.
func NewStripeProcessor(secretKey string, log *slog.Logger, opts ...StripeOption) *StripeProcessor {
	if log == nil {
		log = slog.Default()
	}
	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     stripeLogger{log: log.With(slog.String("component", "stripe"))},
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(cfg)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeProcessor{api: api}
}

func (p *StripeProcessor) CreateSession(ctx context.Context, in CreateParams) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
	}
	for _, it := range in.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(in.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, mapStripeError("create checkout session", err)
	}
	return sessionFromStripe(s), nil
}

func (p *StripeProcessor) GetSession(ctx context.Context, id string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return Session{}, mapStripeError("get checkout session", err)
	}
	return sessionFromStripe(s), nil
}

func (p *StripeProcessor) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var out []LineItem
	it := p.api.CheckoutSessions.ListLineItems(params)
	for it.Next() {
		li := it.LineItem()
		item := LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			AmountTotal: li.AmountTotal,
			Currency:    string(li.Currency),
		}
		if li.Price != nil {
			item.UnitAmount = li.Price.UnitAmount
		}
		out = append(out, item)
	}
	if err := it.Err(); err != nil {
		return nil, mapStripeError("list line items", err)
	}
	return out, nil
}

func sessionFromStripe(s *stripe.CheckoutSession) Session {
	out := Session{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if out.CustomerEmail == "" && s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if s.Created > 0 {
		out.Created = time.Unix(s.Created, 0).UTC()
	}
	return out
}

// mapStripeError turns a missing resource into ErrSessionNotFound and
// wraps everything else with the operation name.
func mapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && (se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound) {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// stripeLogger routes the SDK's own logging into slog.
type stripeLogger struct {
	log *slog.Logger
}

func (l stripeLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l stripeLogger) Infof(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l stripeLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...))
}

func (l stripeLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...))
}
