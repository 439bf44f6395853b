package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/storefront/internal/cart"
	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/payment"
	"github.com/iliyamo/storefront/internal/queue"
)

// Metadata keys attached to every checkout session.
const (
	MetaUserID      = "user_id"
	MetaItems       = "items"
	MetaCheckoutRef = "checkout_ref"
)

const (
	storeTimeout   = 5 * time.Second
	publishTimeout = 10 * time.Second
	pendingPoll    = 50 * time.Millisecond
)

// EventPublisher receives checkout audit events.
type EventPublisher interface {
	PublishCheckoutCreated(ctx context.Context, ev queue.CheckoutCreatedEvent) error
}

// CheckoutConfig is the slice of the process configuration the
// checkout service needs.
type CheckoutConfig struct {
	Currency          string
	SuccessURL        string
	CancelURL         string
	Timeout           time.Duration // bound on each processor call
	IdempotencyWindow time.Duration // 0 disables replay of duplicate requests
}

// CheckoutConfigFrom extracts the checkout settings from cfg.
func CheckoutConfigFrom(cfg config.Config) CheckoutConfig {
	return CheckoutConfig{
		Currency:          cfg.PaymentCurrency,
		SuccessURL:        cfg.CheckoutSuccessURL,
		CancelURL:         cfg.CheckoutCancelURL,
		Timeout:           cfg.PaymentTimeout,
		IdempotencyWindow: cfg.IdempotencyWindow,
	}
}

// CheckoutResult is what the client needs to redirect the buyer.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// CheckoutService turns a cart into a hosted payment session.  It keeps
// no order record: the processor session is the only trace.
type CheckoutService struct {
	processor payment.Processor
	users     UserStore
	events    EventPublisher
	idem      IdempotencyStore
	cfg       CheckoutConfig
	log       *slog.Logger

	// pendingWait bounds both a reservation's lifetime and how long a
	// duplicate request waits for its holder.
	pendingWait time.Duration

	wg sync.WaitGroup
}

// CheckoutOption wires optional collaborators.
type CheckoutOption func(*CheckoutService)

// WithEvents publishes a checkout.created event after every new session.
func WithEvents(p EventPublisher) CheckoutOption {
	return func(s *CheckoutService) { s.events = p }
}

// WithIdempotency enables replay of results for repeated Idempotency-Key
// values.  It has no effect while the configured window is zero.
func WithIdempotency(st IdempotencyStore) CheckoutOption {
	return func(s *CheckoutService) { s.idem = st }
}

func NewCheckoutService(p payment.Processor, users UserStore, cfg CheckoutConfig, log *slog.Logger, opts ...CheckoutOption) *CheckoutService {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &CheckoutService{processor: p, users: users, cfg: cfg, log: log, pendingWait: cfg.Timeout + storeTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateCheckout opens a processor session for the cart of userID.  An
// empty cart is rejected before the processor is contacted.  Processor
// failures are reported as ErrPaymentProvider or ErrTimeout and are not
// retried.
func (s *CheckoutService) CreateCheckout(ctx context.Context, c *cart.Cart, userID, idempotencyKey string) (CheckoutResult, error) {
	if c == nil || c.IsEmpty() {
		return CheckoutResult{}, fmt.Errorf("%w: cart is empty", ErrValidation)
	}
	if userID == "" {
		return CheckoutResult{}, fmt.Errorf("%w: missing user", ErrAuthentication)
	}

	// idemKey scopes the client key to the buyer.  owned is true when this
	// request holds the reservation and must complete or release it.
	idemKey, owned := "", false
	if s.idem != nil && s.cfg.IdempotencyWindow > 0 && idempotencyKey != "" {
		idemKey = userID + ":" + idempotencyKey
		prev, replay, held, err := s.reserve(ctx, idemKey)
		if err != nil {
			return CheckoutResult{}, err
		}
		if replay {
			s.log.InfoContext(ctx, "checkout replayed", slog.String("session_id", prev.SessionID), slog.String("user_id", userID))
			return prev, nil
		}
		owned = held
	}

	lines := c.Lines()
	items := make([]payment.Item, 0, len(lines))
	eventItems := make([]queue.EventItem, 0, len(lines))
	var total int64
	for _, l := range lines {
		unit := payment.ToMinorUnits(l.UnitPrice)
		qty := int64(l.Quantity)
		items = append(items, payment.Item{Name: l.Name, UnitAmount: unit, Quantity: qty})
		eventItems = append(eventItems, queue.EventItem{Name: l.Name, Quantity: qty, UnitAmountCents: unit})
		total += unit * qty
	}
	snapshot, err := json.Marshal(c.Snapshot())
	if err != nil {
		if owned {
			s.release(ctx, idemKey)
		}
		return CheckoutResult{}, fmt.Errorf("encode cart snapshot: %w", err)
	}
	// A keyed checkout gets a ref derived from the key and the cart, so a
	// repeated request sends the processor identical parameters.
	ref := uuid.NewString()
	if idemKey != "" {
		ref = uuid.NewSHA1(uuid.NameSpaceURL, []byte(idemKey+"\n"+string(snapshot))).String()
	}

	params := payment.CreateParams{
		Items:      items,
		Currency:   s.cfg.Currency,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
		Metadata: map[string]string{
			MetaUserID:      userID,
			MetaItems:       string(snapshot),
			MetaCheckoutRef: ref,
		},
		CustomerEmail: s.buyerEmail(ctx, userID),
	}
	if idemKey != "" {
		params.IdempotencyKey = idemKey + ":" + ref
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	sess, err := s.processor.CreateSession(pctx, params)
	if err != nil {
		s.log.ErrorContext(ctx, "checkout session creation failed", slog.String("user_id", userID), slog.Any("err", err))
		if owned {
			s.release(ctx, idemKey)
		}
		return CheckoutResult{}, processorError(pctx, err)
	}
	res := CheckoutResult{URL: sess.URL, SessionID: sess.ID}
	s.log.InfoContext(ctx, "checkout session created",
		slog.String("session_id", sess.ID),
		slog.String("user_id", userID),
		slog.Int64("amount_total", total))

	if owned {
		sctx, cancelStore := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		if err := s.idem.Put(sctx, idemKey, res, s.cfg.IdempotencyWindow); err != nil {
			s.log.WarnContext(ctx, "idempotency store failed", slog.Any("err", err))
		}
		cancelStore()
	}
	s.publish(ctx, queue.CheckoutCreatedEvent{
		SessionID:        sess.ID,
		CheckoutRef:      ref,
		UserID:           userID,
		CustomerEmail:    params.CustomerEmail,
		Currency:         s.cfg.Currency,
		TotalAmountCents: total,
		Items:            eventItems,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
	})
	return res, nil
}

// reserve claims idemKey for this request.  When another request holds
// it, reserve polls until that request stores its result (replay) or
// releases the key (this request takes over).  A store failure disables
// de-duplication for the request instead of failing the checkout.
func (s *CheckoutService) reserve(ctx context.Context, idemKey string) (prev CheckoutResult, replay, owned bool, err error) {
	deadline := time.Now().Add(s.pendingWait)
	for {
		ok, err := s.idem.Reserve(ctx, idemKey, s.pendingWait)
		if err != nil {
			s.log.WarnContext(ctx, "idempotency reserve failed", slog.Any("err", err))
			return CheckoutResult{}, false, false, nil
		}
		if ok {
			return CheckoutResult{}, false, true, nil
		}
		res, done, err := s.idem.Get(ctx, idemKey)
		if err != nil {
			s.log.WarnContext(ctx, "idempotency lookup failed", slog.Any("err", err))
			return CheckoutResult{}, false, false, nil
		}
		if done {
			return res, true, false, nil
		}
		if !time.Now().Before(deadline) {
			return CheckoutResult{}, false, false, fmt.Errorf("%w: checkout already in progress", ErrConflict)
		}
		select {
		case <-ctx.Done():
			return CheckoutResult{}, false, false, ctx.Err()
		case <-time.After(pendingPoll):
		}
	}
}

func (s *CheckoutService) release(ctx context.Context, idemKey string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := s.idem.Release(rctx, idemKey); err != nil {
		s.log.WarnContext(ctx, "idempotency release failed", slog.Any("err", err))
	}
}

// buyerEmail looks up the email of userID.  Any failure just leaves the
// email off the session.
func (s *CheckoutService) buyerEmail(ctx context.Context, userID string) string {
	if s.users == nil {
		return ""
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	u, err := s.users.GetByID(sctx, userID)
	if err != nil {
		s.log.DebugContext(ctx, "buyer email lookup failed", slog.String("user_id", userID), slog.Any("err", err))
		return ""
	}
	return u.Email
}

// publish sends ev in the background; failures are only logged.
func (s *CheckoutService) publish(ctx context.Context, ev queue.CheckoutCreatedEvent) {
	if s.events == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.events.PublishCheckoutCreated(pctx, ev); err != nil {
			s.log.Warn("checkout event not published", slog.String("session_id", ev.SessionID), slog.Any("err", err))
		}
	}()
}

// Wait blocks until in-flight event publishes finish.
func (s *CheckoutService) Wait() { s.wg.Wait() }

// processorError classifies a processor failure.  ctx is the context
// the call ran under, so a deadline is detected even when the SDK does
// not wrap it.
func processorError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: payment processor did not respond in time", ErrTimeout)
	case errors.Is(err, payment.ErrSessionNotFound):
		return fmt.Errorf("%w: checkout session not found", ErrNotFound)
	default:
		return fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
}
