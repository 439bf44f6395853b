package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker in front of a Processor.
type BreakerSettings struct {
	MaxFailures uint32        // consecutive failures that open the breaker
	OpenTimeout time.Duration // how long the breaker stays open before probing
}

// BreakerProcessor fails fast with ErrUnavailable once the wrapped
// processor has failed MaxFailures times in a row.  Calls are never
// retried.
type BreakerProcessor struct {
	next Processor
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerProcessor wraps next with a circuit breaker.
func NewBreakerProcessor(next Processor, s BreakerSettings, log *slog.Logger) *BreakerProcessor {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	maxFailures := s.MaxFailures
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &BreakerProcessor{next: next, cb: cb}
}

// countsAsHealthy keeps caller-side outcomes from tripping the breaker:
// a missing session or a cancelled request says nothing about the
// processor's health.
func countsAsHealthy(err error) bool {
	return err == nil || errors.Is(err, ErrSessionNotFound) || errors.Is(err, context.Canceled)
}

func (b *BreakerProcessor) CreateSession(ctx context.Context, p CreateParams) (Session, error) {
	return execute(b.cb, func() (Session, error) { return b.next.CreateSession(ctx, p) })
}

func (b *BreakerProcessor) GetSession(ctx context.Context, id string) (Session, error) {
	return execute(b.cb, func() (Session, error) { return b.next.GetSession(ctx, id) })
}

func (b *BreakerProcessor) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	return execute(b.cb, func() ([]LineItem, error) { return b.next.ListLineItems(ctx, sessionID) })
}

// State reports the breaker state, e.g. for health output.
func (b *BreakerProcessor) State() string { return b.cb.State().String() }

func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}
