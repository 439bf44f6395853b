package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultAuditLog is where the consumer appends one line per event.
var DefaultAuditLog = filepath.Join("logs", "checkout.log")

// Consumer drains the checkout.created queue into an append-only log file.
type Consumer struct {
	url     string
	logPath string
	log     *slog.Logger
}

func NewConsumer(url, logPath string, log *slog.Logger) *Consumer {
	if logPath == "" {
		logPath = DefaultAuditLog
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{url: url, logPath: logPath, log: log}
}

// Run connects to the broker and consumes until ctx is cancelled.
// Connection failures are retried with exponential backoff capped at
// 30s; Run only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("checkout-consumer: failed to dial broker", slog.Any("err", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("checkout-consumer: consume loop ended; reconnecting", slog.Any("err", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("checkout-consumer: set QoS failed", slog.Any("err", err))
	}
	if err := declareQueue(ch, CheckoutCreatedQueue); err != nil {
		return err
	}
	msgs, err := ch.Consume(CheckoutCreatedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("checkout-consumer: consuming", slog.String("queue", CheckoutCreatedQueue), slog.String("log", c.logPath))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.HandleMessage(d.Body); err != nil {
				c.log.Error("checkout-consumer: handle message failed", slog.Any("err", err))
				_ = d.Nack(false, false) // reject without requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and appends it to the audit log.
func (c *Consumer) HandleMessage(body []byte) error {
	var ev CheckoutCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.SessionID == "" {
		return errors.New("event without session_id")
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single human-readable line.
func FormatAuditLine(ev CheckoutCreatedEvent) string {
	items := make([]string, 0, len(ev.Items))
	for _, it := range ev.Items {
		items = append(items, fmt.Sprintf("%dx%s@%d", it.Quantity, it.Name, it.UnitAmountCents))
	}
	return fmt.Sprintf("[%s] Checkout created | session_id=%s | ref=%s | user_id=%s | email=%q | total=%d %s | items=[%s]\n",
		ev.CreatedAt, ev.SessionID, ev.CheckoutRef, ev.UserID, ev.CustomerEmail,
		ev.TotalAmountCents, strings.ToUpper(ev.Currency), strings.Join(items, ","))
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
