package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends checkout events to RabbitMQ.  Each publish opens its
// own connection, so a broker outage never leaves a stale connection
// behind.
type Publisher struct {
	url string
	log *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log}
}

// PublishCheckoutCreated publishes ev to the checkout.created queue as a
// persistent JSON message.  Errors are logged and returned so the
// caller can choose to ignore them.
func (p *Publisher) PublishCheckoutCreated(ctx context.Context, ev CheckoutCreatedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.publish(ctx, CheckoutCreatedQueue, body); err != nil {
		p.log.WarnContext(ctx, "rabbitmq publish failed",
			slog.String("queue", CheckoutCreatedQueue),
			slog.String("session_id", ev.SessionID),
			slog.Any("err", err))
		return err
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, queue); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// Default exchange; the routing key is the queue name.
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func declareQueue(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

// NopPublisher drops every event.  It is used when no broker URL is
// configured.
type NopPublisher struct{}

func (NopPublisher) PublishCheckoutCreated(context.Context, CheckoutCreatedEvent) error { return nil }
