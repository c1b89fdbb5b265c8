package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends events to a durable queue on the default exchange. It
// dials once per Publish call.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
}

func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, queue: queue, log: log}
}

// Publish sends events in order as persistent messages and stops at the
// first failure. Errors are returned, not logged.
func (p *Publisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	for _, ev := range events {
		msg, err := Encode(ev)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
			return fmt.Errorf("publish %s event: %w", ev.Type, err)
		}
		p.log.Debug("event published", zap.String("type", ev.Type), zap.String("message_id", msg.MessageId))
	}
	return nil
}

// Encode fills in a message id when missing and wraps the event in an
// AMQP publishing.
func Encode(ev Event) (amqp.Publishing, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}, nil
}
