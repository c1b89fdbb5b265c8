package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer drains the events queue into a journal file, one line per
// event.
type Consumer struct {
	url         string
	queue       string
	journalPath string
	log         *zap.Logger
}

func NewConsumer(url, queue, journalPath string, log *zap.Logger) *Consumer {
	return &Consumer{url: url, queue: queue, journalPath: journalPath, log: log}
}

// Run reconnects with exponential backoff (capped at 30s) until ctx is
// cancelled. Malformed messages are rejected without requeue so one bad
// payload cannot stall the queue.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("event-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
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
		c.log.Warn("event-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("event-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.Error("event-consumer: handle message failed", zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(c.journalPath), 0o755); err != nil {
		return fmt.Errorf("mkdir journal dir: %w", err)
	}
	f, err := os.OpenFile(c.journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(JournalLine(ev) + "\n"); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// JournalLine renders an event as a single human-readable line.
func JournalLine(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type)
	switch ev.Type {
	case ContractAdmitted, ContractUpdated, ContractTerminated:
		fmt.Fprintf(&b, " | contract_id=%d | student_id=%d | room_id=%d | period=%s..%s",
			ev.ContractID, ev.StudentID, ev.RoomID, ev.StartDate, ev.EndDate)
	case RoomStatusChanged:
		fmt.Fprintf(&b, " | room_id=%d | %s -> %s | occupancy=%d/%d",
			ev.RoomID, ev.PreviousStatus, ev.Status, ev.Occupancy, ev.MaxOccupancy)
	case InvoiceTotalChanged:
		fmt.Fprintf(&b, " | invoice_id=%d | total %s -> %s", ev.InvoiceID, ev.PreviousTotal, ev.Total)
	}
	if ev.ID != "" {
		fmt.Fprintf(&b, " | id=%s", ev.ID)
	}
	return b.String()
}
