// Package kafka carries transaction events over a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"fintrack/internal/events"
)

const (
	headerKind   = "kind"
	maxAttempts  = 5
	retryBackoff = 500 * time.Millisecond
)

type (
	messageWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	messageReader interface {
		FetchMessage(ctx context.Context) (kafka.Message, error)
		CommitMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}
)

// Publisher writes events keyed by transaction id so every change to one
// transaction lands on the same partition in order.
type Publisher struct {
	writer messageWriter
	topic  string
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (p *Publisher) Publish(ctx context.Context, e events.TransactionEvent) error {
	data, err := e.Encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(e.TransactionID.String()),
		Value:   data,
		Time:    e.OccurredAt,
		Headers: []kafka.Header{{Key: headerKind, Value: []byte(e.Kind)}},
	})
	if err != nil {
		return fmt.Errorf("write event to %s: %w", p.topic, err)
	}

	slog.DebugContext(ctx, "Published transaction event",
		"topic", p.topic,
		"event_id", e.ID,
		"transaction_id", e.TransactionID.String())
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads events as part of a consumer group and commits offsets only
// after the handler is done with a message.
type Consumer struct {
	reader  messageReader
	backoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		backoff: retryBackoff,
	}
}

// Consume fetches until ctx is done. A message whose handler keeps failing
// with retryable errors is committed after maxAttempts so one bad record
// cannot stall the partition.
func (c *Consumer) Consume(ctx context.Context, handler events.Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.handle(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// handle returns an error only when ctx ends while retrying.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler events.Handler) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		slog.ErrorContext(ctx, "Skipping undecodable message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		return nil
	}

	for attempt := 1; ; attempt++ {
		err := handler(ctx, ev)
		if err == nil {
			return nil
		}
		if errors.Is(err, events.ErrPermanent) || attempt >= maxAttempts {
			slog.ErrorContext(ctx, "Dropping transaction event",
				"event_id", ev.ID,
				"transaction_id", ev.TransactionID.String(),
				"attempts", attempt,
				"error", err)
			return nil
		}

		slog.WarnContext(ctx, "Retrying transaction event",
			"event_id", ev.ID,
			"attempt", attempt,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
