package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	busMaxAttempts    = 8
	busInitialBackoff = 100 * time.Millisecond
	busMaxBackoff     = 10 * time.Second
)

// ErrBusClosed is returned when publishing to a closed Bus.
var ErrBusClosed = errors.New("event bus closed")

// Bus is an in-process Publisher and Consumer backed by a buffered channel.
// Events that fail with a retryable error are redelivered with exponential
// backoff; permanent failures and events out of attempts are dropped.
type Bus struct {
	mu     sync.RWMutex
	ch     chan TransactionEvent
	closed bool
}

func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan TransactionEvent, buffer)}
}

// Publish enqueues e, blocking while the buffer is full.
func (b *Bus) Publish(ctx context.Context, e TransactionEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers events until ctx is done or the bus is closed and drained.
func (b *Bus) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-b.ch:
			if !ok {
				return nil
			}
			if err := deliver(ctx, h, e); err != nil {
				return err
			}
		}
	}
}

func deliver(ctx context.Context, h Handler, e TransactionEvent) error {
	backoff := busInitialBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, e)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			slog.WarnContext(ctx, "Dropping event after permanent failure", "event_id", e.ID, "error", err)
			return nil
		}
		if attempt >= busMaxAttempts {
			slog.ErrorContext(ctx, "Dropping event after retries", "event_id", e.ID, "attempts", attempt, "error", err)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, busMaxBackoff)
	}
}

// Close stops accepting events. Buffered events are still delivered.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}
