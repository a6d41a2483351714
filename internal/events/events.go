// Package events describes transaction change notifications and the ports
// used to publish and consume them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Kind is the change that happened to a transaction.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// ErrPermanent marks handler failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent event failure")

// TransactionEvent is published after every successful store write.
// Deleted events carry only the identifier.
type TransactionEvent struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	TransactionID core.TxID       `json:"transaction_id"`
	Type          core.TxType     `json:"type"`
	Date          core.Date       `json:"date"`
	Category      string          `json:"category,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func newEvent(kind Kind, id core.TxID, now time.Time) TransactionEvent {
	return TransactionEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		TransactionID: id,
		Type:          id.Type,
		Amount:        decimal.Zero,
		OccurredAt:    now.UTC(),
	}
}

// NewChanged builds a created or updated event from the stored record.
func NewChanged(kind Kind, tx core.Transaction, now time.Time) TransactionEvent {
	ev := newEvent(kind, tx.ID, now)
	ev.Date = tx.Date
	ev.Category = tx.Category
	ev.Amount = tx.Amount
	ev.Description = tx.Description
	return ev
}

// NewDeleted builds a deleted event.
func NewDeleted(id core.TxID, now time.Time) TransactionEvent {
	return newEvent(KindDeleted, id, now)
}

// Transaction rebuilds the record carried by a created or updated event.
func (e TransactionEvent) Transaction() core.Transaction {
	return core.Transaction{
		ID:          e.TransactionID,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		Type:        e.TransactionID.Type,
		Status:      core.StatusSuccess,
	}
}

// Validate checks the fields every consumer relies on.
func (e TransactionEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing event id", ErrPermanent)
	}
	switch e.Kind {
	case KindCreated, KindUpdated, KindDeleted:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrPermanent, e.Kind)
	}
	if !e.TransactionID.Type.Valid() || e.TransactionID.Num <= 0 {
		return fmt.Errorf("%w: invalid transaction id %q", ErrPermanent, e.TransactionID)
	}
	return nil
}

// Encode serializes the event as JSON.
func (e TransactionEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses and validates a JSON event.
func Decode(data []byte) (TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return TransactionEvent{}, fmt.Errorf("%w: decode event: %v", ErrPermanent, err)
	}
	if err := e.Validate(); err != nil {
		return TransactionEvent{}, err
	}
	return e, nil
}

// Handler processes one event. Returning an error wrapping ErrPermanent
// drops the event; any other error asks for redelivery.
type Handler func(ctx context.Context, e TransactionEvent) error

type (
	Publisher interface {
		Publish(ctx context.Context, e TransactionEvent) error
		Close() error
	}

	Consumer interface {
		// Consume blocks, delivering events to h until ctx is done.
		Consume(ctx context.Context, h Handler) error
		Close() error
	}
)

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TransactionEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }
