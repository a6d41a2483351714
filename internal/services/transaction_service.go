package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/store"
)

// TransactionService orchestrates writes across the store, the event
// publisher and the summary cache.
type TransactionService struct {
	store     store.TransactionStore
	publisher events.Publisher
	summaries SummaryInvalidator
	locks     *keyedMutex
	now       func() time.Time
}

// SummaryInvalidator drops cached month overviews. *SummaryService
// implements it.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context)
}

// NewTransactionService wires the service. publisher and summaries may be nil.
func NewTransactionService(st store.TransactionStore, publisher events.Publisher, summaries SummaryInvalidator) *TransactionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TransactionService{
		store:     st,
		publisher: publisher,
		summaries: summaries,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Add validates and records a new transaction.
func (s *TransactionService) Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.Create(ctx, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction added",
		"transaction_id", tx.ID.String(),
		"amount", tx.Amount.String(),
		"category", tx.Category)

	s.afterWrite(ctx, events.NewChanged(events.KindCreated, tx, s.now()))
	return tx, nil
}

// Update replaces an existing transaction. Writes to the same id are serialized.
func (s *TransactionService) Update(ctx context.Context, id core.TxID, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()
	if in.Type == "" {
		in.Type = id.Type
	}
	if in.Type != id.Type {
		return core.Transaction{}, core.NewValidationError("type", core.ErrTypeMismatch)
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	tx, err := s.store.Update(ctx, id, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "transaction_id", tx.ID.String())

	s.afterWrite(ctx, events.NewChanged(events.KindUpdated, tx, s.now()))
	return tx, nil
}

// Delete removes a transaction permanently.
func (s *TransactionService) Delete(ctx context.Context, id core.TxID) error {
	if !id.Type.Valid() || id.Num <= 0 {
		return core.NewValidationError("id", core.ErrInvalidID)
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id.String())

	s.afterWrite(ctx, events.NewDeleted(id, s.now()))
	return nil
}

// List returns the transactions matching opts, newest date first.
func (s *TransactionService) List(ctx context.Context, opts core.FilterOptions) ([]core.Transaction, error) {
	txs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.SortByDateDesc(core.FilterTransactions(txs, opts, s.now())), nil
}

// Categories lists the distinct categories in use.
func (s *TransactionService) Categories(ctx context.Context) ([]string, error) {
	txs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.Categories(txs), nil
}

// afterWrite publishes the change and drops cached summaries. Neither
// failure is returned: the write already succeeded.
func (s *TransactionService) afterWrite(ctx context.Context, e events.TransactionEvent) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event_id", e.ID,
			"kind", e.Kind,
			"transaction_id", e.TransactionID.String(),
			"error", err)
	}
	if s.summaries != nil {
		s.summaries.Invalidate(ctx)
	}
}

// Close closes the store and the publisher.
func (s *TransactionService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close transaction service: %w", err)
	}
	return nil
}
