package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

const (
	seenEventsSize = 4096
	seenEventsTTL  = 24 * time.Hour
)

// MirrorWorker applies transaction events to a sheet mirror.
type MirrorWorker struct {
	mirror sheets.TransactionMirror
	// seen remembers applied event ids so redeliveries are not applied twice.
	seen *cache.LRUCache[struct{}]
}

func NewMirrorWorker(mirror sheets.TransactionMirror) *MirrorWorker {
	return &MirrorWorker{
		mirror: mirror,
		seen:   cache.NewLRUCache[struct{}](seenEventsSize, seenEventsTTL),
	}
}

// SeenCache exposes the dedup cache so callers can register it for cleanup.
func (w *MirrorWorker) SeenCache() *cache.LRUCache[struct{}] {
	return w.seen
}

// Run consumes events until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, consumer events.Consumer) error {
	slog.InfoContext(ctx, "Mirror worker started")
	err := consumer.Consume(ctx, w.HandleEvent)
	if ctx.Err() != nil {
		slog.InfoContext(ctx, "Mirror worker stopped")
		return nil
	}
	return err
}

// HandleEvent processes a single transaction event.
func (w *MirrorWorker) HandleEvent(ctx context.Context, e events.TransactionEvent) error {
	if _, ok, _ := w.seen.Get(ctx, e.ID); ok {
		slog.DebugContext(ctx, "Skipping already applied event", "event_id", e.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing transaction event",
		"event_id", e.ID,
		"kind", e.Kind,
		"transaction_id", e.TransactionID.String())

	var err error
	switch e.Kind {
	case events.KindCreated, events.KindUpdated:
		err = w.mirror.Upsert(ctx, e.Transaction())
	case events.KindDeleted:
		err = w.mirror.Delete(ctx, e.TransactionID)
	default:
		return fmt.Errorf("%w: unknown kind %q", events.ErrPermanent, e.Kind)
	}
	if err != nil {
		return fmt.Errorf("mirror %s %s: %w", e.Kind, e.TransactionID, err)
	}

	_ = w.seen.Set(ctx, e.ID, struct{}{})
	return nil
}

// ReconcileResult counts the rows touched by Reconcile.
type ReconcileResult struct {
	Upserted int
	Deleted  int
	Errors   int
}

// Reconcile brings the mirror in line with the store. It is a backup for
// events lost while the worker was down: rows missing or stale in the sheet
// are rewritten and rows whose transaction no longer exists are removed.
func Reconcile(ctx context.Context, reader store.TransactionReader, mirror sheets.TransactionMirror, lister sheets.RowLister) (ReconcileResult, error) {
	var res ReconcileResult

	txs, err := reader.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list transactions: %w", err)
	}
	rows, err := lister.Rows(ctx)
	if err != nil {
		return res, fmt.Errorf("list sheet rows: %w", err)
	}

	existing := make(map[string]sheets.Row, len(rows))
	for _, r := range rows {
		existing[r.Key] = r
	}

	live := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		want := sheets.RowFor(tx)
		live[want.Key] = struct{}{}
		if got, ok := existing[want.Key]; ok && got == want {
			continue
		}
		if err := mirror.Upsert(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to reconcile row", "transaction_id", want.Key, "error", err)
			res.Errors++
			continue
		}
		res.Upserted++
	}

	for _, r := range rows {
		if _, ok := live[r.Key]; ok {
			continue
		}
		id, err := core.ParseTxID(r.Key)
		if err != nil {
			slog.WarnContext(ctx, "Ignoring sheet row with foreign key", "key", r.Key)
			continue
		}
		if err := mirror.Delete(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to remove stale row", "transaction_id", r.Key, "error", err)
			res.Errors++
			continue
		}
		res.Deleted++
	}

	slog.InfoContext(ctx, "Reconcile completed",
		"transactions", len(txs),
		"upserted", res.Upserted,
		"deleted", res.Deleted,
		"errors", res.Errors)
	return res, nil
}
