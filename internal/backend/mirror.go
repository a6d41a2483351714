package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/events"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	memsheet "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

const localBusBuffer = 256

// LocalMirror runs the sheet mirror inside the server process for
// EVENTS_BACKEND=memory. Bus is the publisher handed to the services.
type LocalMirror struct {
	Bus    *events.Bus
	Worker *worker.MirrorWorker
	Mirror sheets.TransactionMirror
}

// NewLocalMirror mirrors to Google Sheets when a spreadsheet is configured
// and to an in-memory sheet otherwise.
func NewLocalMirror(ctx context.Context, cfg *config.Config, manager *cache.Manager) (*LocalMirror, error) {
	var mirror sheets.TransactionMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("local mirror: %w", err)
		}
		slog.InfoContext(ctx, "Mirroring transactions to Google Sheets in process", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		mirror = client
	} else {
		slog.InfoContext(ctx, "Mirroring transactions to in-memory sheet")
		mirror = memsheet.New()
	}

	w := worker.NewMirrorWorker(mirror)
	if manager != nil {
		manager.Register(w.SeenCache())
	}
	return &LocalMirror{
		Bus:    events.NewBus(localBusBuffer),
		Worker: w,
		Mirror: mirror,
	}, nil
}

// Run applies bus events until ctx is done or the bus is closed and drained.
func (m *LocalMirror) Run(ctx context.Context) error {
	return m.Worker.Run(ctx, m.Bus)
}
