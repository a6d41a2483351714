package main

import (
	"context"
	"flag"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	reconcile := flag.Bool("reconcile", false, "rewrite the sheet from the transaction store before consuming events")
	flag.Parse()

	envErr := cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")).WithComponent(log.ComponentWorker)
	if envErr != nil {
		logger.Warn("Failed to load .env file", log.FieldError, envErr)
	}

	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate, (*config.Config).ValidateWorker)

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	consumer, err := backend.NewConsumer(cfg)
	if err != nil {
		logger.Error("Failed to initialize event consumer", log.FieldError, err, "events", cfg.EventsBackend)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(sheetsClient)

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(mirrorWorker.SeenCache())
	cacheManager.StartCleanup(10 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		cacheManager.Stop()
		if err := consumer.Close(); err != nil {
			logger.Warn("Failed to close event consumer", log.FieldError, err)
		}
	})

	if *reconcile {
		if err := runReconcile(ctx, logger, cfg, sheetsClient); err != nil {
			logger.Error("Reconcile failed", log.FieldError, err)
		}
	}

	if err := mirrorWorker.Run(ctx, consumer); err != nil {
		logger.Error("Mirror worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

func runReconcile(ctx context.Context, logger *log.Logger, cfg *config.Config, client *gsheet.Client) error {
	res, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Store.Close(); err != nil {
			logger.Warn("Failed to close transaction store", log.FieldError, err)
		}
	}()

	result, err := worker.Reconcile(ctx, res.Store, client, client)
	if err != nil {
		return err
	}
	logger.Info("Sheet reconciled with store",
		"upserted", result.Upserted,
		"deleted", result.Deleted,
		"errors", result.Errors)
	return nil
}
