package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/events"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

func main() {
	// Load .env file for local development (missing file is fine in production/docker)
	envErr := cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if envErr != nil {
		logger.Warn("Failed to load .env file", log.FieldError, envErr)
	}
	cfg := cli.LoadAndValidateConfig(logger)

	limit, err := cfg.SpendingLimitDecimal()
	if err != nil {
		logger.Error("Invalid spending limit", log.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()

	res, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open transaction store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)

	summaries, closeSummaries, err := backend.NewSummaryCache(ctx, cfg, cacheManager)
	if err != nil {
		logger.Error("Failed to initialize summary cache", log.FieldError, err)
		os.Exit(1)
	}

	var (
		publisher   events.Publisher
		mirrorDone  = make(chan struct{})
		localMirror *backend.LocalMirror
	)
	if cfg.EventsBackend == "memory" {
		localMirror, err = backend.NewLocalMirror(ctx, cfg, cacheManager)
		if err != nil {
			logger.Error("Failed to initialize in-process mirror", log.FieldError, err)
			os.Exit(1)
		}
		publisher = localMirror.Bus
		go func() {
			defer close(mirrorDone)
			// Ends once the bus is closed and drained.
			if err := localMirror.Run(context.Background()); err != nil {
				logger.Error("In-process mirror stopped", log.FieldError, err)
			}
		}()
	} else {
		close(mirrorDone)
		publisher = backend.NewPublisher(ctx, cfg)
	}
	cacheManager.StartCleanup(5 * time.Minute)

	summaryService := services.NewSummaryService(res.Store, summaries, limit)
	txService := services.NewTransactionService(res.Store, publisher, summaryService)

	var pinger store.Pinger
	if p, ok := res.Store.(store.Pinger); ok {
		pinger = p
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
			CleanupInterval:   ratelimit.DefaultConfig().CleanupInterval,
			IdleTimeout:       ratelimit.DefaultConfig().IdleTimeout,
		},
		Logger: logger,
	}, txService, summaryService, pinger)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if closeSummaries != nil {
			if err := closeSummaries(); err != nil {
				logger.Warn("Failed to close summary cache", log.FieldError, err)
			}
		}
		// Closes the publisher and the store.
		if err := txService.Close(); err != nil {
			logger.Error("Failed to close transaction service", log.FieldError, err)
		}
		select {
		case <-mirrorDone:
		case <-ctx.Done():
			logger.Warn("In-process mirror did not drain before shutdown timeout")
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"events", cfg.EventsBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
