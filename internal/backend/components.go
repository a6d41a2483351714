package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/kafka"
)

const (
	summaryCacheSize   = 64
	summaryCachePrefix = "fintrack:summary:"
)

// NewSummaryCache builds the month overview cache selected by CACHE_BACKEND.
// In-process caches are registered with manager for expiry cleanup.
func NewSummaryCache(ctx context.Context, cfg *config.Config, manager *cache.Manager) (cache.Cache[core.MonthOverview], CleanupFunc, error) {
	switch cfg.CacheBackend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("summary cache: %w", err)
		}
		slog.InfoContext(ctx, "Using Redis summary cache", "addr", cfg.RedisAddr, "ttl", cfg.SummaryCacheTTL)
		return cache.NewRedisCache[core.MonthOverview](client, summaryCachePrefix, cfg.SummaryCacheTTL), client.Close, nil
	case "memory", "":
		lru := cache.NewLRUCache[core.MonthOverview](summaryCacheSize, cfg.SummaryCacheTTL)
		if manager != nil {
			manager.Register(lru)
		}
		return lru, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.CacheBackend)
	}
}

// NewPublisher builds the event publisher selected by EVENTS_BACKEND. A
// broker that cannot be reached at startup degrades to no events.
func NewPublisher(ctx context.Context, cfg *config.Config) events.Publisher {
	switch cfg.EventsBackend {
	case "amqp":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			return events.NopPublisher{}
		}
		slog.InfoContext(ctx, "Initialized AMQP publisher",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
		return client
	case "kafka":
		slog.InfoContext(ctx, "Initialized Kafka publisher",
			"brokers", cfg.KafkaBrokers,
			"topic", cfg.KafkaTopic)
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return events.NopPublisher{}
	}
}

// NewConsumer builds the event source the mirror worker reads from.
func NewConsumer(cfg *config.Config) (events.Consumer, error) {
	switch cfg.EventsBackend {
	case "amqp":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("amqp consumer: %w", err)
		}
		return client, nil
	case "kafka":
		return kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID), nil
	default:
		return nil, fmt.Errorf("events backend %q cannot be consumed", cfg.EventsBackend)
	}
}
