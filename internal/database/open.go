package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tag-a-log/internal/config"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Open opens the document store selected by cfg.StoreDriver
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*docstore.Store, error) {
	var opts []docstore.Option
	if logger != nil {
		opts = append(opts, docstore.WithLogger(logger))
	}
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return docstore.OpenPostgres(ctx, cfg.DatabaseURL, opts...)
	case config.StoreDriverBadger:
		return docstore.OpenBadger(cfg.BadgerPath, opts...)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// NewRedisClient connects to Redis and checks the connection. It returns a
// nil client when redisURL is empty.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
