package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Stores bundles the coordination primitives built from the redis config.
type Stores struct {
	Idempotency shared.IdempotencyStore
	JobLock     JobLock
	client      *redis.Client
}

// Close releases the idempotency store and the redis client
func (s *Stores) Close() error {
	err := s.Idempotency.Close()
	if s.client != nil {
		if cerr := s.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Ping checks the redis connection; the in-memory stores always answer
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// NewStores connects to redis when a host is configured and falls back to
// process memory otherwise. A configured but unreachable redis is an error
// unless allowFallback is set.
func NewStores(ctx context.Context, cfg config.RedisConfig, allowFallback bool, logger *zap.Logger) (*Stores, error) {
	if cfg.Host == "" {
		logger.Info("Redis not configured, using in-memory idempotency store and job lock")
		return memoryStores(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !allowFallback {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
		}
		logger.Warn("Redis unavailable, falling back to in-memory stores; webhook dedup is per instance",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return memoryStores(), nil
	}

	logger.Info("Using redis idempotency store and job lock", zap.String("addr", cfg.Addr()))
	return &Stores{
		Idempotency: NewRedisIdempotencyStore(client, DefaultKeyPrefix),
		JobLock:     NewRedisJobLock(client),
		client:      client,
	}, nil
}

func memoryStores() *Stores {
	return &Stores{
		Idempotency: NewMemoryIdempotencyStore(5 * time.Minute),
		JobLock:     NewMemoryJobLock(),
	}
}
