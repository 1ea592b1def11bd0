package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Coordination bundles the stores that must be shared between instances: the
// idempotency store of the task processor and the job locker of the scheduler
type Coordination struct {
	Idempotency shared.IdempotencyStore
	Locker      Locker
	client      *redis.Client
}

// Close releases the stores
func (c *Coordination) Close() error {
	if err := c.Idempotency.Close(); err != nil {
		return err
	}
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Distributed reports whether the stores are shared through Redis
func (c *Coordination) Distributed() bool {
	return c.client != nil
}

// FactoryOption configures NewCoordination
type FactoryOption func(*factory)

type factory struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-process stores when Redis
// is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCoordination connects to Redis and builds the shared stores. Without Redis it
// falls back to in-process stores when allowed.
func NewCoordination(cfg RedisConfig, opts ...FactoryOption) (*Coordination, error) {
	f := &factory{logger: zap.NewNop(), allowInMemoryFallback: true}
	for _, opt := range opts {
		opt(f)
	}

	client, err := NewRedisClient(cfg)
	if err == nil {
		f.logger.Info("using Redis for idempotency and job locks")
		return &Coordination{
			Idempotency: NewRedisIdempotencyStore(client, ""),
			Locker:      NewRedisLocker(client, ""),
			client:      client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process idempotency and locks. "+
		"Running several instances may execute jobs and side effects twice.",
		zap.Error(err),
	)
	return &Coordination{
		Idempotency: NewInMemoryIdempotencyStore(),
		Locker:      NewInMemoryLocker(),
	}, nil
}
