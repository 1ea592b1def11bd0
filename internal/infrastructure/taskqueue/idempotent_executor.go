package taskqueue

import (
	"context"
	"sync/atomic"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics tracks idempotency-related statistics
type IdempotencyMetrics struct {
	Executed   atomic.Int64
	Duplicates atomic.Int64
	Failed     atomic.Int64
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	Executed   int64 `json:"executed"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		Executed:   m.Executed.Load(),
		Duplicates: m.Duplicates.Load(),
		Failed:     m.Failed.Load(),
	}
}

// IdempotentExecutor skips executions whose execution key (task key + generation)
// already succeeded. A worker that dies after the external call but before the task
// is completed does not repeat the call when the task is reclaimed.
//
// Keys are recorded only after success so failed executions stay retryable.
type IdempotentExecutor struct {
	next    effect.Executor
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentExecutorOption is a functional option for IdempotentExecutor
type IdempotentExecutorOption func(*IdempotentExecutor)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentExecutorOption {
	return func(e *IdempotentExecutor) {
		e.config = config
	}
}

// WithIdempotencyMetrics shares a metrics collector between executors
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentExecutorOption {
	return func(e *IdempotentExecutor) {
		e.metrics = metrics
	}
}

// NewIdempotentExecutor wraps next with an idempotency guard
func NewIdempotentExecutor(next effect.Executor, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentExecutorOption) *IdempotentExecutor {
	e := &IdempotentExecutor{
		next:    next,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the wrapped executor unless this generation already succeeded
func (e *IdempotentExecutor) Execute(ctx context.Context, task *effect.Task) error {
	if !e.config.Enabled {
		return e.next.Execute(ctx, task)
	}

	key := task.ExecutionKey()
	done, err := e.store.IsProcessed(ctx, key)
	if err != nil {
		// A store outage must not stall the queue; executors tolerate repeats.
		e.logger.Warn("failed to check idempotency, executing anyway",
			zap.String("execution_key", key),
			zap.Error(err),
		)
	} else if done {
		e.metrics.Duplicates.Add(1)
		e.logger.Debug("execution already succeeded, skipping", zap.String("execution_key", key))
		return nil
	}

	if err := e.next.Execute(ctx, task); err != nil {
		e.metrics.Failed.Add(1)
		return err
	}
	e.metrics.Executed.Add(1)

	if _, err := e.store.MarkProcessed(ctx, key, e.config.TTL); err != nil {
		e.logger.Warn("failed to record execution",
			zap.String("execution_key", key),
			zap.Error(err),
		)
	}
	return nil
}

// Metrics returns the metrics for this executor
func (e *IdempotentExecutor) Metrics() *IdempotencyMetrics {
	return e.metrics
}

var _ effect.Executor = (*IdempotentExecutor)(nil)

// WrapExecutors wraps every executor of the map with the same store and options
func WrapExecutors(
	executors map[effect.Type]effect.Executor,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentExecutorOption,
) map[effect.Type]effect.Executor {
	wrapped := make(map[effect.Type]effect.Executor, len(executors))
	for t, exec := range executors {
		wrapped[t] = NewIdempotentExecutor(exec, store, logger, opts...)
	}
	return wrapped
}
