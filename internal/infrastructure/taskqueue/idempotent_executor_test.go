package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	keys    map[string]time.Duration
	readErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]time.Duration)}
}

func (s *fakeStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = ttl
	return true, nil
}

func (s *fakeStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	_, ok := s.keys[key]
	return ok, nil
}

func (s *fakeStore) Close() error { return nil }

type countingExecutor struct {
	calls int
	err   error
}

func (e *countingExecutor) Execute(ctx context.Context, task *effect.Task) error {
	e.calls++
	return e.err
}

func TestIdempotentExecutor_SkipsSucceededGeneration(t *testing.T) {
	store := newFakeStore()
	inner := &countingExecutor{}
	exec := NewIdempotentExecutor(inner, store, zap.NewNop())
	task := effect.MustNewTask("node-1", testType, nil)

	require.NoError(t, exec.Execute(context.Background(), task))
	require.NoError(t, exec.Execute(context.Background(), task))

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, IdempotencyStats{Executed: 1, Duplicates: 1}, exec.Metrics().Stats())
	assert.Equal(t, shared.DefaultIdempotencyConfig().TTL, store.keys[task.ExecutionKey()])
}

func TestIdempotentExecutor_NewGenerationExecutes(t *testing.T) {
	inner := &countingExecutor{}
	exec := NewIdempotentExecutor(inner, newFakeStore(), zap.NewNop())
	task := effect.MustNewTask("node-1", testType, nil)

	require.NoError(t, exec.Execute(context.Background(), task))
	task.Rearm(nil)
	require.NoError(t, exec.Execute(context.Background(), task))

	assert.Equal(t, 2, inner.calls)
}

func TestIdempotentExecutor_FailureStaysRetryable(t *testing.T) {
	store := newFakeStore()
	inner := &countingExecutor{err: errors.New("timeout")}
	exec := NewIdempotentExecutor(inner, store, zap.NewNop())
	task := effect.MustNewTask("node-1", testType, nil)

	assert.Error(t, exec.Execute(context.Background(), task))
	inner.err = nil
	assert.NoError(t, exec.Execute(context.Background(), task))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, IdempotencyStats{Executed: 1, Failed: 1}, exec.Metrics().Stats())
}

func TestIdempotentExecutor_StoreErrorExecutesAnyway(t *testing.T) {
	store := newFakeStore()
	store.readErr = errors.New("redis down")
	inner := &countingExecutor{}
	exec := NewIdempotentExecutor(inner, store, zap.NewNop())

	require.NoError(t, exec.Execute(context.Background(), effect.MustNewTask("node-1", testType, nil)))
	assert.Equal(t, 1, inner.calls)
}

func TestIdempotentExecutor_Disabled(t *testing.T) {
	store := newFakeStore()
	inner := &countingExecutor{}
	exec := NewIdempotentExecutor(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	task := effect.MustNewTask("node-1", testType, nil)

	require.NoError(t, exec.Execute(context.Background(), task))
	require.NoError(t, exec.Execute(context.Background(), task))

	assert.Equal(t, 2, inner.calls)
	assert.Empty(t, store.keys)
}

func TestWrapExecutors_SharesMetrics(t *testing.T) {
	metrics := &IdempotencyMetrics{}
	wrapped := WrapExecutors(map[effect.Type]effect.Executor{
		"a": &countingExecutor{},
		"b": &countingExecutor{},
	}, newFakeStore(), zap.NewNop(), WithIdempotencyMetrics(metrics))

	require.Len(t, wrapped, 2)
	for typ, exec := range wrapped {
		require.NoError(t, exec.Execute(context.Background(), effect.MustNewTask("x", typ, nil)))
	}
	assert.Equal(t, int64(2), metrics.Stats().Executed)
}
