package taskqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// memoryTaskRepository is an in-memory effect.Repository keyed like the table
type memoryTaskRepository struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*effect.Task
	keys  map[string]uuid.UUID
}

func newMemoryTaskRepository() *memoryTaskRepository {
	return &memoryTaskRepository{
		tasks: make(map[uuid.UUID]*effect.Task),
		keys:  make(map[string]uuid.UUID),
	}
}

func (r *memoryTaskRepository) Enqueue(ctx context.Context, tasks ...*effect.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tasks {
		if id, ok := r.keys[t.Key()]; ok {
			r.tasks[id].Rearm(t.Payload)
			continue
		}
		c := *t
		r.tasks[t.ID] = &c
		r.keys[t.Key()] = t.ID
	}
	return nil
}

func (r *memoryTaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*effect.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*effect.Task
	for _, t := range r.tasks {
		if len(claimed) == limit {
			break
		}
		if !t.IsDue(now) {
			continue
		}
		_ = t.MarkProcessing()
		c := *t
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

func (r *memoryTaskRepository) Complete(ctx context.Context, task *effect.Task, claimedGeneration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[task.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.MarkDone(claimedGeneration)
	task.Generation = stored.Generation
	task.MarkDone(claimedGeneration)
	return nil
}

func (r *memoryTaskRepository) Fail(ctx context.Context, task *effect.Task, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[task.ID]
	if !ok {
		return shared.ErrNotFound
	}
	claimed := task.Generation
	task.MarkFailed(cause)
	if stored.Generation != claimed {
		stored.Status = effect.StatusPending
		stored.RetryCount = 0
		stored.NextRetryAt = nil
		return nil
	}
	gen, payload := stored.Generation, stored.Payload
	*stored = *task
	stored.Generation, stored.Payload = gen, payload
	return nil
}

func (r *memoryTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*effect.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *memoryTaskRepository) FindByKey(ctx context.Context, entityID string, effectType effect.Type) (*effect.Task, error) {
	r.mu.Lock()
	id, ok := r.keys[effect.Key(entityID, effectType)]
	r.mu.Unlock()
	if !ok {
		return nil, shared.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *memoryTaskRepository) FindDead(ctx context.Context, page, pageSize int) ([]*effect.Task, int64, error) {
	return nil, 0, nil
}

func (r *memoryTaskRepository) Retry(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (r *memoryTaskRepository) RetryAllDead(ctx context.Context) (int64, error) {
	return 0, nil
}

func (r *memoryTaskRepository) DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.Status == effect.StatusDone && t.ProcessedAt != nil && t.ProcessedAt.Before(before) {
			delete(r.tasks, id)
			delete(r.keys, t.Key())
			n++
		}
	}
	return n, nil
}

func (r *memoryTaskRepository) CountByStatus(ctx context.Context) (map[effect.Status]int64, error) {
	return nil, nil
}

func (r *memoryTaskRepository) get(t *testing.T, id uuid.UUID) *effect.Task {
	t.Helper()
	task, err := r.FindByID(context.Background(), id)
	require.NoError(t, err)
	return task
}

type recordedOutcome struct {
	effectType string
	outcome    string
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (r *fakeRecorder) RecordEffect(ctx context.Context, effectType, outcome string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, recordedOutcome{effectType, outcome})
}

func (r *fakeRecorder) list() []recordedOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedOutcome(nil), r.outcomes...)
}

const testType effect.Type = "test.effect"

func testConfig() ProcessorConfig {
	return ProcessorConfig{
		BatchSize:    10,
		PollInterval: 20 * time.Millisecond,
		Concurrency:  2,
	}
}

func enqueue(t *testing.T, repo *memoryTaskRepository, entityID string, payload any) *effect.Task {
	t.Helper()
	task := effect.MustNewTask(entityID, testType, payload)
	require.NoError(t, repo.Enqueue(context.Background(), task))
	return task
}

func TestProcessor_RunOnce_Success(t *testing.T) {
	repo := newMemoryTaskRepository()
	task := enqueue(t, repo, "node-1", map[string]string{"status": "running"})
	rec := &fakeRecorder{}

	var got map[string]string
	p := NewProcessor(repo, testConfig(), zap.NewNop(), WithRecorder(rec))
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error {
			return task.DecodePayload(&got)
		}),
	})

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]string{"status": "running"}, got)

	stored := repo.get(t, task.ID)
	assert.Equal(t, effect.StatusDone, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, []recordedOutcome{{string(testType), OutcomeDone}}, rec.list())

	n, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "done tasks are not claimed again")
}

func TestProcessor_RunOnce_FailureSchedulesRetry(t *testing.T) {
	repo := newMemoryTaskRepository()
	task := enqueue(t, repo, "node-1", nil)
	rec := &fakeRecorder{}

	p := NewProcessor(repo, testConfig(), zap.NewNop(), WithRecorder(rec))
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error {
			return errors.New("chat unavailable")
		}),
	})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	stored := repo.get(t, task.ID)
	assert.Equal(t, effect.StatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "chat unavailable", stored.LastError)
	require.NotNil(t, stored.NextRetryAt)
	assert.True(t, stored.NextRetryAt.After(time.Now()))
	assert.Equal(t, []recordedOutcome{{string(testType), OutcomeRetry}}, rec.list())

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "backoff has not elapsed")
}

func TestProcessor_RunOnce_PermanentErrorIsDead(t *testing.T) {
	repo := newMemoryTaskRepository()
	task := enqueue(t, repo, "alice", nil)
	rec := &fakeRecorder{}

	p := NewProcessor(repo, testConfig(), zap.NewNop(), WithRecorder(rec))
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error {
			return effect.Permanent(errors.New("unknown member"))
		}),
	})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	stored := repo.get(t, task.ID)
	assert.Equal(t, effect.StatusDead, stored.Status)
	assert.Nil(t, stored.NextRetryAt)
	assert.Equal(t, []recordedOutcome{{string(testType), OutcomeDead}}, rec.list())
}

func TestProcessor_RunOnce_MissingExecutor(t *testing.T) {
	repo := newMemoryTaskRepository()
	task := enqueue(t, repo, "alice", nil)

	p := NewProcessor(repo, testConfig(), zap.NewNop())

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	stored := repo.get(t, task.ID)
	assert.Equal(t, effect.StatusDead, stored.Status)
	assert.Contains(t, stored.LastError, ErrNoExecutor.Error())
}

func TestProcessor_RunOnce_PanicIsRetried(t *testing.T) {
	repo := newMemoryTaskRepository()
	task := enqueue(t, repo, "alice", nil)

	p := NewProcessor(repo, testConfig(), zap.NewNop())
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error {
			panic("boom")
		}),
	})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	stored := repo.get(t, task.ID)
	assert.Equal(t, effect.StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "boom")
}

func TestProcessor_RearmedDuringExecutionRunsAgain(t *testing.T) {
	repo := newMemoryTaskRepository()
	task := enqueue(t, repo, "node-1", map[string]int{"n": 1})
	rec := &fakeRecorder{}

	var seen []int
	p := NewProcessor(repo, testConfig(), zap.NewNop(), WithRecorder(rec))
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error {
			var payload map[string]int
			if err := task.DecodePayload(&payload); err != nil {
				return err
			}
			seen = append(seen, payload["n"])
			if payload["n"] == 1 {
				// a newer request arrives while the first one runs
				return repo.Enqueue(ctx, effect.MustNewTask("node-1", testType, map[string]int{"n": 2}))
			}
			return nil
		}),
	})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	stored := repo.get(t, task.ID)
	assert.Equal(t, effect.StatusPending, stored.Status)
	assert.Equal(t, 2, stored.Generation)

	_, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	stored = repo.get(t, task.ID)
	assert.Equal(t, effect.StatusDone, stored.Status)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, []recordedOutcome{
		{string(testType), OutcomeRearmed},
		{string(testType), OutcomeDone},
	}, rec.list())
}

func TestProcessor_RunOnce_BoundsConcurrency(t *testing.T) {
	repo := newMemoryTaskRepository()
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		enqueue(t, repo, id, nil)
	}

	var inFlight, peak atomic.Int32
	p := NewProcessor(repo, testConfig(), zap.NewNop())
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return nil
		}),
	})

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessor_Drain(t *testing.T) {
	repo := newMemoryTaskRepository()
	for _, id := range []string{"a", "b", "c"} {
		enqueue(t, repo, id, nil)
	}

	cfg := testConfig()
	cfg.BatchSize = 2
	p := NewProcessor(repo, cfg, zap.NewNop())
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error { return nil }),
	})

	n, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestProcessor_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newMemoryTaskRepository()
	task := enqueue(t, repo, "node-1", nil)

	var calls atomic.Int32
	p := NewProcessor(repo, testConfig(), zap.NewNop())
	p.Register(map[effect.Type]effect.Executor{
		testType: effect.ExecutorFunc(func(ctx context.Context, task *effect.Task) error {
			calls.Add(1)
			return nil
		}),
	})

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool {
		return repo.get(t, task.ID).Status == effect.StatusDone
	}, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.Equal(t, int32(1), calls.Load())
}

func TestProcessor_StartRejectsZeroInterval(t *testing.T) {
	p := NewProcessor(newMemoryTaskRepository(), ProcessorConfig{}, zap.NewNop())
	assert.Error(t, p.Start(context.Background()))
}

func TestProcessor_Cleanup(t *testing.T) {
	repo := newMemoryTaskRepository()
	old := enqueue(t, repo, "old", nil)
	fresh := enqueue(t, repo, "fresh", nil)

	past := time.Now().Add(-8 * 24 * time.Hour)
	now := time.Now()
	repo.mu.Lock()
	repo.tasks[old.ID].Status = effect.StatusDone
	repo.tasks[old.ID].ProcessedAt = &past
	repo.tasks[fresh.ID].Status = effect.StatusDone
	repo.tasks[fresh.ID].ProcessedAt = &now
	repo.mu.Unlock()

	p := NewProcessor(repo, DefaultProcessorConfig(), zap.NewNop())
	p.cleanup(context.Background())

	_, err := repo.FindByID(context.Background(), old.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.FindByID(context.Background(), fresh.ID)
	assert.NoError(t, err)
}

func TestDefaultProcessorConfig(t *testing.T) {
	cfg := DefaultProcessorConfig()

	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, cfg.CleanupRetention)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}
