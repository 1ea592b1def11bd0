package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// mockTaskRepo is an in-memory effect.Repository for testing TaskService
type mockTaskRepo struct {
	tasks map[uuid.UUID]*effect.Task
	err   error
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[uuid.UUID]*effect.Task)}
}

func (r *mockTaskRepo) add(status effect.Status) *effect.Task {
	t := effect.MustNewTask(uuid.NewString(), effect.TypeUserDataNodes, effect.UserRef{Username: "alice"})
	t.Status = status
	r.tasks[t.ID] = t
	return t
}

func (r *mockTaskRepo) Enqueue(ctx context.Context, tasks ...*effect.Task) error { return nil }
func (r *mockTaskRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*effect.Task, error) {
	return nil, nil
}
func (r *mockTaskRepo) Complete(ctx context.Context, task *effect.Task, gen int) error { return nil }
func (r *mockTaskRepo) Fail(ctx context.Context, task *effect.Task, cause error) error { return nil }
func (r *mockTaskRepo) FindByKey(ctx context.Context, entityID string, t effect.Type) (*effect.Task, error) {
	return nil, shared.ErrNotFound
}
func (r *mockTaskRepo) DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *mockTaskRepo) FindByID(ctx context.Context, id uuid.UUID) (*effect.Task, error) {
	if t, ok := r.tasks[id]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (r *mockTaskRepo) FindDead(ctx context.Context, page, pageSize int) ([]*effect.Task, int64, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	var result []*effect.Task
	for _, t := range r.tasks {
		if t.Status == effect.StatusDead {
			result = append(result, t)
		}
	}
	total := int64(len(result))
	start := (page - 1) * pageSize
	if start >= len(result) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *mockTaskRepo) Retry(ctx context.Context, id uuid.UUID) error {
	t, ok := r.tasks[id]
	if !ok {
		return shared.ErrNotFound
	}
	return t.ResetForRetry()
}

func (r *mockTaskRepo) RetryAllDead(ctx context.Context) (int64, error) {
	var n int64
	for _, t := range r.tasks {
		if t.ResetForRetry() == nil {
			n++
		}
	}
	return n, nil
}

func (r *mockTaskRepo) CountByStatus(ctx context.Context) (map[effect.Status]int64, error) {
	if r.err != nil {
		return nil, r.err
	}
	counts := make(map[effect.Status]int64)
	for _, t := range r.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

func TestTaskService_ListDead(t *testing.T) {
	repo := newMockTaskRepo()
	service := NewTaskService(repo, zap.NewNop())
	for i := 0; i < 5; i++ {
		repo.add(effect.StatusDead)
	}
	repo.add(effect.StatusPending)

	result, err := service.ListDead(context.Background(), TaskFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, 3, result.TotalPages)

	t.Run("defaults and caps page size", func(t *testing.T) {
		result, err := service.ListDead(context.Background(), TaskFilter{PageSize: 1000})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, 100, result.PageSize)
	})

	t.Run("repository error", func(t *testing.T) {
		repo.err = errors.New("db down")
		defer func() { repo.err = nil }()
		_, err := service.ListDead(context.Background(), TaskFilter{})
		assert.Error(t, err)
	})
}

func TestTaskService_Retry(t *testing.T) {
	repo := newMockTaskRepo()
	service := NewTaskService(repo, zap.NewNop())
	dead := repo.add(effect.StatusDead)
	done := repo.add(effect.StatusDone)

	dto, err := service.Retry(context.Background(), dead.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", dto.Status)
	assert.Equal(t, effect.StatusPending, repo.tasks[dead.ID].Status)

	_, err = service.Retry(context.Background(), done.ID)
	assert.Error(t, err)

	_, err = service.Retry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTaskService_RetryAllDead(t *testing.T) {
	repo := newMockTaskRepo()
	service := NewTaskService(repo, zap.NewNop())
	repo.add(effect.StatusDead)
	repo.add(effect.StatusDead)
	repo.add(effect.StatusDone)

	n, err := service.RetryAllDead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTaskService_Stats(t *testing.T) {
	repo := newMockTaskRepo()
	service := NewTaskService(repo, zap.NewNop())
	repo.add(effect.StatusDead)
	repo.add(effect.StatusPending)
	repo.add(effect.StatusPending)
	repo.add(effect.StatusDone)

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &TaskStatsDTO{Pending: 2, Done: 1, Dead: 1, Total: 4}, stats)
}
