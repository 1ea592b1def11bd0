// Package effect exposes administration of the side effect task queue.
package effect

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TaskService handles task queue management operations
type TaskService struct {
	repo   effect.Repository
	logger *zap.Logger
}

// NewTaskService creates a new task service
func NewTaskService(repo effect.Repository, logger *zap.Logger) *TaskService {
	return &TaskService{
		repo:   repo,
		logger: logger,
	}
}

// TaskDTO represents a task data transfer object
type TaskDTO struct {
	ID          uuid.UUID       `json:"id"`
	EntityID    string          `json:"entity_id"`
	EffectType  string          `json:"effect_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      string          `json:"status"`
	Generation  int             `json:"generation"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	LastError   string          `json:"last_error,omitempty"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TaskFilter represents filter for querying tasks
type TaskFilter struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// TaskStatsDTO represents task counts per status
type TaskStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Done       int64 `json:"done"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

var errTaskNotFound = shared.NewDomainError("TASK_NOT_FOUND", "Task not found")

// ListDead retrieves dead tasks with pagination
func (s *TaskService) ListDead(ctx context.Context, filter TaskFilter) (*shared.Paginated[TaskDTO], error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	tasks, total, err := s.repo.FindDead(ctx, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to find dead tasks", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead tasks")
	}

	items := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		items[i] = toTaskDTO(t)
	}
	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// Get retrieves a single task by ID
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*TaskDTO, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errTaskNotFound
	}
	dto := toTaskDTO(task)
	return &dto, nil
}

// Retry moves a dead task back to the queue
func (s *TaskService) Retry(ctx context.Context, id uuid.UUID) (*TaskDTO, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errTaskNotFound
	}
	if !task.IsDead() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Only dead tasks can be retried")
	}

	if err := s.repo.Retry(ctx, id); err != nil {
		s.logger.Error("Failed to retry task", zap.Error(err), zap.String("id", id.String()))
		return nil, err
	}
	_ = task.ResetForRetry()

	s.logger.Info("Dead task reset for retry",
		zap.String("id", id.String()),
		zap.String("effect_type", string(task.EffectType)),
		zap.String("entity_id", task.EntityID),
	)
	dto := toTaskDTO(task)
	return &dto, nil
}

// RetryAllDead moves every dead task back to the queue
func (s *TaskService) RetryAllDead(ctx context.Context) (int64, error) {
	count, err := s.repo.RetryAllDead(ctx)
	if err != nil {
		s.logger.Error("Failed to retry dead tasks", zap.Error(err))
		return 0, shared.NewDomainError("INTERNAL_ERROR", "Failed to retry dead tasks")
	}
	s.logger.Info("Retried dead tasks", zap.Int64("count", count))
	return count, nil
}

// Stats returns the number of tasks per status
func (s *TaskService) Stats(ctx context.Context) (*TaskStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("Failed to get task stats", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get task stats")
	}

	var total int64
	for _, count := range counts {
		total += count
	}
	return &TaskStatsDTO{
		Pending:    counts[effect.StatusPending],
		Processing: counts[effect.StatusProcessing],
		Done:       counts[effect.StatusDone],
		Failed:     counts[effect.StatusFailed],
		Dead:       counts[effect.StatusDead],
		Total:      total,
	}, nil
}

func toTaskDTO(t *effect.Task) TaskDTO {
	return TaskDTO{
		ID:          t.ID,
		EntityID:    t.EntityID,
		EffectType:  string(t.EffectType),
		Payload:     json.RawMessage(t.Payload),
		Status:      string(t.Status),
		Generation:  t.Generation,
		RetryCount:  t.RetryCount,
		MaxRetries:  t.MaxRetries,
		LastError:   t.LastError,
		NextRetryAt: t.NextRetryAt,
		ProcessedAt: t.ProcessedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
