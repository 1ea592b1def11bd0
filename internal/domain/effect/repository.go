package effect

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for task persistence
type Repository interface {
	// Enqueue persists tasks, re-arming rows that already exist for the same key
	Enqueue(ctx context.Context, tasks ...*Task) error
	// ClaimDue atomically marks up to limit due tasks as processing and returns them
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	// Complete finishes a claimed task, requeueing it when it was re-armed meanwhile
	Complete(ctx context.Context, task *Task, claimedGeneration int) error
	// Fail records a failed execution of a claimed task
	Fail(ctx context.Context, task *Task, cause error) error
	// FindByID retrieves a single task by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// FindByKey retrieves the task for an entity and effect type
	FindByKey(ctx context.Context, entityID string, effectType Type) (*Task, error)
	// FindDead retrieves dead tasks with pagination
	FindDead(ctx context.Context, page, pageSize int) ([]*Task, int64, error)
	// Retry moves a dead task back to pending
	Retry(ctx context.Context, id uuid.UUID) error
	// RetryAllDead moves every dead task back to pending
	RetryAllDead(ctx context.Context) (int64, error)
	// DeleteDoneBefore deletes done tasks processed before the given time
	DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error)
	// CountByStatus returns the number of tasks for each status
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// Saver persists tasks inside a transaction opened by an aggregate repository.
// txProvider is the infrastructure transaction handle (a *gorm.DB).
type Saver interface {
	SaveTasks(ctx context.Context, txProvider any, tasks ...*Task) error
}
