package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStaleAfter is how long a task may stay PROCESSING before another worker
// reclaims it. It covers workers that crashed between claim and completion.
const DefaultStaleAfter = 15 * time.Minute

// GormTaskRepository implements effect.Repository and effect.Saver using GORM
type GormTaskRepository struct {
	db         *gorm.DB
	staleAfter time.Duration
}

// NewGormTaskRepository creates a new GORM-based task repository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db, staleAfter: DefaultStaleAfter}
}

// WithStaleAfter overrides the reclaim delay of processing tasks
func (r *GormTaskRepository) WithStaleAfter(d time.Duration) *GormTaskRepository {
	return &GormTaskRepository{db: r.db, staleAfter: d}
}

// Enqueue persists tasks, re-arming rows that already exist for the same key
func (r *GormTaskRepository) Enqueue(ctx context.Context, tasks ...*effect.Task) error {
	return r.enqueue(r.db.WithContext(ctx), tasks)
}

// SaveTasks enqueues tasks inside the transaction of an aggregate repository
func (r *GormTaskRepository) SaveTasks(ctx context.Context, txProvider any, tasks ...*effect.Task) error {
	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("taskqueue: unsupported transaction type %T", txProvider)
	}
	return r.enqueue(tx.WithContext(ctx), tasks)
}

// enqueue upserts on (entity_id, effect_type). An existing row gets a new generation;
// DONE and DEAD rows go back to PENDING while queued or running rows keep their status.
func (r *GormTaskRepository) enqueue(db *gorm.DB, tasks []*effect.Task) error {
	rows := dedupe(tasks)
	if len(rows) == 0 {
		return nil
	}

	rearm := "effect_tasks.status IN ('DONE', 'DEAD')"
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_id"}, {Name: "effect_type"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "generation"}, Value: gorm.Expr("effect_tasks.generation + 1")},
			{Column: clause.Column{Name: "payload"}, Value: gorm.Expr("COALESCE(EXCLUDED.payload, effect_tasks.payload)")},
			{Column: clause.Column{Name: "status"}, Value: gorm.Expr("CASE WHEN " + rearm + " THEN 'PENDING' ELSE effect_tasks.status END")},
			{Column: clause.Column{Name: "retry_count"}, Value: gorm.Expr("CASE WHEN " + rearm + " THEN 0 ELSE effect_tasks.retry_count END")},
			{Column: clause.Column{Name: "last_error"}, Value: gorm.Expr("CASE WHEN " + rearm + " THEN '' ELSE effect_tasks.last_error END")},
			{Column: clause.Column{Name: "next_retry_at"}, Value: gorm.Expr("CASE WHEN " + rearm + " THEN NULL ELSE effect_tasks.next_retry_at END")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("EXCLUDED.updated_at")},
		},
	}).Create(&rows).Error
}

// dedupe keeps the last task of each key; postgres rejects an upsert that touches
// the same row twice
func dedupe(tasks []*effect.Task) []*models.EffectTaskModel {
	index := make(map[string]int, len(tasks))
	rows := make([]*models.EffectTaskModel, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		m := models.EffectTaskModelFromDomain(t)
		if i, ok := index[t.Key()]; ok {
			rows[i] = m
			continue
		}
		index[t.Key()] = len(rows)
		rows = append(rows, m)
	}
	return rows
}

// ClaimDue atomically marks up to limit due tasks as processing and returns them.
// Due tasks are pending ones, failed ones whose backoff elapsed and processing ones
// abandoned for longer than the stale delay.
func (r *GormTaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*effect.Task, error) {
	var rows []models.EffectTaskModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)) OR (status = ? AND updated_at < ?)",
				effect.StatusPending,
				effect.StatusFailed, now,
				effect.StatusProcessing, now.Add(-r.staleAfter),
			).
			Order("created_at ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		return tx.Model(&models.EffectTaskModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     effect.StatusProcessing,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	tasks := make([]*effect.Task, len(rows))
	for i := range rows {
		rows[i].Status = effect.StatusProcessing.String()
		rows[i].UpdatedAt = now
		tasks[i] = rows[i].ToDomain()
	}
	return tasks, nil
}

// Complete finishes a claimed task. A task re-armed while it ran goes back to
// PENDING so the newer request executes too.
func (r *GormTaskRepository) Complete(ctx context.Context, task *effect.Task, claimedGeneration int) error {
	now := time.Now()
	m := models.EffectTaskModel{ID: task.ID}
	same := "generation = ?"

	res := r.db.WithContext(ctx).Model(&m).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "generation"}}}).
		Updates(map[string]any{
			"status":        gorm.Expr("CASE WHEN "+same+" THEN ? ELSE ? END", claimedGeneration, effect.StatusDone, effect.StatusPending),
			"processed_at":  gorm.Expr("CASE WHEN "+same+" THEN ?::timestamptz ELSE processed_at END", claimedGeneration, now),
			"last_error":    gorm.Expr("CASE WHEN "+same+" THEN '' ELSE last_error END", claimedGeneration),
			"retry_count":   gorm.Expr("CASE WHEN "+same+" THEN retry_count ELSE 0 END", claimedGeneration),
			"next_retry_at": gorm.Expr("CASE WHEN "+same+" THEN next_retry_at ELSE NULL END", claimedGeneration),
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	if m.Generation > 0 {
		task.Generation = m.Generation
	}
	task.MarkDone(claimedGeneration)
	return nil
}

// Fail records a failed execution. The retry schedule only applies when the task was
// not re-armed during the run; a re-armed task is requeued immediately.
func (r *GormTaskRepository) Fail(ctx context.Context, task *effect.Task, cause error) error {
	claimed := task.Generation
	task.MarkFailed(cause)
	same := "generation = ?"

	res := r.db.WithContext(ctx).Model(&models.EffectTaskModel{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"status":        gorm.Expr("CASE WHEN "+same+" THEN ? ELSE ? END", claimed, task.Status, effect.StatusPending),
			"retry_count":   gorm.Expr("CASE WHEN "+same+" THEN ? ELSE 0 END", claimed, task.RetryCount),
			"next_retry_at": gorm.Expr("CASE WHEN "+same+" THEN ?::timestamptz ELSE NULL END", claimed, task.NextRetryAt),
			"last_error":    task.LastError,
			"updated_at":    task.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID retrieves a single task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*effect.Task, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByKey retrieves the task for an entity and effect type
func (r *GormTaskRepository) FindByKey(ctx context.Context, entityID string, effectType effect.Type) (*effect.Task, error) {
	return r.first(ctx, "entity_id = ? AND effect_type = ?", entityID, string(effectType))
}

func (r *GormTaskRepository) first(ctx context.Context, query string, args ...any) (*effect.Task, error) {
	var m models.EffectTaskModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindDead retrieves dead tasks with pagination, most recent first
func (r *GormTaskRepository) FindDead(ctx context.Context, page, pageSize int) ([]*effect.Task, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.EffectTaskModel{}).
		Where("status = ?", effect.StatusDead).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.EffectTaskModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", effect.StatusDead).
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	tasks := make([]*effect.Task, len(rows))
	for i := range rows {
		tasks[i] = rows[i].ToDomain()
	}
	return tasks, total, nil
}

// Retry moves a dead task back to pending
func (r *GormTaskRepository) Retry(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.EffectTaskModel{}).
		Where("id = ? AND status = ?", id, effect.StatusDead).
		Updates(resetColumns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return shared.ErrInvalidState
	}
	return nil
}

// RetryAllDead moves every dead task back to pending
func (r *GormTaskRepository) RetryAllDead(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.EffectTaskModel{}).
		Where("status = ?", effect.StatusDead).
		Updates(resetColumns())
	return res.RowsAffected, res.Error
}

func resetColumns() map[string]any {
	return map[string]any{
		"status":        effect.StatusPending,
		"retry_count":   0,
		"last_error":    "",
		"next_retry_at": nil,
		"updated_at":    time.Now(),
	}
}

// DeleteDoneBefore deletes done tasks processed before the given time
func (r *GormTaskRepository) DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", effect.StatusDone, before).
		Delete(&models.EffectTaskModel{})
	return res.RowsAffected, res.Error
}

// CountByStatus returns the number of tasks for each status
func (r *GormTaskRepository) CountByStatus(ctx context.Context) (map[effect.Status]int64, error) {
	type statusCount struct {
		Status effect.Status
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.EffectTaskModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[effect.Status]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

var (
	_ effect.Repository = (*GormTaskRepository)(nil)
	_ effect.Saver      = (*GormTaskRepository)(nil)
)
