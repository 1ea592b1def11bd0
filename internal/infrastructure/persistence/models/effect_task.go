package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/effect"
)

// EffectTaskModel is the persistence model of a queued side effect.
// (entity_id, effect_type) is unique: enqueuing an existing key re-arms the row.
type EffectTaskModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EntityID    string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_effect_tasks_key,priority:1"`
	EffectType  string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_effect_tasks_key,priority:2"`
	Payload     []byte     `gorm:"type:jsonb"`
	Status      string     `gorm:"type:varchar(20);not null;default:PENDING;index:idx_effect_tasks_status_created,priority:1"`
	Generation  int        `gorm:"not null;default:1"`
	RetryCount  int        `gorm:"not null;default:0"`
	MaxRetries  int        `gorm:"not null;default:5"`
	LastError   string     `gorm:"type:text"`
	NextRetryAt *time.Time `gorm:"index"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"not null;index:idx_effect_tasks_status_created,priority:2"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EffectTaskModel) TableName() string {
	return "effect_tasks"
}

// EffectTaskModelFromDomain creates a persistence model from a domain task
func EffectTaskModelFromDomain(t *effect.Task) *EffectTaskModel {
	return &EffectTaskModel{
		ID:          t.ID,
		EntityID:    t.EntityID,
		EffectType:  string(t.EffectType),
		Payload:     t.Payload,
		Status:      t.Status.String(),
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

// ToDomain converts the persistence model to a domain task
func (m *EffectTaskModel) ToDomain() *effect.Task {
	return &effect.Task{
		ID:          m.ID,
		EntityID:    m.EntityID,
		EffectType:  effect.Type(m.EffectType),
		Payload:     m.Payload,
		Status:      effect.Status(m.Status),
		Generation:  m.Generation,
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		LastError:   m.LastError,
		NextRetryAt: m.NextRetryAt,
		ProcessedAt: m.ProcessedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
