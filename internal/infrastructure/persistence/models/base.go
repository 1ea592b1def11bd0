package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for UUID keyed tables.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel extends BaseModel with the optimistic lock version
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregate populates AggregateModel from an aggregate's base parts
func (m *AggregateModel) FromDomainAggregate(a shared.BaseAggregateRoot, e shared.BaseEntity) {
	m.FromDomainBaseEntity(e)
	m.Version = a.Version
}

// aggregateRoot restores the base aggregate root; domain events are never persisted
func aggregateRoot(version int) shared.BaseAggregateRoot {
	root := shared.NewBaseAggregateRoot()
	root.Version = version
	return root
}
