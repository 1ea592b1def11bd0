package persistence

import (
	"context"
	"errors"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProfileRepository implements profile.Repository using GORM
type GormProfileRepository struct {
	db    *gorm.DB
	tasks effect.Saver
}

// NewGormProfileRepository creates a new GormProfileRepository
func NewGormProfileRepository(db *gorm.DB, tasks effect.Saver) *GormProfileRepository {
	return &GormProfileRepository{db: db, tasks: tasks}
}

func (r *GormProfileRepository) FindByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	var m models.ProfileModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormProfileRepository) FindByKYCStatus(ctx context.Context, status profile.KYCStatus, filter shared.Filter) ([]profile.Profile, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ProfileModel{}).Where("kyc_status = ?", int(status))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ProfileModel
	if err := paginate(q, filter, ProfileSortFields, "updated_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]profile.Profile, 0, len(rows))
	for i := range rows {
		p, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, nil
}

func (r *GormProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	return r.SaveWithEffects(ctx, p, nil)
}

// SaveWithEffects writes the profile with optimistic locking and enqueues tasks in
// the same transaction
func (r *GormProfileRepository) SaveWithEffects(ctx context.Context, p *profile.Profile, tasks []*effect.Task) error {
	m, err := models.ProfileModelFromDomain(p)
	if err != nil {
		return err
	}
	m.Version = p.Version + 1

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(tx, "profiles", m, "username", p.Username, p.Version, func(v int) { m.Version = v }); err != nil {
			return err
		}
		if len(tasks) > 0 {
			return r.tasks.SaveTasks(ctx, tx, tasks...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.Version = m.Version
	return nil
}

var _ profile.Repository = (*GormProfileRepository)(nil)
