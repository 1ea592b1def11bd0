package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/investment"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAgreementRepository implements investment.AgreementRepository using GORM
type GormAgreementRepository struct {
	db    *gorm.DB
	tasks effect.Saver
}

// NewGormAgreementRepository creates a new GormAgreementRepository
func NewGormAgreementRepository(db *gorm.DB, tasks effect.Saver) *GormAgreementRepository {
	return &GormAgreementRepository{db: db, tasks: tasks}
}

func (r *GormAgreementRepository) FindByID(ctx context.Context, id uuid.UUID) (*investment.Agreement, error) {
	var m models.AgreementModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists agreements, optionally filtered by filter.Filters["status"]
func (r *GormAgreementRepository) FindAll(ctx context.Context, filter shared.Filter) ([]investment.Agreement, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AgreementModel{})
	if status, ok := filter.Filters["status"].(investment.AgreementStatus); ok {
		q = q.Where("status = ?", int(status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.AgreementModel
	if err := paginate(q, filter, AgreementSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toAgreements(rows), total, nil
}

func (r *GormAgreementRepository) FindByUsername(ctx context.Context, username string) ([]investment.Agreement, error) {
	var rows []models.AgreementModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAgreements(rows), nil
}

// PaidTokenTotal sums the tokens of the user's paid agreements in whole tokens
func (r *GormAgreementRepository) PaidTokenTotal(ctx context.Context, username string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.AgreementModel{}).
		Select("SUM(token_count::numeric / power(10::numeric, token_precision))").
		Where("username = ? AND status = ?", username, int(investment.AgreementStatusPaid)).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// SaveWithEffects writes the agreement with optimistic locking and enqueues tasks
// in the same transaction
func (r *GormAgreementRepository) SaveWithEffects(ctx context.Context, a *investment.Agreement, tasks []*effect.Task) error {
	m := models.AgreementModelFromDomain(a)
	m.Version = a.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(tx, "investment_agreements", m, "id", a.ID, a.Version, func(v int) { m.Version = v }); err != nil {
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
	a.Version = m.Version
	return nil
}

func toAgreements(rows []models.AgreementModel) []investment.Agreement {
	out := make([]investment.Agreement, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out
}

var _ investment.AgreementRepository = (*GormAgreementRepository)(nil)
