package persistence

import (
	"context"
	"errors"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormNodeRepository implements node.Repository using GORM
type GormNodeRepository struct {
	db    *gorm.DB
	tasks effect.Saver
}

// NewGormNodeRepository creates a new GormNodeRepository
func NewGormNodeRepository(db *gorm.DB, tasks effect.Saver) *GormNodeRepository {
	return &GormNodeRepository{db: db, tasks: tasks}
}

func (r *GormNodeRepository) FindByID(ctx context.Context, id string) (*node.Node, error) {
	var m models.NodeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormNodeRepository) FindByIDs(ctx context.Context, ids []string) ([]*node.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(r.db.WithContext(ctx).Where("id IN ?", ids))
}

func (r *GormNodeRepository) FindWithOwner(ctx context.Context) ([]*node.Node, error) {
	return r.find(r.db.WithContext(ctx).Where("username <> ''"))
}

func (r *GormNodeRepository) FindByUsername(ctx context.Context, username string) ([]*node.Node, error) {
	return r.find(r.db.WithContext(ctx).Where("username = ?", username))
}

// FindByStatus filters on the newest status; ownerless nodes come first so the
// ones still waiting for an order are easy to spot.
func (r *GormNodeRepository) FindByStatus(ctx context.Context, status node.Status) ([]*node.Node, error) {
	q := r.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status.String())
	}
	return r.find(q.Order("username <> '' ASC"))
}

func (r *GormNodeRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.NodeModel{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (r *GormNodeRepository) SaveAll(ctx context.Context, nodes ...*node.Node) error {
	return r.SaveAllWithEffects(ctx, nodes, nil)
}

// SaveAllWithEffects upserts the nodes and enqueues tasks in one transaction
func (r *GormNodeRepository) SaveAllWithEffects(ctx context.Context, nodes []*node.Node, tasks []*effect.Task) error {
	if len(nodes) == 0 && len(tasks) == 0 {
		return nil
	}
	rows := make([]*models.NodeModel, 0, len(nodes))
	for _, n := range nodes {
		m, err := models.NodeModelFromDomain(n)
		if err != nil {
			return err
		}
		rows = append(rows, m)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"serial_number", "username", "status", "status_date",
					"last_check", "samples", "version", "updated_at",
				}),
			}).Create(&rows).Error
			if err != nil {
				return err
			}
		}
		if len(tasks) > 0 {
			return r.tasks.SaveTasks(ctx, tx, tasks...)
		}
		return nil
	})
}

func (r *GormNodeRepository) find(q *gorm.DB) ([]*node.Node, error) {
	var rows []models.NodeModel
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	nodes := make([]*node.Node, 0, len(rows))
	for i := range rows {
		n, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

var _ node.Repository = (*GormNodeRepository)(nil)
