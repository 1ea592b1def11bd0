package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// nodeOrderNumberSequence allocates order numbers; it starts at 10^15 so every
// number renders as a 16 digit reference
const nodeOrderNumberSequence = "node_order_number_seq"

// GormNodeOrderRepository implements hosting.NodeOrderRepository using GORM
type GormNodeOrderRepository struct {
	db    *gorm.DB
	tasks effect.Saver
}

// NewGormNodeOrderRepository creates a new GormNodeOrderRepository
func NewGormNodeOrderRepository(db *gorm.DB, tasks effect.Saver) *GormNodeOrderRepository {
	return &GormNodeOrderRepository{db: db, tasks: tasks}
}

func (r *GormNodeOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*hosting.NodeOrder, error) {
	var m models.NodeOrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain()
}

// FindAll lists orders, optionally filtered by filter.Filters["status"]
func (r *GormNodeOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]hosting.NodeOrder, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.NodeOrderModel{})
	if status, ok := filter.Filters["status"].(hosting.OrderStatus); ok {
		q = q.Where("status = ?", int(status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.NodeOrderModel
	if err := paginate(q, filter, NodeOrderSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	orders, err := toNodeOrders(rows)
	return orders, total, err
}

func (r *GormNodeOrderRepository) FindByUsername(ctx context.Context, username string) ([]hosting.NodeOrder, error) {
	var rows []models.NodeOrderModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).Order("order_time").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toNodeOrders(rows)
}

func (r *GormNodeOrderRepository) FindSentBefore(ctx context.Context, before time.Time) ([]hosting.NodeOrder, error) {
	var rows []models.NodeOrderModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND send_time < ?", int(hosting.OrderStatusSent), before).
		Order("send_time").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toNodeOrders(rows)
}

func (r *GormNodeOrderRepository) ExistsActiveForUserOrAddress(ctx context.Context, username, address string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NodeOrderModel{}).
		Where("status <> ?", int(hosting.OrderStatusCanceled)).
		Where(r.db.Where("username = ?", username).Or("billing_address = ? AND billing_address <> ''", address)).
		Count(&count).Error
	return count > 0, err
}

func (r *GormNodeOrderRepository) ExistsBySaleOrder(ctx context.Context, saleOrderID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NodeOrderModel{}).
		Where("sale_order_id = ?", saleOrderID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormNodeOrderRepository) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Raw("SELECT nextval(?::regclass)", nodeOrderNumberSequence).Scan(&n).Error
	return n, err
}

// SaveWithEffects writes the order with optimistic locking and enqueues tasks in
// the same transaction. A second active order of a user or billing address, or a
// second order of a sale order, yields hosting.ErrOrderExists.
func (r *GormNodeOrderRepository) SaveWithEffects(ctx context.Context, order *hosting.NodeOrder, tasks []*effect.Task) error {
	m, err := models.NodeOrderModelFromDomain(order)
	if err != nil {
		return err
	}
	m.Version = order.Version + 1

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(tx, "node_orders", m, "id", order.ID, order.Version, func(v int) { m.Version = v }); err != nil {
			return err
		}
		if len(tasks) > 0 {
			return r.tasks.SaveTasks(ctx, tx, tasks...)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return hosting.ErrOrderExists
	}
	if err != nil {
		return err
	}
	order.Version = m.Version
	return nil
}

func toNodeOrders(rows []models.NodeOrderModel) ([]hosting.NodeOrder, error) {
	orders := make([]hosting.NodeOrder, 0, len(rows))
	for i := range rows {
		o, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

var _ hosting.NodeOrderRepository = (*GormNodeOrderRepository)(nil)
