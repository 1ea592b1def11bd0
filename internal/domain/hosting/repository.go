package hosting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
)

// NodeOrderRepository defines the interface for node order persistence
type NodeOrderRepository interface {
	// FindByID finds a node order by ID
	FindByID(ctx context.Context, id uuid.UUID) (*NodeOrder, error)

	// FindAll finds node orders with an optional status filter
	// (filter.Filters["status"] holds an OrderStatus)
	FindAll(ctx context.Context, filter shared.Filter) ([]NodeOrder, int64, error)

	// FindByUsername returns every order of a user
	FindByUsername(ctx context.Context, username string) ([]NodeOrder, error)

	// FindSentBefore returns sent orders whose send time is before the given time
	FindSentBefore(ctx context.Context, before time.Time) ([]NodeOrder, error)

	// ExistsActiveForUserOrAddress reports whether a non-canceled order exists for the
	// user or for the billing address
	ExistsActiveForUserOrAddress(ctx context.Context, username, address string) (bool, error)

	// ExistsBySaleOrder reports whether an order references the ERP sale order
	ExistsBySaleOrder(ctx context.Context, saleOrderID int64) (bool, error)

	// NextNumber allocates a new order number
	NextNumber(ctx context.Context) (int64, error)

	// SaveWithEffects inserts or updates (with optimistic locking) the order and
	// enqueues its side effects in the same transaction
	SaveWithEffects(ctx context.Context, order *NodeOrder, tasks []*effect.Task) error
}
