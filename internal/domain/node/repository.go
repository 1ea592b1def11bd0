package node

import (
	"context"

	"github.com/tffhost/backend/internal/domain/effect"
)

// Repository defines the interface for node persistence
type Repository interface {
	// FindByID finds a node by its fleet id
	FindByID(ctx context.Context, id string) (*Node, error)

	// FindByIDs finds the nodes with the given ids; unknown ids are skipped
	FindByIDs(ctx context.Context, ids []string) ([]*Node, error)

	// FindWithOwner returns every node assigned to a user
	FindWithOwner(ctx context.Context) ([]*Node, error)

	// FindByUsername returns the nodes of a user
	FindByUsername(ctx context.Context, username string) ([]*Node, error)

	// FindByStatus returns nodes whose newest status matches; an empty status returns all nodes
	FindByStatus(ctx context.Context, status Status) ([]*Node, error)

	// ListIDs returns the ids of every known node
	ListIDs(ctx context.Context) ([]string, error)

	// SaveAll upserts nodes without side effects
	SaveAll(ctx context.Context, nodes ...*Node) error

	// SaveAllWithEffects upserts nodes and enqueues their side effects atomically
	SaveAllWithEffects(ctx context.Context, nodes []*Node, tasks []*effect.Task) error
}
