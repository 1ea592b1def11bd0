package investment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
)

// AgreementRepository defines persistence for investment agreements
type AgreementRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Agreement, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Agreement, int64, error)
	FindByUsername(ctx context.Context, username string) ([]Agreement, error)
	// PaidTokenTotal sums the tokens of the user's PAID agreements
	PaidTokenTotal(ctx context.Context, username string) (decimal.Decimal, error)
	// SaveWithEffects persists the agreement with optimistic locking and enqueues the
	// tasks in the same transaction
	SaveWithEffects(ctx context.Context, a *Agreement, tasks []*effect.Task) error
}
