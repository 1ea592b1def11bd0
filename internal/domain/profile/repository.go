package profile

import (
	"context"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/shared"
)

// Repository defines persistence for profiles
type Repository interface {
	// FindByUsername returns shared.ErrNotFound when no profile exists
	FindByUsername(ctx context.Context, username string) (*Profile, error)
	FindByKYCStatus(ctx context.Context, status KYCStatus, filter shared.Filter) ([]Profile, int64, error)
	Save(ctx context.Context, p *Profile) error
	SaveWithEffects(ctx context.Context, p *Profile, tasks []*effect.Task) error
}
