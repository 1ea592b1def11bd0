// Package profile manages user profiles and the KYC procedure.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Service handles profile and KYC operations
type Service struct {
	repo   profile.Repository
	logger *zap.Logger
}

// NewService creates a new profile service
func NewService(repo profile.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register creates the profile of a new user or refreshes the contact fields of an
// existing one. The KYC state is never touched.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*ProfileResponse, error) {
	now := time.Now()
	p, err := s.repo.FindByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		if p, err = profile.New(req.Username, req.Name, req.Email, req.AppID, now); err != nil {
			return nil, err
		}
		p.ReferrerUsername = req.ReferrerUsername
		s.logger.Info("Profile created", zap.String("username", req.Username))
	case err != nil:
		return nil, err
	default:
		if req.Name != "" {
			p.Name = req.Name
		}
		if req.Email != "" {
			p.Email = req.Email
		}
		if req.AppID != "" {
			p.AppID = req.AppID
		}
		p.UpdatedAt = now
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	resp := ToProfileResponse(p)
	return &resp, nil
}

// Get returns the profile of a user
func (s *Service) Get(ctx context.Context, username string) (*ProfileResponse, error) {
	p, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	resp := ToProfileResponse(p)
	return &resp, nil
}

// ListByKYCStatus lists the profiles waiting in a KYC status
func (s *Service) ListByKYCStatus(ctx context.Context, status profile.KYCStatus, filter shared.Filter) (*shared.Paginated[ProfileResponse], error) {
	if !status.IsValid() {
		return nil, shared.ErrInvalidInput.WithDetails(map[string]any{"status": int(status)})
	}
	profiles, total, err := s.repo.FindByKYCStatus(ctx, status, filter)
	if err != nil {
		return nil, err
	}
	items := make([]ProfileResponse, len(profiles))
	for i := range profiles {
		items[i] = ToProfileResponse(&profiles[i])
	}
	result := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &result, nil
}

// SetKYCStatus moves the KYC procedure of a user and enqueues the matching messages
func (s *Service) SetKYCStatus(ctx context.Context, username string, status profile.KYCStatus, author, comment string) (*ProfileResponse, error) {
	p, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	from := p.KYC.Status
	if err := p.SetKYCStatus(status, author, comment, time.Now()); err != nil {
		return nil, err
	}

	plan := effect.NewPlan()
	switch status {
	case profile.KYCStatusPendingSubmit:
		plan.Add(username, effect.TypeKYCFlowMessage, effect.KYCFlow{Username: username, Comment: comment})
	case profile.KYCStatusVerified:
		plan.Add(username, effect.TypeKYCApprovedMessage, effect.UserRef{Username: username})
	}
	plan.Add(username, effect.TypeUserDataKYC, effect.UserRef{Username: username})
	tasks, err := plan.Tasks()
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveWithEffects(ctx, p, tasks); err != nil {
		return nil, err
	}
	p.ClearDomainEvents()

	s.logger.Info("KYC status updated",
		zap.String("username", username),
		zap.String("from", from.String()),
		zap.String("to", status.String()),
		zap.String("author", author),
	)
	resp := ToProfileResponse(p)
	return &resp, nil
}

// SetUtilityBillVerified marks the utility bill of a user as checked
func (s *Service) SetUtilityBillVerified(ctx context.Context, username string) (*ProfileResponse, error) {
	p, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := p.SetUtilityBillVerified(time.Now()); err != nil {
		return nil, err
	}
	tasks, err := effect.NewPlan().
		Add(username, effect.TypeUserDataKYC, effect.UserRef{Username: username}).
		Tasks()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithEffects(ctx, p, tasks); err != nil {
		return nil, err
	}
	resp := ToProfileResponse(p)
	return &resp, nil
}

// Member resolves the chat identity of a user. A user without a profile or without a
// chat account can never be reached, so the error is permanent.
func (s *Service) Member(ctx context.Context, username string) (integration.Member, error) {
	p, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, shared.ErrNotFound) {
		return integration.Member{}, effect.Permanent(fmt.Errorf("no profile for user %q", username))
	}
	if err != nil {
		return integration.Member{}, err
	}
	if p.Email == "" || p.AppID == "" {
		return integration.Member{}, effect.Permanent(fmt.Errorf("user %q has no chat account", username))
	}
	return integration.Member{Email: p.Email, AppID: p.AppID}, nil
}
