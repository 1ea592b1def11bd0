// Package investment handles token purchase agreements.
package investment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/investment"
	"github.com/tffhost/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const documentLinkTTL = 15 * time.Minute

// Service handles investment agreement operations
type Service struct {
	repo           investment.AgreementRepository
	documents      integration.DocumentStore
	documentSecret []byte
	logger         *zap.Logger
}

// NewService creates a new investment service. documentSecret keys the hash of
// document names.
func NewService(repo investment.AgreementRepository, documents integration.DocumentStore, documentSecret []byte, logger *zap.Logger) *Service {
	return &Service{
		repo:           repo,
		documents:      documents,
		documentSecret: documentSecret,
		logger:         logger,
	}
}

// Create creates an agreement in the CREATED status
func (s *Service) Create(ctx context.Context, req CreateAgreementRequest) (*AgreementResponse, error) {
	a, err := investment.NewAgreement(req.Username, req.Token, req.Currency, req.Amount, req.TokenCount, req.TokenPrecision, req.Name, req.Address)
	if err != nil {
		return nil, err
	}
	a.Reference = req.Reference
	key, err := shared.DocumentKey(investment.DocumentPrefix, a.ID.String(), s.documentSecret)
	if err != nil {
		return nil, err
	}
	a.DocumentKey = key

	if err := s.repo.SaveWithEffects(ctx, a, nil); err != nil {
		return nil, err
	}
	a.ClearDomainEvents()
	s.logger.Info("Investment agreement created",
		zap.String("agreement_id", a.ID.String()),
		zap.String("username", a.Username),
		zap.String("token", a.Token),
	)
	resp := ToAgreementResponse(a)
	return &resp, nil
}

// Get returns one agreement
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AgreementResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToAgreementResponse(a)
	return &resp, nil
}

// List lists agreements with an optional status filter
func (s *Service) List(ctx context.Context, filter AgreementListFilter) (*shared.Paginated[AgreementResponse], error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.Status != nil {
		status := investment.AgreementStatus(*filter.Status)
		if !status.IsValid() {
			return nil, investment.ErrInvalidStatus
		}
		f.Filters["status"] = status
	}

	agreements, total, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	items := make([]AgreementResponse, len(agreements))
	for i := range agreements {
		items[i] = ToAgreementResponse(&agreements[i])
	}
	result := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &result, nil
}

// ListForUser returns every agreement of a user
func (s *Service) ListForUser(ctx context.Context, username string) ([]AgreementResponse, error) {
	agreements, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	items := make([]AgreementResponse, len(agreements))
	for i := range agreements {
		items[i] = ToAgreementResponse(&agreements[i])
	}
	return items, nil
}

// UpdateStatus applies an administrator's status change
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status investment.AgreementStatus) (*AgreementResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := a.UpdateStatus(status, time.Now())
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.save(ctx, a); err != nil {
			return nil, err
		}
	}
	resp := ToAgreementResponse(a)
	return &resp, nil
}

// SignResult records the outcome of the chat sign flow
func (s *Service) SignResult(ctx context.Context, id uuid.UUID, req SignResultRequest) (*AgreementResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if req.Accepted {
		err = a.Sign(req.Signature, req.Payload, now)
	} else {
		_, err = a.UpdateStatus(investment.AgreementStatusCanceled, now)
	}
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	resp := ToAgreementResponse(a)
	return &resp, nil
}

// MarkPaid records the payment of a signed agreement
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*AgreementResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.MarkPaid(time.Now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	resp := ToAgreementResponse(a)
	return &resp, nil
}

// UploadDocument stores the signed agreement document
func (s *Service) UploadDocument(ctx context.Context, id uuid.UUID, dataURL string) (*AgreementResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := shared.DecodePDFDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	if a.DocumentKey == "" {
		key, err := shared.DocumentKey(investment.DocumentPrefix, a.ID.String(), s.documentSecret)
		if err != nil {
			return nil, err
		}
		a.AttachDocument(key, time.Now())
	}
	if err := s.documents.Put(ctx, a.DocumentKey, content, "application/pdf"); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithEffects(ctx, a, nil); err != nil {
		return nil, err
	}
	resp := ToAgreementResponse(a)
	return &resp, nil
}

// DocumentURL returns a short lived download link of the agreement document
func (s *Service) DocumentURL(ctx context.Context, id uuid.UUID) (string, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if a.DocumentKey == "" {
		return "", shared.ErrNotFound
	}
	return s.documents.URL(ctx, a.DocumentKey, documentLinkTTL)
}

func (s *Service) save(ctx context.Context, a *investment.Agreement) error {
	tasks, err := PlanEffects(a, a.GetDomainEvents())
	if err != nil {
		return err
	}
	if err := s.repo.SaveWithEffects(ctx, a, tasks); err != nil {
		return err
	}
	a.ClearDomainEvents()
	return nil
}

// PlanEffects maps agreement events to their side effects
func PlanEffects(a *investment.Agreement, events []shared.DomainEvent) ([]*effect.Task, error) {
	plan := effect.NewPlan()
	id := a.ID.String()
	ref := effect.AgreementRef{AgreementID: id}
	for _, e := range events {
		changed, ok := e.(*investment.AgreementStatusChangedEvent)
		if !ok {
			continue
		}
		switch changed.ToStatus {
		case investment.AgreementStatusSigned:
			plan.Add(id, effect.TypeCRMTagInvestor, effect.Tags{Username: a.Username, Tags: investment.TagsForAgreement(a)})
			plan.Add(id, effect.TypeSupportNewInvestment, ref)
		case investment.AgreementStatusPaid:
			plan.Add(id, effect.TypeTokensAssignedMessage, ref)
			plan.Add(id, effect.TypeCRMTagInvestor, effect.Tags{Username: a.Username, Tags: investment.TagsForAgreement(a)})
		}
	}
	return plan.Tasks()
}
