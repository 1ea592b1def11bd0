package investment

import (
	"time"

	"github.com/tffhost/backend/internal/domain/shared"
)

// AggregateTypeAgreement is the aggregate type for investment agreements
const AggregateTypeAgreement = "InvestmentAgreement"

// Event types for investment agreements
const (
	EventTypeAgreementCreated       = "InvestmentAgreementCreated"
	EventTypeAgreementStatusChanged = "InvestmentAgreementStatusChanged"
)

// AgreementCreatedEvent is raised when an agreement is created
type AgreementCreatedEvent struct {
	shared.BaseDomainEvent
	AgreementID string `json:"agreement_id"`
	Username    string `json:"username"`
	Token       string `json:"token"`
}

// NewAgreementCreatedEvent creates a new AgreementCreatedEvent
func NewAgreementCreatedEvent(a *Agreement, at time.Time) *AgreementCreatedEvent {
	return &AgreementCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAgreementCreated, AggregateTypeAgreement, a.ID.String(), at),
		AgreementID:     a.ID.String(),
		Username:        a.Username,
		Token:           a.Token,
	}
}

// AgreementStatusChangedEvent is raised on every status transition
type AgreementStatusChangedEvent struct {
	shared.BaseDomainEvent
	AgreementID string          `json:"agreement_id"`
	Username    string          `json:"username"`
	FromStatus  AgreementStatus `json:"from_status"`
	ToStatus    AgreementStatus `json:"to_status"`
}

// NewAgreementStatusChangedEvent creates a new AgreementStatusChangedEvent
func NewAgreementStatusChangedEvent(a *Agreement, from, to AgreementStatus, at time.Time) *AgreementStatusChangedEvent {
	return &AgreementStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAgreementStatusChanged, AggregateTypeAgreement, a.ID.String(), at),
		AgreementID:     a.ID.String(),
		Username:        a.Username,
		FromStatus:      from,
		ToStatus:        to,
	}
}
