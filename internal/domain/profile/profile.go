// Package profile holds the platform profile of a user and its KYC state.
package profile

import (
	"time"

	"github.com/tffhost/backend/internal/domain/shared"
)

// ErrCannotChangeKYCStatus is returned for a KYC transition outside the table
var ErrCannotChangeKYCStatus = shared.NewDomainError("CANNOT_CHANGE_KYC_STATUS", "The KYC status cannot be changed to the requested status")

// Profile is keyed by the identity provider username
type Profile struct {
	shared.BaseAggregateRoot
	Username         string
	Name             string
	Email            string
	AppID            string
	ReferrerUsername string
	KYC              KYCInformation
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New creates a profile with an unverified KYC status
func New(username, name, email, appID string, at time.Time) (*Profile, error) {
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	return &Profile{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Username:          username,
		Name:              name,
		Email:             email,
		AppID:             appID,
		KYC:               KYCInformation{Status: KYCStatusUnverified, Updates: []KYCStatusUpdate{}},
		CreatedAt:         at,
		UpdatedAt:         at,
	}, nil
}

// SetKYCStatus validates the transition and appends it to the audit trail
func (p *Profile) SetKYCStatus(status KYCStatus, author, comment string, at time.Time) error {
	if !status.IsValid() {
		return shared.ErrInvalidInput.WithDetails(map[string]any{"status": int(status)})
	}
	from := p.KYC.Status
	if !CanChangeKYCStatus(from, status) {
		return ErrCannotChangeKYCStatus.WithDetails(map[string]any{
			"from": int(from),
			"to":   int(status),
		})
	}
	p.KYC.Updates = append(p.KYC.Updates, KYCStatusUpdate{
		FromStatus: from,
		ToStatus:   status,
		Author:     author,
		Comment:    comment,
		Timestamp:  at,
	})
	p.KYC.Status = status
	p.UpdatedAt = at
	p.AddDomainEvent(NewKYCStatusChangedEvent(p, from, status, comment, at))
	return nil
}

// SetUtilityBillVerified marks the uploaded utility bill as checked
func (p *Profile) SetUtilityBillVerified(at time.Time) error {
	if p.KYC.UtilityBillURL == "" {
		return shared.NewDomainError("NO_UTILITY_BILL", "The user has not uploaded a utility bill")
	}
	p.KYC.UtilityBillVerified = true
	p.UpdatedAt = at
	return nil
}

// IsVerified reports whether the KYC procedure was approved
func (p *Profile) IsVerified() bool {
	return p.KYC.Status == KYCStatusVerified
}

// AggregateTypeProfile is the aggregate type for profiles
const AggregateTypeProfile = "Profile"

// EventTypeKYCStatusChanged is raised when the KYC status changes
const EventTypeKYCStatusChanged = "KYCStatusChanged"

// KYCStatusChangedEvent is raised when the KYC status changes
type KYCStatusChangedEvent struct {
	shared.BaseDomainEvent
	Username   string    `json:"username"`
	FromStatus KYCStatus `json:"from_status"`
	ToStatus   KYCStatus `json:"to_status"`
	Comment    string    `json:"comment,omitempty"`
}

// NewKYCStatusChangedEvent creates a new KYCStatusChangedEvent
func NewKYCStatusChangedEvent(p *Profile, from, to KYCStatus, comment string, at time.Time) *KYCStatusChangedEvent {
	return &KYCStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeKYCStatusChanged, AggregateTypeProfile, p.Username, at),
		Username:        p.Username,
		FromStatus:      from,
		ToStatus:        to,
		Comment:         comment,
	}
}
