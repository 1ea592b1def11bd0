// Package investment contains token purchase agreements.
package investment

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tffhost/backend/internal/domain/shared"
)

// AgreementStatus represents the status of an investment agreement
type AgreementStatus int

const (
	AgreementStatusCanceled AgreementStatus = -1
	AgreementStatusCreated  AgreementStatus = 0
	AgreementStatusSigned   AgreementStatus = 1
	AgreementStatusPaid     AgreementStatus = 2
)

var agreementStatusNames = map[AgreementStatus]string{
	AgreementStatusCanceled: "CANCELED",
	AgreementStatusCreated:  "CREATED",
	AgreementStatusSigned:   "SIGNED",
	AgreementStatusPaid:     "PAID",
}

// IsValid checks if the status is a valid AgreementStatus
func (s AgreementStatus) IsValid() bool {
	_, ok := agreementStatusNames[s]
	return ok
}

func (s AgreementStatus) String() string {
	if name, ok := agreementStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

// AllowedNextStatuses returns the statuses an agreement may move to
func AllowedNextStatuses(current AgreementStatus) []AgreementStatus {
	switch current {
	case AgreementStatusCreated:
		return []AgreementStatus{AgreementStatusSigned, AgreementStatusCanceled}
	case AgreementStatusSigned:
		return []AgreementStatus{AgreementStatusPaid, AgreementStatusCanceled}
	}
	return []AgreementStatus{}
}

// CanTransitionTo checks if the status can transition to the target status
func (s AgreementStatus) CanTransitionTo(target AgreementStatus) bool {
	for _, next := range AllowedNextStatuses(s) {
		if next == target {
			return true
		}
	}
	return false
}

// Token kinds
const (
	TokenTFT  = "TFT"
	TokenITFT = "iTFT"
)

// Errors returned by agreement operations
var (
	ErrAgreementCanceled  = shared.NewDomainError("ORDER_CANCELED", "The agreement has been canceled")
	ErrInvalidStatus      = shared.NewDomainError("INVALID_STATUS", "The status cannot be set on an investment agreement")
	ErrCannotChangeStatus = shared.NewDomainError("CANNOT_CHANGE_STATUS", "The agreement cannot move to the requested status")
)

// Agreement is the aggregate root for a token purchase
type Agreement struct {
	shared.BaseAggregateRoot
	shared.BaseEntity
	Username         string
	Amount           decimal.Decimal
	Currency         string
	Token            string
	TokenCount       int64
	TokenPrecision   int32
	Name             string
	Address          string
	Reference        string
	DocumentKey      string
	Signature        string
	SignaturePayload string
	Status           AgreementStatus
	SignTime         *time.Time
	PaidTime         *time.Time
	CancelTime       *time.Time
}

// NewAgreement creates an agreement in the CREATED status. The token count is stored
// as an integer scaled by 10^precision.
func NewAgreement(username, token, currency string, amount, tokens decimal.Decimal, precision int32, name, address string) (*Agreement, error) {
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if token != TokenTFT && token != TokenITFT {
		return nil, shared.NewDomainError("INVALID_TOKEN", "Token must be TFT or iTFT")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	if tokens.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TOKEN_COUNT", "Token count cannot be negative")
	}
	if precision < 0 || precision > 8 {
		return nil, shared.NewDomainError("INVALID_PRECISION", "Token precision must be between 0 and 8")
	}

	a := &Agreement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BaseEntity:        shared.NewBaseEntity(),
		Username:          username,
		Amount:            amount,
		Currency:          currency,
		Token:             token,
		TokenCount:        tokens.Shift(precision).Round(0).IntPart(),
		TokenPrecision:    precision,
		Name:              name,
		Address:           address,
		Status:            AgreementStatusCreated,
	}
	a.AddDomainEvent(NewAgreementCreatedEvent(a, a.CreatedAt))
	return a, nil
}

// TokenCountDecimal returns the real amount of tokens
func (a *Agreement) TokenCountDecimal() decimal.Decimal {
	return decimal.New(a.TokenCount, -a.TokenPrecision)
}

func (a *Agreement) transition(target AgreementStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(target) {
		allowed := AllowedNextStatuses(a.Status)
		ints := make([]int, len(allowed))
		for i, s := range allowed {
			ints[i] = int(s)
		}
		return ErrCannotChangeStatus.WithDetails(map[string]any{
			"from":                 int(a.Status),
			"to":                   int(target),
			"allowed_new_statuses": ints,
		})
	}
	from := a.Status
	a.Status = target
	switch target {
	case AgreementStatusSigned:
		a.SignTime = &at
	case AgreementStatusPaid:
		a.PaidTime = &at
	case AgreementStatusCanceled:
		a.CancelTime = &at
	}
	a.Touch(at)
	a.AddDomainEvent(NewAgreementStatusChangedEvent(a, from, target, at))
	return nil
}

// UpdateStatus applies an administrator's status change. Only SIGNED and CANCELED can be
// set this way; payments go through MarkPaid. It returns false when nothing changed.
func (a *Agreement) UpdateStatus(target AgreementStatus, at time.Time) (bool, error) {
	if a.Status == AgreementStatusCanceled {
		return false, ErrAgreementCanceled
	}
	if target != AgreementStatusSigned && target != AgreementStatusCanceled {
		return false, ErrInvalidStatus
	}
	if a.Status == target {
		return false, nil
	}
	if err := a.transition(target, at); err != nil {
		return false, err
	}
	return true, nil
}

// Sign records the investor's signature
func (a *Agreement) Sign(signature, payload string, at time.Time) error {
	if signature == "" {
		return shared.NewDomainError("INVALID_SIGNATURE", "Signature cannot be empty")
	}
	if err := a.transition(AgreementStatusSigned, at); err != nil {
		return err
	}
	a.Signature = signature
	a.SignaturePayload = payload
	return nil
}

// MarkPaid records the payment of a signed agreement
func (a *Agreement) MarkPaid(at time.Time) error {
	return a.transition(AgreementStatusPaid, at)
}

// AttachDocument stores the key of the purchase agreement document
func (a *Agreement) AttachDocument(key string, at time.Time) {
	a.DocumentKey = key
	a.Touch(at)
}

// TagsForAgreement returns the CRM tags earned by an agreement
func TagsForAgreement(a *Agreement) []string {
	if a.Status != AgreementStatusSigned && a.Status != AgreementStatusPaid {
		return []string{}
	}
	if a.Token == TokenITFT {
		return []string{"iTFT Purchaser", "GreenITGlobe contract"}
	}
	return []string{"Bettertoken contract", "ITO Investor"}
}

// DocumentPrefix is the storage prefix of purchase agreement documents
const DocumentPrefix = "purchase-agreements"
