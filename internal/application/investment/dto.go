package investment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tffhost/backend/internal/domain/investment"
)

// CreateAgreementRequest creates a token purchase agreement
type CreateAgreementRequest struct {
	Username       string          `json:"username" binding:"required"`
	Token          string          `json:"token" binding:"required,oneof=TFT iTFT"`
	Currency       string          `json:"currency" binding:"required,len=3"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	TokenCount     decimal.Decimal `json:"token_count" binding:"required"`
	TokenPrecision int32           `json:"token_precision" binding:"min=0,max=8"`
	Name           string          `json:"name" binding:"required"`
	Address        string          `json:"address" binding:"required"`
	Reference      string          `json:"reference"`
}

// UpdateStatusRequest is the body of the admin status endpoint
type UpdateStatusRequest struct {
	Status *int `json:"status" binding:"required,agreement_status"`
}

// SignResultRequest is the outcome of the chat sign flow
type SignResultRequest struct {
	Accepted  bool   `json:"accepted"`
	Signature string `json:"signature" binding:"required_if=Accepted true"`
	Payload   string `json:"payload"`
}

// UploadDocumentRequest uploads a signed document as a data URL
type UploadDocumentRequest struct {
	Document string `json:"document" binding:"required"`
}

// AgreementListFilter represents filter for listing agreements
type AgreementListFilter struct {
	Status   *int `form:"status"`
	Page     int  `form:"page" binding:"omitempty,min=1"`
	PageSize int  `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AgreementResponse is an agreement as returned by the API
type AgreementResponse struct {
	ID          uuid.UUID       `json:"id"`
	Username    string          `json:"username"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Token       string          `json:"token"`
	TokenCount  decimal.Decimal `json:"token_count"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Reference   string          `json:"reference,omitempty"`
	Status      int             `json:"status"`
	StatusName  string          `json:"status_name"`
	HasDocument bool            `json:"has_document"`
	SignTime    *time.Time      `json:"sign_time,omitempty"`
	PaidTime    *time.Time      `json:"paid_time,omitempty"`
	CancelTime  *time.Time      `json:"cancel_time,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ToAgreementResponse converts a domain agreement to its response
func ToAgreementResponse(a *investment.Agreement) AgreementResponse {
	return AgreementResponse{
		ID:          a.ID,
		Username:    a.Username,
		Amount:      a.Amount,
		Currency:    a.Currency,
		Token:       a.Token,
		TokenCount:  a.TokenCountDecimal(),
		Name:        a.Name,
		Address:     a.Address,
		Reference:   a.Reference,
		Status:      int(a.Status),
		StatusName:  a.Status.String(),
		HasDocument: a.DocumentKey != "",
		SignTime:    a.SignTime,
		PaidTime:    a.PaidTime,
		CancelTime:  a.CancelTime,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		Version:     a.Version,
	}
}
