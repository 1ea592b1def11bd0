package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tffhost/backend/internal/domain/investment"
)

// AgreementModel is the persistence model of an investment agreement
type AgreementModel struct {
	AggregateModel
	Username         string          `gorm:"type:varchar(100);not null;index"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	Token            string          `gorm:"type:varchar(8);not null"`
	TokenCount       int64           `gorm:"not null"`
	TokenPrecision   int32           `gorm:"not null"`
	Name             string          `gorm:"type:varchar(200)"`
	Address          string          `gorm:"type:text"`
	Reference        string          `gorm:"type:varchar(100)"`
	DocumentKey      string          `gorm:"type:varchar(255)"`
	Signature        string          `gorm:"type:text"`
	SignaturePayload string          `gorm:"type:text"`
	Status           int             `gorm:"not null;index"`
	SignTime         *time.Time
	PaidTime         *time.Time
	CancelTime       *time.Time
}

// TableName returns the table name for GORM
func (AgreementModel) TableName() string {
	return "investment_agreements"
}

// AgreementModelFromDomain creates a persistence model from a domain agreement
func AgreementModelFromDomain(a *investment.Agreement) *AgreementModel {
	m := &AgreementModel{
		Username:         a.Username,
		Amount:           a.Amount,
		Currency:         a.Currency,
		Token:            a.Token,
		TokenCount:       a.TokenCount,
		TokenPrecision:   a.TokenPrecision,
		Name:             a.Name,
		Address:          a.Address,
		Reference:        a.Reference,
		DocumentKey:      a.DocumentKey,
		Signature:        a.Signature,
		SignaturePayload: a.SignaturePayload,
		Status:           int(a.Status),
		SignTime:         a.SignTime,
		PaidTime:         a.PaidTime,
		CancelTime:       a.CancelTime,
	}
	m.FromDomainAggregate(a.BaseAggregateRoot, a.BaseEntity)
	return m
}

// ToDomain converts the persistence model to a domain agreement
func (m *AgreementModel) ToDomain() *investment.Agreement {
	return &investment.Agreement{
		BaseAggregateRoot: aggregateRoot(m.Version),
		BaseEntity:        m.BaseModel.ToDomain(),
		Username:          m.Username,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Token:             m.Token,
		TokenCount:        m.TokenCount,
		TokenPrecision:    m.TokenPrecision,
		Name:              m.Name,
		Address:           m.Address,
		Reference:         m.Reference,
		DocumentKey:       m.DocumentKey,
		Signature:         m.Signature,
		SignaturePayload:  m.SignaturePayload,
		Status:            investment.AgreementStatus(m.Status),
		SignTime:          m.SignTime,
		PaidTime:          m.PaidTime,
		CancelTime:        m.CancelTime,
	}
}
