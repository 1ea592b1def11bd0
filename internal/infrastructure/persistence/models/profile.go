package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tffhost/backend/internal/domain/profile"
)

// ProfileModel is the persistence model of a user profile
type ProfileModel struct {
	Username         string    `gorm:"type:varchar(100);primaryKey"`
	Name             string    `gorm:"type:varchar(200)"`
	Email            string    `gorm:"type:varchar(200)"`
	AppID            string    `gorm:"type:varchar(200)"`
	ReferrerUsername string    `gorm:"type:varchar(100)"`
	KYCStatus        int       `gorm:"not null;default:0;index"`
	KYC              []byte    `gorm:"type:jsonb;not null"`
	Version          int       `gorm:"not null;default:1"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "profiles"
}

// ProfileModelFromDomain creates a persistence model from a domain profile
func ProfileModelFromDomain(p *profile.Profile) (*ProfileModel, error) {
	kyc, err := json.Marshal(p.KYC)
	if err != nil {
		return nil, fmt.Errorf("encode kyc of %s: %w", p.Username, err)
	}
	return &ProfileModel{
		Username:         p.Username,
		Name:             p.Name,
		Email:            p.Email,
		AppID:            p.AppID,
		ReferrerUsername: p.ReferrerUsername,
		KYCStatus:        int(p.KYC.Status),
		KYC:              kyc,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}

// ToDomain converts the persistence model to a domain profile
func (m *ProfileModel) ToDomain() (*profile.Profile, error) {
	var kyc profile.KYCInformation
	if len(m.KYC) > 0 {
		if err := json.Unmarshal(m.KYC, &kyc); err != nil {
			return nil, fmt.Errorf("decode kyc of %s: %w", m.Username, err)
		}
	}
	kyc.Status = profile.KYCStatus(m.KYCStatus)
	return &profile.Profile{
		BaseAggregateRoot: aggregateRoot(m.Version),
		Username:          m.Username,
		Name:              m.Name,
		Email:             m.Email,
		AppID:             m.AppID,
		ReferrerUsername:  m.ReferrerUsername,
		KYC:               kyc,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}, nil
}
