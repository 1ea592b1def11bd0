package profile

import (
	"time"

	"github.com/tffhost/backend/internal/domain/profile"
)

// RegisterRequest registers or refreshes the profile of a user
type RegisterRequest struct {
	Username         string `json:"username" binding:"required"`
	Name             string `json:"name"`
	Email            string `json:"email" binding:"omitempty,email"`
	AppID            string `json:"app_id"`
	ReferrerUsername string `json:"referrer_username"`
}

// SetKYCStatusRequest is the body of the KYC status endpoint
type SetKYCStatusRequest struct {
	Status  *int   `json:"status" binding:"required,kyc_status"`
	Comment string `json:"comment" binding:"max=1000"`
}

// KYCStatusUpdateResponse is one entry of the KYC audit trail
type KYCStatusUpdateResponse struct {
	FromStatus int       `json:"from_status"`
	ToStatus   int       `json:"to_status"`
	Author     string    `json:"author"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// KYCResponse is the KYC state of a profile
type KYCResponse struct {
	Status              int                       `json:"status"`
	StatusName          string                    `json:"status_name"`
	Updates             []KYCStatusUpdateResponse `json:"updates"`
	UtilityBillVerified bool                      `json:"utility_bill_verified"`
	HasUtilityBill      bool                      `json:"has_utility_bill"`
}

// ProfileResponse is a profile as returned by the API
type ProfileResponse struct {
	Username         string      `json:"username"`
	Name             string      `json:"name"`
	Email            string      `json:"email"`
	AppID            string      `json:"app_id"`
	ReferrerUsername string      `json:"referrer_username,omitempty"`
	KYC              KYCResponse `json:"kyc"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// ToProfileResponse converts a domain profile to its response
func ToProfileResponse(p *profile.Profile) ProfileResponse {
	updates := make([]KYCStatusUpdateResponse, len(p.KYC.Updates))
	for i, u := range p.KYC.Updates {
		updates[i] = KYCStatusUpdateResponse{
			FromStatus: int(u.FromStatus),
			ToStatus:   int(u.ToStatus),
			Author:     u.Author,
			Comment:    u.Comment,
			Timestamp:  u.Timestamp,
		}
	}
	return ProfileResponse{
		Username:         p.Username,
		Name:             p.Name,
		Email:            p.Email,
		AppID:            p.AppID,
		ReferrerUsername: p.ReferrerUsername,
		KYC: KYCResponse{
			Status:              int(p.KYC.Status),
			StatusName:          p.KYC.Status.String(),
			Updates:             updates,
			UtilityBillVerified: p.KYC.UtilityBillVerified,
			HasUtilityBill:      p.KYC.UtilityBillURL != "",
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
