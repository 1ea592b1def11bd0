package profile

import (
	"strconv"
	"time"
)

// KYCStatus is the know-your-customer verification status of a user
type KYCStatus int

const (
	KYCStatusDenied     KYCStatus = -10
	KYCStatusUnverified KYCStatus = 0
	// The KYC flow has been sent to the user
	KYCStatusPendingSubmit KYCStatus = 10
	// The user answered the KYC flow
	KYCStatusSubmitted KYCStatus = 20
	KYCStatusInfoSet   KYCStatus = 30
	// The identity check is running; an administrator approves or denies afterwards
	KYCStatusPendingApproval KYCStatus = 40
	KYCStatusVerified        KYCStatus = 50
)

var kycStatusNames = map[KYCStatus]string{
	KYCStatusDenied:          "DENIED",
	KYCStatusUnverified:      "UNVERIFIED",
	KYCStatusPendingSubmit:   "PENDING_SUBMIT",
	KYCStatusSubmitted:       "SUBMITTED",
	KYCStatusInfoSet:         "INFO_SET",
	KYCStatusPendingApproval: "PENDING_APPROVAL",
	KYCStatusVerified:        "VERIFIED",
}

// IsValid checks if the status is a valid KYCStatus
func (s KYCStatus) IsValid() bool {
	_, ok := kycStatusNames[s]
	return ok
}

func (s KYCStatus) String() string {
	if name, ok := kycStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

var kycTransitions = map[KYCStatus][]KYCStatus{
	KYCStatusDenied:          {},
	KYCStatusUnverified:      {KYCStatusPendingSubmit},
	KYCStatusPendingSubmit:   {KYCStatusPendingSubmit},
	KYCStatusSubmitted:       {KYCStatusPendingApproval},
	KYCStatusInfoSet:         {},
	KYCStatusPendingApproval: {KYCStatusVerified, KYCStatusDenied, KYCStatusPendingSubmit},
	KYCStatusVerified:        {KYCStatusPendingSubmit},
}

// CanChangeKYCStatus reports whether the KYC status may move from current to next
func CanChangeKYCStatus(current, next KYCStatus) bool {
	for _, s := range kycTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// KYCStatusUpdate is one entry of the KYC audit trail
type KYCStatusUpdate struct {
	FromStatus KYCStatus `json:"from_status"`
	ToStatus   KYCStatus `json:"to_status"`
	Author     string    `json:"author"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// KYCInformation holds the verification state of a profile
type KYCInformation struct {
	Status              KYCStatus         `json:"status"`
	Updates             []KYCStatusUpdate `json:"updates"`
	ApplicantID         string            `json:"applicant_id,omitempty"`
	UtilityBillURL      string            `json:"utility_bill_url,omitempty"`
	UtilityBillVerified bool              `json:"utility_bill_verified"`
}
