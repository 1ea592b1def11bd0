package effect

import "time"

// Type names a side effect. Each type has exactly one registered executor.
type Type string

const (
	// Node fleet
	TypeNodeStatusMessage Type = "message.node_status"
	TypeUserDataNodes     Type = "user_data.nodes"

	// Node orders
	TypeUserDataHoster        Type = "user_data.hoster"
	TypeAgreementDocument     Type = "node_order.agreement"
	TypeERPCreateQuotation    Type = "erp.create_quotation"
	TypeERPCancelQuotation    Type = "erp.cancel_quotation"
	TypeERPConfirmQuotation   Type = "erp.confirm_quotation"
	TypeSignAgreementMessage  Type = "message.sign_agreement"
	TypeOrderSentMessage      Type = "message.order_sent"
	TypeOrderRefusedMessage   Type = "message.order_refused"
	TypeSupportNewOrder       Type = "support.new_order"
	TypeChatRoleHoster        Type = "chat.role_hoster"
	TypeCRMTagHoster          Type = "crm.tag_hoster"
	TypeHosterProgressAddress Type = "hoster.progress.flow_address"
	TypeHosterProgressSign    Type = "hoster.progress.flow_sign"
	TypeHosterProgressSent    Type = "hoster.progress.node_sent"
	TypeHosterProgressPowered Type = "hoster.progress.node_powered"
	TypeHosterProgressReset   Type = "hoster.progress.reset"
	TypeSupportNewInvestment  Type = "support.new_investment"
	TypeCRMTagInvestor        Type = "crm.tag_investor"
	TypeTokensAssignedMessage Type = "message.tokens_assigned"
	TypeKYCFlowMessage        Type = "message.kyc_flow"
	TypeKYCApprovedMessage    Type = "message.kyc_approved"
	TypeUserDataKYC           Type = "user_data.kyc"
)

// HosterStep is a step of the hoster to-do list shown in the app
type HosterStep string

const (
	HosterStepFlowAddress HosterStep = "flow_address"
	HosterStepFlowSign    HosterStep = "flow_sign"
	HosterStepNodeSent    HosterStep = "node_sent"
	HosterStepNodePowered HosterStep = "node_powered"
)

// NodeStatusMessage is the payload of TypeNodeStatusMessage
type NodeStatusMessage struct {
	NodeID       string    `json:"node_id"`
	SerialNumber string    `json:"serial_number"`
	Username     string    `json:"username"`
	Status       string    `json:"status"`
	Since        time.Time `json:"since"`
}

// UserRef addresses a user-scoped effect
type UserRef struct {
	Username string `json:"username"`
}

// HosterData is the payload of TypeUserDataHoster. A nil CanOrder means "derive from
// the user's orders at execution time".
type HosterData struct {
	Username string `json:"username"`
	CanOrder *bool  `json:"can_order,omitempty"`
}

// HosterProgress is the payload of the hoster.progress.* effects
type HosterProgress struct {
	Username string     `json:"username"`
	Step     HosterStep `json:"step"`
}

// OrderRef addresses a node order effect
type OrderRef struct {
	OrderID string `json:"order_id"`
}

// Quotation is the payload of the ERP quotation state effects
type Quotation struct {
	OrderID     string `json:"order_id"`
	SaleOrderID int64  `json:"sale_order_id"`
}

// Tags is the payload of the CRM tagging effects
type Tags struct {
	Username string   `json:"username"`
	Tags     []string `json:"tags"`
}

// AgreementRef addresses an investment agreement effect
type AgreementRef struct {
	AgreementID string `json:"agreement_id"`
}

// KYCFlow is the payload of TypeKYCFlowMessage
type KYCFlow struct {
	Username string `json:"username"`
	Comment  string `json:"comment,omitempty"`
}
