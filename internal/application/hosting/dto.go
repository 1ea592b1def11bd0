package hosting

import (
	"time"

	"github.com/google/uuid"

	"github.com/tffhost/backend/internal/domain/hosting"
)

// ContactInfo is a billing or shipping contact in requests and responses
type ContactInfo struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address" binding:"required"`
}

func (c ContactInfo) toDomain() hosting.ContactInfo {
	return hosting.ContactInfo{Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address}
}

func contactFromDomain(c hosting.ContactInfo) ContactInfo {
	return ContactInfo{Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address}
}

// CreateOrderRequest is sent by the order flow of the app
type CreateOrderRequest struct {
	Username     string       `json:"username" binding:"required"`
	BillingInfo  ContactInfo  `json:"billing_info" binding:"required"`
	ShippingInfo *ContactInfo `json:"shipping_info"`
	Socket       string       `json:"socket" binding:"omitempty,max=8"`
}

// UpdateStatusRequest is the body of the admin status endpoint
type UpdateStatusRequest struct {
	Status *int `json:"status" binding:"required,order_status"`
}

// SignResultRequest is the outcome of the chat sign flow
type SignResultRequest struct {
	Accepted  bool   `json:"accepted"`
	Signature string `json:"signature" binding:"required_if=Accepted true"`
	Payload   string `json:"payload"`
}

// ImportOrderRequest registers an order that already exists in the ERP
type ImportOrderRequest struct {
	Username     string       `json:"username" binding:"required"`
	SaleOrderID  int64        `json:"sale_order_id" binding:"required,min=1"`
	Status       *int         `json:"status" binding:"required,order_status"`
	BillingInfo  ContactInfo  `json:"billing_info" binding:"required"`
	ShippingInfo *ContactInfo `json:"shipping_info"`
	Socket       string       `json:"socket"`
	Document     string       `json:"document" binding:"required"`
	OrderTime    *time.Time   `json:"order_time"`
	SignTime     *time.Time   `json:"sign_time"`
	SendTime     *time.Time   `json:"send_time"`
	ArrivalTime  *time.Time   `json:"arrival_time"`
}

// OrderListFilter represents filter for listing node orders
type OrderListFilter struct {
	Status   *int `form:"status"`
	Page     int  `form:"page" binding:"omitempty,min=1"`
	PageSize int  `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OrderResponse is a node order as returned by the API
type OrderResponse struct {
	ID           uuid.UUID   `json:"id"`
	Number       int64       `json:"number"`
	Reference    string      `json:"reference"`
	Username     string      `json:"username"`
	BillingInfo  ContactInfo `json:"billing_info"`
	ShippingInfo ContactInfo `json:"shipping_info"`
	Status       int         `json:"status"`
	StatusName   string      `json:"status_name"`
	Socket       string      `json:"socket,omitempty"`
	SaleOrderID  int64       `json:"sale_order_id,omitempty"`
	HasDocument  bool        `json:"has_document"`
	OrderTime    time.Time   `json:"order_time"`
	SignTime     *time.Time  `json:"sign_time,omitempty"`
	SendTime     *time.Time  `json:"send_time,omitempty"`
	ArrivalTime  *time.Time  `json:"arrival_time,omitempty"`
	CancelTime   *time.Time  `json:"cancel_time,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Version      int         `json:"version"`
}

// OnlineCheckResult summarizes one run of the online orders job
type OnlineCheckResult struct {
	Checked int `json:"checked"`
	Arrived int `json:"arrived"`
	Failed  int `json:"failed"`
}

// ToOrderResponse converts a domain order to its response
func ToOrderResponse(o *hosting.NodeOrder) OrderResponse {
	return OrderResponse{
		ID:           o.ID,
		Number:       o.Number,
		Reference:    o.HumanReadableID(),
		Username:     o.Username,
		BillingInfo:  contactFromDomain(o.BillingInfo),
		ShippingInfo: contactFromDomain(o.ShippingInfo),
		Status:       int(o.Status),
		StatusName:   o.Status.String(),
		Socket:       o.Socket,
		SaleOrderID:  o.SaleOrderID,
		HasDocument:  o.DocumentKey != "",
		OrderTime:    o.OrderTime,
		SignTime:     o.SignTime,
		SendTime:     o.SendTime,
		ArrivalTime:  o.ArrivalTime,
		CancelTime:   o.CancelTime,
		UpdatedAt:    o.UpdatedAt,
		Version:      o.Version,
	}
}
