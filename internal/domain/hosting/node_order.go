// Package hosting contains the node order aggregate: a user's request to host a node,
// from approval through signing, payment and shipping until the node comes online.
package hosting

import (
	"strconv"
	"strings"
	"time"

	"github.com/tffhost/backend/internal/domain/shared"
)

// OrderStatus represents the status of a node order
type OrderStatus int

const (
	OrderStatusCanceled OrderStatus = -1
	OrderStatusApproved OrderStatus = 0
	OrderStatusSigned   OrderStatus = 1
	OrderStatusSent     OrderStatus = 2
	OrderStatusArrived  OrderStatus = 3
	// An admin must check the user's investments before approving
	OrderStatusWaitingApproval OrderStatus = 4
	OrderStatusPaid            OrderStatus = 5
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusCanceled:        "CANCELED",
	OrderStatusApproved:        "APPROVED",
	OrderStatusSigned:          "SIGNED",
	OrderStatusSent:            "SENT",
	OrderStatusArrived:         "ARRIVED",
	OrderStatusWaitingApproval: "WAITING_APPROVAL",
	OrderStatusPaid:            "PAID",
}

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// String returns the name of the status
func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

// AllowedNextStatuses returns the statuses an order may move to from current.
// CANCELED, SENT and ARRIVED are terminal; unknown statuses allow nothing.
func AllowedNextStatuses(current OrderStatus) []OrderStatus {
	switch current {
	case OrderStatusWaitingApproval:
		return []OrderStatus{OrderStatusCanceled, OrderStatusApproved}
	case OrderStatusApproved:
		return []OrderStatus{OrderStatusCanceled, OrderStatusSigned}
	case OrderStatusSigned:
		return []OrderStatus{OrderStatusCanceled, OrderStatusPaid}
	case OrderStatusPaid:
		return []OrderStatus{OrderStatusSent}
	}
	return []OrderStatus{}
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range AllowedNextStatuses(s) {
		if next == target {
			return true
		}
	}
	return false
}

// adminStatuses are the statuses an administrator may set directly
var adminStatuses = map[OrderStatus]bool{
	OrderStatusCanceled: true,
	OrderStatusSent:     true,
	OrderStatusApproved: true,
	OrderStatusPaid:     true,
}

// Errors returned by node order operations
var (
	ErrOrderCanceled      = shared.NewDomainError("ORDER_CANCELED", "The order has been canceled")
	ErrInvalidStatus      = shared.NewDomainError("INVALID_STATUS", "The status cannot be set on a node order")
	ErrCannotChangeStatus = shared.NewDomainError("CANNOT_CHANGE_STATUS", "The order cannot move to the requested status")
	ErrOrderExists        = shared.NewDomainError("ORDER_ALREADY_EXISTS", "A node order already exists")
	ErrNoSerialNumber     = shared.NewDomainError("NO_SERIAL_NUMBER", "No serial number is configured for the sale order yet")
	ErrInvalidContentType = shared.ErrInvalidContentType
)

// ContactInfo is a billing or shipping contact
type ContactInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// IsEmpty reports whether no contact field is set
func (c ContactInfo) IsEmpty() bool {
	return c.Name == "" && c.Email == "" && c.Phone == "" && c.Address == ""
}

// NodeOrder is the aggregate root for a request to host a node
type NodeOrder struct {
	shared.BaseAggregateRoot
	shared.BaseEntity
	Number           int64
	Username         string
	BillingInfo      ContactInfo
	ShippingInfo     ContactInfo
	Status           OrderStatus
	Socket           string
	DocumentKey      string
	Signature        string
	SignaturePayload string
	SaleOrderID      int64
	OrderTime        time.Time
	SignTime         *time.Time
	SendTime         *time.Time
	ArrivalTime      *time.Time
	CancelTime       *time.Time
	// Imported orders come from the ERP and are exempt from the one order per user rule
	Imported bool
}

// NewNodeOrder creates an order from the user's order flow. Orders of users that
// invested enough tokens start approved; the others wait for an administrator.
func NewNodeOrder(number int64, username string, billing, shipping ContactInfo, socket string, canHost bool, at time.Time) (*NodeOrder, error) {
	if number <= 0 {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Order number must be positive")
	}
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if billing.Name == "" || billing.Address == "" {
		return nil, shared.NewDomainError("INVALID_BILLING_INFO", "Billing name and address are required")
	}
	if shipping.IsEmpty() {
		shipping = billing
	}

	status := OrderStatusWaitingApproval
	if canHost {
		status = OrderStatusApproved
	}

	order := &NodeOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BaseEntity:        shared.NewBaseEntity(),
		Number:            number,
		Username:          username,
		BillingInfo:       billing,
		ShippingInfo:      shipping,
		Status:            status,
		Socket:            socket,
		OrderTime:         at,
	}
	order.AddDomainEvent(NewNodeOrderCreatedEvent(order, at))
	return order, nil
}

// ImportedOrder carries the fields of an order that already exists in the ERP
type ImportedOrder struct {
	Number       int64
	Username     string
	BillingInfo  ContactInfo
	ShippingInfo ContactInfo
	Status       OrderStatus
	Socket       string
	SaleOrderID  int64
	DocumentKey  string
	OrderTime    time.Time
	SignTime     *time.Time
	SendTime     *time.Time
	ArrivalTime  *time.Time
}

// ImportNodeOrder registers an order created outside the app. Sign, send and arrival
// times are dropped when the imported status does not imply them. An arrived order
// without an arrival time arrived when it was sent, or now when it has no send time.
func ImportNodeOrder(in ImportedOrder, at time.Time) (*NodeOrder, error) {
	if in.Number <= 0 {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Order number must be positive")
	}
	if in.Username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if !in.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if in.SaleOrderID <= 0 {
		return nil, shared.NewDomainError("INVALID_SALE_ORDER", "Sale order ID is required")
	}

	switch in.Status {
	case OrderStatusSigned, OrderStatusPaid, OrderStatusSent, OrderStatusArrived:
	default:
		in.SignTime = nil
	}
	if in.Status != OrderStatusSent && in.Status != OrderStatusArrived {
		in.SendTime = nil
	}
	if in.Status != OrderStatusArrived {
		in.ArrivalTime = nil
	} else if in.ArrivalTime == nil {
		arrived := at
		if in.SendTime != nil {
			arrived = *in.SendTime
		}
		in.ArrivalTime = &arrived
	}
	if in.OrderTime.IsZero() {
		in.OrderTime = at
	}
	shipping := in.ShippingInfo
	if shipping.IsEmpty() {
		shipping = in.BillingInfo
	}

	order := &NodeOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BaseEntity:        shared.NewBaseEntity(),
		Number:            in.Number,
		Username:          in.Username,
		BillingInfo:       in.BillingInfo,
		ShippingInfo:      shipping,
		Status:            in.Status,
		Socket:            in.Socket,
		SaleOrderID:       in.SaleOrderID,
		DocumentKey:       in.DocumentKey,
		OrderTime:         in.OrderTime,
		SignTime:          in.SignTime,
		SendTime:          in.SendTime,
		ArrivalTime:       in.ArrivalTime,
		Imported:          true,
	}
	order.AddDomainEvent(NewNodeOrderImportedEvent(order, at))
	return order, nil
}

// HumanReadableID returns the order number as shown to users
func (o *NodeOrder) HumanReadableID() string {
	return HumanReadableID(o.Number)
}

// HumanReadableID groups the digits of an order number in blocks of four when the
// number of digits is a multiple of four, e.g. 1234567812345678 -> 1234.5678.1234.5678
func HumanReadableID(number int64) string {
	s := strconv.FormatInt(number, 10)
	if len(s)%4 != 0 {
		return s
	}
	chunks := make([]string, 0, len(s)/4)
	for i := 0; i < len(s); i += 4 {
		chunks = append(chunks, s[i:i+4])
	}
	return strings.Join(chunks, ".")
}

// IsCanceled reports whether the order is canceled
func (o *NodeOrder) IsCanceled() bool {
	return o.Status == OrderStatusCanceled
}

// TransitionTo moves the order along the transition table
func (o *NodeOrder) TransitionTo(target OrderStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return ErrCannotChangeStatus.WithDetails(map[string]any{
			"from":                 int(o.Status),
			"to":                   int(target),
			"allowed_new_statuses": statusInts(AllowedNextStatuses(o.Status)),
		})
	}

	from := o.Status
	o.Status = target
	switch target {
	case OrderStatusCanceled:
		o.CancelTime = &at
	case OrderStatusSigned:
		o.SignTime = &at
	case OrderStatusSent:
		o.SendTime = &at
	}
	o.Touch(at)
	o.AddDomainEvent(NewNodeOrderStatusChangedEvent(o, from, target, at))
	return nil
}

// UpdateStatusByAdmin applies an administrator's status change. It returns false when
// the order already has the requested status.
func (o *NodeOrder) UpdateStatusByAdmin(target OrderStatus, at time.Time) (bool, error) {
	if o.IsCanceled() {
		return false, ErrOrderCanceled
	}
	if !adminStatuses[target] {
		return false, ErrInvalidStatus
	}
	if o.Status == target {
		return false, nil
	}
	if err := o.TransitionTo(target, at); err != nil {
		return false, err
	}
	return true, nil
}

// Sign records the user's signature of the hosting agreement
func (o *NodeOrder) Sign(signature, payload string, at time.Time) error {
	if signature == "" {
		return shared.NewDomainError("INVALID_SIGNATURE", "Signature cannot be empty")
	}
	if err := o.TransitionTo(OrderStatusSigned, at); err != nil {
		return err
	}
	o.Signature = signature
	o.SignaturePayload = payload
	return nil
}

// MarkArrived records that every node of a sent order came online. This is the only
// system-driven transition and lives outside the administrator table.
func (o *NodeOrder) MarkArrived(at time.Time) error {
	if o.Status != OrderStatusSent {
		return shared.ErrInvalidState.WithDetails(map[string]any{
			"from": int(o.Status),
			"to":   int(OrderStatusArrived),
		})
	}
	o.Status = OrderStatusArrived
	o.ArrivalTime = &at
	o.Touch(at)
	o.AddDomainEvent(NewNodeOrderStatusChangedEvent(o, OrderStatusSent, OrderStatusArrived, at))
	return nil
}

// AttachDocument stores the key of the hosting agreement document
func (o *NodeOrder) AttachDocument(key string, at time.Time) {
	o.DocumentKey = key
	o.Touch(at)
}

// AttachSaleOrder stores the ERP quotation created for the order
func (o *NodeOrder) AttachSaleOrder(saleOrderID int64, at time.Time) error {
	if saleOrderID <= 0 {
		return shared.NewDomainError("INVALID_SALE_ORDER", "Sale order ID must be positive")
	}
	o.SaleOrderID = saleOrderID
	o.Touch(at)
	o.AddDomainEvent(NewNodeOrderQuotationCreatedEvent(o, at))
	return nil
}

// HasSaleOrder reports whether an ERP quotation exists
func (o *NodeOrder) HasSaleOrder() bool {
	return o.SaleOrderID > 0
}

// TagHoster is the CRM tag of users hosting a node
const TagHoster = "Hoster"

// DocumentPrefix is the storage prefix of hosting agreement documents
const DocumentPrefix = "node-orders"

// TagsForOrder returns the CRM tags earned by an order
func TagsForOrder(o *NodeOrder) []string {
	switch o.Status {
	case OrderStatusArrived, OrderStatusSent, OrderStatusSigned, OrderStatusPaid:
		return []string{TagHoster}
	}
	return []string{}
}

func statusInts(statuses []OrderStatus) []int {
	out := make([]int, len(statuses))
	for i, s := range statuses {
		out[i] = int(s)
	}
	return out
}
