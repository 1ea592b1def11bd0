package hosting

import (
	"time"

	"github.com/tffhost/backend/internal/domain/shared"
)

// AggregateTypeNodeOrder is the aggregate type for node orders
const AggregateTypeNodeOrder = "NodeOrder"

// Event types for node orders
const (
	EventTypeNodeOrderCreated          = "NodeOrderCreated"
	EventTypeNodeOrderImported         = "NodeOrderImported"
	EventTypeNodeOrderStatusChanged    = "NodeOrderStatusChanged"
	EventTypeNodeOrderQuotationCreated = "NodeOrderQuotationCreated"
)

// NodeOrderCreatedEvent is raised when a user orders a node
type NodeOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID  string      `json:"order_id"`
	Number   int64       `json:"number"`
	Username string      `json:"username"`
	Status   OrderStatus `json:"status"`
}

// NewNodeOrderCreatedEvent creates a new NodeOrderCreatedEvent
func NewNodeOrderCreatedEvent(o *NodeOrder, at time.Time) *NodeOrderCreatedEvent {
	return &NodeOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNodeOrderCreated, AggregateTypeNodeOrder, o.ID.String(), at),
		OrderID:         o.ID.String(),
		Number:          o.Number,
		Username:        o.Username,
		Status:          o.Status,
	}
}

// NodeOrderImportedEvent is raised when an administrator registers an existing ERP order
type NodeOrderImportedEvent struct {
	shared.BaseDomainEvent
	OrderID     string      `json:"order_id"`
	Username    string      `json:"username"`
	Status      OrderStatus `json:"status"`
	SaleOrderID int64       `json:"sale_order_id"`
}

// NewNodeOrderImportedEvent creates a new NodeOrderImportedEvent
func NewNodeOrderImportedEvent(o *NodeOrder, at time.Time) *NodeOrderImportedEvent {
	return &NodeOrderImportedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNodeOrderImported, AggregateTypeNodeOrder, o.ID.String(), at),
		OrderID:         o.ID.String(),
		Username:        o.Username,
		Status:          o.Status,
		SaleOrderID:     o.SaleOrderID,
	}
}

// NodeOrderStatusChangedEvent is raised on every status transition
type NodeOrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID     string      `json:"order_id"`
	Number      int64       `json:"number"`
	Username    string      `json:"username"`
	FromStatus  OrderStatus `json:"from_status"`
	ToStatus    OrderStatus `json:"to_status"`
	SaleOrderID int64       `json:"sale_order_id"`
}

// NewNodeOrderStatusChangedEvent creates a new NodeOrderStatusChangedEvent
func NewNodeOrderStatusChangedEvent(o *NodeOrder, from, to OrderStatus, at time.Time) *NodeOrderStatusChangedEvent {
	return &NodeOrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNodeOrderStatusChanged, AggregateTypeNodeOrder, o.ID.String(), at),
		OrderID:         o.ID.String(),
		Number:          o.Number,
		Username:        o.Username,
		FromStatus:      from,
		ToStatus:        to,
		SaleOrderID:     o.SaleOrderID,
	}
}

// NodeOrderQuotationCreatedEvent is raised when the ERP quotation was created
type NodeOrderQuotationCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID     string `json:"order_id"`
	SaleOrderID int64  `json:"sale_order_id"`
}

// NewNodeOrderQuotationCreatedEvent creates a new NodeOrderQuotationCreatedEvent
func NewNodeOrderQuotationCreatedEvent(o *NodeOrder, at time.Time) *NodeOrderQuotationCreatedEvent {
	return &NodeOrderQuotationCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNodeOrderQuotationCreated, AggregateTypeNodeOrder, o.ID.String(), at),
		OrderID:         o.ID.String(),
		SaleOrderID:     o.SaleOrderID,
	}
}
