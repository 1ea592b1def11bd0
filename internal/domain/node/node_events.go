package node

import (
	"time"

	"github.com/tffhost/backend/internal/domain/shared"
)

// AggregateTypeNode is the aggregate type for nodes
const AggregateTypeNode = "Node"

// Event types for nodes
const (
	EventTypeNodeStatusChanged         = "NodeStatusChanged"
	EventTypeNodeStatusNotificationDue = "NodeStatusNotificationDue"
	EventTypeNodeAssigned              = "NodeAssigned"
)

// NodeStatusChangedEvent is raised when the newest sample differs from the previous one
type NodeStatusChangedEvent struct {
	shared.BaseDomainEvent
	NodeID     string `json:"node_id"`
	Username   string `json:"username"`
	FromStatus Status `json:"from_status"`
	ToStatus   Status `json:"to_status"`
}

// NewNodeStatusChangedEvent creates a new NodeStatusChangedEvent
func NewNodeStatusChangedEvent(n *Node, from, to Status, at time.Time) *NodeStatusChangedEvent {
	return &NodeStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNodeStatusChanged, AggregateTypeNode, n.ID, at),
		NodeID:          n.ID,
		Username:        n.Username,
		FromStatus:      from,
		ToStatus:        to,
	}
}

// NodeStatusNotificationDueEvent is raised when a transition survived the debounce window
type NodeStatusNotificationDueEvent struct {
	shared.BaseDomainEvent
	NodeID       string    `json:"node_id"`
	SerialNumber string    `json:"serial_number"`
	Username     string    `json:"username"`
	Status       Status    `json:"status"`
	Since        time.Time `json:"since"`
}

// NewNodeStatusNotificationDueEvent creates a new NodeStatusNotificationDueEvent
func NewNodeStatusNotificationDueEvent(n *Node, change StatusSample, at time.Time) *NodeStatusNotificationDueEvent {
	return &NodeStatusNotificationDueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNodeStatusNotificationDue, AggregateTypeNode, n.ID, at),
		NodeID:          n.ID,
		SerialNumber:    n.SerialNumber,
		Username:        n.Username,
		Status:          change.Status,
		Since:           change.Date,
	}
}

// NodeAssignedEvent is raised when a node is assigned to a user
type NodeAssignedEvent struct {
	shared.BaseDomainEvent
	NodeID   string `json:"node_id"`
	Username string `json:"username"`
}

// NewNodeAssignedEvent creates a new NodeAssignedEvent
func NewNodeAssignedEvent(n *Node, at time.Time) *NodeAssignedEvent {
	return &NodeAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNodeAssigned, AggregateTypeNode, n.ID, at),
		NodeID:          n.ID,
		Username:        n.Username,
	}
}
