package node

import (
	"time"

	"github.com/tffhost/backend/internal/domain/node"
)

// NodeResponse is a node as returned by the API and stored in the user data of the app
type NodeResponse struct {
	ID           string     `json:"id"`
	SerialNumber string     `json:"serial_number"`
	Username     string     `json:"username,omitempty"`
	Status       string     `json:"status"`
	StatusDate   *time.Time `json:"status_date,omitempty"`
	LastCheck    *time.Time `json:"last_check,omitempty"`
}

// OwnerResponse is the owner of a node
type OwnerResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// NodeStatusResponse is a node with its owner, as listed for administrators
type NodeStatusResponse struct {
	Node    NodeResponse   `json:"node"`
	Profile *OwnerResponse `json:"profile"`
}

// AssignNodeInput is one node to assign to a user
type AssignNodeInput struct {
	ID           string      `json:"id" binding:"required"`
	SerialNumber string      `json:"serial_number" binding:"required"`
	Status       node.Status `json:"status" binding:"omitempty,oneof=running halted"`
}

// AssignNodesRequest is the body of the node assignment endpoint
type AssignNodesRequest struct {
	Username string            `json:"username" binding:"required"`
	Nodes    []AssignNodeInput `json:"nodes" binding:"required,min=1,dive"`
}

// CheckResult summarizes one run of the node status check
type CheckResult struct {
	Checked       int `json:"checked"`
	Notifications int `json:"notifications"`
	Created       int `json:"created"`
	Failed        int `json:"failed"`
	StatPoints    int `json:"stat_points"`
}

// ToNodeResponse converts a domain node to its response
func ToNodeResponse(n *node.Node) NodeResponse {
	return NodeResponse{
		ID:           n.ID,
		SerialNumber: n.SerialNumber,
		Username:     n.Username,
		Status:       n.Status().String(),
		StatusDate:   n.StatusDate,
		LastCheck:    n.LastCheck,
	}
}
