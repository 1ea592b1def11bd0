// Package node models the hosted node fleet and the debounce rules that decide when a
// node owner is told about a status change.
package node

import (
	"time"

	"github.com/tffhost/backend/internal/domain/shared"
)

// Status is the reachability status reported by the fleet orchestrator
type Status string

const (
	StatusRunning Status = "running"
	StatusHalted  Status = "halted"
)

// IsValid checks if the status is a valid value
func (s Status) IsValid() bool {
	return s == StatusRunning || s == StatusHalted
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// HistorySize is the number of samples kept per node
const HistorySize = 6

// StatusSample is one observation of a node
type StatusSample struct {
	Status Status    `json:"status"`
	Date   time.Time `json:"date"`
}

// Node is a hosted node, keyed by its fleet id
type Node struct {
	shared.BaseAggregateRoot
	ID           string
	SerialNumber string
	Username     string
	StatusDate   *time.Time
	LastCheck    *time.Time
	Samples      []StatusSample
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates a node with a single initial sample
func New(id, serialNumber string, status Status, at time.Time) (*Node, error) {
	if id == "" {
		return nil, shared.NewDomainError("INVALID_NODE", "Node ID cannot be empty")
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Invalid node status: "+string(status))
	}
	return &Node{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ID:                id,
		SerialNumber:      serialNumber,
		StatusDate:        &at,
		LastCheck:         &at,
		Samples:           []StatusSample{{Status: status, Date: at}},
		CreatedAt:         at,
		UpdatedAt:         at,
	}, nil
}

// Status returns the newest observed status; a node never observed counts as halted
func (n *Node) Status() Status {
	if len(n.Samples) == 0 {
		return StatusHalted
	}
	return n.Samples[len(n.Samples)-1].Status
}

// HasOwner reports whether the node is assigned to a user
func (n *Node) HasOwner() bool {
	return n.Username != ""
}

// Observe records a new sample. It raises NodeStatusChangedEvent when the newest status
// changes and NodeStatusNotificationDueEvent when the debounce rule fires.
// It returns whether the owner should be notified. A sample not newer than LastCheck is
// ignored.
func (n *Node) Observe(status Status, at time.Time) (bool, error) {
	if !status.IsValid() {
		return false, shared.NewDomainError("INVALID_STATUS", "Invalid node status: "+string(status))
	}
	// one sample per tick; a retried check must not extend the history
	if n.LastCheck != nil && !at.After(*n.LastCheck) {
		return false, nil
	}

	from := n.Status()
	hadSamples := len(n.Samples) > 0

	n.Samples = append(n.Samples, StatusSample{Status: status, Date: at})
	if len(n.Samples) > HistorySize {
		n.Samples = append([]StatusSample(nil), n.Samples[len(n.Samples)-HistorySize:]...)
	}
	n.LastCheck = &at
	n.UpdatedAt = at

	if hadSamples && from != status {
		n.AddDomainEvent(NewNodeStatusChangedEvent(n, from, status, at))
	}

	notify, change := ShouldNotify(n.Samples)
	if notify {
		since := change.Date
		n.StatusDate = &since
		n.AddDomainEvent(NewNodeStatusNotificationDueEvent(n, change, at))
	}
	return notify, nil
}

// Assign sets the owner and serial number of the node
func (n *Node) Assign(username, serialNumber string, at time.Time) error {
	if username == "" {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	n.Username = username
	if serialNumber != "" {
		n.SerialNumber = serialNumber
	}
	n.UpdatedAt = at
	n.AddDomainEvent(NewNodeAssignedEvent(n, at))
	return nil
}
