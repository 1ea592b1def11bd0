package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tffhost/backend/internal/domain/node"
)

// NodeModel is the persistence model of a fleet node. Status is the newest sample
// status, denormalized so nodes can be filtered by it.
type NodeModel struct {
	ID           string `gorm:"type:varchar(128);primaryKey"`
	SerialNumber string `gorm:"type:varchar(64)"`
	Username     string `gorm:"type:varchar(100);index"`
	Status       string `gorm:"type:varchar(16);not null;index"`
	StatusDate   *time.Time
	LastCheck    *time.Time
	Samples      []byte    `gorm:"type:jsonb;not null"`
	Version      int       `gorm:"not null;default:1"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NodeModel) TableName() string {
	return "nodes"
}

// NodeModelFromDomain creates a persistence model from a domain node
func NodeModelFromDomain(n *node.Node) (*NodeModel, error) {
	samples := n.Samples
	if samples == nil {
		samples = []node.StatusSample{}
	}
	raw, err := json.Marshal(samples)
	if err != nil {
		return nil, fmt.Errorf("encode samples of node %s: %w", n.ID, err)
	}
	return &NodeModel{
		ID:           n.ID,
		SerialNumber: n.SerialNumber,
		Username:     n.Username,
		Status:       n.Status().String(),
		StatusDate:   n.StatusDate,
		LastCheck:    n.LastCheck,
		Samples:      raw,
		Version:      n.Version,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}, nil
}

// ToDomain converts the persistence model to a domain node
func (m *NodeModel) ToDomain() (*node.Node, error) {
	var samples []node.StatusSample
	if len(m.Samples) > 0 {
		if err := json.Unmarshal(m.Samples, &samples); err != nil {
			return nil, fmt.Errorf("decode samples of node %s: %w", m.ID, err)
		}
	}
	return &node.Node{
		BaseAggregateRoot: aggregateRoot(m.Version),
		ID:                m.ID,
		SerialNumber:      m.SerialNumber,
		Username:          m.Username,
		StatusDate:        m.StatusDate,
		LastCheck:         m.LastCheck,
		Samples:           samples,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}, nil
}
