package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tffhost/backend/internal/domain/hosting"
)

// NodeOrderModel is the persistence model of a node order. The billing address is
// denormalized so the one-active-order-per-address rule can be checked in SQL.
type NodeOrderModel struct {
	AggregateModel
	Number           int64     `gorm:"not null;uniqueIndex"`
	Username         string    `gorm:"type:varchar(100);not null;index"`
	BillingInfo      []byte    `gorm:"type:jsonb;not null"`
	ShippingInfo     []byte    `gorm:"type:jsonb"`
	BillingAddress   string    `gorm:"type:text;index"`
	Status           int       `gorm:"not null;index"`
	Socket           string    `gorm:"type:varchar(8)"`
	DocumentKey      string    `gorm:"type:varchar(255)"`
	Signature        string    `gorm:"type:text"`
	SignaturePayload string    `gorm:"type:text"`
	SaleOrderID      int64     `gorm:"index"`
	Imported         bool      `gorm:"not null;default:false"`
	OrderTime        time.Time `gorm:"not null"`
	SignTime         *time.Time
	SendTime         *time.Time `gorm:"index"`
	ArrivalTime      *time.Time
	CancelTime       *time.Time
}

// TableName returns the table name for GORM
func (NodeOrderModel) TableName() string {
	return "node_orders"
}

// NodeOrderModelFromDomain creates a persistence model from a domain node order
func NodeOrderModelFromDomain(o *hosting.NodeOrder) (*NodeOrderModel, error) {
	billing, err := json.Marshal(o.BillingInfo)
	if err != nil {
		return nil, fmt.Errorf("encode billing info: %w", err)
	}
	var shipping []byte
	if !o.ShippingInfo.IsEmpty() {
		if shipping, err = json.Marshal(o.ShippingInfo); err != nil {
			return nil, fmt.Errorf("encode shipping info: %w", err)
		}
	}
	m := &NodeOrderModel{
		Number:           o.Number,
		Username:         o.Username,
		BillingInfo:      billing,
		ShippingInfo:     shipping,
		BillingAddress:   o.BillingInfo.Address,
		Status:           int(o.Status),
		Socket:           o.Socket,
		DocumentKey:      o.DocumentKey,
		Signature:        o.Signature,
		SignaturePayload: o.SignaturePayload,
		SaleOrderID:      o.SaleOrderID,
		OrderTime:        o.OrderTime,
		SignTime:         o.SignTime,
		SendTime:         o.SendTime,
		ArrivalTime:      o.ArrivalTime,
		CancelTime:       o.CancelTime,
		Imported:         o.Imported,
	}
	m.FromDomainAggregate(o.BaseAggregateRoot, o.BaseEntity)
	return m, nil
}

// ToDomain converts the persistence model to a domain node order
func (m *NodeOrderModel) ToDomain() (*hosting.NodeOrder, error) {
	o := &hosting.NodeOrder{
		BaseAggregateRoot: aggregateRoot(m.Version),
		BaseEntity:        m.BaseModel.ToDomain(),
		Number:            m.Number,
		Username:          m.Username,
		Status:            hosting.OrderStatus(m.Status),
		Socket:            m.Socket,
		DocumentKey:       m.DocumentKey,
		Signature:         m.Signature,
		SignaturePayload:  m.SignaturePayload,
		SaleOrderID:       m.SaleOrderID,
		OrderTime:         m.OrderTime,
		SignTime:          m.SignTime,
		SendTime:          m.SendTime,
		ArrivalTime:       m.ArrivalTime,
		CancelTime:        m.CancelTime,
		Imported:          m.Imported,
	}
	if err := json.Unmarshal(m.BillingInfo, &o.BillingInfo); err != nil {
		return nil, fmt.Errorf("decode billing info of order %d: %w", m.Number, err)
	}
	if len(m.ShippingInfo) > 0 {
		if err := json.Unmarshal(m.ShippingInfo, &o.ShippingInfo); err != nil {
			return nil, fmt.Errorf("decode shipping info of order %d: %w", m.Number, err)
		}
	}
	return o, nil
}
