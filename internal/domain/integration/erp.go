package integration

import (
	"context"

	"github.com/tffhost/backend/internal/domain/hosting"
)

// ERPNode is a node shipped with a sale order
type ERPNode struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serial_number"`
}

// QuotationRequest describes the quotation created for a node order
type QuotationRequest struct {
	// Reference is the human readable order number
	Reference string
	Socket    string
	Billing   hosting.ContactInfo
	Shipping  hosting.ContactInfo
}

// ERP is the sales back office
type ERP interface {
	// CreateQuotation creates a sale order in the draft state and returns its id
	CreateQuotation(ctx context.Context, req QuotationRequest) (int64, error)
	CancelQuotation(ctx context.Context, saleOrderID int64) error
	ConfirmQuotation(ctx context.Context, saleOrderID int64) error
	// NodesForSaleOrder returns the nodes delivered for a sale order; the list is empty
	// until the serial numbers are configured
	NodesForSaleOrder(ctx context.Context, saleOrderID int64) ([]ERPNode, error)
}
