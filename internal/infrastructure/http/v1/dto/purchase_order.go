package dto

import (
	"time"

	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/purchasing"
)

// CreatePurchaseOrderRequest creates a draft purchase order.
type CreatePurchaseOrderRequest struct {
	SupplierID   string                           `json:"supplierId" binding:"required,uuid"`
	LocationID   string                           `json:"locationId" binding:"required,uuid"`
	ExpectedDate *time.Time                       `json:"expectedDate,omitempty"`
	Comment      string                           `json:"comment,omitempty"`
	Lines        []CreatePurchaseOrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CreatePurchaseOrderLineRequest is one line of a new order.
type CreatePurchaseOrderLineRequest struct {
	ProductID string         `json:"productId" binding:"required,uuid"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitPrice types.Money    `json:"unitPrice" binding:"required"`
}

// ToRequest converts the DTO to a domain create request.
func (r *CreatePurchaseOrderRequest) ToRequest() purchasing.CreateRequest {
	supplierID, _ := id.Parse(r.SupplierID)
	locationID, _ := id.Parse(r.LocationID)

	req := purchasing.CreateRequest{
		SupplierID:   supplierID,
		LocationID:   locationID,
		ExpectedDate: r.ExpectedDate,
		Comment:      r.Comment,
		Lines:        make([]purchasing.CreateLineRequest, 0, len(r.Lines)),
	}
	for _, line := range r.Lines {
		productID, _ := id.Parse(line.ProductID)
		req.Lines = append(req.Lines, purchasing.CreateLineRequest{
			ProductID: productID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return req
}

// PostReceiptRequest posts a goods receipt against an order.
type PostReceiptRequest struct {
	Lines []ReceiptLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReceiptLineRequest is one received line.
type ReceiptLineRequest struct {
	LineID      string         `json:"lineId" binding:"required,uuid"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
	BatchNumber *string        `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time     `json:"expiryDate,omitempty"`
}

// ToLines converts the DTO lines to domain receipt lines.
func (r *PostReceiptRequest) ToLines() []purchasing.ReceiptLine {
	lines := make([]purchasing.ReceiptLine, 0, len(r.Lines))
	for _, line := range r.Lines {
		lineID, _ := id.Parse(line.LineID)
		lines = append(lines, purchasing.ReceiptLine{
			LineID:      lineID,
			Quantity:    line.Quantity,
			BatchNumber: line.BatchNumber,
			ExpiryDate:  line.ExpiryDate,
		})
	}
	return lines
}
