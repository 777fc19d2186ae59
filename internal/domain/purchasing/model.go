// Package purchasing covers purchase orders and goods receipt. Receipt
// posting drives the stock ledger and triggers cost recalculation.
package purchasing

import (
	"time"

	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/internal/core/types"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusOrdered   Status = "ordered"
	StatusPartial   Status = "partial"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

// transitions maps each status to its legal successors. Cancellation is
// allowed anywhere before goods have fully arrived.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusPending, StatusCancelled},
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusOrdered, StatusCancelled},
	StatusOrdered:  {StatusPartial, StatusReceived, StatusCancelled},
	StatusPartial:  {StatusPartial, StatusReceived, StatusCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PurchaseOrder is the ordering document. Receipt events mutate line
// cumulative quantities and the order status; everything else is fixed
// after approval.
type PurchaseOrder struct {
	entity.Document
	SupplierID   id.ID        `json:"supplierId" db:"supplier_id"`
	LocationID   id.ID        `json:"locationId" db:"location_id"`
	Status       Status       `json:"status" db:"status"`
	ExpectedDate *time.Time   `json:"expectedDate,omitempty" db:"expected_date"`
	TotalAmount  types.Money  `json:"totalAmount" db:"total_amount"`
	ApprovedBy   *string      `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedAt   *time.Time   `json:"approvedAt,omitempty" db:"approved_at"`
	Lines        []*OrderLine `json:"lines" db:"-"`
}

// OrderLine is one product position on a purchase order.
type OrderLine struct {
	ID               id.ID          `json:"id" db:"id"`
	PurchaseOrderID  id.ID          `json:"purchaseOrderId" db:"purchase_order_id"`
	ProductID        id.ID          `json:"productId" db:"product_id"`
	QuantityOrdered  types.Quantity `json:"quantityOrdered" db:"quantity_ordered"`
	QuantityReceived types.Quantity `json:"quantityReceived" db:"quantity_received"`
	UnitPrice        types.Money    `json:"unitPrice" db:"unit_price"`
	LineTotal        types.Money    `json:"lineTotal" db:"line_total"`
	OverReceipt      bool           `json:"overReceipt" db:"over_receipt"`
}

// Outstanding is ordered minus received, floored at zero.
func (l *OrderLine) Outstanding() types.Quantity {
	if l.QuantityReceived >= l.QuantityOrdered {
		return 0
	}
	return l.QuantityOrdered - l.QuantityReceived
}

// CreateRequest is the input to Service.Create.
type CreateRequest struct {
	SupplierID   id.ID               `json:"supplierId"`
	LocationID   id.ID               `json:"locationId"`
	ExpectedDate *time.Time          `json:"expectedDate,omitempty"`
	Comment      string              `json:"comment,omitempty"`
	Lines        []CreateLineRequest `json:"lines"`
}

// CreateLineRequest is one line of a new purchase order.
type CreateLineRequest struct {
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// ReceiptLine is one line of a goods-receipt event.
type ReceiptLine struct {
	LineID      id.ID          `json:"lineId"`
	Quantity    types.Quantity `json:"quantity"`
	BatchNumber *string        `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time     `json:"expiryDate,omitempty"`
}

// LineError carries a per-line failure without aborting sibling lines.
type LineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LineResult reports the outcome of posting one receipt line.
type LineResult struct {
	LineID      id.ID      `json:"lineId"`
	ProductID   id.ID      `json:"productId"`
	Posted      bool       `json:"posted"`
	OverReceipt bool       `json:"overReceipt"`
	Error       *LineError `json:"error,omitempty"`
}

// ReceiptResult is the multi-status outcome of a goods receipt: each line
// succeeds or fails independently, and the order status reflects the
// cumulative received quantities afterwards.
type ReceiptResult struct {
	PurchaseOrderID id.ID         `json:"purchaseOrderId"`
	Status          Status        `json:"status"`
	Lines           []*LineResult `json:"lines"`
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	SupplierID *id.ID
	Status     *Status
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}
