package dto

import (
	"time"

	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/ledger"
)

// PostMovementRequest records one stock movement.
type PostMovementRequest struct {
	ProductID     string         `json:"productId" binding:"required,uuid"`
	LocationID    string         `json:"locationId" binding:"required,uuid"`
	MovementType  string         `json:"movementType" binding:"required"`
	Quantity      types.Quantity `json:"quantity" binding:"required"`
	UnitCost      *types.Money   `json:"unitCost,omitempty"`
	ReferenceType string         `json:"referenceType" binding:"required"`
	ReferenceID   string         `json:"referenceId" binding:"required"`
	BatchNumber   *string        `json:"batchNumber,omitempty"`
	ExpiryDate    *time.Time     `json:"expiryDate,omitempty"`
}

// ToMovement converts the request to a domain movement. IDs are already
// validated by binding.
func (r *PostMovementRequest) ToMovement() ledger.MovementRequest {
	productID, _ := id.Parse(r.ProductID)
	locationID, _ := id.Parse(r.LocationID)
	return ledger.MovementRequest{
		ProductID:     productID,
		LocationID:    locationID,
		MovementType:  ledger.MovementType(r.MovementType),
		Quantity:      r.Quantity,
		UnitCost:      r.UnitCost,
		ReferenceType: ledger.ReferenceType(r.ReferenceType),
		ReferenceID:   r.ReferenceID,
		BatchNumber:   r.BatchNumber,
		ExpiryDate:    r.ExpiryDate,
	}
}

// TransferStockRequest moves quantity between two locations atomically.
type TransferStockRequest struct {
	ProductID      string         `json:"productId" binding:"required,uuid"`
	FromLocationID string         `json:"fromLocationId" binding:"required,uuid"`
	ToLocationID   string         `json:"toLocationId" binding:"required,uuid"`
	Quantity       types.Quantity `json:"quantity" binding:"required"`
	ReferenceID    string         `json:"referenceId" binding:"required"`
}

// ToTransfer converts the request to a domain transfer.
func (r *TransferStockRequest) ToTransfer() ledger.TransferRequest {
	productID, _ := id.Parse(r.ProductID)
	fromID, _ := id.Parse(r.FromLocationID)
	toID, _ := id.Parse(r.ToLocationID)
	return ledger.TransferRequest{
		ProductID:      productID,
		FromLocationID: fromID,
		ToLocationID:   toID,
		Quantity:       r.Quantity,
		ReferenceID:    r.ReferenceID,
	}
}

// ReservationRequest reserves or releases quantity at a location.
type ReservationRequest struct {
	ProductID  string         `json:"productId" binding:"required,uuid"`
	LocationID string         `json:"locationId" binding:"required,uuid"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
}
