// Package ledger is the authoritative write path for stock. Every quantity
// change at a (product, location) goes through Service.Post as an immutable
// MovementEntry; StockRecord rows are derived balances, never mutated
// directly by other packages.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"stokku/internal/core/id"
	"stokku/internal/core/types"
)

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementReceipt           MovementType = "receipt"
	MovementSale              MovementType = "sale"
	MovementReturn            MovementType = "return"
	MovementTransferOut       MovementType = "transfer_out"
	MovementTransferIn        MovementType = "transfer_in"
	MovementAdjustment        MovementType = "adjustment"
	MovementDamage            MovementType = "damage"
	MovementExpiry            MovementType = "expiry"
	MovementProductionConsume MovementType = "production_consumption"
	MovementProductionOutput  MovementType = "production_output"
)

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementReceipt, MovementSale, MovementReturn,
		MovementTransferOut, MovementTransferIn, MovementAdjustment,
		MovementDamage, MovementExpiry,
		MovementProductionConsume, MovementProductionOutput:
		return true
	}
	return false
}

// ReferenceType names the originating document of a movement.
type ReferenceType string

const (
	RefPurchaseOrder ReferenceType = "purchase_order"
	RefSalesOrder    ReferenceType = "sales_order"
	RefAdjustment    ReferenceType = "adjustment"
	RefOpname        ReferenceType = "opname"
	RefTransfer      ReferenceType = "transfer"
	RefManual        ReferenceType = "manual"
)

// StockRecord is the current balance for one (product, location) pair.
// Created lazily on first movement; quantityOnHand only ever changes
// through a committed MovementEntry.
type StockRecord struct {
	ID                 id.ID               `json:"id" db:"id"`
	ProductID          id.ID               `json:"productId" db:"product_id"`
	LocationID         id.ID               `json:"locationId" db:"location_id"`
	QuantityOnHand     types.Quantity      `json:"quantityOnHand" db:"quantity_on_hand"`
	ReservedQuantity   types.Quantity      `json:"reservedQuantity" db:"reserved_quantity"`
	MinimumStock       types.Quantity      `json:"minimumStock" db:"minimum_stock"`
	MaximumStock       types.Quantity      `json:"maximumStock" db:"maximum_stock"`
	ReorderPoint       types.Quantity      `json:"reorderPoint" db:"reorder_point"`
	ReorderQuantity    types.Quantity      `json:"reorderQuantity" db:"reorder_quantity"`
	AverageCost        decimal.NullDecimal `json:"averageCost" db:"average_cost"`
	LastRestockDate    *time.Time          `json:"lastRestockDate,omitempty" db:"last_restock_date"`
	LastStockCountDate *time.Time          `json:"lastStockCountDate,omitempty" db:"last_stock_count_date"`
	Version            int                 `json:"version" db:"version"`
	CreatedAt          time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time           `json:"updatedAt" db:"updated_at"`
}

// AvailableQuantity is on-hand minus reserved. Derived, never stored.
func (r *StockRecord) AvailableQuantity() types.Quantity {
	return r.QuantityOnHand - r.ReservedQuantity
}

// IsBelowReorderPoint reports whether available stock has fallen to the
// reorder threshold.
func (r *StockRecord) IsBelowReorderPoint() bool {
	return r.ReorderPoint > 0 && r.AvailableQuantity() <= r.ReorderPoint
}

// MovementEntry is one immutable ledger row. BalanceBefore/BalanceAfter
// snapshot quantityOnHand (not reserved) around the movement.
type MovementEntry struct {
	ID             id.ID               `json:"id" db:"id"`
	ProductID      id.ID               `json:"productId" db:"product_id"`
	LocationID     id.ID               `json:"locationId" db:"location_id"`
	MovementType   MovementType        `json:"movementType" db:"movement_type"`
	Quantity       types.Quantity      `json:"quantity" db:"quantity"`
	UnitCost       decimal.NullDecimal `json:"unitCost" db:"unit_cost"`
	TotalCost      decimal.NullDecimal `json:"totalCost" db:"total_cost"`
	ReferenceType  ReferenceType       `json:"referenceType" db:"reference_type"`
	ReferenceID    string              `json:"referenceId" db:"reference_id"`
	BalanceBefore  types.Quantity      `json:"balanceBefore" db:"balance_before"`
	BalanceAfter   types.Quantity      `json:"balanceAfter" db:"balance_after"`
	TransferPairID *id.ID              `json:"transferPairId,omitempty" db:"transfer_pair_id"`
	FromLocationID *id.ID              `json:"fromLocationId,omitempty" db:"from_location_id"`
	ToLocationID   *id.ID              `json:"toLocationId,omitempty" db:"to_location_id"`
	BatchNumber    *string             `json:"batchNumber,omitempty" db:"batch_number"`
	ExpiryDate     *time.Time          `json:"expiryDate,omitempty" db:"expiry_date"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	CreatedBy      string              `json:"createdBy" db:"created_by"`
}

// MovementRequest is the input to Service.Post.
type MovementRequest struct {
	ProductID     id.ID          `json:"productId"`
	LocationID    id.ID          `json:"locationId"`
	MovementType  MovementType   `json:"movementType"`
	Quantity      types.Quantity `json:"quantity"` // signed: positive increases on-hand
	UnitCost      *types.Money   `json:"unitCost,omitempty"`
	ReferenceType ReferenceType  `json:"referenceType"`
	ReferenceID   string         `json:"referenceId"`
	BatchNumber   *string        `json:"batchNumber,omitempty"`
	ExpiryDate    *time.Time     `json:"expiryDate,omitempty"`
}

// TransferRequest moves quantity between two locations as one atomic pair.
type TransferRequest struct {
	ProductID      id.ID          `json:"productId"`
	FromLocationID id.ID          `json:"fromLocationId"`
	ToLocationID   id.ID          `json:"toLocationId"`
	Quantity       types.Quantity `json:"quantity"` // positive
	ReferenceID    string         `json:"referenceId"`
}

// TransferResult carries both halves of a committed transfer.
type TransferResult struct {
	PairID id.ID          `json:"pairId"`
	Out    *MovementEntry `json:"out"`
	In     *MovementEntry `json:"in"`
}

// HistoryFilter narrows ListHistory queries.
type HistoryFilter struct {
	ProductID    *id.ID
	LocationID   *id.ID
	MovementType *MovementType
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}

// ReplayResult is the outcome of replaying a stock row's full history
// against its stored balance.
type ReplayResult struct {
	ProductID      id.ID          `json:"productId"`
	LocationID     id.ID          `json:"locationId"`
	StoredOnHand   types.Quantity `json:"storedOnHand"`
	ReplayedOnHand types.Quantity `json:"replayedOnHand"`
	EntryCount     int            `json:"entryCount"`
	Consistent     bool           `json:"consistent"`
}
