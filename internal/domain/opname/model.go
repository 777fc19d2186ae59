// Package opname implements physical stock counting (stock opname):
// snapshotting system stock, recording counted quantities, classifying
// variance, and posting the reconciling adjustments on approval.
package opname

import (
	"time"

	"github.com/shopspring/decimal"

	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/internal/core/types"
)

// OpnameType scopes the count.
type OpnameType string

const (
	// TypeFull counts every product stocked at the location. While
	// frozen, the whole location is frozen.
	TypeFull OpnameType = "full"
	// TypeCycle counts a selected product subset. While frozen, only
	// the listed products at the location are frozen.
	TypeCycle OpnameType = "cycle"
)

// Status is the count session lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ItemStatus tracks one item through the count workflow.
type ItemStatus string

const (
	ItemPending      ItemStatus = "pending"
	ItemCounted      ItemStatus = "counted"
	ItemVerified     ItemStatus = "verified"
	ItemInvestigated ItemStatus = "investigated"
	ItemApproved     ItemStatus = "approved"
)

// VarianceCategory grades how bad a count discrepancy is.
type VarianceCategory string

const (
	VarianceNone     VarianceCategory = "none"
	VarianceMinor    VarianceCategory = "minor"
	VarianceModerate VarianceCategory = "moderate"
	VarianceMajor    VarianceCategory = "major"
)

// Classification thresholds. Comparisons are strict: a variance of
// exactly 5% or exactly 500,000 is moderate, not major.
var (
	majorPct      = decimal.NewFromInt(5)
	moderatePct   = decimal.NewFromInt(2)
	majorValue    = decimal.NewFromInt(500_000)
	moderateValue = decimal.NewFromInt(100_000)
)

// ClassifyVariance grades a discrepancy by percentage and value,
// first match wins.
func ClassifyVariance(difference types.Quantity, variancePct, varianceValue types.Money) VarianceCategory {
	absPct := variancePct.Abs()
	absValue := varianceValue.Abs()
	switch {
	case absPct.GreaterThan(majorPct) || absValue.GreaterThan(majorValue):
		return VarianceMajor
	case absPct.GreaterThan(moderatePct) || absValue.GreaterThan(moderateValue):
		return VarianceModerate
	case difference != 0:
		return VarianceMinor
	default:
		return VarianceNone
	}
}

// StockOpname is one physical count session.
type StockOpname struct {
	entity.Document
	Type               OpnameType  `json:"type" db:"type"`
	LocationID         id.ID       `json:"locationId" db:"location_id"`
	Status             Status      `json:"status" db:"status"`
	ScheduledDate      *time.Time  `json:"scheduledDate,omitempty" db:"scheduled_date"`
	StartedAt          *time.Time  `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt        *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
	PerformedBy        *string     `json:"performedBy,omitempty" db:"performed_by"`
	SupervisorID       *string     `json:"supervisorId,omitempty" db:"supervisor_id"`
	ApprovedBy         *string     `json:"approvedBy,omitempty" db:"approved_by"`
	FreezeInventory    bool        `json:"freezeInventory" db:"freeze_inventory"`
	TotalItems         int         `json:"totalItems" db:"total_items"`
	CountedItems       int         `json:"countedItems" db:"counted_items"`
	ItemsWithVariance  int         `json:"itemsWithVariance" db:"items_with_variance"`
	TotalVarianceValue types.Money `json:"totalVarianceValue" db:"total_variance_value"`
	Items              []*Item     `json:"items,omitempty" db:"-"`
}

// Item is one counted (product, location) position inside a session.
// SystemStock is snapshotted when the session starts and never refreshed;
// the freeze keeps it meaningful while counting.
type Item struct {
	ID                 id.ID            `json:"id" db:"id"`
	OpnameID           id.ID            `json:"opnameId" db:"opname_id"`
	ProductID          id.ID            `json:"productId" db:"product_id"`
	LocationID         id.ID            `json:"locationId" db:"location_id"`
	SystemStock        types.Quantity   `json:"systemStock" db:"system_stock"`
	PhysicalStock      *types.Quantity  `json:"physicalStock,omitempty" db:"physical_stock"`
	Difference         types.Quantity   `json:"difference" db:"difference"`
	VariancePercentage types.Money      `json:"variancePercentage" db:"variance_percentage"`
	UnitCost           types.Money      `json:"unitCost" db:"unit_cost"`
	VarianceValue      types.Money      `json:"varianceValue" db:"variance_value"`
	VarianceCategory   VarianceCategory `json:"varianceCategory" db:"variance_category"`
	Status             ItemStatus       `json:"status" db:"status"`
	RecountRequired    bool             `json:"recountRequired" db:"recount_required"`
	RecountValue       *types.Quantity  `json:"recountValue,omitempty" db:"recount_value"`
	RootCause          string           `json:"rootCause,omitempty" db:"root_cause"`
	CorrectiveAction   string           `json:"correctiveAction,omitempty" db:"corrective_action"`
	Notes              string           `json:"notes,omitempty" db:"notes"`
	CountedBy          *string          `json:"countedBy,omitempty" db:"counted_by"`
	CountedAt          *time.Time       `json:"countedAt,omitempty" db:"counted_at"`
}

// CreateRequest is the input to Service.Create.
type CreateRequest struct {
	Type            OpnameType `json:"type"`
	LocationID      id.ID      `json:"locationId"`
	ScheduledDate   *time.Time `json:"scheduledDate,omitempty"`
	SupervisorID    *string    `json:"supervisorId,omitempty"`
	FreezeInventory bool       `json:"freezeInventory"`
	Comment         string     `json:"comment,omitempty"`
	// ProductIDs selects the counted subset for cycle counts; ignored
	// for full counts.
	ProductIDs []id.ID `json:"productIds,omitempty"`
}

// ListFilter narrows opname listings.
type ListFilter struct {
	LocationID *id.ID
	Status     *Status
	Limit      int
	Offset     int
}
