// Package costing computes product unit cost (HPP) from purchase history
// and cost components, and keeps the cost-change audit trail.
package costing

import (
	"time"

	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/catalogs/product"
)

// ComponentType classifies a cost component's contribution.
type ComponentType string

const (
	ComponentMaterial  ComponentType = "material"
	ComponentPackaging ComponentType = "packaging"
	ComponentLabor     ComponentType = "labor"
	ComponentOverhead  ComponentType = "overhead"
)

// IsValid reports whether t is a known component type.
func (t ComponentType) IsValid() bool {
	switch t {
	case ComponentMaterial, ComponentPackaging, ComponentLabor, ComponentOverhead:
		return true
	}
	return false
}

// CostComponent is one costed input of a product. Material components
// form the purchase-price basis only when no purchase history exists;
// packaging, labor and overhead are always added on top.
type CostComponent struct {
	entity.BaseEntity
	ProductID     id.ID          `json:"productId" db:"product_id"`
	ComponentType ComponentType  `json:"componentType" db:"component_type"`
	Name          string         `json:"name" db:"name"`
	Quantity      types.Quantity `json:"quantity" db:"quantity"`
	UnitCost      types.Money    `json:"unitCost" db:"unit_cost"`
	IsActive      bool           `json:"isActive" db:"is_active"`
}

// Total is quantity times unit cost.
func (c *CostComponent) Total() types.Money {
	return c.Quantity.Decimal().Mul(c.UnitCost)
}

// CostHistory is one immutable record of a unit-cost change. Written
// only when the calculated HPP differs from the previous value.
type CostHistory struct {
	ID               id.ID                 `json:"id" db:"id"`
	ProductID        id.ID                 `json:"productId" db:"product_id"`
	OldCost          types.Money           `json:"oldCost" db:"old_cost"`
	NewCost          types.Money           `json:"newCost" db:"new_cost"`
	ChangeAmount     types.Money           `json:"changeAmount" db:"change_amount"`
	ChangePercentage types.Money           `json:"changePercentage" db:"change_percentage"`
	PurchasePrice    types.Money           `json:"purchasePrice" db:"purchase_price"`
	PackagingCost    types.Money           `json:"packagingCost" db:"packaging_cost"`
	LaborCost        types.Money           `json:"laborCost" db:"labor_cost"`
	OverheadCost     types.Money           `json:"overheadCost" db:"overhead_cost"`
	Method           product.CostingMethod `json:"method" db:"method"`
	Reason           ChangeReason          `json:"reason" db:"reason"`
	ReferenceType    *string               `json:"referenceType,omitempty" db:"reference_type"`
	ReferenceID      *string               `json:"referenceId,omitempty" db:"reference_id"`
	CreatedAt        time.Time             `json:"createdAt" db:"created_at"`
	CreatedBy        string                `json:"createdBy" db:"created_by"`
}

// ChangeReason names what triggered a recalculation. The automatic
// triggers are recorded at full granularity: component_changed and
// method_changed together make up the auto-calculate category, next to
// manual and purchase_posted.
type ChangeReason string

const (
	ReasonPurchasePosted   ChangeReason = "purchase_posted"
	ReasonComponentChanged ChangeReason = "component_changed"
	ReasonMethodChanged    ChangeReason = "method_changed"
	ReasonManual           ChangeReason = "manual"
)

// CalculateRequest is the input to Service.Calculate.
type CalculateRequest struct {
	ProductID id.ID
	// Method overrides the product's configured costing method when set.
	Method        product.CostingMethod
	Reason        ChangeReason
	ReferenceType *string
	ReferenceID   *string
}

// Result is a full cost breakdown from one calculation run.
type Result struct {
	ProductID        id.ID                 `json:"productId"`
	Method           product.CostingMethod `json:"method"`
	PurchasePrice    types.Money           `json:"purchasePrice"`
	PackagingCost    types.Money           `json:"packagingCost"`
	LaborCost        types.Money           `json:"laborCost"`
	OverheadCost     types.Money           `json:"overheadCost"`
	CalculatedHPP    types.Money           `json:"calculatedHpp"`
	SellingPrice     types.Money           `json:"sellingPrice"`
	MarginAmount     types.Money           `json:"marginAmount"`
	MarginPercentage types.Money           `json:"marginPercentage"`
	MarkupPercentage types.Money           `json:"markupPercentage"`
	Changed          bool                  `json:"changed"`
}
