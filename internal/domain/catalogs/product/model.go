// Package product holds the product catalog: the reference entity that
// costing and stock operations hang off.
package product

import (
	"time"

	"stokku/internal/core/entity"
	"stokku/internal/core/types"
)

// CostingMethod selects how the purchase-price basis of HPP is derived.
type CostingMethod string

const (
	CostingAverage  CostingMethod = "average"
	CostingFIFO     CostingMethod = "fifo"
	CostingLIFO     CostingMethod = "lifo"
	CostingStandard CostingMethod = "standard"
)

// IsValid reports whether m is a known costing method.
func (m CostingMethod) IsValid() bool {
	switch m {
	case CostingAverage, CostingFIFO, CostingLIFO, CostingStandard:
		return true
	}
	return false
}

// Product is a sellable or stockable item. UnitCost, MarginAmount and the
// percentage fields are cached results of the last cost calculation;
// the costing engine owns them.
type Product struct {
	entity.Catalog
	SKU              string        `json:"sku" db:"sku"`
	Barcode          *string       `json:"barcode,omitempty" db:"barcode"`
	Unit             string        `json:"unit" db:"unit"`
	CategoryID       *string       `json:"categoryId,omitempty" db:"category_id"`
	SellingPrice     types.Money   `json:"sellingPrice" db:"selling_price"`
	StandardCost     types.Money   `json:"standardCost" db:"standard_cost"`
	UnitCost         types.Money   `json:"unitCost" db:"unit_cost"`
	CostingMethod    CostingMethod `json:"costingMethod" db:"costing_method"`
	MarginAmount     types.Money   `json:"marginAmount" db:"margin_amount"`
	MarginPercentage types.Money   `json:"marginPercentage" db:"margin_percentage"`
	MarkupPercentage types.Money   `json:"markupPercentage" db:"markup_percentage"`
	IsActive         bool          `json:"isActive" db:"is_active"`
	LastCostUpdate   *time.Time    `json:"lastCostUpdate,omitempty" db:"last_cost_update"`
}
