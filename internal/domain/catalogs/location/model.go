// Package location holds the stock location catalog (warehouses,
// outlets, storage areas).
package location

import "stokku/internal/core/entity"

// LocationType distinguishes how a location participates in stock flows.
type LocationType string

const (
	TypeWarehouse LocationType = "warehouse"
	TypeOutlet    LocationType = "outlet"
	TypeStorage   LocationType = "storage"
)

// Location is a place stock can sit.
type Location struct {
	entity.Catalog
	Type     LocationType `json:"type" db:"type"`
	Address  string       `json:"address,omitempty" db:"address"`
	IsActive bool         `json:"isActive" db:"is_active"`
}
