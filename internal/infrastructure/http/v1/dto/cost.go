package dto

import (
	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/domain/costing"
)

// CalculateCostRequest triggers a cost recalculation.
type CalculateCostRequest struct {
	// Method overrides the product's configured costing method.
	Method string `json:"method,omitempty" binding:"omitempty,oneof=average fifo lifo standard"`
}

// ToRequest converts the DTO to a domain calculate request.
func (r *CalculateCostRequest) ToRequest(productID id.ID) costing.CalculateRequest {
	return costing.CalculateRequest{
		ProductID: productID,
		Method:    product.CostingMethod(r.Method),
		Reason:    costing.ReasonManual,
	}
}

// CostComponentRequest creates or updates a cost component.
type CostComponentRequest struct {
	ComponentType string         `json:"componentType" binding:"required,oneof=material packaging labor overhead"`
	Name          string         `json:"name" binding:"required"`
	Quantity      types.Quantity `json:"quantity" binding:"required"`
	UnitCost      types.Money    `json:"unitCost" binding:"required"`
	IsActive      *bool          `json:"isActive,omitempty"`
}

// ToEntity converts the request to a new domain component.
func (r *CostComponentRequest) ToEntity(productID id.ID) *costing.CostComponent {
	c := &costing.CostComponent{
		BaseEntity:    entity.NewBaseEntity(),
		ProductID:     productID,
		ComponentType: costing.ComponentType(r.ComponentType),
		Name:          r.Name,
		Quantity:      r.Quantity,
		UnitCost:      r.UnitCost,
		IsActive:      true,
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	return c
}

// ApplyTo copies the request fields onto an existing component.
func (r *CostComponentRequest) ApplyTo(c *costing.CostComponent) {
	c.ComponentType = costing.ComponentType(r.ComponentType)
	c.Name = r.Name
	c.Quantity = r.Quantity
	c.UnitCost = r.UnitCost
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
}
