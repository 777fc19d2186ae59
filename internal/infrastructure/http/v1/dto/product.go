package dto

import (
	"stokku/internal/core/entity"
	"stokku/internal/core/types"
	"stokku/internal/domain/catalogs/product"
)

// CreateProductRequest creates a catalog product.
type CreateProductRequest struct {
	Code          string       `json:"code" binding:"required"`
	Name          string       `json:"name" binding:"required"`
	SKU           string       `json:"sku" binding:"required"`
	Barcode       *string      `json:"barcode,omitempty"`
	Unit          string       `json:"unit" binding:"required"`
	CategoryID    *string      `json:"categoryId,omitempty"`
	SellingPrice  *types.Money `json:"sellingPrice,omitempty"`
	StandardCost  *types.Money `json:"standardCost,omitempty"`
	CostingMethod string       `json:"costingMethod,omitempty"`
}

// ToEntity converts the request to a domain product.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := &product.Product{
		Catalog: entity.Catalog{
			BaseEntity: entity.NewBaseEntity(),
			Code:       r.Code,
			Name:       r.Name,
		},
		SKU:           r.SKU,
		Barcode:       r.Barcode,
		Unit:          r.Unit,
		CategoryID:    r.CategoryID,
		CostingMethod: product.CostingAverage,
		IsActive:      true,
	}
	if r.SellingPrice != nil {
		p.SellingPrice = *r.SellingPrice
	}
	if r.StandardCost != nil {
		p.StandardCost = *r.StandardCost
	}
	if r.CostingMethod != "" {
		p.CostingMethod = product.CostingMethod(r.CostingMethod)
	}
	return p
}

// UpdateProductRequest patches an existing product. Nil fields are left
// unchanged.
type UpdateProductRequest struct {
	Code          *string      `json:"code,omitempty"`
	Name          *string      `json:"name,omitempty"`
	SKU           *string      `json:"sku,omitempty"`
	Barcode       *string      `json:"barcode,omitempty"`
	Unit          *string      `json:"unit,omitempty"`
	CategoryID    *string      `json:"categoryId,omitempty"`
	SellingPrice  *types.Money `json:"sellingPrice,omitempty"`
	StandardCost  *types.Money `json:"standardCost,omitempty"`
	CostingMethod *string      `json:"costingMethod,omitempty"`
	IsActive      *bool        `json:"isActive,omitempty"`
}

// ApplyTo copies the set fields onto the product.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	if r.Code != nil {
		p.Code = *r.Code
	}
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.SKU != nil {
		p.SKU = *r.SKU
	}
	if r.Barcode != nil {
		p.Barcode = r.Barcode
	}
	if r.Unit != nil {
		p.Unit = *r.Unit
	}
	if r.CategoryID != nil {
		p.CategoryID = r.CategoryID
	}
	if r.SellingPrice != nil {
		p.SellingPrice = *r.SellingPrice
	}
	if r.StandardCost != nil {
		p.StandardCost = *r.StandardCost
	}
	if r.CostingMethod != nil {
		p.CostingMethod = product.CostingMethod(*r.CostingMethod)
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
}
