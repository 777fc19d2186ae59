package product

import (
	"context"

	"stokku/internal/core/id"
)

// Repository is the storage contract for products.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	GetByCode(ctx context.Context, code string) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]*Product, error)
	Update(ctx context.Context, p *Product) error
	// UpdateCostFields persists only the costing-engine-owned fields,
	// bypassing the optimistic version bump of a full update.
	UpdateCostFields(ctx context.Context, p *Product) error
	SetDeletionMark(ctx context.Context, productID id.ID, mark bool) error
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string
	CategoryID *string
	ActiveOnly bool
	Limit      int
	Offset     int
}
