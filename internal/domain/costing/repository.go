package costing

import (
	"context"

	"stokku/internal/core/id"
)

// Repository is the storage contract for cost components and history.
type Repository interface {
	CreateComponent(ctx context.Context, c *CostComponent) error
	GetComponent(ctx context.Context, componentID id.ID) (*CostComponent, error)
	ListComponents(ctx context.Context, productID id.ID, activeOnly bool) ([]*CostComponent, error)
	UpdateComponent(ctx context.Context, c *CostComponent) error
	DeleteComponent(ctx context.Context, componentID id.ID) error

	// InsertHistory appends one immutable cost-change row.
	InsertHistory(ctx context.Context, h *CostHistory) error
	ListHistory(ctx context.Context, productID id.ID, limit, offset int) ([]*CostHistory, error)
}
