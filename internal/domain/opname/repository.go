package opname

import (
	"context"

	"stokku/internal/core/id"
)

// Repository is the storage contract for count sessions and items.
type Repository interface {
	Create(ctx context.Context, o *StockOpname) error
	// GetByID returns the session with its items.
	GetByID(ctx context.Context, opnameID id.ID) (*StockOpname, error)
	// GetByIDForUpdate locks the session row for the transaction.
	GetByIDForUpdate(ctx context.Context, opnameID id.ID) (*StockOpname, error)
	List(ctx context.Context, filter ListFilter) ([]*StockOpname, error)
	UpdateHeader(ctx context.Context, o *StockOpname) error

	CreateItems(ctx context.Context, items []*Item) error
	GetItem(ctx context.Context, itemID id.ID) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error

	// NextNumber allocates the next document number (SO-YYYYMM-NNNN).
	NextNumber(ctx context.Context) (string, error)
}

// Auditor records document-level audit entries.
type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID string, payload any)
}
