package purchasing

import (
	"context"

	"stokku/internal/core/id"
)

// Repository is the storage contract for purchase orders.
type Repository interface {
	Create(ctx context.Context, po *PurchaseOrder) error
	// GetByID returns the order with its lines.
	GetByID(ctx context.Context, poID id.ID) (*PurchaseOrder, error)
	// GetByIDForUpdate locks the order row for the duration of the
	// transaction. Lines are loaded too.
	GetByIDForUpdate(ctx context.Context, poID id.ID) (*PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]*PurchaseOrder, error)
	// UpdateHeader persists status and approval fields.
	UpdateHeader(ctx context.Context, po *PurchaseOrder) error
	// UpdateLine persists cumulative received quantity and flags.
	UpdateLine(ctx context.Context, line *OrderLine) error
	// NextNumber allocates the next document number (PO-YYYYMM-NNNN).
	NextNumber(ctx context.Context) (string, error)
}

// Auditor records document-level audit entries.
type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID string, payload any)
}
