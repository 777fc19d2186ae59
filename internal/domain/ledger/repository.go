package ledger

import (
	"context"

	"stokku/internal/core/id"
)

// Repository is the storage contract for stock records and movements.
// Implementations must honor the context-carried transaction.
type Repository interface {
	// GetRecord returns the stock row for (product, location), or a
	// NotFound error if no movement has ever touched the pair.
	GetRecord(ctx context.Context, productID, locationID id.ID) (*StockRecord, error)

	// GetRecordForUpdate returns the stock row locked FOR UPDATE,
	// creating a zero row first when the pair has no history. Must be
	// called inside a transaction. A lock_timeout expiry surfaces as a
	// Contention error.
	GetRecordForUpdate(ctx context.Context, productID, locationID id.ID) (*StockRecord, error)

	// UpdateRecord persists balance and metadata changes to a locked row.
	UpdateRecord(ctx context.Context, record *StockRecord) error

	// ListRecordsByProduct returns all stock rows for a product.
	ListRecordsByProduct(ctx context.Context, productID id.ID) ([]*StockRecord, error)

	// ListRecordsByLocation returns all stock rows at a location.
	ListRecordsByLocation(ctx context.Context, locationID id.ID) ([]*StockRecord, error)

	// ListLowStock returns rows at or below their reorder point.
	ListLowStock(ctx context.Context, locationID *id.ID) ([]*StockRecord, error)

	// InsertEntry appends one immutable movement row.
	InsertEntry(ctx context.Context, entry *MovementEntry) error

	// LastEntry returns the most recent movement for (product, location),
	// or nil when the ledger is empty for the pair.
	LastEntry(ctx context.Context, productID, locationID id.ID) (*MovementEntry, error)

	// ListEntries returns movements matching the filter, newest first.
	ListEntries(ctx context.Context, filter HistoryFilter) ([]*MovementEntry, error)

	// ListEntriesAsc returns the full history for a pair in creation
	// order, for replay verification.
	ListEntriesAsc(ctx context.Context, productID, locationID id.ID) ([]*MovementEntry, error)

	// LastReceiptEntry returns the newest receipt movement for a product
	// across locations, nil when the product was never received.
	LastReceiptEntry(ctx context.Context, productID id.ID) (*MovementEntry, error)

	// FirstReceiptEntry returns the oldest receipt movement still
	// relevant for FIFO costing, nil when none exists.
	FirstReceiptEntry(ctx context.Context, productID id.ID) (*MovementEntry, error)
}

// FreezeChecker reports whether an active physical count freezes the
// given stock scope. Implemented by the opname storage layer; declared
// here to keep the dependency pointing at the ledger.
type FreezeChecker interface {
	// FrozenBy returns the freezing opname's ID when the scope is
	// frozen, or nil. A non-nil exempt excludes that session, so a
	// count's own adjustments pass its freeze but nobody else's.
	FrozenBy(ctx context.Context, productID, locationID id.ID, exempt *id.ID) (*id.ID, error)
}
