package opname_repo

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stokku/internal/core/id"
	"stokku/internal/infrastructure/storage/postgres"
)

// FreezeCheck implements ledger.FreezeChecker against in-progress count
// sessions. A full count freezes every product at its location; a cycle
// count freezes only the products it lists.
type FreezeCheck struct {
	txm *postgres.TxManager
}

// NewFreezeCheck creates a new freeze checker.
func NewFreezeCheck(txm *postgres.TxManager) *FreezeCheck {
	return &FreezeCheck{txm: txm}
}

// FrozenBy returns the id of the count session freezing the
// (product, location) pair, or nil when movements are allowed. The
// exempt session, if any, is skipped so its own adjustments post.
func (f *FreezeCheck) FrozenBy(ctx context.Context, productID, locationID id.ID, exempt *id.ID) (*id.ID, error) {
	sql := `
		SELECT o.id
		FROM stock_opnames o
		WHERE o.location_id = $2
		  AND o.status = 'in_progress'
		  AND o.freeze_inventory
		  AND o.deletion_mark = false
		  AND ($3::uuid IS NULL OR o.id <> $3)
		  AND (
			o.type = 'full'
			OR EXISTS (
				SELECT 1 FROM stock_opname_items i
				WHERE i.opname_id = o.id AND i.product_id = $1
			)
		  )
		LIMIT 1
	`
	var opnameID id.ID
	querier := f.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &opnameID, sql, productID, locationID, exempt); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, postgres.TranslateError(err, "freeze check", productID)
	}
	return &opnameID, nil
}
