// Package ledger_repo provides the PostgreSQL implementation of the
// stock ledger repository.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/domain/ledger"
	"stokku/internal/infrastructure/storage/postgres"
)

const (
	stockRecordsTable   = "stock_records"
	stockMovementsTable = "stock_movements"
)

var recordColumns = []string{
	"id", "product_id", "location_id",
	"quantity_on_hand", "reserved_quantity",
	"minimum_stock", "maximum_stock", "reorder_point", "reorder_quantity",
	"average_cost", "last_restock_date", "last_stock_count_date",
	"version", "created_at", "updated_at",
}

var movementColumns = []string{
	"id", "product_id", "location_id", "movement_type", "quantity",
	"unit_cost", "total_cost", "reference_type", "reference_id",
	"balance_before", "balance_after",
	"transfer_pair_id", "from_location_id", "to_location_id",
	"batch_number", "expiry_date", "created_at", "created_by",
}

// StockRepo implements ledger.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetRecord returns the stock row for (product, location).
func (r *StockRepo) GetRecord(ctx context.Context, productID, locationID id.ID) (*ledger.StockRecord, error) {
	q := r.builder.Select(recordColumns...).
		From(stockRecordsTable).
		Where(squirrel.Eq{"product_id": productID, "location_id": locationID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var record ledger.StockRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &record, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock record", productID.String()+"/"+locationID.String())
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}

	return &record, nil
}

// GetRecordForUpdate returns the stock row with a pessimistic lock,
// creating the zero row first when the pair has no history. Serializes
// all writers on the (product, location) key; a lock_timeout expiry
// comes back as a retryable Contention error.
func (r *StockRepo) GetRecordForUpdate(ctx context.Context, productID, locationID id.ID) (*ledger.StockRecord, error) {
	now := time.Now().UTC()
	insertSQL := `
		INSERT INTO stock_records (id, product_id, location_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (product_id, location_id) DO NOTHING
	`
	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, insertSQL, id.New(), productID, locationID, now); err != nil {
		return nil, postgres.TranslateError(err, "stock record", productID)
	}

	selectSQL := `
		SELECT id, product_id, location_id,
		       quantity_on_hand, reserved_quantity,
		       minimum_stock, maximum_stock, reorder_point, reorder_quantity,
		       average_cost, last_restock_date, last_stock_count_date,
		       version, created_at, updated_at
		FROM stock_records
		WHERE product_id = $1 AND location_id = $2
		FOR UPDATE
	`
	var record ledger.StockRecord
	if err := pgxscan.Get(ctx, querier, &record, selectSQL, productID, locationID); err != nil {
		return nil, postgres.TranslateError(err, "stock record", productID)
	}

	return &record, nil
}

// UpdateRecord persists balance and metadata changes to a locked row.
func (r *StockRepo) UpdateRecord(ctx context.Context, record *ledger.StockRecord) error {
	q := r.builder.Update(stockRecordsTable).
		Set("quantity_on_hand", record.QuantityOnHand).
		Set("reserved_quantity", record.ReservedQuantity).
		Set("minimum_stock", record.MinimumStock).
		Set("maximum_stock", record.MaximumStock).
		Set("reorder_point", record.ReorderPoint).
		Set("reorder_quantity", record.ReorderQuantity).
		Set("average_cost", record.AverageCost).
		Set("last_restock_date", record.LastRestockDate).
		Set("last_stock_count_date", record.LastStockCountDate).
		Set("version", record.Version).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": record.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "stock record", record.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock record", record.ID)
	}
	return nil
}

// ListRecordsByProduct returns stock rows for a product across locations.
func (r *StockRepo) ListRecordsByProduct(ctx context.Context, productID id.ID) ([]*ledger.StockRecord, error) {
	return r.listRecords(ctx, squirrel.Eq{"product_id": productID}, "location_id")
}

// ListRecordsByLocation returns all stock rows at a location.
func (r *StockRepo) ListRecordsByLocation(ctx context.Context, locationID id.ID) ([]*ledger.StockRecord, error) {
	return r.listRecords(ctx, squirrel.Eq{"location_id": locationID}, "product_id")
}

func (r *StockRepo) listRecords(ctx context.Context, where squirrel.Eq, order string) ([]*ledger.StockRecord, error) {
	q := r.builder.Select(recordColumns...).
		From(stockRecordsTable).
		Where(where).
		OrderBy(order)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*ledger.StockRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock records: %w", err)
	}
	return records, nil
}

// ListLowStock returns rows where available stock is at or below the
// reorder point.
func (r *StockRepo) ListLowStock(ctx context.Context, locationID *id.ID) ([]*ledger.StockRecord, error) {
	q := r.builder.Select(recordColumns...).
		From(stockRecordsTable).
		Where(squirrel.Gt{"reorder_point": 0}).
		Where("quantity_on_hand - reserved_quantity <= reorder_point").
		OrderBy("location_id", "product_id")

	if locationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *locationID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*ledger.StockRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select low stock: %w", err)
	}
	return records, nil
}

// InsertEntry appends one immutable movement row.
func (r *StockRepo) InsertEntry(ctx context.Context, entry *ledger.MovementEntry) error {
	q := r.builder.Insert(stockMovementsTable).
		Columns(movementColumns...).
		Values(
			entry.ID, entry.ProductID, entry.LocationID, entry.MovementType, entry.Quantity,
			entry.UnitCost, entry.TotalCost, entry.ReferenceType, entry.ReferenceID,
			entry.BalanceBefore, entry.BalanceAfter,
			entry.TransferPairID, entry.FromLocationID, entry.ToLocationID,
			entry.BatchNumber, entry.ExpiryDate, entry.CreatedAt, entry.CreatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, "stock movement", entry.ID)
	}
	return nil
}

// LastEntry returns the most recent movement for (product, location).
func (r *StockRepo) LastEntry(ctx context.Context, productID, locationID id.ID) (*ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID, "location_id": locationID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last movement: %w", err)
	}
	return &entry, nil
}

// ListEntries returns movements matching the filter, newest first.
func (r *StockRepo) ListEntries(ctx context.Context, filter ledger.HistoryFilter) ([]*ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		OrderBy("created_at DESC", "id DESC")

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.MovementType})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.DateTo})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []*ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return entries, nil
}

// ListEntriesAsc returns the full history for a pair in creation order.
func (r *StockRepo) ListEntriesAsc(ctx context.Context, productID, locationID id.ID) ([]*ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID, "location_id": locationID}).
		OrderBy("created_at ASC", "id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []*ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select movement history: %w", err)
	}
	return entries, nil
}

// LastReceiptEntry returns the newest receipt with a cost for a product.
func (r *StockRepo) LastReceiptEntry(ctx context.Context, productID id.ID) (*ledger.MovementEntry, error) {
	return r.receiptEntry(ctx, productID, "created_at DESC, id DESC")
}

// FirstReceiptEntry returns the oldest receipt with a cost for a product.
func (r *StockRepo) FirstReceiptEntry(ctx context.Context, productID id.ID) (*ledger.MovementEntry, error) {
	return r.receiptEntry(ctx, productID, "created_at ASC, id ASC")
}

func (r *StockRepo) receiptEntry(ctx context.Context, productID id.ID, order string) (*ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{
			"product_id":    productID,
			"movement_type": ledger.MovementReceipt,
		}).
		Where("unit_cost IS NOT NULL").
		OrderBy(order).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt movement: %w", err)
	}
	return &entry, nil
}
