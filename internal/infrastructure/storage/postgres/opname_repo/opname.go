// Package opname_repo provides the PostgreSQL implementation of the
// stock opname repository and the inventory freeze check.
package opname_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/domain/opname"
	"stokku/internal/infrastructure/storage/postgres"
)

const (
	opnamesTable = "stock_opnames"
	itemsTable   = "stock_opname_items"
)

var opnameColumns = []string{
	"id", "number", "date", "comment", "created_by",
	"type", "location_id", "status",
	"scheduled_date", "started_at", "completed_at",
	"performed_by", "supervisor_id", "approved_by",
	"freeze_inventory", "total_items", "counted_items",
	"items_with_variance", "total_variance_value",
	"deletion_mark", "version", "created_at", "updated_at",
}

var itemColumns = []string{
	"id", "opname_id", "product_id", "location_id",
	"system_stock", "physical_stock", "difference",
	"variance_percentage", "unit_cost", "variance_value", "variance_category",
	"status", "recount_required", "recount_value",
	"root_cause", "corrective_action", "notes",
	"counted_by", "counted_at",
}

// OpnameRepo implements opname.Repository.
type OpnameRepo struct {
	txm     *postgres.TxManager
	batch   *postgres.BatchInserter
	builder squirrel.StatementBuilderType
}

// NewOpnameRepo creates a new opname repository.
func NewOpnameRepo(txm *postgres.TxManager) *OpnameRepo {
	return &OpnameRepo{
		txm:     txm,
		batch:   postgres.NewBatchInserter(txm),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *OpnameRepo) Create(ctx context.Context, o *opname.StockOpname) error {
	q := r.builder.Insert(opnamesTable).
		Columns(opnameColumns...).
		Values(
			o.ID, o.Number, o.Date, o.Comment, o.CreatedBy,
			o.Type, o.LocationID, o.Status,
			o.ScheduledDate, o.StartedAt, o.CompletedAt,
			o.PerformedBy, o.SupervisorID, o.ApprovedBy,
			o.FreezeInventory, o.TotalItems, o.CountedItems,
			o.ItemsWithVariance, o.TotalVarianceValue,
			o.DeletionMark, o.Version, o.CreatedAt, o.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, "stock opname", o.Number)
	}
	return nil
}

// GetByID returns the session with its items.
func (r *OpnameRepo) GetByID(ctx context.Context, opnameID id.ID) (*opname.StockOpname, error) {
	return r.get(ctx, opnameID, false)
}

// GetByIDForUpdate locks the session header row. Count mutations and
// approval serialize on this lock.
func (r *OpnameRepo) GetByIDForUpdate(ctx context.Context, opnameID id.ID) (*opname.StockOpname, error) {
	return r.get(ctx, opnameID, true)
}

func (r *OpnameRepo) get(ctx context.Context, opnameID id.ID, forUpdate bool) (*opname.StockOpname, error) {
	q := r.builder.Select(opnameColumns...).
		From(opnamesTable).
		Where(squirrel.Eq{"id": opnameID, "deletion_mark": false})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var o opname.StockOpname
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock opname", opnameID)
		}
		return nil, postgres.TranslateError(err, "stock opname", opnameID)
	}

	items, err := r.listItems(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OpnameRepo) listItems(ctx context.Context, opnameID id.ID) ([]*opname.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"opname_id": opnameID}).
		OrderBy("product_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*opname.Item
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select opname items: %w", err)
	}
	return items, nil
}

// List returns session headers matching the filter, newest first. Items
// are not loaded.
func (r *OpnameRepo) List(ctx context.Context, filter opname.ListFilter) ([]*opname.StockOpname, error) {
	q := r.builder.Select(opnameColumns...).
		From(opnamesTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date DESC", "number DESC")

	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
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

	var sessions []*opname.StockOpname
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &sessions, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock opnames: %w", err)
	}
	return sessions, nil
}

func (r *OpnameRepo) UpdateHeader(ctx context.Context, o *opname.StockOpname) error {
	q := r.builder.Update(opnamesTable).
		Set("status", o.Status).
		Set("started_at", o.StartedAt).
		Set("completed_at", o.CompletedAt).
		Set("performed_by", o.PerformedBy).
		Set("approved_by", o.ApprovedBy).
		Set("total_items", o.TotalItems).
		Set("counted_items", o.CountedItems).
		Set("items_with_variance", o.ItemsWithVariance).
		Set("total_variance_value", o.TotalVarianceValue).
		Set("version", o.Version).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": o.ID, "deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "stock opname", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock opname", o.ID)
	}
	return nil
}

// CreateItems bulk-inserts count items via the COPY protocol. A full
// count at a large location snapshots hundreds of rows at once, so the
// per-row INSERT path is not worth it here.
func (r *OpnameRepo) CreateItems(ctx context.Context, items []*opname.Item) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			it.ID, it.OpnameID, it.ProductID, it.LocationID,
			it.SystemStock, it.PhysicalStock, it.Difference,
			it.VariancePercentage, it.UnitCost, it.VarianceValue, it.VarianceCategory,
			it.Status, it.RecountRequired, it.RecountValue,
			it.RootCause, it.CorrectiveAction, it.Notes,
			it.CountedBy, it.CountedAt,
		})
	}

	if _, err := r.batch.CopyFromSlice(ctx, itemsTable, itemColumns, rows); err != nil {
		return postgres.TranslateError(err, "opname items", items[0].OpnameID)
	}
	return nil
}

func (r *OpnameRepo) GetItem(ctx context.Context, itemID id.ID) (*opname.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item opname.Item
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("opname item", itemID)
		}
		return nil, fmt.Errorf("get opname item: %w", err)
	}
	return &item, nil
}

func (r *OpnameRepo) UpdateItem(ctx context.Context, item *opname.Item) error {
	q := r.builder.Update(itemsTable).
		Set("system_stock", item.SystemStock).
		Set("physical_stock", item.PhysicalStock).
		Set("difference", item.Difference).
		Set("variance_percentage", item.VariancePercentage).
		Set("unit_cost", item.UnitCost).
		Set("variance_value", item.VarianceValue).
		Set("variance_category", item.VarianceCategory).
		Set("status", item.Status).
		Set("recount_required", item.RecountRequired).
		Set("recount_value", item.RecountValue).
		Set("root_cause", item.RootCause).
		Set("corrective_action", item.CorrectiveAction).
		Set("notes", item.Notes).
		Set("counted_by", item.CountedBy).
		Set("counted_at", item.CountedAt).
		Where(squirrel.Eq{"id": item.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "opname item", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("opname item", item.ID)
	}
	return nil
}

// NextNumber allocates the next SO-YYYYMM-NNNN number.
func (r *OpnameRepo) NextNumber(ctx context.Context) (string, error) {
	return postgres.NextDocumentNumber(ctx, r.txm, "SO")
}
