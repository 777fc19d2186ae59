// Package purchasing_repo provides the PostgreSQL implementation of the
// purchase order repository.
package purchasing_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/domain/purchasing"
	"stokku/internal/infrastructure/storage/postgres"
)

const (
	ordersTable = "purchase_orders"
	linesTable  = "purchase_order_lines"
)

var orderColumns = []string{
	"id", "number", "date", "comment", "created_by",
	"supplier_id", "location_id", "status",
	"expected_date", "total_amount", "approved_by", "approved_at",
	"deletion_mark", "version", "created_at", "updated_at",
}

var lineColumns = []string{
	"id", "purchase_order_id", "product_id",
	"quantity_ordered", "quantity_received",
	"unit_price", "line_total", "over_receipt",
}

// OrderRepo implements purchasing.Repository.
type OrderRepo struct {
	txm     *postgres.TxManager
	batch   *postgres.BatchExecutor
	builder squirrel.StatementBuilderType
}

// NewOrderRepo creates a new purchase order repository.
func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		txm:     txm,
		batch:   postgres.NewBatchExecutor(txm),
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the order header and all lines. Lines go out as a
// single batch, so the caller must hold a transaction.
func (r *OrderRepo) Create(ctx context.Context, po *purchasing.PurchaseOrder) error {
	q := r.builder.Insert(ordersTable).
		Columns(orderColumns...).
		Values(
			po.ID, po.Number, po.Date, po.Comment, po.CreatedBy,
			po.SupplierID, po.LocationID, po.Status,
			po.ExpectedDate, po.TotalAmount, po.ApprovedBy, po.ApprovedAt,
			po.DeletionMark, po.Version, po.CreatedAt, po.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, "purchase order", po.Number)
	}

	queries := make([]postgres.BatchQuery, 0, len(po.Lines))
	for _, line := range po.Lines {
		q := r.builder.Insert(linesTable).
			Columns(lineColumns...).
			Values(
				line.ID, line.PurchaseOrderID, line.ProductID,
				line.QuantityOrdered, line.QuantityReceived,
				line.UnitPrice, line.LineTotal, line.OverReceipt,
			)
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return postgres.TranslateError(err, "purchase order line", po.Number)
	}
	return nil
}

// GetByID returns the order with its lines.
func (r *OrderRepo) GetByID(ctx context.Context, poID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.get(ctx, poID, false)
}

// GetByIDForUpdate locks the order header row for the duration of the
// transaction, then loads lines. Receipt posting serializes on this lock.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, poID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.get(ctx, poID, true)
}

func (r *OrderRepo) get(ctx context.Context, poID id.ID, forUpdate bool) (*purchasing.PurchaseOrder, error) {
	q := r.builder.Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{"id": poID, "deletion_mark": false})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var po purchasing.PurchaseOrder
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &po, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase order", poID)
		}
		return nil, postgres.TranslateError(err, "purchase order", poID)
	}

	lines, err := r.listLines(ctx, poID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return &po, nil
}

func (r *OrderRepo) listLines(ctx context.Context, poID id.ID) ([]*purchasing.OrderLine, error) {
	q := r.builder.Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"purchase_order_id": poID}).
		OrderBy("id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []*purchasing.OrderLine
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	return lines, nil
}

// List returns order headers matching the filter, newest first. Lines
// are not loaded.
func (r *OrderRepo) List(ctx context.Context, filter purchasing.ListFilter) ([]*purchasing.PurchaseOrder, error) {
	q := r.builder.Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date DESC", "number DESC")

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
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

	var orders []*purchasing.PurchaseOrder
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &orders, sql, args...); err != nil {
		return nil, fmt.Errorf("select purchase orders: %w", err)
	}
	return orders, nil
}

// UpdateHeader persists status and approval fields with optimistic
// version bump.
func (r *OrderRepo) UpdateHeader(ctx context.Context, po *purchasing.PurchaseOrder) error {
	q := r.builder.Update(ordersTable).
		Set("status", po.Status).
		Set("total_amount", po.TotalAmount).
		Set("approved_by", po.ApprovedBy).
		Set("approved_at", po.ApprovedAt).
		Set("comment", po.Comment).
		Set("version", po.Version).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": po.ID, "deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "purchase order", po.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase order", po.ID)
	}
	return nil
}

// UpdateLine persists cumulative received quantity and the over-receipt
// flag.
func (r *OrderRepo) UpdateLine(ctx context.Context, line *purchasing.OrderLine) error {
	q := r.builder.Update(linesTable).
		Set("quantity_received", line.QuantityReceived).
		Set("over_receipt", line.OverReceipt).
		Where(squirrel.Eq{"id": line.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "purchase order line", line.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase order line", line.ID)
	}
	return nil
}

// NextNumber allocates the next PO-YYYYMM-NNNN number.
func (r *OrderRepo) NextNumber(ctx context.Context) (string, error) {
	return postgres.NextDocumentNumber(ctx, r.txm, "PO")
}
