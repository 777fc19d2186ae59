// Package costing_repo provides the PostgreSQL implementation of the
// costing repository.
package costing_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/domain/costing"
	"stokku/internal/infrastructure/storage/postgres"
)

const (
	componentsTable = "cost_components"
	historyTable    = "cost_histories"
)

var componentColumns = []string{
	"id", "product_id", "component_type", "name",
	"quantity", "unit_cost", "is_active",
	"deletion_mark", "version", "created_at", "updated_at",
}

var historyColumns = []string{
	"id", "product_id", "old_cost", "new_cost",
	"change_amount", "change_percentage",
	"purchase_price", "packaging_cost", "labor_cost", "overhead_cost",
	"method", "reason", "reference_type", "reference_id",
	"created_at", "created_by",
}

// CostingRepo implements costing.Repository.
type CostingRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCostingRepo creates a new costing repository.
func NewCostingRepo(txm *postgres.TxManager) *CostingRepo {
	return &CostingRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *CostingRepo) CreateComponent(ctx context.Context, c *costing.CostComponent) error {
	q := r.builder.Insert(componentsTable).
		Columns(componentColumns...).
		Values(
			c.ID, c.ProductID, c.ComponentType, c.Name,
			c.Quantity, c.UnitCost, c.IsActive,
			c.DeletionMark, c.Version, c.CreatedAt, c.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, "cost component", c.ID)
	}
	return nil
}

func (r *CostingRepo) GetComponent(ctx context.Context, componentID id.ID) (*costing.CostComponent, error) {
	q := r.builder.Select(componentColumns...).
		From(componentsTable).
		Where(squirrel.Eq{"id": componentID, "deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c costing.CostComponent
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("cost component", componentID)
		}
		return nil, fmt.Errorf("get cost component: %w", err)
	}
	return &c, nil
}

func (r *CostingRepo) ListComponents(ctx context.Context, productID id.ID, activeOnly bool) ([]*costing.CostComponent, error) {
	q := r.builder.Select(componentColumns...).
		From(componentsTable).
		Where(squirrel.Eq{"product_id": productID, "deletion_mark": false}).
		OrderBy("component_type", "name")

	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var components []*costing.CostComponent
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &components, sql, args...); err != nil {
		return nil, fmt.Errorf("select cost components: %w", err)
	}
	return components, nil
}

func (r *CostingRepo) UpdateComponent(ctx context.Context, c *costing.CostComponent) error {
	q := r.builder.Update(componentsTable).
		Set("component_type", c.ComponentType).
		Set("name", c.Name).
		Set("quantity", c.Quantity).
		Set("unit_cost", c.UnitCost).
		Set("is_active", c.IsActive).
		Set("version", c.Version).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": c.ID, "deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "cost component", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("cost component", c.ID)
	}
	return nil
}

// DeleteComponent soft-deletes a component. History rows referencing
// the product remain intact.
func (r *CostingRepo) DeleteComponent(ctx context.Context, componentID id.ID) error {
	q := r.builder.Update(componentsTable).
		Set("deletion_mark", true).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": componentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "cost component", componentID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("cost component", componentID)
	}
	return nil
}

func (r *CostingRepo) InsertHistory(ctx context.Context, h *costing.CostHistory) error {
	q := r.builder.Insert(historyTable).
		Columns(historyColumns...).
		Values(
			h.ID, h.ProductID, h.OldCost, h.NewCost,
			h.ChangeAmount, h.ChangePercentage,
			h.PurchasePrice, h.PackagingCost, h.LaborCost, h.OverheadCost,
			h.Method, h.Reason, h.ReferenceType, h.ReferenceID,
			h.CreatedAt, h.CreatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, "cost history", h.ID)
	}
	return nil
}

func (r *CostingRepo) ListHistory(ctx context.Context, productID id.ID, limit, offset int) ([]*costing.CostHistory, error) {
	q := r.builder.Select(historyColumns...).
		From(historyTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var history []*costing.CostHistory
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &history, sql, args...); err != nil {
		return nil, fmt.Errorf("select cost history: %w", err)
	}
	return history, nil
}
