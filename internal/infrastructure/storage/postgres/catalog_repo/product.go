// Package catalog_repo provides the PostgreSQL implementation of the
// product and location catalogs.
package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

var productColumns = []string{
	"id", "code", "name", "sku", "barcode", "unit", "category_id",
	"selling_price", "standard_cost", "unit_cost", "costing_method",
	"margin_amount", "margin_percentage", "markup_percentage",
	"is_active", "last_cost_update",
	"deletion_mark", "version", "created_at", "updated_at",
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	q := r.builder.Insert(productsTable).
		Columns(productColumns...).
		Values(
			p.ID, p.Code, p.Name, p.SKU, p.Barcode, p.Unit, p.CategoryID,
			p.SellingPrice, p.StandardCost, p.UnitCost, p.CostingMethod,
			p.MarginAmount, p.MarginPercentage, p.MarkupPercentage,
			p.IsActive, p.LastCostUpdate,
			p.DeletionMark, p.Version, p.CreatedAt, p.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, "product", p.Code)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.getBy(ctx, squirrel.Eq{"id": productID}, productID)
}

func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	return r.getBy(ctx, squirrel.Eq{"code": code}, code)
}

func (r *ProductRepo) getBy(ctx context.Context, cond squirrel.Eq, key any) (*product.Product, error) {
	cond["deletion_mark"] = false
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(cond).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", key)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) ([]*product.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("code")

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
			squirrel.ILike{"sku": pattern},
		})
	}
	if filter.CategoryID != nil {
		q = q.Where(squirrel.Eq{"category_id": *filter.CategoryID})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
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

	var products []*product.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &products, sql, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return products, nil
}

// Update persists the full editable state. The version predicate makes
// concurrent edits fail with a conflict instead of silently overwriting.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	q := r.builder.Update(productsTable).
		Set("code", p.Code).
		Set("name", p.Name).
		Set("sku", p.SKU).
		Set("barcode", p.Barcode).
		Set("unit", p.Unit).
		Set("category_id", p.CategoryID).
		Set("selling_price", p.SellingPrice).
		Set("standard_cost", p.StandardCost).
		Set("costing_method", p.CostingMethod).
		Set("is_active", p.IsActive).
		Set("version", p.Version).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": p.ID, "version": p.Version - 1, "deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "product", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("product", p.ID)
	}
	return nil
}

// UpdateCostFields persists only the costing-engine-owned fields.
func (r *ProductRepo) UpdateCostFields(ctx context.Context, p *product.Product) error {
	q := r.builder.Update(productsTable).
		Set("unit_cost", p.UnitCost).
		Set("margin_amount", p.MarginAmount).
		Set("margin_percentage", p.MarginPercentage).
		Set("markup_percentage", p.MarkupPercentage).
		Set("last_cost_update", p.LastCostUpdate).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": p.ID, "deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "product", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", p.ID)
	}
	return nil
}

func (r *ProductRepo) SetDeletionMark(ctx context.Context, productID id.ID, mark bool) error {
	q := r.builder.Update(productsTable).
		Set("deletion_mark", mark).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": productID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "product", productID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID)
	}
	return nil
}
