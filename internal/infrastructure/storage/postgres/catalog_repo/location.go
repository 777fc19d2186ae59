package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/domain/catalogs/location"
	"stokku/internal/infrastructure/storage/postgres"
)

const locationsTable = "locations"

var locationColumns = []string{
	"id", "code", "name", "type", "address", "is_active",
	"deletion_mark", "version", "created_at", "updated_at",
}

// LocationRepo implements location.Repository.
type LocationRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txm *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LocationRepo) Create(ctx context.Context, l *location.Location) error {
	q := r.builder.Insert(locationsTable).
		Columns(locationColumns...).
		Values(
			l.ID, l.Code, l.Name, l.Type, l.Address, l.IsActive,
			l.DeletionMark, l.Version, l.CreatedAt, l.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, "location", l.Code)
	}
	return nil
}

func (r *LocationRepo) GetByID(ctx context.Context, locationID id.ID) (*location.Location, error) {
	return r.getBy(ctx, squirrel.Eq{"id": locationID}, locationID)
}

func (r *LocationRepo) GetByCode(ctx context.Context, code string) (*location.Location, error) {
	return r.getBy(ctx, squirrel.Eq{"code": code}, code)
}

func (r *LocationRepo) getBy(ctx context.Context, cond squirrel.Eq, key any) (*location.Location, error) {
	cond["deletion_mark"] = false
	q := r.builder.Select(locationColumns...).
		From(locationsTable).
		Where(cond).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l location.Location
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("location", key)
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

func (r *LocationRepo) List(ctx context.Context, activeOnly bool) ([]*location.Location, error) {
	q := r.builder.Select(locationColumns...).
		From(locationsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("code")

	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var locations []*location.Location
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &locations, sql, args...); err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	return locations, nil
}

func (r *LocationRepo) Update(ctx context.Context, l *location.Location) error {
	q := r.builder.Update(locationsTable).
		Set("code", l.Code).
		Set("name", l.Name).
		Set("type", l.Type).
		Set("address", l.Address).
		Set("is_active", l.IsActive).
		Set("version", l.Version).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": l.ID, "version": l.Version - 1, "deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "location", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("location", l.ID)
	}
	return nil
}

func (r *LocationRepo) SetDeletionMark(ctx context.Context, locationID id.ID, mark bool) error {
	q := r.builder.Update(locationsTable).
		Set("deletion_mark", mark).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": locationID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, "location", locationID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("location", locationID)
	}
	return nil
}
