package product

import (
	"context"

	"stokku/internal/core/apperror"
	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/pkg/logger"
)

// Cache is a read-through cache for product lookups. Implemented by the
// Redis layer; a nil Cache disables caching entirely.
type Cache interface {
	Get(ctx context.Context, productID id.ID) (*Product, bool)
	Set(ctx context.Context, p *Product)
	Invalidate(ctx context.Context, productID id.ID)
}

// Service manages the product catalog.
type Service struct {
	repo  Repository
	cache Cache
}

// NewService creates a product service. cache may be nil.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if p.Code == "" {
		return apperror.NewValidation("code is required")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required")
	}
	if p.CostingMethod == "" {
		p.CostingMethod = CostingAverage
	}
	if !p.CostingMethod.IsValid() {
		return apperror.NewValidation("unknown costing method: " + string(p.CostingMethod))
	}
	if existing, err := s.repo.GetByCode(ctx, p.Code); err == nil && existing != nil {
		return apperror.NewDuplicate("product", "code", p.Code)
	}

	p.BaseEntity = entity.NewBaseEntity()
	p.IsActive = true
	return s.repo.Create(ctx, p)
}

// GetByID returns a product, reading through the cache.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(ctx, productID); ok {
			return p, nil
		}
	}
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, p)
	}
	return p, nil
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Product, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Update stores catalog field changes with optimistic locking. Cost
// fields are ignored here; the costing engine writes those.
func (s *Service) Update(ctx context.Context, p *Product) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.Version != p.Version {
		return apperror.NewConcurrentModification("product", p.ID)
	}
	if p.CostingMethod != "" && !p.CostingMethod.IsValid() {
		return apperror.NewValidation("unknown costing method: " + string(p.CostingMethod))
	}

	p.Touch()
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, p.ID)
	}
	logger.Debug(ctx, "product updated", "product_id", p.ID, "version", p.Version)
	return nil
}

// SetDeletionMark soft-deletes or restores a product.
func (s *Service) SetDeletionMark(ctx context.Context, productID id.ID, mark bool) error {
	if err := s.repo.SetDeletionMark(ctx, productID, mark); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, productID)
	}
	return nil
}
