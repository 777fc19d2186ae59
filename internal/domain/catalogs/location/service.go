package location

import (
	"context"

	"stokku/internal/core/apperror"
	"stokku/internal/core/entity"
	"stokku/internal/core/id"
)

// Repository is the storage contract for locations.
type Repository interface {
	Create(ctx context.Context, l *Location) error
	GetByID(ctx context.Context, locationID id.ID) (*Location, error)
	GetByCode(ctx context.Context, code string) (*Location, error)
	List(ctx context.Context, activeOnly bool) ([]*Location, error)
	Update(ctx context.Context, l *Location) error
	SetDeletionMark(ctx context.Context, locationID id.ID, mark bool) error
}

// Service manages the location catalog.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, l *Location) error {
	if l.Code == "" {
		return apperror.NewValidation("code is required")
	}
	if l.Name == "" {
		return apperror.NewValidation("name is required")
	}
	if l.Type == "" {
		l.Type = TypeWarehouse
	}
	if existing, err := s.repo.GetByCode(ctx, l.Code); err == nil && existing != nil {
		return apperror.NewDuplicate("location", "code", l.Code)
	}

	l.BaseEntity = entity.NewBaseEntity()
	l.IsActive = true
	return s.repo.Create(ctx, l)
}

func (s *Service) GetByID(ctx context.Context, locationID id.ID) (*Location, error) {
	return s.repo.GetByID(ctx, locationID)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Location, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) Update(ctx context.Context, l *Location) error {
	current, err := s.repo.GetByID(ctx, l.ID)
	if err != nil {
		return err
	}
	if current.Version != l.Version {
		return apperror.NewConcurrentModification("location", l.ID)
	}
	l.Touch()
	return s.repo.Update(ctx, l)
}

func (s *Service) SetDeletionMark(ctx context.Context, locationID id.ID, mark bool) error {
	return s.repo.SetDeletionMark(ctx, locationID, mark)
}
