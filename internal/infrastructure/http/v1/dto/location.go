package dto

import (
	"stokku/internal/core/entity"
	"stokku/internal/domain/catalogs/location"
)

// CreateLocationRequest creates a stock location.
type CreateLocationRequest struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Type    string `json:"type" binding:"required,oneof=warehouse outlet storage"`
	Address string `json:"address,omitempty"`
}

// ToEntity converts the request to a domain location.
func (r *CreateLocationRequest) ToEntity() *location.Location {
	return &location.Location{
		Catalog: entity.Catalog{
			BaseEntity: entity.NewBaseEntity(),
			Code:       r.Code,
			Name:       r.Name,
		},
		Type:     location.LocationType(r.Type),
		Address:  r.Address,
		IsActive: true,
	}
}

// UpdateLocationRequest patches an existing location.
type UpdateLocationRequest struct {
	Code     *string `json:"code,omitempty"`
	Name     *string `json:"name,omitempty"`
	Type     *string `json:"type,omitempty" binding:"omitempty,oneof=warehouse outlet storage"`
	Address  *string `json:"address,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// ApplyTo copies the set fields onto the location.
func (r *UpdateLocationRequest) ApplyTo(l *location.Location) {
	if r.Code != nil {
		l.Code = *r.Code
	}
	if r.Name != nil {
		l.Name = *r.Name
	}
	if r.Type != nil {
		l.Type = location.LocationType(*r.Type)
	}
	if r.Address != nil {
		l.Address = *r.Address
	}
	if r.IsActive != nil {
		l.IsActive = *r.IsActive
	}
}
