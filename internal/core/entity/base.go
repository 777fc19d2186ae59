// Package entity defines base types shared by catalogs and documents.
package entity

import (
	"time"

	"stokku/internal/core/id"
)

// BaseEntity holds fields common to every stored entity.
type BaseEntity struct {
	ID           id.ID     `json:"id" db:"id"`
	DeletionMark bool      `json:"deletionMark" db:"deletion_mark"`
	Version      int       `json:"version" db:"version"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// NewBaseEntity creates a BaseEntity with a fresh ID.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the version and update timestamp. Call before saving changes.
func (e *BaseEntity) Touch() {
	e.Version++
	e.UpdatedAt = time.Now().UTC()
}

// Catalog is the base for reference data entities (products, locations).
type Catalog struct {
	BaseEntity
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

// Document is the base for business documents (purchase orders, opnames).
type Document struct {
	BaseEntity
	Number    string    `json:"number" db:"number"`
	Date      time.Time `json:"date" db:"date"`
	Comment   string    `json:"comment,omitempty" db:"comment"`
	CreatedBy id.ID     `json:"createdBy" db:"created_by"`
}

// NewDocument creates a Document dated now.
func NewDocument(number string, createdBy id.ID) Document {
	return Document{
		BaseEntity: NewBaseEntity(),
		Number:     number,
		Date:       time.Now().UTC(),
		CreatedBy:  createdBy,
	}
}
