package dto

import (
	"time"

	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/opname"
)

// CreateOpnameRequest schedules a count session.
type CreateOpnameRequest struct {
	Type            string     `json:"type" binding:"required,oneof=full cycle"`
	LocationID      string     `json:"locationId" binding:"required,uuid"`
	ScheduledDate   *time.Time `json:"scheduledDate,omitempty"`
	SupervisorID    *string    `json:"supervisorId,omitempty"`
	FreezeInventory bool       `json:"freezeInventory"`
	Comment         string     `json:"comment,omitempty"`
	ProductIDs      []string   `json:"productIds,omitempty" binding:"omitempty,dive,uuid"`
}

// ToRequest converts the DTO to a domain create request.
func (r *CreateOpnameRequest) ToRequest() opname.CreateRequest {
	locationID, _ := id.Parse(r.LocationID)

	req := opname.CreateRequest{
		Type:            opname.OpnameType(r.Type),
		LocationID:      locationID,
		ScheduledDate:   r.ScheduledDate,
		SupervisorID:    r.SupervisorID,
		FreezeInventory: r.FreezeInventory,
		Comment:         r.Comment,
	}
	for _, raw := range r.ProductIDs {
		productID, _ := id.Parse(raw)
		req.ProductIDs = append(req.ProductIDs, productID)
	}
	return req
}

// RecordCountRequest records a physical count for one item.
type RecordCountRequest struct {
	PhysicalStock types.Quantity `json:"physicalStock"`
	Notes         string         `json:"notes,omitempty"`
}

// RecountRequest records a second count for a flagged item.
type RecountRequest struct {
	PhysicalStock types.Quantity `json:"physicalStock"`
}

// InvestigateRequest resolves a variance with its root cause.
type InvestigateRequest struct {
	RootCause        string `json:"rootCause" binding:"required"`
	CorrectiveAction string `json:"correctiveAction,omitempty"`
	Notes            string `json:"notes,omitempty"`
}
