package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stokku/internal/core/id"
	"stokku/internal/domain/opname"
	"stokku/internal/infrastructure/http/v1/dto"
)

// OpnameHandler handles stock opname endpoints.
type OpnameHandler struct {
	*BaseHandler
	service *opname.Service
}

// NewOpnameHandler creates a new opname handler.
func NewOpnameHandler(base *BaseHandler, service *opname.Service) *OpnameHandler {
	return &OpnameHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts opname routes on the group. approverOnly guards
// the approval transition.
func (h *OpnameHandler) RegisterRoutes(rg *gin.RouterGroup, approverOnly gin.HandlerFunc) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/start", h.Start)
	rg.POST("/:id/approve", approverOnly, h.Approve)
	rg.POST("/:id/cancel", h.Cancel)

	rg.POST("/items/:itemId/count", h.RecordCount)
	rg.POST("/items/:itemId/recount", h.Recount)
	rg.POST("/items/:itemId/verify", h.Verify)
	rg.POST("/items/:itemId/investigate", h.Investigate)
	rg.POST("/items/:itemId/require-recount", h.RequireRecount)
}

// Create schedules a count session.
// POST /api/v1/opnames
func (h *OpnameHandler) Create(c *gin.Context) {
	var req dto.CreateOpnameRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := h.service.Create(c.Request.Context(), req.ToRequest())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// List returns count sessions matching the filter.
// GET /api/v1/opnames
func (h *OpnameHandler) List(c *gin.Context) {
	filter := opname.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.LocationID, ok = h.ParseIDQuery(c, "locationId"); !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		parsed := opname.Status(status)
		filter.Status = &parsed
	}

	sessions, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Paged(c, sessions, filter.Limit, filter.Offset)
}

// Get returns one session with its items.
// GET /api/v1/opnames/:id
func (h *OpnameHandler) Get(c *gin.Context) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	o, err := h.service.GetByID(c.Request.Context(), opnameID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// Start snapshots system stock and begins counting. With freeze enabled
// the scope rejects stock movements from this point until completion.
// POST /api/v1/opnames/:id/start
func (h *OpnameHandler) Start(c *gin.Context) {
	h.sessionTransition(c, h.service.Start)
}

// Approve posts reconciling adjustments and completes the session.
// POST /api/v1/opnames/:id/approve
func (h *OpnameHandler) Approve(c *gin.Context) {
	h.sessionTransition(c, h.service.Approve)
}

// Cancel abandons the session without posting anything.
// POST /api/v1/opnames/:id/cancel
func (h *OpnameHandler) Cancel(c *gin.Context) {
	h.sessionTransition(c, h.service.Cancel)
}

// RecordCount records the physical count for one item.
// POST /api/v1/opnames/items/:itemId/count
func (h *OpnameHandler) RecordCount(c *gin.Context) {
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}

	var req dto.RecordCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.RecordCount(c.Request.Context(), itemID, req.PhysicalStock, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Recount records a second count, replacing the first.
// POST /api/v1/opnames/items/:itemId/recount
func (h *OpnameHandler) Recount(c *gin.Context) {
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}

	var req dto.RecountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.Recount(c.Request.Context(), itemID, req.PhysicalStock)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Verify accepts a counted item as correct.
// POST /api/v1/opnames/items/:itemId/verify
func (h *OpnameHandler) Verify(c *gin.Context) {
	h.itemTransition(c, h.service.Verify)
}

// Investigate resolves a variance with a root cause.
// POST /api/v1/opnames/items/:itemId/investigate
func (h *OpnameHandler) Investigate(c *gin.Context) {
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}

	var req dto.InvestigateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.Investigate(c.Request.Context(), itemID, req.RootCause, req.CorrectiveAction, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// RequireRecount flags an item for a second count.
// POST /api/v1/opnames/items/:itemId/require-recount
func (h *OpnameHandler) RequireRecount(c *gin.Context) {
	h.itemTransition(c, h.service.RequireRecount)
}

func (h *OpnameHandler) sessionTransition(c *gin.Context, fn func(context.Context, id.ID) (*opname.StockOpname, error)) {
	opnameID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	o, err := fn(c.Request.Context(), opnameID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

func (h *OpnameHandler) itemTransition(c *gin.Context, fn func(context.Context, id.ID) (*opname.Item, error)) {
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}

	item, err := fn(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}
