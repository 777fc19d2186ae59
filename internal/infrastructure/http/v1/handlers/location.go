package handlers

import (
	"github.com/gin-gonic/gin"

	"stokku/internal/domain/catalogs/location"
	"stokku/internal/infrastructure/http/v1/dto"
)

// LocationHandler handles location catalog endpoints.
type LocationHandler struct {
	*BaseHandler
	service *location.Service
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, service *location.Service) *LocationHandler {
	return &LocationHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts location routes on the group.
func (h *LocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

// Create adds a location.
// POST /api/v1/locations
func (h *LocationHandler) Create(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), l); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, l.ID.String())
}

// List returns all locations.
// GET /api/v1/locations
func (h *LocationHandler) List(c *gin.Context) {
	locations, err := h.service.List(c.Request.Context(), c.Query("activeOnly") == "true")
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, locations)
}

// Get returns one location.
// GET /api/v1/locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	locationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// Update patches a location.
// PUT /api/v1/locations/:id
func (h *LocationHandler) Update(c *gin.Context) {
	locationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(l)
	if err := h.service.Update(c.Request.Context(), l); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// Delete soft-deletes a location.
// DELETE /api/v1/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	locationID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.SetDeletionMark(c.Request.Context(), locationID, true); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
