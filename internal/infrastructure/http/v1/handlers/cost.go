package handlers

import (
	"github.com/gin-gonic/gin"

	"stokku/internal/domain/costing"
	"stokku/internal/infrastructure/http/v1/dto"
)

// CostHandler handles costing engine endpoints.
type CostHandler struct {
	*BaseHandler
	service *costing.Service
}

// NewCostHandler creates a new cost handler.
func NewCostHandler(base *BaseHandler, service *costing.Service) *CostHandler {
	return &CostHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts costing routes on the group. All routes hang
// off the product they cost.
func (h *CostHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:productId/calculate", h.Calculate)
	rg.GET("/:productId/history", h.History)
	rg.GET("/:productId/components", h.ListComponents)
	rg.POST("/:productId/components", h.CreateComponent)
	rg.PUT("/:productId/components/:componentId", h.UpdateComponent)
	rg.DELETE("/:productId/components/:componentId", h.DeleteComponent)
}

// Calculate recalculates HPP for a product and returns the breakdown.
// POST /api/v1/costs/:productId/calculate
func (h *CostHandler) Calculate(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	req := dto.CalculateCostRequest{}
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}

	result, err := h.service.Calculate(c.Request.Context(), req.ToRequest(productID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// History returns the cost change audit trail, newest first.
// GET /api/v1/costs/:productId/history
func (h *CostHandler) History(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	offset := h.ParseIntQuery(c, "offset", 0)

	history, err := h.service.ListHistory(c.Request.Context(), productID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Paged(c, history, limit, offset)
}

// ListComponents returns a product's cost components.
// GET /api/v1/costs/:productId/components
func (h *CostHandler) ListComponents(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	components, err := h.service.ListComponents(c.Request.Context(), productID, c.Query("activeOnly") == "true")
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, components)
}

// CreateComponent adds a cost component and recalculates HPP.
// POST /api/v1/costs/:productId/components
func (h *CostHandler) CreateComponent(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	var req dto.CostComponentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	component := req.ToEntity(productID)
	if err := h.service.CreateComponent(c.Request.Context(), component); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, component.ID.String())
}

// UpdateComponent updates a cost component and recalculates HPP.
// PUT /api/v1/costs/:productId/components/:componentId
func (h *CostHandler) UpdateComponent(c *gin.Context) {
	componentID, ok := h.ParseID(c, "componentId")
	if !ok {
		return
	}

	var req dto.CostComponentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	component, err := h.service.GetComponent(c.Request.Context(), componentID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(component)
	if err := h.service.UpdateComponent(c.Request.Context(), component); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, component)
}

// DeleteComponent removes a cost component and recalculates HPP.
// DELETE /api/v1/costs/:productId/components/:componentId
func (h *CostHandler) DeleteComponent(c *gin.Context) {
	componentID, ok := h.ParseID(c, "componentId")
	if !ok {
		return
	}

	if err := h.service.DeleteComponent(c.Request.Context(), componentID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
