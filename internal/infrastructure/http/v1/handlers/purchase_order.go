package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"stokku/internal/core/id"
	"stokku/internal/domain/purchasing"
	"stokku/internal/infrastructure/http/v1/dto"
)

// PurchaseOrderHandler handles purchase order endpoints.
type PurchaseOrderHandler struct {
	*BaseHandler
	service *purchasing.Service
}

// NewPurchaseOrderHandler creates a new purchase order handler.
func NewPurchaseOrderHandler(base *BaseHandler, service *purchasing.Service) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts purchase order routes on the group. approverOnly
// guards the approval transition.
func (h *PurchaseOrderHandler) RegisterRoutes(rg *gin.RouterGroup, approverOnly gin.HandlerFunc) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/submit", h.Submit)
	rg.POST("/:id/approve", approverOnly, h.Approve)
	rg.POST("/:id/order", h.MarkOrdered)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/receipts", h.PostReceipt)
}

// Create creates a draft purchase order.
// POST /api/v1/purchase-orders
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	po, err := h.service.Create(c.Request.Context(), req.ToRequest())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, po)
}

// List returns purchase orders matching the filter.
// GET /api/v1/purchase-orders
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	filter := purchasing.ListFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.SupplierID, ok = h.ParseIDQuery(c, "supplierId"); !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		parsed := purchasing.Status(status)
		filter.Status = &parsed
	}
	if from := c.Query("dateFrom"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("dateTo"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &t
		}
	}

	orders, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Paged(c, orders, filter.Limit, filter.Offset)
}

// Get returns one purchase order with lines.
// GET /api/v1/purchase-orders/:id
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := h.service.GetByID(c.Request.Context(), poID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, po)
}

// Submit moves a draft to pending approval.
// POST /api/v1/purchase-orders/:id/submit
func (h *PurchaseOrderHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve approves a pending order.
// POST /api/v1/purchase-orders/:id/approve
func (h *PurchaseOrderHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// MarkOrdered marks an approved order as sent to the supplier.
// POST /api/v1/purchase-orders/:id/order
func (h *PurchaseOrderHandler) MarkOrdered(c *gin.Context) {
	h.transition(c, h.service.MarkOrdered)
}

// Cancel cancels an order that has not been fully received.
// POST /api/v1/purchase-orders/:id/cancel
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// PostReceipt posts a goods receipt. Lines succeed or fail
// independently, so the response is always 200 with per-line outcomes.
// POST /api/v1/purchase-orders/:id/receipts
func (h *PurchaseOrderHandler) PostReceipt(c *gin.Context) {
	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.PostReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.PostReceipt(c.Request.Context(), poID, req.ToLines())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

func (h *PurchaseOrderHandler) transition(c *gin.Context, fn func(context.Context, id.ID) (*purchasing.PurchaseOrder, error)) {
	poID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := fn(c.Request.Context(), poID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, po)
}
