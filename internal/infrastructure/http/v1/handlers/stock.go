package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/domain/ledger"
	"stokku/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock ledger endpoints.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts stock routes on the group.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:productId/:locationId", h.Get)
	rg.GET("/by-product/:productId", h.ListByProduct)
	rg.GET("/by-location/:locationId", h.ListByLocation)
	rg.GET("/low", h.ListLow)
	rg.GET("/movements", h.ListMovements)
	rg.POST("/movements", h.PostMovement)
	rg.POST("/transfers", h.Transfer)
	rg.POST("/reservations", h.Reserve)
	rg.DELETE("/reservations", h.Release)
	rg.POST("/:productId/:locationId/replay", h.Replay)
}

// Get returns the stock record for one (product, location) pair.
// GET /api/v1/stock/:productId/:locationId
func (h *StockHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}
	locationID, ok := h.ParseID(c, "locationId")
	if !ok {
		return
	}

	record, err := h.service.GetStock(c.Request.Context(), productID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, record)
}

// ListByProduct returns stock rows for a product across locations.
// GET /api/v1/stock/by-product/:productId
func (h *StockHandler) ListByProduct(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	records, err := h.service.ListStockByProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, records)
}

// ListByLocation returns stock rows at a location.
// GET /api/v1/stock/by-location/:locationId
func (h *StockHandler) ListByLocation(c *gin.Context) {
	locationID, ok := h.ParseID(c, "locationId")
	if !ok {
		return
	}

	records, err := h.service.ListStockByLocation(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, records)
}

// ListLow returns rows at or below their reorder point.
// GET /api/v1/stock/low?locationId=
func (h *StockHandler) ListLow(c *gin.Context) {
	locationID, ok := h.ParseIDQuery(c, "locationId")
	if !ok {
		return
	}

	records, err := h.service.ListLowStock(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, records)
}

// ListMovements returns movement history, newest first.
// GET /api/v1/stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	filter := ledger.HistoryFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.ProductID, ok = h.ParseIDQuery(c, "productId"); !ok {
		return
	}
	if filter.LocationID, ok = h.ParseIDQuery(c, "locationId"); !ok {
		return
	}
	if mt := c.Query("movementType"); mt != "" {
		movementType := ledger.MovementType(mt)
		filter.MovementType = &movementType
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

	entries, err := h.service.ListHistory(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Paged(c, entries, filter.Limit, filter.Offset)
}

// PostMovement records one stock movement.
// POST /api/v1/stock/movements
func (h *StockHandler) PostMovement(c *gin.Context) {
	var req dto.PostMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entry, err := h.service.Post(c.Request.Context(), req.ToMovement())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entry)
}

// Transfer moves quantity between locations atomically.
// POST /api/v1/stock/transfers
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Transfer(c.Request.Context(), req.ToTransfer())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Reserve earmarks quantity for a pending order.
// POST /api/v1/stock/reservations
func (h *StockHandler) Reserve(c *gin.Context) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, locationID, ok := h.parseReservationIDs(c, req)
	if !ok {
		return
	}

	record, err := h.service.Reserve(c.Request.Context(), productID, locationID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, record)
}

// Release returns reserved quantity to the available pool.
// DELETE /api/v1/stock/reservations
func (h *StockHandler) Release(c *gin.Context) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, locationID, ok := h.parseReservationIDs(c, req)
	if !ok {
		return
	}

	record, err := h.service.Release(c.Request.Context(), productID, locationID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, record)
}

// Replay recomputes a row's balance from its full movement history and
// reports drift without correcting anything.
// POST /api/v1/stock/:productId/:locationId/replay
func (h *StockHandler) Replay(c *gin.Context) {
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}
	locationID, ok := h.ParseID(c, "locationId")
	if !ok {
		return
	}

	result, err := h.service.Replay(c.Request.Context(), productID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

func (h *StockHandler) parseReservationIDs(c *gin.Context, req dto.ReservationRequest) (id.ID, id.ID, bool) {
	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "productId"))
		return id.Nil(), id.Nil(), false
	}
	locationID, err := id.Parse(req.LocationID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "locationId"))
		return id.Nil(), id.Nil(), false
	}
	return productID, locationID, true
}
