// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stokku/internal/domain/catalogs/location"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/domain/costing"
	"stokku/internal/domain/ledger"
	"stokku/internal/domain/opname"
	"stokku/internal/domain/purchasing"
	"stokku/internal/infrastructure/http/v1/handlers"
	"stokku/internal/infrastructure/http/v1/middleware"
	"stokku/internal/infrastructure/storage/postgres"
	"stokku/pkg/logger"
)

// RouterConfig holds everything the router needs wired up.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	// JWTValidator for token validation. Auth is skipped when nil
	// (local development).
	JWTValidator middleware.JWTValidator

	Ledger     *ledger.Service
	Products   *product.Service
	Locations  *location.Service
	Costing    *costing.Service
	Purchasing *purchasing.Service
	Opname     *opname.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Order matters: recovery outermost, then tracing, then logging.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	api := router.Group("/api/v1")
	approverOnly := middleware.RequireRole("manager", "admin")
	if cfg.JWTValidator != nil {
		api.Use(middleware.Auth(cfg.JWTValidator))
	} else {
		// No identity without auth, so role checks are skipped too.
		approverOnly = func(c *gin.Context) {}
	}

	base := handlers.NewBaseHandler()

	handlers.NewProductHandler(base, cfg.Products).RegisterRoutes(api.Group("/products"))
	handlers.NewLocationHandler(base, cfg.Locations).RegisterRoutes(api.Group("/locations"))
	handlers.NewStockHandler(base, cfg.Ledger).RegisterRoutes(api.Group("/stock"))
	handlers.NewCostHandler(base, cfg.Costing).RegisterRoutes(api.Group("/costs"))
	handlers.NewPurchaseOrderHandler(base, cfg.Purchasing).RegisterRoutes(api.Group("/purchase-orders"), approverOnly)
	handlers.NewOpnameHandler(base, cfg.Opname).RegisterRoutes(api.Group("/opnames"), approverOnly)

	return router
}
