// Package main is the entry point for the stokku API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stokku/internal/config"
	"stokku/internal/core/auth"
	"stokku/internal/domain/catalogs/location"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/domain/costing"
	"stokku/internal/domain/ledger"
	"stokku/internal/domain/opname"
	"stokku/internal/domain/purchasing"
	"stokku/internal/infrastructure/cache"
	v1 "stokku/internal/infrastructure/http/v1"
	"stokku/internal/infrastructure/http/v1/middleware"
	"stokku/internal/infrastructure/storage/postgres"
	"stokku/internal/infrastructure/storage/postgres/catalog_repo"
	"stokku/internal/infrastructure/storage/postgres/costing_repo"
	"stokku/internal/infrastructure/storage/postgres/ledger_repo"
	"stokku/internal/infrastructure/storage/postgres/opname_repo"
	"stokku/internal/infrastructure/storage/postgres/purchasing_repo"
	"stokku/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stokku server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool)

	// --- Product cache ---
	var productCache product.Cache
	if cfg.RedisAddr != "" {
		redisClient := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
		productCache = cache.NewProductCache(redisClient, cfg.CacheTTL)
		log.Infow("product cache enabled", "addr", cfg.RedisAddr)
	}

	// --- Repositories ---
	productRepo := catalog_repo.NewProductRepo(txm)
	locationRepo := catalog_repo.NewLocationRepo(txm)
	stockRepo := ledger_repo.NewStockRepo(txm)
	costingRepo := costing_repo.NewCostingRepo(txm)
	orderRepo := purchasing_repo.NewOrderRepo(txm)
	opnameRepo := opname_repo.NewOpnameRepo(txm)
	freezeCheck := opname_repo.NewFreezeCheck(txm)

	auditService, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Services ---
	productService := product.NewService(productRepo, productCache)
	locationService := location.NewService(locationRepo)
	ledgerService := ledger.NewService(stockRepo, freezeCheck, txm)
	costingService := costing.NewService(costingRepo, productRepo, stockRepo, productCache, txm)
	purchasingService := purchasing.NewService(orderRepo, ledgerService, costingService, txm, auditService)
	opnameService := opname.NewService(opnameRepo, ledgerService, ledgerService, productRepo, txm, auditService)

	// --- JWT ---
	var jwtValidator middleware.JWTValidator
	if cfg.JWTSecret != "" {
		jwtValidator = auth.NewJWTService(auth.Config{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
	} else if !cfg.IsDevelopment() {
		log.Fatal("JWT_SECRET is required outside development")
	} else {
		log.Warn("JWT_SECRET not set, authentication disabled")
	}

	// --- Router and server ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtValidator,
		Ledger:       ledgerService,
		Products:     productService,
		Locations:    locationService,
		Costing:      costingService,
		Purchasing:   purchasingService,
		Opname:       opnameService,
	})

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
