// Package main provides a CLI tool for seeding the database with demo
// catalog data: a warehouse, an outlet, and a handful of products with
// cost components.
package main

import (
	"context"
	"fmt"
	"os"

	"stokku/internal/core/entity"
	"stokku/internal/core/types"
	"stokku/internal/domain/catalogs/location"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/domain/costing"
	"stokku/internal/infrastructure/storage/postgres"
	"stokku/internal/infrastructure/storage/postgres/catalog_repo"
	"stokku/internal/infrastructure/storage/postgres/costing_repo"
	"stokku/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	locationRepo := catalog_repo.NewLocationRepo(txm)
	productRepo := catalog_repo.NewProductRepo(txm)
	costingRepo := costing_repo.NewCostingRepo(txm)

	if err := seedLocations(ctx, locationRepo, log); err != nil {
		log.Fatalw("failed to seed locations", "error", err)
	}
	if err := seedProducts(ctx, productRepo, costingRepo, log); err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seedLocations(ctx context.Context, repo *catalog_repo.LocationRepo, log *logger.Logger) error {
	locations := []*location.Location{
		newLocation("WH-01", "Central Warehouse", location.TypeWarehouse, "Jl. Industri Raya 12, Jakarta"),
		newLocation("OUT-01", "Outlet Kemang", location.TypeOutlet, "Jl. Kemang Raya 88, Jakarta"),
		newLocation("STG-01", "Cold Storage", location.TypeStorage, "Jl. Industri Raya 12, Jakarta"),
	}

	for _, l := range locations {
		if existing, err := repo.GetByCode(ctx, l.Code); err == nil && existing != nil {
			log.Infow("location exists, skipping", "code", l.Code)
			continue
		}
		if err := repo.Create(ctx, l); err != nil {
			return err
		}
		log.Infow("created location", "code", l.Code, "name", l.Name)
	}
	return nil
}

func newLocation(code, name string, t location.LocationType, address string) *location.Location {
	return &location.Location{
		Catalog: entity.Catalog{
			BaseEntity: entity.NewBaseEntity(),
			Code:       code,
			Name:       name,
		},
		Type:     t,
		Address:  address,
		IsActive: true,
	}
}

type seedProduct struct {
	code         string
	name         string
	sku          string
	unit         string
	sellingPrice string
	standardCost string
	method       product.CostingMethod
	components   []seedComponent
}

type seedComponent struct {
	componentType costing.ComponentType
	name          string
	quantity      int64
	unitCost      string
}

func seedProducts(ctx context.Context, products *catalog_repo.ProductRepo, costs *costing_repo.CostingRepo, log *logger.Logger) error {
	demo := []seedProduct{
		{
			code: "KOPI-001", name: "Kopi Susu Gula Aren", sku: "SKU-KOPI-001", unit: "cup",
			sellingPrice: "28000", standardCost: "0", method: product.CostingAverage,
			components: []seedComponent{
				{costing.ComponentMaterial, "Arabica beans 18g", 1, "4500"},
				{costing.ComponentMaterial, "Fresh milk 150ml", 1, "2700"},
				{costing.ComponentMaterial, "Aren syrup 20ml", 1, "1300"},
				{costing.ComponentPackaging, "Cup + lid + straw", 1, "1200"},
				{costing.ComponentLabor, "Barista time", 1, "1500"},
				{costing.ComponentOverhead, "Utilities share", 1, "800"},
			},
		},
		{
			code: "ROTI-001", name: "Roti Bakar Coklat", sku: "SKU-ROTI-001", unit: "pcs",
			sellingPrice: "18000", standardCost: "0", method: product.CostingAverage,
			components: []seedComponent{
				{costing.ComponentMaterial, "Bread loaf slice", 2, "2000"},
				{costing.ComponentMaterial, "Chocolate spread 30g", 1, "2500"},
				{costing.ComponentPackaging, "Paper wrap", 1, "500"},
				{costing.ComponentLabor, "Kitchen time", 1, "1000"},
			},
		},
		{
			code: "AIR-001", name: "Air Mineral 600ml", sku: "SKU-AIR-001", unit: "btl",
			sellingPrice: "6000", standardCost: "3200", method: product.CostingStandard,
		},
	}

	for _, sp := range demo {
		if existing, err := products.GetByCode(ctx, sp.code); err == nil && existing != nil {
			log.Infow("product exists, skipping", "code", sp.code)
			continue
		}

		p := &product.Product{
			Catalog: entity.Catalog{
				BaseEntity: entity.NewBaseEntity(),
				Code:       sp.code,
				Name:       sp.name,
			},
			SKU:           sp.sku,
			Unit:          sp.unit,
			SellingPrice:  types.MustMoney(sp.sellingPrice),
			StandardCost:  types.MustMoney(sp.standardCost),
			CostingMethod: sp.method,
			IsActive:      true,
		}
		if err := products.Create(ctx, p); err != nil {
			return err
		}
		log.Infow("created product", "code", p.Code, "name", p.Name)

		for _, sc := range sp.components {
			c := &costing.CostComponent{
				BaseEntity:    entity.NewBaseEntity(),
				ProductID:     p.ID,
				ComponentType: sc.componentType,
				Name:          sc.name,
				Quantity:      types.NewQuantityFromInt(sc.quantity),
				UnitCost:      types.MustMoney(sc.unitCost),
				IsActive:      true,
			}
			if err := costs.CreateComponent(ctx, c); err != nil {
				return err
			}
		}
		if len(sp.components) > 0 {
			log.Infow("created cost components", "code", p.Code, "count", len(sp.components))
		}
	}
	return nil
}
