package costing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stokku/internal/core/apperror"
	appctx "stokku/internal/core/context"
	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/internal/core/tx"
	"stokku/internal/core/types"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/domain/ledger"
	"stokku/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// Service runs cost calculations. Reads ledger history and stock
// balances; writes CostHistory rows and the product's cached cost
// fields. Never runs inside a stock-posting transaction.
type Service struct {
	repo     Repository
	products product.Repository
	stock    ledger.Repository
	cache    product.Cache
	txm      tx.Manager
}

// NewService creates a costing service. cache may be nil.
func NewService(repo Repository, products product.Repository, stock ledger.Repository, cache product.Cache, txm tx.Manager) *Service {
	return &Service{repo: repo, products: products, stock: stock, cache: cache, txm: txm}
}

// Calculate computes HPP for a product under the requested method and
// persists the outcome only when the value actually changed. Calling it
// twice with unchanged inputs writes nothing the second time.
func (s *Service) Calculate(ctx context.Context, req CalculateRequest) (*Result, error) {
	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = p.CostingMethod
	}
	if !method.IsValid() {
		return nil, apperror.NewValidation("unknown costing method: " + string(method))
	}

	components, err := s.repo.ListComponents(ctx, req.ProductID, true)
	if err != nil {
		return nil, err
	}

	purchasePrice, err := s.purchasePrice(ctx, p, method, components)
	if err != nil {
		return nil, err
	}

	var packaging, labor, overhead types.Money
	for _, c := range components {
		switch c.ComponentType {
		case ComponentPackaging:
			packaging = packaging.Add(c.Total())
		case ComponentLabor:
			labor = labor.Add(c.Total())
		case ComponentOverhead:
			overhead = overhead.Add(c.Total())
		}
	}

	hpp := types.RoundMoney(purchasePrice.Add(packaging).Add(labor).Add(overhead))

	result := &Result{
		ProductID:     p.ID,
		Method:        method,
		PurchasePrice: types.RoundMoney(purchasePrice),
		PackagingCost: types.RoundMoney(packaging),
		LaborCost:     types.RoundMoney(labor),
		OverheadCost:  types.RoundMoney(overhead),
		CalculatedHPP: hpp,
		SellingPrice:  p.SellingPrice,
	}
	result.MarginAmount = types.RoundMoney(p.SellingPrice.Sub(hpp))
	if p.SellingPrice.IsZero() {
		result.MarginPercentage = types.Zero()
	} else {
		result.MarginPercentage = types.RoundMoney(result.MarginAmount.Div(p.SellingPrice).Mul(hundred))
	}
	if hpp.IsZero() {
		result.MarkupPercentage = types.Zero()
	} else {
		result.MarkupPercentage = types.RoundMoney(result.MarginAmount.Div(hpp).Mul(hundred))
	}

	oldHPP := p.UnitCost
	if hpp.Equal(oldHPP) {
		return result, nil
	}
	result.Changed = true

	changeAmount := hpp.Sub(oldHPP)
	changePct := types.Zero()
	if !oldHPP.IsZero() {
		changePct = types.RoundMoney(changeAmount.Div(oldHPP).Mul(hundred))
	}

	now := time.Now().UTC()
	history := &CostHistory{
		ID:               id.New(),
		ProductID:        p.ID,
		OldCost:          oldHPP,
		NewCost:          hpp,
		ChangeAmount:     types.RoundMoney(changeAmount),
		ChangePercentage: changePct,
		PurchasePrice:    result.PurchasePrice,
		PackagingCost:    result.PackagingCost,
		LaborCost:        result.LaborCost,
		OverheadCost:     result.OverheadCost,
		Method:           method,
		Reason:           req.Reason,
		ReferenceType:    req.ReferenceType,
		ReferenceID:      req.ReferenceID,
		CreatedAt:        now,
		CreatedBy:        appctx.GetUserID(ctx),
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertHistory(ctx, history); err != nil {
			return err
		}
		p.UnitCost = hpp
		p.MarginAmount = result.MarginAmount
		p.MarginPercentage = result.MarginPercentage
		p.MarkupPercentage = result.MarkupPercentage
		p.LastCostUpdate = &now
		return s.products.UpdateCostFields(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, p.ID)
	}
	logger.Info(ctx, "unit cost changed",
		"product_id", p.ID,
		"old_cost", oldHPP.StringFixed(2),
		"new_cost", hpp.StringFixed(2),
		"method", method,
		"reason", req.Reason)
	return result, nil
}

// purchasePrice derives the purchase-price basis of HPP per method.
// Fallback order when history yields nothing: last receipt cost, then
// the sum of active material components, then zero.
func (s *Service) purchasePrice(ctx context.Context, p *product.Product, method product.CostingMethod, components []*CostComponent) (types.Money, error) {
	switch method {
	case product.CostingStandard:
		return p.StandardCost, nil

	case product.CostingFIFO:
		entry, err := s.stock.FirstReceiptEntry(ctx, p.ID)
		if err != nil {
			return types.Zero(), err
		}
		if entry != nil && entry.UnitCost.Valid {
			return entry.UnitCost.Decimal, nil
		}

	case product.CostingLIFO:
		entry, err := s.stock.LastReceiptEntry(ctx, p.ID)
		if err != nil {
			return types.Zero(), err
		}
		if entry != nil && entry.UnitCost.Valid {
			return entry.UnitCost.Decimal, nil
		}

	case product.CostingAverage:
		records, err := s.stock.ListRecordsByProduct(ctx, p.ID)
		if err != nil {
			return types.Zero(), err
		}
		var totalQty types.Quantity
		totalValue := types.Zero()
		for _, r := range records {
			if r.QuantityOnHand <= 0 || !r.AverageCost.Valid {
				continue
			}
			totalQty += r.QuantityOnHand
			totalValue = totalValue.Add(r.QuantityOnHand.Decimal().Mul(r.AverageCost.Decimal))
		}
		if totalQty > 0 {
			return totalValue.Div(totalQty.Decimal()), nil
		}
	}

	// No stock valuation yet: fall back to the last known receipt.
	entry, err := s.stock.LastReceiptEntry(ctx, p.ID)
	if err != nil {
		return types.Zero(), err
	}
	if entry != nil && entry.UnitCost.Valid {
		return entry.UnitCost.Decimal, nil
	}

	// Never purchased: material components are the basis.
	material := types.Zero()
	for _, c := range components {
		if c.ComponentType == ComponentMaterial {
			material = material.Add(c.Total())
		}
	}
	return material, nil
}

// --- Component management ---

// CreateComponent adds a cost component and recalculates the product.
func (s *Service) CreateComponent(ctx context.Context, c *CostComponent) error {
	if err := validateComponent(c); err != nil {
		return err
	}
	if _, err := s.products.GetByID(ctx, c.ProductID); err != nil {
		return err
	}

	c.BaseEntity = entity.NewBaseEntity()
	c.IsActive = true
	if err := s.repo.CreateComponent(ctx, c); err != nil {
		return err
	}
	return s.recalcAfterComponentChange(ctx, c.ProductID)
}

// UpdateComponent stores component changes and recalculates the product.
func (s *Service) UpdateComponent(ctx context.Context, c *CostComponent) error {
	if err := validateComponent(c); err != nil {
		return err
	}
	current, err := s.repo.GetComponent(ctx, c.ID)
	if err != nil {
		return err
	}
	if current.Version != c.Version {
		return apperror.NewConcurrentModification("cost component", c.ID)
	}

	c.ProductID = current.ProductID
	c.Touch()
	if err := s.repo.UpdateComponent(ctx, c); err != nil {
		return err
	}
	return s.recalcAfterComponentChange(ctx, c.ProductID)
}

// DeleteComponent removes a component and recalculates the product.
func (s *Service) DeleteComponent(ctx context.Context, componentID id.ID) error {
	c, err := s.repo.GetComponent(ctx, componentID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteComponent(ctx, componentID); err != nil {
		return err
	}
	return s.recalcAfterComponentChange(ctx, c.ProductID)
}

// GetComponent returns one cost component.
func (s *Service) GetComponent(ctx context.Context, componentID id.ID) (*CostComponent, error) {
	return s.repo.GetComponent(ctx, componentID)
}

// ListComponents returns a product's cost components.
func (s *Service) ListComponents(ctx context.Context, productID id.ID, activeOnly bool) ([]*CostComponent, error) {
	return s.repo.ListComponents(ctx, productID, activeOnly)
}

// ListHistory returns a product's cost changes, newest first.
func (s *Service) ListHistory(ctx context.Context, productID id.ID, limit, offset int) ([]*CostHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListHistory(ctx, productID, limit, offset)
}

func (s *Service) recalcAfterComponentChange(ctx context.Context, productID id.ID) error {
	_, err := s.Calculate(ctx, CalculateRequest{
		ProductID: productID,
		Reason:    ReasonComponentChanged,
	})
	return err
}

func validateComponent(c *CostComponent) error {
	if id.IsNil(c.ProductID) && id.IsNil(c.ID) {
		return apperror.NewValidation("productId is required")
	}
	if !c.ComponentType.IsValid() {
		return apperror.NewValidation("unknown component type: " + string(c.ComponentType))
	}
	if c.Name == "" {
		return apperror.NewValidation("name is required")
	}
	if c.Quantity <= 0 {
		return apperror.NewValidation("quantity must be positive")
	}
	if c.UnitCost.IsNegative() {
		return apperror.NewValidation("unitCost must not be negative")
	}
	return nil
}
