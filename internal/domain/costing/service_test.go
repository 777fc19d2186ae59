package costing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokku/internal/core/apperror"
	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/domain/ledger"
)

// --- fakes ---

type fakeProductRepo struct {
	products map[id.ID]*product.Product
}

func (f *fakeProductRepo) Create(_ context.Context, p *product.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductRepo) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductRepo) GetByCode(_ context.Context, code string) (*product.Product, error) {
	for _, p := range f.products {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("product", code)
}

func (f *fakeProductRepo) List(_ context.Context, _ product.ListFilter) ([]*product.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) Update(_ context.Context, p *product.Product) error {
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeProductRepo) UpdateCostFields(_ context.Context, p *product.Product) error {
	stored := f.products[p.ID]
	stored.UnitCost = p.UnitCost
	stored.MarginAmount = p.MarginAmount
	stored.MarginPercentage = p.MarginPercentage
	stored.MarkupPercentage = p.MarkupPercentage
	stored.LastCostUpdate = p.LastCostUpdate
	return nil
}

func (f *fakeProductRepo) SetDeletionMark(_ context.Context, _ id.ID, _ bool) error { return nil }

type fakeStockRepo struct {
	records  []*ledger.StockRecord
	receipts []*ledger.MovementEntry
}

func (f *fakeStockRepo) GetRecord(_ context.Context, _, _ id.ID) (*ledger.StockRecord, error) {
	return nil, apperror.NewNotFound("stock record", "")
}

func (f *fakeStockRepo) GetRecordForUpdate(_ context.Context, _, _ id.ID) (*ledger.StockRecord, error) {
	return nil, apperror.NewNotFound("stock record", "")
}

func (f *fakeStockRepo) UpdateRecord(_ context.Context, _ *ledger.StockRecord) error { return nil }

func (f *fakeStockRepo) ListRecordsByProduct(_ context.Context, productID id.ID) ([]*ledger.StockRecord, error) {
	var out []*ledger.StockRecord
	for _, r := range f.records {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStockRepo) ListRecordsByLocation(_ context.Context, _ id.ID) ([]*ledger.StockRecord, error) {
	return nil, nil
}

func (f *fakeStockRepo) ListLowStock(_ context.Context, _ *id.ID) ([]*ledger.StockRecord, error) {
	return nil, nil
}

func (f *fakeStockRepo) InsertEntry(_ context.Context, _ *ledger.MovementEntry) error { return nil }

func (f *fakeStockRepo) LastEntry(_ context.Context, _, _ id.ID) (*ledger.MovementEntry, error) {
	return nil, nil
}

func (f *fakeStockRepo) ListEntries(_ context.Context, _ ledger.HistoryFilter) ([]*ledger.MovementEntry, error) {
	return nil, nil
}

func (f *fakeStockRepo) ListEntriesAsc(_ context.Context, _, _ id.ID) ([]*ledger.MovementEntry, error) {
	return nil, nil
}

func (f *fakeStockRepo) LastReceiptEntry(_ context.Context, productID id.ID) (*ledger.MovementEntry, error) {
	for i := len(f.receipts) - 1; i >= 0; i-- {
		if f.receipts[i].ProductID == productID {
			return f.receipts[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStockRepo) FirstReceiptEntry(_ context.Context, productID id.ID) (*ledger.MovementEntry, error) {
	for _, e := range f.receipts {
		if e.ProductID == productID {
			return e, nil
		}
	}
	return nil, nil
}

type fakeCostRepo struct {
	components map[id.ID]*CostComponent
	history    []*CostHistory
}

func newFakeCostRepo() *fakeCostRepo {
	return &fakeCostRepo{components: make(map[id.ID]*CostComponent)}
}

func (f *fakeCostRepo) CreateComponent(_ context.Context, c *CostComponent) error {
	cp := *c
	f.components[c.ID] = &cp
	return nil
}

func (f *fakeCostRepo) GetComponent(_ context.Context, componentID id.ID) (*CostComponent, error) {
	c, ok := f.components[componentID]
	if !ok {
		return nil, apperror.NewNotFound("cost component", componentID)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCostRepo) ListComponents(_ context.Context, productID id.ID, activeOnly bool) ([]*CostComponent, error) {
	var out []*CostComponent
	for _, c := range f.components {
		if c.ProductID != productID {
			continue
		}
		if activeOnly && !c.IsActive {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeCostRepo) UpdateComponent(_ context.Context, c *CostComponent) error {
	cp := *c
	f.components[c.ID] = &cp
	return nil
}

func (f *fakeCostRepo) DeleteComponent(_ context.Context, componentID id.ID) error {
	delete(f.components, componentID)
	return nil
}

func (f *fakeCostRepo) InsertHistory(_ context.Context, h *CostHistory) error {
	cp := *h
	f.history = append(f.history, &cp)
	return nil
}

func (f *fakeCostRepo) ListHistory(_ context.Context, productID id.ID, _, _ int) ([]*CostHistory, error) {
	var out []*CostHistory
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].ProductID == productID {
			out = append(out, f.history[i])
		}
	}
	return out, nil
}

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTxManager) RunWithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTxManager) InTransaction(context.Context) bool { return false }

type fixture struct {
	svc      *Service
	products *fakeProductRepo
	stock    *fakeStockRepo
	repo     *fakeCostRepo
}

func newFixture() *fixture {
	products := &fakeProductRepo{products: make(map[id.ID]*product.Product)}
	stock := &fakeStockRepo{}
	repo := newFakeCostRepo()
	return &fixture{
		svc:      NewService(repo, products, stock, nil, passthroughTxManager{}),
		products: products,
		stock:    stock,
		repo:     repo,
	}
}

func (fx *fixture) addProduct(method product.CostingMethod, sellingPrice string) *product.Product {
	p := &product.Product{
		Catalog: entity.Catalog{
			BaseEntity: entity.NewBaseEntity(),
			Code:       "P-" + id.New().String()[:8],
			Name:       "test product",
		},
		CostingMethod: method,
		SellingPrice:  types.MustMoney(sellingPrice),
		IsActive:      true,
	}
	fx.products.products[p.ID] = p
	return p
}

func (fx *fixture) addStock(productID id.ID, onHand float64, avgCost string) {
	fx.stock.records = append(fx.stock.records, &ledger.StockRecord{
		ProductID:      productID,
		LocationID:     id.New(),
		QuantityOnHand: types.NewQuantityFromFloat64(onHand),
		AverageCost:    decimal.NullDecimal{Decimal: types.MustMoney(avgCost), Valid: true},
	})
}

func (fx *fixture) addReceipt(productID id.ID, unitCost string) {
	fx.stock.receipts = append(fx.stock.receipts, &ledger.MovementEntry{
		ID:           id.New(),
		ProductID:    productID,
		MovementType: ledger.MovementReceipt,
		UnitCost:     decimal.NullDecimal{Decimal: types.MustMoney(unitCost), Valid: true},
	})
}

// --- tests ---

func TestCalculateAverageAcrossLocations(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingAverage, "2000")
	// 100 @ 1000 at one location, 50 @ 1200 at another -> 1066.67
	fx.addStock(p.ID, 100, "1000")
	fx.addStock(p.ID, 50, "1200")

	result, err := fx.svc.Calculate(context.Background(), CalculateRequest{
		ProductID: p.ID, Reason: ReasonManual,
	})
	require.NoError(t, err)
	assert.Equal(t, "1066.67", result.CalculatedHPP.StringFixed(2))
	assert.True(t, result.Changed)

	stored := fx.products.products[p.ID]
	assert.Equal(t, "1066.67", stored.UnitCost.StringFixed(2))
	assert.Equal(t, "933.33", stored.MarginAmount.StringFixed(2))
	require.Len(t, fx.repo.history, 1)
	assert.Equal(t, "0.00", fx.repo.history[0].OldCost.StringFixed(2))
	assert.Equal(t, "1066.67", fx.repo.history[0].NewCost.StringFixed(2))
}

func TestCalculateIsIdempotent(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingAverage, "2000")
	fx.addStock(p.ID, 10, "500")

	ctx := context.Background()
	first, err := fx.svc.Calculate(ctx, CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	require.Len(t, fx.repo.history, 1)

	// Same inputs: same HPP, no new history row.
	second, err := fx.svc.Calculate(ctx, CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.True(t, second.CalculatedHPP.Equal(first.CalculatedHPP))
	assert.Len(t, fx.repo.history, 1)
}

func TestCalculateWithComponents(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingAverage, "5000")
	fx.addStock(p.ID, 10, "1000")

	for _, c := range []*CostComponent{
		{ProductID: p.ID, ComponentType: ComponentPackaging, Name: "box", Quantity: types.NewQuantityFromInt(1), UnitCost: types.MustMoney("200")},
		{ProductID: p.ID, ComponentType: ComponentLabor, Name: "assembly", Quantity: types.NewQuantityFromInt(2), UnitCost: types.MustMoney("150")},
		{ProductID: p.ID, ComponentType: ComponentOverhead, Name: "utilities", Quantity: types.NewQuantityFromInt(1), UnitCost: types.MustMoney("100")},
	} {
		require.NoError(t, fx.svc.CreateComponent(context.Background(), c))
	}

	result, err := fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	// 1000 + 200 + 300 + 100
	assert.Equal(t, "1600.00", result.CalculatedHPP.StringFixed(2))
	assert.Equal(t, "200.00", result.PackagingCost.StringFixed(2))
	assert.Equal(t, "300.00", result.LaborCost.StringFixed(2))
	assert.Equal(t, "100.00", result.OverheadCost.StringFixed(2))
}

func TestMaterialComponentsAreFallbackBasisOnly(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingAverage, "0")
	require.NoError(t, fx.svc.CreateComponent(context.Background(), &CostComponent{
		ProductID:     p.ID,
		ComponentType: ComponentMaterial,
		Name:          "flour",
		Quantity:      types.NewQuantityFromInt(2),
		UnitCost:      types.MustMoney("300"),
	}))

	// No purchase history: material sum is the basis.
	result, err := fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.Equal(t, "600.00", result.CalculatedHPP.StringFixed(2))

	// Once a receipt exists, its cost wins and material is ignored.
	fx.addReceipt(p.ID, "450")
	result, err = fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.Equal(t, "450.00", result.CalculatedHPP.StringFixed(2))
}

func TestFIFOAndLIFOTakeBoundaryReceipts(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingFIFO, "0")
	fx.addReceipt(p.ID, "100")
	fx.addReceipt(p.ID, "130")
	fx.addReceipt(p.ID, "160")

	fifo, err := fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.Equal(t, "100.00", fifo.CalculatedHPP.StringFixed(2))

	lifo, err := fx.svc.Calculate(context.Background(), CalculateRequest{
		ProductID: p.ID, Method: product.CostingLIFO, Reason: ReasonMethodChanged,
	})
	require.NoError(t, err)
	assert.Equal(t, "160.00", lifo.CalculatedHPP.StringFixed(2))
}

func TestStandardMethodUsesStandardCost(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingStandard, "0")
	p.StandardCost = types.MustMoney("750")
	fx.addReceipt(p.ID, "9999") // must be ignored

	result, err := fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.Equal(t, "750.00", result.CalculatedHPP.StringFixed(2))
}

func TestZeroGuards(t *testing.T) {
	fx := newFixture()

	// sellingPrice = 0 -> marginPercentage 0, not a division error.
	p := fx.addProduct(product.CostingAverage, "0")
	fx.addStock(p.ID, 5, "100")
	result, err := fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.True(t, result.MarginPercentage.IsZero())
	assert.Equal(t, "-100.00", result.MarginAmount.StringFixed(2))

	// hpp = 0 -> markupPercentage 0.
	p2 := fx.addProduct(product.CostingAverage, "1000")
	result, err = fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p2.ID, Reason: ReasonManual})
	require.NoError(t, err)
	assert.True(t, result.CalculatedHPP.IsZero())
	assert.True(t, result.MarkupPercentage.IsZero())
	// oldHpp = 0 and newHpp = 0: nothing changed, no history.
	assert.False(t, result.Changed)
}

func TestChangePercentageGuardsZeroOldCost(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingAverage, "0")
	fx.addStock(p.ID, 5, "100")

	_, err := fx.svc.Calculate(context.Background(), CalculateRequest{ProductID: p.ID, Reason: ReasonManual})
	require.NoError(t, err)
	require.Len(t, fx.repo.history, 1)
	assert.True(t, fx.repo.history[0].ChangePercentage.IsZero(), "oldHpp 0 must yield 0 change pct")
}

func TestComponentLifecycleTriggersRecalc(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingAverage, "0")
	fx.addStock(p.ID, 1, "1000")
	ctx := context.Background()

	c := &CostComponent{
		ProductID:     p.ID,
		ComponentType: ComponentPackaging,
		Name:          "wrap",
		Quantity:      types.NewQuantityFromInt(1),
		UnitCost:      types.MustMoney("50"),
	}
	require.NoError(t, fx.svc.CreateComponent(ctx, c))
	assert.Equal(t, "1050.00", fx.products.products[p.ID].UnitCost.StringFixed(2))

	c.UnitCost = types.MustMoney("80")
	require.NoError(t, fx.svc.UpdateComponent(ctx, c))
	assert.Equal(t, "1080.00", fx.products.products[p.ID].UnitCost.StringFixed(2))

	require.NoError(t, fx.svc.DeleteComponent(ctx, c.ID))
	assert.Equal(t, "1000.00", fx.products.products[p.ID].UnitCost.StringFixed(2))
}

func TestComponentValidation(t *testing.T) {
	fx := newFixture()
	p := fx.addProduct(product.CostingAverage, "0")
	ctx := context.Background()

	err := fx.svc.CreateComponent(ctx, &CostComponent{
		ProductID: p.ID, ComponentType: "bogus", Name: "x",
		Quantity: types.NewQuantityFromInt(1), UnitCost: types.MustMoney("1"),
	})
	require.Error(t, err)

	err = fx.svc.CreateComponent(ctx, &CostComponent{
		ProductID: p.ID, ComponentType: ComponentLabor, Name: "x",
		Quantity: 0, UnitCost: types.MustMoney("1"),
	})
	require.Error(t, err)

	err = fx.svc.CreateComponent(ctx, &CostComponent{
		ProductID: p.ID, ComponentType: ComponentLabor, Name: "x",
		Quantity: types.NewQuantityFromInt(1), UnitCost: types.MustMoney("-1"),
	})
	require.Error(t, err)
}
