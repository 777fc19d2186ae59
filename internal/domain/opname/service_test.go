package opname

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/catalogs/product"
	"stokku/internal/domain/ledger"
)

// --- fakes ---

type fakeOpnameRepo struct {
	sessions map[id.ID]*StockOpname
	items    map[id.ID]*Item
	seq      int
}

func newFakeOpnameRepo() *fakeOpnameRepo {
	return &fakeOpnameRepo{
		sessions: make(map[id.ID]*StockOpname),
		items:    make(map[id.ID]*Item),
	}
}

func (f *fakeOpnameRepo) Create(_ context.Context, o *StockOpname) error {
	cp := *o
	cp.Items = nil
	f.sessions[o.ID] = &cp
	return nil
}

func (f *fakeOpnameRepo) GetByID(_ context.Context, opnameID id.ID) (*StockOpname, error) {
	o, ok := f.sessions[opnameID]
	if !ok {
		return nil, apperror.NewNotFound("stock opname", opnameID)
	}
	cp := *o
	cp.Items = nil
	for _, item := range f.items {
		if item.OpnameID == opnameID {
			ic := *item
			cp.Items = append(cp.Items, &ic)
		}
	}
	return &cp, nil
}

func (f *fakeOpnameRepo) GetByIDForUpdate(ctx context.Context, opnameID id.ID) (*StockOpname, error) {
	return f.GetByID(ctx, opnameID)
}

func (f *fakeOpnameRepo) List(_ context.Context, _ ListFilter) ([]*StockOpname, error) {
	return nil, nil
}

func (f *fakeOpnameRepo) UpdateHeader(_ context.Context, o *StockOpname) error {
	cp := *o
	cp.Items = nil
	f.sessions[o.ID] = &cp
	return nil
}

func (f *fakeOpnameRepo) CreateItems(_ context.Context, items []*Item) error {
	for _, item := range items {
		ic := *item
		f.items[item.ID] = &ic
	}
	return nil
}

func (f *fakeOpnameRepo) GetItem(_ context.Context, itemID id.ID) (*Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("opname item", itemID)
	}
	ic := *item
	return &ic, nil
}

func (f *fakeOpnameRepo) UpdateItem(_ context.Context, item *Item) error {
	ic := *item
	f.items[item.ID] = &ic
	return nil
}

func (f *fakeOpnameRepo) NextNumber(_ context.Context) (string, error) {
	f.seq++
	return "SO-202609-000" + string(rune('0'+f.seq)), nil
}

type fakeStock struct {
	records    map[string]*ledger.StockRecord
	posts      []ledger.MovementRequest
	failOn     id.ID
	contention int // fail this many posts with a lock-contention error first
}

func stockKey(productID, locationID id.ID) string {
	return productID.String() + "/" + locationID.String()
}

func (f *fakeStock) GetStock(_ context.Context, productID, locationID id.ID) (*ledger.StockRecord, error) {
	if r, ok := f.records[stockKey(productID, locationID)]; ok {
		cp := *r
		return &cp, nil
	}
	return &ledger.StockRecord{ProductID: productID, LocationID: locationID}, nil
}

func (f *fakeStock) ListStockByLocation(_ context.Context, locationID id.ID) ([]*ledger.StockRecord, error) {
	var out []*ledger.StockRecord
	for _, r := range f.records {
		if r.LocationID == locationID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStock) Post(_ context.Context, req ledger.MovementRequest) (*ledger.MovementEntry, error) {
	if f.contention > 0 {
		f.contention--
		return nil, apperror.NewContention("stock record", req.ProductID.String())
	}
	if req.ProductID == f.failOn {
		return nil, apperror.NewNegativeStock(req.ProductID.String(), req.LocationID.String(), req.Quantity.Float64(), 0)
	}
	f.posts = append(f.posts, req)
	return &ledger.MovementEntry{ID: id.New()}, nil
}

type fakeProducts struct {
	products map[id.ID]*product.Product
}

func (f *fakeProducts) Create(_ context.Context, p *product.Product) error { return nil }

func (f *fakeProducts) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	if p, ok := f.products[productID]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", productID)
}

func (f *fakeProducts) GetByCode(_ context.Context, _ string) (*product.Product, error) {
	return nil, apperror.NewNotFound("product", "")
}

func (f *fakeProducts) List(_ context.Context, _ product.ListFilter) ([]*product.Product, error) {
	return nil, nil
}

func (f *fakeProducts) Update(_ context.Context, _ *product.Product) error           { return nil }
func (f *fakeProducts) UpdateCostFields(_ context.Context, _ *product.Product) error { return nil }
func (f *fakeProducts) SetDeletionMark(_ context.Context, _ id.ID, _ bool) error     { return nil }

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTxManager) RunWithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTxManager) InTransaction(context.Context) bool { return false }

type fixture struct {
	svc   *Service
	repo  *fakeOpnameRepo
	stock *fakeStock
}

func newFixture() *fixture {
	repo := newFakeOpnameRepo()
	stock := &fakeStock{records: make(map[string]*ledger.StockRecord)}
	products := &fakeProducts{products: make(map[id.ID]*product.Product)}
	return &fixture{
		svc:   NewService(repo, stock, stock, products, passthroughTxManager{}, nil),
		repo:  repo,
		stock: stock,
	}
}

func (fx *fixture) seedStock(productID, locationID id.ID, onHand float64, avgCost string) {
	fx.stock.records[stockKey(productID, locationID)] = &ledger.StockRecord{
		ProductID:      productID,
		LocationID:     locationID,
		QuantityOnHand: types.NewQuantityFromFloat64(onHand),
		AverageCost:    decimal.NullDecimal{Decimal: types.MustMoney(avgCost), Valid: true},
	}
}

func (fx *fixture) startedCycle(t *testing.T, locationID id.ID, productIDs ...id.ID) *StockOpname {
	t.Helper()
	ctx := context.Background()
	o, err := fx.svc.Create(ctx, CreateRequest{
		Type:            TypeCycle,
		LocationID:      locationID,
		FreezeInventory: true,
		ProductIDs:      productIDs,
	})
	require.NoError(t, err)
	o, err = fx.svc.Start(ctx, o.ID)
	require.NoError(t, err)
	return o
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

// --- tests ---

func TestClassifyVarianceThresholds(t *testing.T) {
	pct := func(s string) types.Money { return types.MustMoney(s) }

	tests := []struct {
		name     string
		diff     types.Quantity
		pctVal   types.Money
		value    types.Money
		expected VarianceCategory
	}{
		{"zero difference", 0, pct("0"), pct("0"), VarianceNone},
		{"small nonzero", qty(1), pct("0.5"), pct("1500"), VarianceMinor},
		{"exactly 2 pct stays minor", qty(2), pct("2"), pct("3000"), VarianceMinor},
		{"above 2 pct", qty(3), pct("2.5"), pct("4500"), VarianceModerate},
		{"exactly 100k stays minor", qty(1), pct("1"), pct("100000"), VarianceMinor},
		{"above 100k", qty(1), pct("1"), pct("100000.01"), VarianceModerate},
		{"exactly 5 pct stays moderate", qty(5), pct("5"), pct("7500"), VarianceModerate},
		{"above 5 pct", qty(6), pct("5.1"), pct("9000"), VarianceMajor},
		{"exactly 500k stays moderate", qty(1), pct("1"), pct("500000"), VarianceModerate},
		{"above 500k", qty(1), pct("1"), pct("500000.01"), VarianceMajor},
		{"negative large pct", qty(-10), pct("-8"), pct("-12000"), VarianceMajor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyVariance(tt.diff, tt.pctVal, tt.value))
		})
	}
}

func TestRecordCountDerivesVariance(t *testing.T) {
	fx := newFixture()
	productID, locationID := id.New(), id.New()
	// System 120, counted 118, cost 15000: diff -2, pct -1.67, value -30000 -> minor.
	fx.seedStock(productID, locationID, 120, "15000")
	o := fx.startedCycle(t, locationID, productID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, qty(120), o.Items[0].SystemStock)

	item, err := fx.svc.RecordCount(context.Background(), o.Items[0].ID, qty(118), "")
	require.NoError(t, err)
	assert.Equal(t, ItemCounted, item.Status)
	assert.Equal(t, qty(-2), item.Difference)
	assert.Equal(t, "-1.67", item.VariancePercentage.StringFixed(2))
	assert.Equal(t, "-30000.00", item.VarianceValue.StringFixed(2))
	assert.Equal(t, VarianceMinor, item.VarianceCategory)

	stored, err := fx.svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CountedItems)
	assert.Equal(t, 1, stored.ItemsWithVariance)
}

func TestZeroSystemStockHasZeroPercentage(t *testing.T) {
	fx := newFixture()
	productID, locationID := id.New(), id.New()
	o := fx.startedCycle(t, locationID, productID)

	item, err := fx.svc.RecordCount(context.Background(), o.Items[0].ID, qty(7), "")
	require.NoError(t, err)
	assert.Equal(t, qty(7), item.Difference)
	assert.True(t, item.VariancePercentage.IsZero())
	assert.Equal(t, VarianceMinor, item.VarianceCategory)
}

func TestRecountOverwritesAndClearsFlag(t *testing.T) {
	fx := newFixture()
	productID, locationID := id.New(), id.New()
	fx.seedStock(productID, locationID, 100, "1000")
	o := fx.startedCycle(t, locationID, productID)
	ctx := context.Background()
	itemID := o.Items[0].ID

	_, err := fx.svc.RecordCount(ctx, itemID, qty(80), "")
	require.NoError(t, err)

	item, err := fx.svc.RequireRecount(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, item.RecountRequired)

	// Verify is blocked while a recount is outstanding.
	_, err = fx.svc.Verify(ctx, itemID)
	require.Error(t, err)

	item, err = fx.svc.Recount(ctx, itemID, qty(98))
	require.NoError(t, err)
	assert.False(t, item.RecountRequired)
	assert.Equal(t, ItemCounted, item.Status)
	assert.Equal(t, qty(-2), item.Difference)
	require.NotNil(t, item.RecountValue)
	assert.Equal(t, qty(98), *item.RecountValue)

	_, err = fx.svc.Verify(ctx, itemID)
	require.NoError(t, err)
}

func TestApprovePostsAdjustmentsAndCompletes(t *testing.T) {
	fx := newFixture()
	locationID := id.New()
	p1, p2, p3 := id.New(), id.New(), id.New()
	fx.seedStock(p1, locationID, 100, "1000")
	fx.seedStock(p2, locationID, 50, "2000")
	fx.seedStock(p3, locationID, 30, "500")
	o := fx.startedCycle(t, locationID, p1, p2, p3)
	ctx := context.Background()

	byProduct := make(map[id.ID]*Item)
	for _, item := range o.Items {
		byProduct[item.ProductID] = item
	}

	// p1 short by 5, p2 over by 2, p3 exact.
	_, err := fx.svc.RecordCount(ctx, byProduct[p1].ID, qty(95), "")
	require.NoError(t, err)
	_, err = fx.svc.RecordCount(ctx, byProduct[p2].ID, qty(52), "")
	require.NoError(t, err)
	_, err = fx.svc.RecordCount(ctx, byProduct[p3].ID, qty(30), "")
	require.NoError(t, err)

	_, err = fx.svc.Verify(ctx, byProduct[p2].ID)
	require.NoError(t, err)
	_, err = fx.svc.Verify(ctx, byProduct[p3].ID)
	require.NoError(t, err)
	_, err = fx.svc.Investigate(ctx, byProduct[p1].ID, "breakage during handling", "retrain staff", "")
	require.NoError(t, err)

	approved, err := fx.svc.Approve(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, approved.Status)
	assert.NotNil(t, approved.CompletedAt)

	// Only non-zero differences post, signed by the difference.
	require.Len(t, fx.stock.posts, 2)
	posted := make(map[id.ID]types.Quantity)
	for _, post := range fx.stock.posts {
		assert.Equal(t, ledger.MovementAdjustment, post.MovementType)
		assert.Equal(t, ledger.RefOpname, post.ReferenceType)
		assert.Equal(t, o.ID.String(), post.ReferenceID)
		posted[post.ProductID] = post.Quantity
	}
	assert.Equal(t, qty(-5), posted[p1])
	assert.Equal(t, qty(2), posted[p2])

	// -5*1000 + 2*2000 + 0 = -1000
	assert.Equal(t, "-1000.00", approved.TotalVarianceValue.StringFixed(2))
	for _, item := range approved.Items {
		assert.Equal(t, ItemApproved, item.Status)
	}
}

func TestApproveRequiresResolvedItems(t *testing.T) {
	fx := newFixture()
	productID, locationID := id.New(), id.New()
	fx.seedStock(productID, locationID, 10, "100")
	o := fx.startedCycle(t, locationID, productID)
	ctx := context.Background()
	itemID := o.Items[0].ID

	// Uncounted item blocks approval.
	_, err := fx.svc.Approve(ctx, o.ID)
	require.Error(t, err)

	_, err = fx.svc.RecordCount(ctx, itemID, qty(9), "")
	require.NoError(t, err)

	// Counted but not verified/investigated still blocks.
	_, err = fx.svc.Approve(ctx, o.ID)
	require.Error(t, err)

	// Investigated without a root cause blocks too.
	_, err = fx.svc.Investigate(ctx, itemID, "", "", "")
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, o.ID)
	require.Error(t, err)

	_, err = fx.svc.Investigate(ctx, itemID, "miscount at intake", "", "")
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, o.ID)
	require.NoError(t, err)
}

func TestApproveRollsBackWhenAdjustmentFails(t *testing.T) {
	fx := newFixture()
	productID, locationID := id.New(), id.New()
	fx.seedStock(productID, locationID, 10, "100")
	o := fx.startedCycle(t, locationID, productID)
	ctx := context.Background()

	_, err := fx.svc.RecordCount(ctx, o.Items[0].ID, qty(8), "")
	require.NoError(t, err)
	_, err = fx.svc.Verify(ctx, o.Items[0].ID)
	require.NoError(t, err)

	fx.stock.failOn = productID
	_, err = fx.svc.Approve(ctx, o.ID)
	require.Error(t, err)

	stored, err := fx.svc.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, stored.Status, "failed approval must not complete the session")
}

func TestApproveRetriesLockContention(t *testing.T) {
	fx := newFixture()
	productID, locationID := id.New(), id.New()
	fx.seedStock(productID, locationID, 10, "100")
	o := fx.startedCycle(t, locationID, productID)
	ctx := context.Background()

	_, err := fx.svc.RecordCount(ctx, o.Items[0].ID, qty(8), "")
	require.NoError(t, err)
	_, err = fx.svc.Verify(ctx, o.Items[0].ID)
	require.NoError(t, err)

	// The first adjustment times out on the stock row lock; the whole
	// approval transaction replays and completes on the second attempt.
	fx.stock.contention = 1
	approved, err := fx.svc.Approve(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, approved.Status)
	assert.Len(t, fx.stock.posts, 1)
}

func TestFullCountSnapshotsLocation(t *testing.T) {
	fx := newFixture()
	locationID := id.New()
	p1, p2 := id.New(), id.New()
	fx.seedStock(p1, locationID, 40, "100")
	fx.seedStock(p2, locationID, 60, "200")
	fx.seedStock(id.New(), id.New(), 99, "300") // other location, excluded
	ctx := context.Background()

	o, err := fx.svc.Create(ctx, CreateRequest{
		Type:       TypeFull,
		LocationID: locationID,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Empty(t, o.Items, "full count items appear at start")

	o, err = fx.svc.Start(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.TotalItems)

	snapshots := make(map[id.ID]types.Quantity)
	for _, item := range o.Items {
		snapshots[item.ProductID] = item.SystemStock
	}
	assert.Equal(t, qty(40), snapshots[p1])
	assert.Equal(t, qty(60), snapshots[p2])
}

func TestCancelLifecycle(t *testing.T) {
	fx := newFixture()
	productID, locationID := id.New(), id.New()
	o := fx.startedCycle(t, locationID, productID)
	ctx := context.Background()

	cancelled, err := fx.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// Terminal: no restart, no approval, no counting.
	_, err = fx.svc.Start(ctx, o.ID)
	require.Error(t, err)
	_, err = fx.svc.Approve(ctx, o.ID)
	require.Error(t, err)
	_, err = fx.svc.RecordCount(ctx, o.Items[0].ID, qty(1), "")
	require.Error(t, err)
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, CreateRequest{Type: "weird", LocationID: id.New()})
	require.Error(t, err)

	_, err = fx.svc.Create(ctx, CreateRequest{Type: TypeCycle, LocationID: id.New()})
	require.Error(t, err, "cycle counts need products")

	_, err = fx.svc.Create(ctx, CreateRequest{Type: TypeFull})
	require.Error(t, err, "location is required")
}
