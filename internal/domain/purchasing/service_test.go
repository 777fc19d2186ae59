package purchasing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokku/internal/core/apperror"
	"stokku/internal/core/id"
	"stokku/internal/core/types"
	"stokku/internal/domain/costing"
	"stokku/internal/domain/ledger"
)

type fakePORepo struct {
	orders map[id.ID]*PurchaseOrder
	seq    int
}

func newFakePORepo() *fakePORepo {
	return &fakePORepo{orders: make(map[id.ID]*PurchaseOrder)}
}

func clonePO(po *PurchaseOrder) *PurchaseOrder {
	cp := *po
	cp.Lines = make([]*OrderLine, len(po.Lines))
	for i, l := range po.Lines {
		lc := *l
		cp.Lines[i] = &lc
	}
	return &cp
}

func (f *fakePORepo) Create(_ context.Context, po *PurchaseOrder) error {
	f.orders[po.ID] = clonePO(po)
	return nil
}

func (f *fakePORepo) GetByID(_ context.Context, poID id.ID) (*PurchaseOrder, error) {
	po, ok := f.orders[poID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", poID)
	}
	return clonePO(po), nil
}

func (f *fakePORepo) GetByIDForUpdate(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	return f.GetByID(ctx, poID)
}

func (f *fakePORepo) List(_ context.Context, _ ListFilter) ([]*PurchaseOrder, error) {
	return nil, nil
}

func (f *fakePORepo) UpdateHeader(_ context.Context, po *PurchaseOrder) error {
	stored := f.orders[po.ID]
	stored.Status = po.Status
	stored.ApprovedBy = po.ApprovedBy
	stored.ApprovedAt = po.ApprovedAt
	stored.Version = po.Version
	return nil
}

func (f *fakePORepo) UpdateLine(_ context.Context, line *OrderLine) error {
	stored := f.orders[line.PurchaseOrderID]
	for i, l := range stored.Lines {
		if l.ID == line.ID {
			lc := *line
			stored.Lines[i] = &lc
			return nil
		}
	}
	return apperror.NewNotFound("purchase order line", line.ID)
}

func (f *fakePORepo) NextNumber(_ context.Context) (string, error) {
	f.seq++
	return fmt.Sprintf("PO-202609-%04d", f.seq), nil
}

type fakeStockPoster struct {
	posts       []ledger.MovementRequest
	failProduct id.ID
	contention  int // fail this many posts with a lock-contention error first
}

func (f *fakeStockPoster) Post(_ context.Context, req ledger.MovementRequest) (*ledger.MovementEntry, error) {
	if f.contention > 0 {
		f.contention--
		return nil, apperror.NewContention("stock record", req.ProductID.String())
	}
	if req.ProductID == f.failProduct {
		return nil, apperror.NewNegativeStock(req.ProductID.String(), req.LocationID.String(), req.Quantity.Float64(), 0)
	}
	f.posts = append(f.posts, req)
	return &ledger.MovementEntry{ID: id.New(), ProductID: req.ProductID}, nil
}

type fakeCalculator struct {
	calls []costing.CalculateRequest
}

func (f *fakeCalculator) Calculate(_ context.Context, req costing.CalculateRequest) (*costing.Result, error) {
	f.calls = append(f.calls, req)
	return &costing.Result{ProductID: req.ProductID}, nil
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
	svc   *Service
	repo  *fakePORepo
	stock *fakeStockPoster
	costs *fakeCalculator
}

func newFixture() *fixture {
	repo := newFakePORepo()
	stock := &fakeStockPoster{}
	costs := &fakeCalculator{}
	return &fixture{
		svc:   NewService(repo, stock, costs, passthroughTxManager{}, nil),
		repo:  repo,
		stock: stock,
		costs: costs,
	}
}

func (fx *fixture) orderedPO(t *testing.T, lines ...CreateLineRequest) *PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := fx.svc.Create(ctx, CreateRequest{
		SupplierID: id.New(),
		LocationID: id.New(),
		Lines:      lines,
	})
	require.NoError(t, err)
	for _, step := range []func(context.Context, id.ID) (*PurchaseOrder, error){
		fx.svc.Submit, fx.svc.Approve, fx.svc.MarkOrdered,
	} {
		po, err = step(ctx, po.ID)
		require.NoError(t, err)
	}
	return po
}

func line(productID id.ID, qty float64, price string) CreateLineRequest {
	return CreateLineRequest{
		ProductID: productID,
		Quantity:  types.NewQuantityFromFloat64(qty),
		UnitPrice: types.MustMoney(price),
	}
}

func TestCreateComputesTotals(t *testing.T) {
	fx := newFixture()
	po, err := fx.svc.Create(context.Background(), CreateRequest{
		SupplierID: id.New(),
		LocationID: id.New(),
		Lines: []CreateLineRequest{
			line(id.New(), 10, "1500"),
			line(id.New(), 4, "250.50"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, po.Status)
	assert.Equal(t, "16002.00", po.TotalAmount.StringFixed(2))
	assert.Equal(t, "15000.00", po.Lines[0].LineTotal.StringFixed(2))
	assert.NotEmpty(t, po.Number)
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, CreateRequest{LocationID: id.New(), Lines: []CreateLineRequest{line(id.New(), 1, "1")}})
	require.Error(t, err)

	_, err = fx.svc.Create(ctx, CreateRequest{SupplierID: id.New(), LocationID: id.New()})
	require.Error(t, err)

	_, err = fx.svc.Create(ctx, CreateRequest{
		SupplierID: id.New(), LocationID: id.New(),
		Lines: []CreateLineRequest{line(id.New(), 0, "1")},
	})
	require.Error(t, err)
}

func TestStatusMachine(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	po, err := fx.svc.Create(ctx, CreateRequest{
		SupplierID: id.New(), LocationID: id.New(),
		Lines: []CreateLineRequest{line(id.New(), 1, "100")},
	})
	require.NoError(t, err)

	// Approving a draft skips pending and must fail.
	_, err = fx.svc.Approve(ctx, po.ID)
	require.Error(t, err)

	po, err = fx.svc.Submit(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, po.Status)

	po, err = fx.svc.Approve(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, po.Status)
	assert.NotNil(t, po.ApprovedAt)

	po, err = fx.svc.MarkOrdered(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOrdered, po.Status)

	// Ordered orders can still be cancelled.
	po, err = fx.svc.Cancel(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, po.Status)

	_, err = fx.svc.Submit(ctx, po.ID)
	require.Error(t, err, "cancelled is terminal")
}

func TestFullReceiptTransitionsToReceived(t *testing.T) {
	fx := newFixture()
	productID := id.New()
	po := fx.orderedPO(t, line(productID, 10, "1200"))

	result, err := fx.svc.PostReceipt(context.Background(), po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, result.Status)
	require.Len(t, result.Lines, 1)
	assert.True(t, result.Lines[0].Posted)
	assert.False(t, result.Lines[0].OverReceipt)

	require.Len(t, fx.stock.posts, 1)
	post := fx.stock.posts[0]
	assert.Equal(t, ledger.MovementReceipt, post.MovementType)
	assert.Equal(t, ledger.RefPurchaseOrder, post.ReferenceType)
	require.NotNil(t, post.UnitCost)
	assert.Equal(t, "1200.00", post.UnitCost.StringFixed(2))

	require.Len(t, fx.costs.calls, 1)
	assert.Equal(t, productID, fx.costs.calls[0].ProductID)
	assert.Equal(t, costing.ReasonPurchasePosted, fx.costs.calls[0].Reason)
}

func TestPartialReceipt(t *testing.T) {
	fx := newFixture()
	po := fx.orderedPO(t, line(id.New(), 10, "100"))
	ctx := context.Background()

	result, err := fx.svc.PostReceipt(ctx, po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(4)},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)

	// Second delivery completes the line.
	result, err = fx.svc.PostReceipt(ctx, po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(6)},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, result.Status)
}

func TestOverReceiptIsFlaggedNotRejected(t *testing.T) {
	fx := newFixture()
	po := fx.orderedPO(t, line(id.New(), 10, "100"))

	result, err := fx.svc.PostReceipt(context.Background(), po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(12)},
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.True(t, result.Lines[0].Posted)
	assert.True(t, result.Lines[0].OverReceipt)
	assert.Equal(t, StatusReceived, result.Status)

	stored, _ := fx.repo.GetByID(context.Background(), po.ID)
	assert.True(t, stored.Lines[0].OverReceipt)
	assert.Equal(t, types.NewQuantityFromFloat64(12), stored.Lines[0].QuantityReceived)
}

func TestReceiptRetriesLockContention(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	productID := id.New()
	po := fx.orderedPO(t, line(productID, 10, "1000"))

	// The first two attempts time out on the stock row lock; the line
	// transaction replays and the third attempt lands.
	fx.stock.contention = 2
	result, err := fx.svc.PostReceipt(ctx, po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(10)},
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.True(t, result.Lines[0].Posted)
	assert.Len(t, fx.stock.posts, 1)
	assert.Equal(t, StatusReceived, result.Status)

	// Exhausted retries surface the retryable code in the line result.
	po2 := fx.orderedPO(t, line(productID, 5, "1000"))
	fx.stock.contention = 3
	result, err = fx.svc.PostReceipt(ctx, po2.ID, []ReceiptLine{
		{LineID: po2.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(5)},
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.False(t, result.Lines[0].Posted)
	require.NotNil(t, result.Lines[0].Error)
	assert.Equal(t, apperror.CodeContention, result.Lines[0].Error.Code)
}

func TestReceiptLineFailureIsIsolated(t *testing.T) {
	fx := newFixture()
	goodProduct, badProduct := id.New(), id.New()
	po := fx.orderedPO(t, line(goodProduct, 5, "100"), line(badProduct, 5, "200"))
	fx.stock.failProduct = badProduct

	result, err := fx.svc.PostReceipt(context.Background(), po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(5)},
		{LineID: po.Lines[1].ID, Quantity: types.NewQuantityFromFloat64(5)},
	})
	require.NoError(t, err, "a line failure is reported per line, not as an operation error")
	require.Len(t, result.Lines, 2)

	assert.True(t, result.Lines[0].Posted)
	assert.False(t, result.Lines[1].Posted)
	require.NotNil(t, result.Lines[1].Error)
	assert.Equal(t, apperror.CodeNegativeStock, result.Lines[1].Error.Code)

	// Only the succeeded line counts toward status and costing.
	assert.Equal(t, StatusPartial, result.Status)
	require.Len(t, fx.costs.calls, 1)
	assert.Equal(t, goodProduct, fx.costs.calls[0].ProductID)
}

func TestReceiptRequiresOrderedStatus(t *testing.T) {
	fx := newFixture()
	po, err := fx.svc.Create(context.Background(), CreateRequest{
		SupplierID: id.New(), LocationID: id.New(),
		Lines: []CreateLineRequest{line(id.New(), 1, "100")},
	})
	require.NoError(t, err)

	_, err = fx.svc.PostReceipt(context.Background(), po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(1)},
	})
	require.Error(t, err)
}

func TestCancelAfterReceivedIsRejected(t *testing.T) {
	fx := newFixture()
	po := fx.orderedPO(t, line(id.New(), 2, "100"))

	_, err := fx.svc.PostReceipt(context.Background(), po.ID, []ReceiptLine{
		{LineID: po.Lines[0].ID, Quantity: types.NewQuantityFromFloat64(2)},
	})
	require.NoError(t, err)

	_, err = fx.svc.Cancel(context.Background(), po.ID)
	require.Error(t, err)
}
