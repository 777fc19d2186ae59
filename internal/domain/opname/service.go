package opname

import (
	"context"
	"time"

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

// StockReader reads balances for snapshotting.
type StockReader interface {
	GetStock(ctx context.Context, productID, locationID id.ID) (*ledger.StockRecord, error)
	ListStockByLocation(ctx context.Context, locationID id.ID) ([]*ledger.StockRecord, error)
}

// StockPoster is the ledger write path for approval adjustments.
type StockPoster interface {
	Post(ctx context.Context, req ledger.MovementRequest) (*ledger.MovementEntry, error)
}

// Service runs the physical count workflow.
type Service struct {
	repo     Repository
	stock    StockReader
	poster   StockPoster
	products product.Repository
	txm      tx.Manager
	audit    Auditor
}

// NewService creates an opname service. audit may be nil.
func NewService(repo Repository, stock StockReader, poster StockPoster, products product.Repository, txm tx.Manager, audit Auditor) *Service {
	return &Service{repo: repo, stock: stock, poster: poster, products: products, txm: txm, audit: audit}
}

// Create opens a new count session in pending state. Cycle counts list
// their products up front; full counts snapshot whatever is stocked at
// the location when the session starts.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*StockOpname, error) {
	if req.Type != TypeFull && req.Type != TypeCycle {
		return nil, apperror.NewValidation("type must be full or cycle")
	}
	if id.IsNil(req.LocationID) {
		return nil, apperror.NewValidation("locationId is required")
	}
	if req.Type == TypeCycle && len(req.ProductIDs) == 0 {
		return nil, apperror.NewValidation("cycle count requires productIds")
	}

	number, err := s.repo.NextNumber(ctx)
	if err != nil {
		return nil, err
	}

	userID, _ := id.Parse(appctx.GetUserID(ctx))
	o := &StockOpname{
		Document:           entity.NewDocument(number, userID),
		Type:               req.Type,
		LocationID:         req.LocationID,
		Status:             StatusPending,
		ScheduledDate:      req.ScheduledDate,
		SupervisorID:       req.SupervisorID,
		FreezeInventory:    req.FreezeInventory,
		TotalVarianceValue: types.Zero(),
	}
	o.Comment = req.Comment

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, o); err != nil {
			return err
		}
		if req.Type == TypeCycle {
			items := make([]*Item, 0, len(req.ProductIDs))
			for _, productID := range req.ProductIDs {
				items = append(items, &Item{
					ID:         id.New(),
					OpnameID:   o.ID,
					ProductID:  productID,
					LocationID: req.LocationID,
					Status:     ItemPending,
				})
			}
			if err := s.repo.CreateItems(ctx, items); err != nil {
				return err
			}
			o.Items = items
			o.TotalItems = len(items)
			return s.repo.UpdateHeader(ctx, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "opname.created", o)
	return o, nil
}

// GetByID returns a session with its items.
func (s *Service) GetByID(ctx context.Context, opnameID id.ID) (*StockOpname, error) {
	return s.repo.GetByID(ctx, opnameID)
}

// List returns sessions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*StockOpname, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Start moves a pending session to in_progress and snapshots system
// stock for every item. The snapshot and the status change commit
// together, so the freeze (which keys off in_progress) is active from
// the same instant the snapshot is taken.
func (s *Service) Start(ctx context.Context, opnameID id.ID) (*StockOpname, error) {
	var o *StockOpname
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetByIDForUpdate(ctx, opnameID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only a pending opname can be started").WithDetail("status", o.Status)
		}

		if o.Type == TypeFull {
			records, err := s.stock.ListStockByLocation(ctx, o.LocationID)
			if err != nil {
				return err
			}
			items := make([]*Item, 0, len(records))
			for _, r := range records {
				items = append(items, &Item{
					ID:         id.New(),
					OpnameID:   o.ID,
					ProductID:  r.ProductID,
					LocationID: r.LocationID,
					Status:     ItemPending,
				})
			}
			if err := s.repo.CreateItems(ctx, items); err != nil {
				return err
			}
			o.Items = items
		}

		for _, item := range o.Items {
			record, err := s.stock.GetStock(ctx, item.ProductID, item.LocationID)
			if err != nil {
				return err
			}
			item.SystemStock = record.QuantityOnHand
			item.UnitCost = s.itemUnitCost(ctx, item.ProductID, record)
			if err := s.repo.UpdateItem(ctx, item); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		userID := appctx.GetUserID(ctx)
		o.Status = StatusInProgress
		o.StartedAt = &now
		o.PerformedBy = &userID
		o.TotalItems = len(o.Items)
		o.Touch()
		return s.repo.UpdateHeader(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "opname.started", o)
	return o, nil
}

// RecordCount stores the physically counted quantity for an item and
// derives its variance fields.
func (s *Service) RecordCount(ctx context.Context, itemID id.ID, physical types.Quantity, notes string) (*Item, error) {
	if physical < 0 {
		return nil, apperror.NewValidation("physical stock must not be negative")
	}
	return s.mutateItem(ctx, itemID, func(o *StockOpname, item *Item) error {
		if item.Status != ItemPending && item.Status != ItemCounted {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"item cannot be counted in its current state").WithDetail("status", item.Status)
		}
		applyCount(item, physical)
		if notes != "" {
			item.Notes = notes
		}
		now := time.Now().UTC()
		userID := appctx.GetUserID(ctx)
		item.CountedBy = &userID
		item.CountedAt = &now
		return nil
	})
}

// Recount overwrites an item's counted value after a recount was
// ordered, re-deriving variance and clearing the recount flag. The item
// goes back to counted and must be verified or investigated again.
func (s *Service) Recount(ctx context.Context, itemID id.ID, physical types.Quantity) (*Item, error) {
	if physical < 0 {
		return nil, apperror.NewValidation("physical stock must not be negative")
	}
	return s.mutateItem(ctx, itemID, func(o *StockOpname, item *Item) error {
		if item.Status == ItemPending || item.Status == ItemApproved {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"item has no count to redo").WithDetail("status", item.Status)
		}
		applyCount(item, physical)
		item.RecountValue = &physical
		item.RecountRequired = false
		return nil
	})
}

// Verify accepts a counted item's value as-is.
func (s *Service) Verify(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.mutateItem(ctx, itemID, func(o *StockOpname, item *Item) error {
		if item.Status != ItemCounted {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only a counted item can be verified").WithDetail("status", item.Status)
		}
		if item.RecountRequired {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"item is pending recount")
		}
		item.Status = ItemVerified
		return nil
	})
}

// Investigate marks a counted item's variance as under investigation,
// recording root cause and corrective action.
func (s *Service) Investigate(ctx context.Context, itemID id.ID, rootCause, correctiveAction, notes string) (*Item, error) {
	return s.mutateItem(ctx, itemID, func(o *StockOpname, item *Item) error {
		if item.Status != ItemCounted && item.Status != ItemInvestigated {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only a counted item can be investigated").WithDetail("status", item.Status)
		}
		item.Status = ItemInvestigated
		item.RootCause = rootCause
		item.CorrectiveAction = correctiveAction
		if notes != "" {
			item.Notes = notes
		}
		return nil
	})
}

// RequireRecount flags an item for a second count.
func (s *Service) RequireRecount(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.mutateItem(ctx, itemID, func(o *StockOpname, item *Item) error {
		if item.Status != ItemCounted && item.Status != ItemInvestigated {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only a counted or investigated item can be recounted").WithDetail("status", item.Status)
		}
		item.RecountRequired = true
		return nil
	})
}

// Approve closes the session: every item must be verified, or
// investigated with a recorded root cause, and no recount may be
// outstanding. All non-zero differences post as adjustment movements in
// one transaction with the status change, so a failing adjustment rolls
// the whole approval back. Lock contention on a stock row aborts the
// transaction and replays the whole approval.
func (s *Service) Approve(ctx context.Context, opnameID id.ID) (*StockOpname, error) {
	var o *StockOpname
	approveTx := func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetByIDForUpdate(ctx, opnameID)
		if err != nil {
			return err
		}
		if o.Status != StatusInProgress {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only an in-progress opname can be approved").WithDetail("status", o.Status)
		}

		for _, item := range o.Items {
			if item.RecountRequired {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule,
					"item is pending recount").WithDetail("item_id", item.ID)
			}
			switch item.Status {
			case ItemVerified:
			case ItemInvestigated:
				if item.RootCause == "" {
					return apperror.NewBusinessRule(apperror.CodeBusinessRule,
						"investigated item has no recorded root cause").WithDetail("item_id", item.ID)
				}
			default:
				return apperror.NewBusinessRule(apperror.CodeBusinessRule,
					"all items must be verified or investigated before approval").
					WithDetail("item_id", item.ID).WithDetail("status", item.Status)
			}
		}

		totalVariance := types.Zero()
		for _, item := range o.Items {
			if item.Difference != 0 {
				if _, err := s.poster.Post(ctx, ledger.MovementRequest{
					ProductID:     item.ProductID,
					LocationID:    item.LocationID,
					MovementType:  ledger.MovementAdjustment,
					Quantity:      item.Difference,
					ReferenceType: ledger.RefOpname,
					ReferenceID:   o.ID.String(),
				}); err != nil {
					return err
				}
			}
			totalVariance = totalVariance.Add(item.VarianceValue)
			item.Status = ItemApproved
			if err := s.repo.UpdateItem(ctx, item); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		userID := appctx.GetUserID(ctx)
		o.Status = StatusCompleted
		o.CompletedAt = &now
		o.ApprovedBy = &userID
		o.TotalVarianceValue = types.RoundMoney(totalVariance)
		refreshCounters(o)
		o.Touch()
		return s.repo.UpdateHeader(ctx, o)
	}

	err := ledger.RetryOnContention(ctx, func(ctx context.Context) error {
		return s.txm.RunInTransaction(ctx, approveTx)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock opname approved",
		"opname_id", o.ID,
		"location_id", o.LocationID,
		"items", o.TotalItems,
		"items_with_variance", o.ItemsWithVariance,
		"total_variance_value", o.TotalVarianceValue.StringFixed(2))
	s.recordAudit(ctx, "opname.approved", o)
	return o, nil
}

// Cancel aborts a session before completion. Cancelling lifts the freeze.
func (s *Service) Cancel(ctx context.Context, opnameID id.ID) (*StockOpname, error) {
	var o *StockOpname
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetByIDForUpdate(ctx, opnameID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending && o.Status != StatusInProgress {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only a pending or in-progress opname can be cancelled").WithDetail("status", o.Status)
		}
		o.Status = StatusCancelled
		o.Touch()
		return s.repo.UpdateHeader(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "opname.cancelled", o)
	return o, nil
}

// mutateItem loads the item and its session under lock, applies fn, and
// refreshes the session counters.
func (s *Service) mutateItem(ctx context.Context, itemID id.ID, fn func(*StockOpname, *Item) error) (*Item, error) {
	var result *Item
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		o, err := s.repo.GetByIDForUpdate(ctx, item.OpnameID)
		if err != nil {
			return err
		}
		if o.Status != StatusInProgress {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"opname is not in progress").WithDetail("status", o.Status)
		}

		// Work on the session's copy so counter refresh sees the change.
		for _, candidate := range o.Items {
			if candidate.ID == itemID {
				item = candidate
				break
			}
		}

		if err := fn(o, item); err != nil {
			return err
		}
		if err := s.repo.UpdateItem(ctx, item); err != nil {
			return err
		}

		refreshCounters(o)
		if err := s.repo.UpdateHeader(ctx, o); err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyCount derives difference, variance and category from a counted
// quantity and moves the item to counted.
func applyCount(item *Item, physical types.Quantity) {
	item.PhysicalStock = &physical
	item.Difference = physical - item.SystemStock

	pct := types.Zero()
	if item.SystemStock != 0 {
		pct = item.Difference.Decimal().Div(item.SystemStock.Decimal()).Mul(types.MustMoney("100"))
	}
	value := item.Difference.Decimal().Mul(item.UnitCost)

	// Classify on the exact values; round only for storage.
	item.VarianceCategory = ClassifyVariance(item.Difference, pct, value)
	item.VariancePercentage = types.RoundMoney(pct)
	item.VarianceValue = types.RoundMoney(value)
	item.Status = ItemCounted
}

func refreshCounters(o *StockOpname) {
	counted, withVariance := 0, 0
	for _, item := range o.Items {
		if item.PhysicalStock != nil {
			counted++
		}
		if item.Difference != 0 {
			withVariance++
		}
	}
	o.CountedItems = counted
	o.ItemsWithVariance = withVariance
	o.TotalItems = len(o.Items)
}

// itemUnitCost values variance: the location's moving average when
// present, otherwise the product's cached unit cost.
func (s *Service) itemUnitCost(ctx context.Context, productID id.ID, record *ledger.StockRecord) types.Money {
	if record != nil && record.AverageCost.Valid {
		return record.AverageCost.Decimal
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return types.Zero()
	}
	return p.UnitCost
}

func (s *Service) recordAudit(ctx context.Context, action string, o *StockOpname) {
	if s.audit == nil || o == nil {
		return
	}
	s.audit.Record(ctx, action, "stock_opname", o.ID.String(), o)
}
