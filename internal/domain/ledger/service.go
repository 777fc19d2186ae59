package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stokku/internal/core/apperror"
	appctx "stokku/internal/core/context"
	"stokku/internal/core/id"
	"stokku/internal/core/tx"
	"stokku/internal/core/types"
	"stokku/pkg/logger"
)

const (
	contentionRetries = 3
	retryBackoff      = 10 * time.Millisecond
)

// Service posts movements and manages reservations. It is the only
// component allowed to change quantityOnHand.
type Service struct {
	repo   Repository
	freeze FreezeChecker
	txm    tx.Manager
}

// NewService creates a ledger service.
func NewService(repo Repository, freeze FreezeChecker, txm tx.Manager) *Service {
	return &Service{repo: repo, freeze: freeze, txm: txm}
}

// GetStock returns the current balance for a (product, location) pair.
// A pair with no history reads as an all-zero record.
func (s *Service) GetStock(ctx context.Context, productID, locationID id.ID) (*StockRecord, error) {
	record, err := s.repo.GetRecord(ctx, productID, locationID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return &StockRecord{ProductID: productID, LocationID: locationID}, nil
		}
		return nil, err
	}
	return record, nil
}

// ListStockByProduct returns balances for a product across all locations.
func (s *Service) ListStockByProduct(ctx context.Context, productID id.ID) ([]*StockRecord, error) {
	return s.repo.ListRecordsByProduct(ctx, productID)
}

// ListStockByLocation returns all balances at a location.
func (s *Service) ListStockByLocation(ctx context.Context, locationID id.ID) ([]*StockRecord, error) {
	return s.repo.ListRecordsByLocation(ctx, locationID)
}

// ListLowStock returns records at or below their reorder point.
func (s *Service) ListLowStock(ctx context.Context, locationID *id.ID) ([]*StockRecord, error) {
	return s.repo.ListLowStock(ctx, locationID)
}

// Post records one movement. The whole operation is atomic: the entry is
// appended and the stock row updated in a single transaction holding a
// row lock on the (product, location) pair. Lock contention is retried
// with backoff before surfacing to the caller.
func (s *Service) Post(ctx context.Context, req MovementRequest) (*MovementEntry, error) {
	if err := validateMovement(req); err != nil {
		return nil, err
	}

	var entry *MovementEntry
	err := s.withContentionRetry(ctx, func(ctx context.Context) error {
		return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			entry, err = s.postLocked(ctx, req, nil, nil, nil)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.warnIfLowStock(ctx, req.ProductID, req.LocationID)
	return entry, nil
}

// Transfer moves quantity between two locations as a linked entry pair
// committed in one transaction. Either both halves post or neither does.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Quantity <= 0 {
		return nil, apperror.NewValidation("transfer quantity must be positive")
	}
	if req.FromLocationID == req.ToLocationID {
		return nil, apperror.NewValidation("transfer source and destination must differ")
	}

	pairID := id.New()
	result := &TransferResult{PairID: pairID}

	err := s.withContentionRetry(ctx, func(ctx context.Context) error {
		return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			out, err := s.postLocked(ctx, MovementRequest{
				ProductID:     req.ProductID,
				LocationID:    req.FromLocationID,
				MovementType:  MovementTransferOut,
				Quantity:      req.Quantity.Neg(),
				ReferenceType: RefTransfer,
				ReferenceID:   req.ReferenceID,
			}, &pairID, &req.FromLocationID, &req.ToLocationID)
			if err != nil {
				return err
			}

			in, err := s.postLocked(ctx, MovementRequest{
				ProductID:     req.ProductID,
				LocationID:    req.ToLocationID,
				MovementType:  MovementTransferIn,
				Quantity:      req.Quantity,
				ReferenceType: RefTransfer,
				ReferenceID:   req.ReferenceID,
			}, &pairID, &req.FromLocationID, &req.ToLocationID)
			if err != nil {
				return err
			}

			result.Out, result.In = out, in
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.warnIfLowStock(ctx, req.ProductID, req.FromLocationID)
	return result, nil
}

// Reserve earmarks available quantity without moving it. Fails with
// InsufficientAvailable when the request exceeds onHand minus reserved.
func (s *Service) Reserve(ctx context.Context, productID, locationID id.ID, qty types.Quantity) (*StockRecord, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("reservation quantity must be positive")
	}

	var record *StockRecord
	err := s.withContentionRetry(ctx, func(ctx context.Context) error {
		return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			record, err = s.repo.GetRecordForUpdate(ctx, productID, locationID)
			if err != nil {
				return err
			}

			if err := s.checkFrozen(ctx, productID, locationID, nil); err != nil {
				return err
			}

			if qty > record.AvailableQuantity() {
				return apperror.NewInsufficientAvailable(
					productID.String(), locationID.String(),
					qty.Float64(), record.AvailableQuantity().Float64())
			}

			record.ReservedQuantity += qty
			record.Version++
			return s.repo.UpdateRecord(ctx, record)
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Release returns reserved quantity to available. Releasing more than is
// currently reserved is a caller bug and fails with InvalidRelease.
func (s *Service) Release(ctx context.Context, productID, locationID id.ID, qty types.Quantity) (*StockRecord, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("release quantity must be positive")
	}

	var record *StockRecord
	err := s.withContentionRetry(ctx, func(ctx context.Context) error {
		return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			record, err = s.repo.GetRecordForUpdate(ctx, productID, locationID)
			if err != nil {
				return err
			}

			if qty > record.ReservedQuantity {
				return apperror.NewInvalidRelease(
					productID.String(), locationID.String(),
					qty.Float64(), record.ReservedQuantity.Float64())
			}

			record.ReservedQuantity -= qty
			record.Version++
			return s.repo.UpdateRecord(ctx, record)
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListHistory returns movements matching the filter, newest first.
func (s *Service) ListHistory(ctx context.Context, filter HistoryFilter) ([]*MovementEntry, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListEntries(ctx, filter)
}

// Replay rebuilds the balance for a pair from its full movement history
// and compares it to the stored quantityOnHand. Read-only: a mismatch is
// reported, never corrected.
func (s *Service) Replay(ctx context.Context, productID, locationID id.ID) (*ReplayResult, error) {
	record, err := s.GetStock(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListEntriesAsc(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}

	var balance types.Quantity
	for i, e := range entries {
		if e.BalanceBefore != balance {
			return &ReplayResult{
				ProductID:      productID,
				LocationID:     locationID,
				StoredOnHand:   record.QuantityOnHand,
				ReplayedOnHand: balance,
				EntryCount:     i,
				Consistent:     false,
			}, nil
		}
		balance += e.Quantity
		if e.BalanceAfter != balance {
			return &ReplayResult{
				ProductID:      productID,
				LocationID:     locationID,
				StoredOnHand:   record.QuantityOnHand,
				ReplayedOnHand: balance,
				EntryCount:     i + 1,
				Consistent:     false,
			}, nil
		}
	}

	return &ReplayResult{
		ProductID:      productID,
		LocationID:     locationID,
		StoredOnHand:   record.QuantityOnHand,
		ReplayedOnHand: balance,
		EntryCount:     len(entries),
		Consistent:     balance == record.QuantityOnHand,
	}, nil
}

// postLocked does the actual posting under a row lock. Must run inside a
// transaction. pairID and from/to are set only for transfer halves.
func (s *Service) postLocked(ctx context.Context, req MovementRequest, pairID, fromLoc, toLoc *id.ID) (*MovementEntry, error) {
	record, err := s.repo.GetRecordForUpdate(ctx, req.ProductID, req.LocationID)
	if err != nil {
		return nil, err
	}

	// A count session's own adjustments post while its scope is frozen.
	// The exemption is per session: a freeze held by any other session
	// still rejects the movement.
	var exempt *id.ID
	if req.ReferenceType == RefOpname {
		if opID, err := id.Parse(req.ReferenceID); err == nil {
			exempt = &opID
		}
	}
	if err := s.checkFrozen(ctx, req.ProductID, req.LocationID, exempt); err != nil {
		return nil, err
	}

	// The locked row must agree with the last ledger entry. A mismatch
	// means the invariant is already broken; stop writing to the pair.
	last, err := s.repo.LastEntry(ctx, req.ProductID, req.LocationID)
	if err != nil {
		return nil, err
	}
	if last != nil && last.BalanceAfter != record.QuantityOnHand {
		logger.Error(ctx, "ledger invariant violated, refusing to post",
			"product_id", req.ProductID,
			"location_id", req.LocationID,
			"stored", record.QuantityOnHand.String(),
			"last_balance_after", last.BalanceAfter.String())
		return nil, apperror.NewInconsistentState(
			req.ProductID.String(), req.LocationID.String(),
			record.QuantityOnHand.Float64(), last.BalanceAfter.Float64())
	}

	balanceBefore := record.QuantityOnHand
	balanceAfter := balanceBefore + req.Quantity

	if balanceAfter < 0 {
		return nil, apperror.NewNegativeStock(
			req.ProductID.String(), req.LocationID.String(),
			req.Quantity.Float64(), balanceBefore.Float64())
	}
	if balanceAfter < record.ReservedQuantity {
		// Draining on-hand below the reserved amount would break
		// reserved <= onHand for open reservations.
		return nil, apperror.NewInsufficientAvailable(
			req.ProductID.String(), req.LocationID.String(),
			req.Quantity.Abs().Float64(), record.AvailableQuantity().Float64())
	}

	now := time.Now().UTC()
	entry := &MovementEntry{
		ID:             id.New(),
		ProductID:      req.ProductID,
		LocationID:     req.LocationID,
		MovementType:   req.MovementType,
		Quantity:       req.Quantity,
		ReferenceType:  req.ReferenceType,
		ReferenceID:    req.ReferenceID,
		BalanceBefore:  balanceBefore,
		BalanceAfter:   balanceAfter,
		TransferPairID: pairID,
		FromLocationID: fromLoc,
		ToLocationID:   toLoc,
		BatchNumber:    req.BatchNumber,
		ExpiryDate:     req.ExpiryDate,
		CreatedAt:      now,
		CreatedBy:      appctx.GetUserID(ctx),
	}
	if req.UnitCost != nil {
		entry.UnitCost = decimal.NullDecimal{Decimal: *req.UnitCost, Valid: true}
		entry.TotalCost = decimal.NullDecimal{
			Decimal: types.RoundMoney(req.UnitCost.Mul(req.Quantity.Abs().Decimal())),
			Valid:   true,
		}
	}

	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}

	record.QuantityOnHand = balanceAfter
	switch {
	case req.MovementType == MovementReceipt:
		record.LastRestockDate = &now
		if req.UnitCost != nil {
			record.AverageCost = decimal.NullDecimal{
				Decimal: weightedAverage(balanceBefore, record.AverageCost, req.Quantity, *req.UnitCost),
				Valid:   true,
			}
		}
	case req.ReferenceType == RefOpname:
		record.LastStockCountDate = &now
	}
	record.Version++

	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}
	return entry, nil
}

// weightedAverage applies the moving-average recurrence
// (Q0*C0 + Q1*C1) / (Q0 + Q1), rounded to the money scale. When there
// was no prior stock or no prior cost, the received cost wins outright.
func weightedAverage(prevQty types.Quantity, prevCost decimal.NullDecimal, recvQty types.Quantity, recvCost types.Money) types.Money {
	if prevQty <= 0 || !prevCost.Valid {
		return types.RoundMoney(recvCost)
	}
	total := prevQty + recvQty
	if total <= 0 {
		return types.RoundMoney(recvCost)
	}
	numerator := prevQty.Decimal().Mul(prevCost.Decimal).
		Add(recvQty.Decimal().Mul(recvCost))
	return types.RoundMoney(numerator.Div(total.Decimal()))
}

func (s *Service) checkFrozen(ctx context.Context, productID, locationID id.ID, exempt *id.ID) error {
	if s.freeze == nil {
		return nil
	}
	opnameID, err := s.freeze.FrozenBy(ctx, productID, locationID, exempt)
	if err != nil {
		return err
	}
	if opnameID != nil {
		return apperror.NewInventoryFrozen(productID.String(), locationID.String(), opnameID.String())
	}
	return nil
}

// withContentionRetry retries fn on lock contention with linear backoff.
// Only Contention errors are retried; business failures surface at once.
//
// Inside an ambient transaction the retry loop is skipped: a lock
// timeout has already aborted the shared transaction, so replaying fn
// there would only fail again with "transaction is aborted". The
// Contention error surfaces to the transaction owner, which retries at
// its own boundary (see RetryOnContention).
func (s *Service) withContentionRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txm.InTransaction(ctx) {
		return fn(ctx)
	}
	return RetryOnContention(ctx, fn)
}

// RetryOnContention retries fn on lock contention with linear backoff.
// Callers composing ledger posts into a larger transaction wrap that
// whole transaction with this, so each retry starts fresh.
func RetryOnContention(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= contentionRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !apperror.IsContention(err) {
			return err
		}
		if attempt < contentionRetries {
			logger.Warn(ctx, "lock contention, retrying", "attempt", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}
	}
	return err
}

func (s *Service) warnIfLowStock(ctx context.Context, productID, locationID id.ID) {
	record, err := s.repo.GetRecord(ctx, productID, locationID)
	if err != nil {
		return
	}
	if record.IsBelowReorderPoint() {
		logger.Warn(ctx, "stock at or below reorder point",
			"product_id", productID,
			"location_id", locationID,
			"available", record.AvailableQuantity().String(),
			"reorder_point", record.ReorderPoint.String())
	}
}

func validateMovement(req MovementRequest) error {
	if id.IsNil(req.ProductID) {
		return apperror.NewValidation("productId is required")
	}
	if id.IsNil(req.LocationID) {
		return apperror.NewValidation("locationId is required")
	}
	if !req.MovementType.IsValid() {
		return apperror.NewValidation("unknown movement type: " + string(req.MovementType))
	}
	if req.Quantity == 0 {
		return apperror.NewValidation("quantity must be non-zero")
	}
	if req.ReferenceType == "" {
		return apperror.NewValidation("referenceType is required")
	}
	return nil
}
