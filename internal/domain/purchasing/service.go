package purchasing

import (
	"context"
	"time"

	"stokku/internal/core/apperror"
	appctx "stokku/internal/core/context"
	"stokku/internal/core/entity"
	"stokku/internal/core/id"
	"stokku/internal/core/tx"
	"stokku/internal/core/types"
	"stokku/internal/domain/costing"
	"stokku/internal/domain/ledger"
	"stokku/pkg/logger"
)

// StockPoster is the ledger write path as seen from purchasing.
type StockPoster interface {
	Post(ctx context.Context, req ledger.MovementRequest) (*ledger.MovementEntry, error)
}

// CostCalculator triggers unit-cost recomputation after receipts.
type CostCalculator interface {
	Calculate(ctx context.Context, req costing.CalculateRequest) (*costing.Result, error)
}

// Service manages purchase orders and posts goods receipts.
type Service struct {
	repo    Repository
	stock   StockPoster
	costing CostCalculator
	txm     tx.Manager
	audit   Auditor
}

// NewService creates a purchasing service. audit may be nil.
func NewService(repo Repository, stock StockPoster, costCalc CostCalculator, txm tx.Manager, audit Auditor) *Service {
	return &Service{repo: repo, stock: stock, costing: costCalc, txm: txm, audit: audit}
}

// Create stores a new draft purchase order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*PurchaseOrder, error) {
	if id.IsNil(req.SupplierID) {
		return nil, apperror.NewValidation("supplierId is required")
	}
	if id.IsNil(req.LocationID) {
		return nil, apperror.NewValidation("locationId is required")
	}
	if len(req.Lines) == 0 {
		return nil, apperror.NewValidation("at least one line is required")
	}

	number, err := s.repo.NextNumber(ctx)
	if err != nil {
		return nil, err
	}

	userID, _ := id.Parse(appctx.GetUserID(ctx))
	po := &PurchaseOrder{
		Document:     entity.NewDocument(number, userID),
		SupplierID:   req.SupplierID,
		LocationID:   req.LocationID,
		Status:       StatusDraft,
		ExpectedDate: req.ExpectedDate,
		TotalAmount:  types.Zero(),
	}
	po.Comment = req.Comment

	for _, l := range req.Lines {
		if id.IsNil(l.ProductID) {
			return nil, apperror.NewValidation("line productId is required")
		}
		if l.Quantity <= 0 {
			return nil, apperror.NewValidation("line quantity must be positive")
		}
		if l.UnitPrice.IsNegative() {
			return nil, apperror.NewValidation("line unitPrice must not be negative")
		}
		lineTotal := types.RoundMoney(l.UnitPrice.Mul(l.Quantity.Decimal()))
		po.Lines = append(po.Lines, &OrderLine{
			ID:              id.New(),
			PurchaseOrderID: po.ID,
			ProductID:       l.ProductID,
			QuantityOrdered: l.Quantity,
			UnitPrice:       l.UnitPrice,
			LineTotal:       lineTotal,
		})
		po.TotalAmount = po.TotalAmount.Add(lineTotal)
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, po)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "purchase_order.created", po)
	return po, nil
}

// GetByID returns an order with its lines.
func (s *Service) GetByID(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	return s.repo.GetByID(ctx, poID)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*PurchaseOrder, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Submit moves a draft order to pending approval.
func (s *Service) Submit(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusPending, "purchase_order.submitted", nil)
}

// Approve moves a pending order to approved, recording the approver.
func (s *Service) Approve(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusApproved, "purchase_order.approved", func(po *PurchaseOrder) {
		userID := appctx.GetUserID(ctx)
		now := time.Now().UTC()
		po.ApprovedBy = &userID
		po.ApprovedAt = &now
	})
}

// MarkOrdered records that the approved order has been sent to the supplier.
func (s *Service) MarkOrdered(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusOrdered, "purchase_order.ordered", nil)
}

// Cancel aborts an order. Not allowed once goods have fully arrived.
func (s *Service) Cancel(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusCancelled, "purchase_order.cancelled", nil)
}

func (s *Service) transition(ctx context.Context, poID id.ID, next Status, action string, mutate func(*PurchaseOrder)) (*PurchaseOrder, error) {
	var po *PurchaseOrder
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		po, err = s.repo.GetByIDForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if !po.Status.CanTransition(next) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"cannot transition purchase order from "+string(po.Status)+" to "+string(next)).
				WithDetail("from", po.Status).WithDetail("to", next)
		}
		po.Status = next
		if mutate != nil {
			mutate(po)
		}
		po.Touch()
		return s.repo.UpdateHeader(ctx, po)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, action, po)
	return po, nil
}

// PostReceipt records a goods-receipt event against an ordered purchase
// order. Lines are posted independently: one failing line never rolls
// back its siblings, and the result reports each outcome. Over-receipt
// (cumulative received above ordered) is flagged, not rejected.
func (s *Service) PostReceipt(ctx context.Context, poID id.ID, lines []ReceiptLine) (*ReceiptResult, error) {
	if len(lines) == 0 {
		return nil, apperror.NewValidation("at least one receipt line is required")
	}

	po, err := s.repo.GetByID(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status != StatusOrdered && po.Status != StatusPartial {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"goods can only be received against an ordered purchase order").
			WithDetail("status", po.Status)
	}

	result := &ReceiptResult{PurchaseOrderID: poID}
	received := make(map[id.ID]struct{})

	for _, rl := range lines {
		lr := s.receiveLine(ctx, poID, rl)
		result.Lines = append(result.Lines, lr)
		if lr.Posted {
			received[lr.ProductID] = struct{}{}
		}
	}

	// Roll up the order status from cumulative line quantities.
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetByIDForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		next := rollupStatus(locked)
		if next != locked.Status {
			locked.Status = next
			locked.Touch()
			if err := s.repo.UpdateHeader(ctx, locked); err != nil {
				return err
			}
		}
		result.Status = locked.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Cost recomputation runs after the stock transactions committed.
	// A costing failure does not fail the receipt.
	for productID := range received {
		refType := string(ledger.RefPurchaseOrder)
		refID := poID.String()
		if _, err := s.costing.Calculate(ctx, costing.CalculateRequest{
			ProductID:     productID,
			Reason:        costing.ReasonPurchasePosted,
			ReferenceType: &refType,
			ReferenceID:   &refID,
		}); err != nil {
			logger.Warn(ctx, "cost recalculation after receipt failed",
				"product_id", productID, "purchase_order_id", poID, "error", err)
		}
	}

	s.recordAudit(ctx, "purchase_order.receipt_posted", result)
	return result, nil
}

// receiveLine posts one receipt line in its own transaction. Lock
// contention on the stock row retries the whole line transaction, since
// a timed-out lock wait aborts it.
func (s *Service) receiveLine(ctx context.Context, poID id.ID, rl ReceiptLine) *LineResult {
	lr := &LineResult{LineID: rl.LineID}

	err := ledger.RetryOnContention(ctx, func(ctx context.Context) error {
		return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			po, err := s.repo.GetByIDForUpdate(ctx, poID)
			if err != nil {
				return err
			}

			var line *OrderLine
			for _, l := range po.Lines {
				if l.ID == rl.LineID {
					line = l
					break
				}
			}
			if line == nil {
				return apperror.NewNotFound("purchase order line", rl.LineID)
			}
			lr.ProductID = line.ProductID

			if rl.Quantity <= 0 {
				return apperror.NewValidation("receipt quantity must be positive")
			}

			if _, err := s.stock.Post(ctx, ledger.MovementRequest{
				ProductID:     line.ProductID,
				LocationID:    po.LocationID,
				MovementType:  ledger.MovementReceipt,
				Quantity:      rl.Quantity,
				UnitCost:      &line.UnitPrice,
				ReferenceType: ledger.RefPurchaseOrder,
				ReferenceID:   poID.String(),
				BatchNumber:   rl.BatchNumber,
				ExpiryDate:    rl.ExpiryDate,
			}); err != nil {
				return err
			}

			line.QuantityReceived += rl.Quantity
			if line.QuantityReceived > line.QuantityOrdered {
				line.OverReceipt = true
				logger.Warn(ctx, "over-receipt on purchase order line",
					"purchase_order_id", poID,
					"line_id", line.ID,
					"ordered", line.QuantityOrdered.String(),
					"received", line.QuantityReceived.String())
			}
			lr.OverReceipt = line.OverReceipt
			return s.repo.UpdateLine(ctx, line)
		})
	})
	if err != nil {
		if appErr, ok := apperror.AsAppError(err); ok {
			lr.Error = &LineError{Code: appErr.Code, Message: appErr.Message}
		} else {
			lr.Error = &LineError{Code: apperror.CodeInternal, Message: "failed to post receipt line"}
		}
		return lr
	}

	lr.Posted = true
	return lr
}

// rollupStatus derives the order status from its lines.
func rollupStatus(po *PurchaseOrder) Status {
	if po.Status == StatusCancelled {
		return StatusCancelled
	}
	allFull := true
	anyReceived := false
	for _, l := range po.Lines {
		if l.QuantityReceived > 0 {
			anyReceived = true
		}
		if l.QuantityReceived < l.QuantityOrdered {
			allFull = false
		}
	}
	switch {
	case allFull && anyReceived:
		return StatusReceived
	case anyReceived:
		return StatusPartial
	default:
		return po.Status
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, payload any) {
	if s.audit == nil {
		return
	}
	switch v := payload.(type) {
	case *PurchaseOrder:
		s.audit.Record(ctx, action, "purchase_order", v.ID.String(), v)
	case *ReceiptResult:
		s.audit.Record(ctx, action, "purchase_order", v.PurchaseOrderID.String(), v)
	}
}
