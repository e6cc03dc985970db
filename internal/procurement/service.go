package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurum-erp/aurum/internal/inventory"
	"github.com/aurum-erp/aurum/internal/masterdata/items"
	"github.com/aurum-erp/aurum/internal/observability"
	"github.com/aurum-erp/aurum/internal/shared"
)

// Policy carries the configurable business rules.
type Policy struct {
	// AutoApproveDraftOnReceipt transitions a DRAFT order to APPROVED when
	// its first receipt arrives instead of rejecting the receipt.
	AutoApproveDraftOnReceipt bool
}

// Service implements the purchase order, receipt and return workflows. All
// multi-entity reconciliation runs inside one database transaction: the
// receipt document, the order line progress and the stock ledger either all
// commit or none do.
type Service struct {
	logger      *slog.Logger
	repo        Repository
	ledger      *inventory.Ledger
	cache       *inventory.StockCache
	audit       *shared.AuditLogger
	approvals   *shared.ApprovalRecorder
	idempotency *shared.IdempotencyStore
	metrics     *observability.Metrics
	policy      Policy
}

// NewService wires the procurement service. cache, audit, approvals,
// idempotency and metrics may be nil in tests.
func NewService(
	logger *slog.Logger,
	repo Repository,
	ledger *inventory.Ledger,
	cache *inventory.StockCache,
	audit *shared.AuditLogger,
	approvals *shared.ApprovalRecorder,
	idempotency *shared.IdempotencyStore,
	metrics *observability.Metrics,
	policy Policy,
) *Service {
	return &Service{
		logger:      logger,
		repo:        repo,
		ledger:      ledger,
		cache:       cache,
		audit:       audit,
		approvals:   approvals,
		idempotency: idempotency,
		metrics:     metrics,
		policy:      policy,
	}
}

// CreateOrder persists a purchase order with its lines. Draft orders stay
// editable; non-draft orders are created already approved.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if input.SupplierID <= 0 || input.BranchID <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier and branch required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	status := OrderApproved
	if input.Draft {
		status = OrderDraft
	}
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("PO-%d", time.Now().UnixNano())
	}
	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		var totalCost float64
		lines := make([]OrderLine, 0, len(input.Lines))
		for _, in := range input.Lines {
			item, err := tx.GetItem(ctx, in.ItemID)
			if err != nil {
				return err
			}
			if in.Qty < 0 || in.Weight < 0 || in.Rate < 0 {
				return fmt.Errorf("%w: negative amounts on item %s", shared.ErrValidation, item.SKU)
			}
			if in.Qty == 0 && in.Weight == 0 {
				return fmt.Errorf("%w: item %s orders neither quantity nor weight", shared.ErrValidation, item.SKU)
			}
			line := OrderLine{
				ItemID: in.ItemID,
				Qty:    in.Qty,
				Weight: in.Weight,
				Rate:   in.Rate,
				Metal:  in.Metal,
				Purity: in.Purity,
				Stone:  in.Stone,
				Status: LinePending,
			}
			totalCost += in.Rate * (in.Qty + in.Weight)
			lines = append(lines, line)
		}
		var err error
		orderID, err = tx.InsertOrder(ctx, PurchaseOrder{
			Code:       code,
			SupplierID: input.SupplierID,
			BranchID:   input.BranchID,
			Currency:   currency,
			TotalCost:  totalCost,
			Status:     status,
			Remark:     input.Remark,
			CreatedBy:  input.ActorID,
		})
		if err != nil {
			return err
		}
		for i := range lines {
			lines[i].OrderID = orderID
			if _, err := tx.InsertOrderLine(ctx, lines[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.ActorID, "order.create", orderID, map[string]any{"code": code, "status": status})
	return s.repo.GetOrder(ctx, orderID)
}

// GetOrder loads one order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders pages through orders, optionally by status and branch.
func (s *Service) ListOrders(ctx context.Context, status OrderStatus, branchID int64, limit, offset int) ([]PurchaseOrder, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown order status %q", shared.ErrValidation, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOrders(ctx, status, branchID, limit, offset)
}

// ApproveOrder transitions DRAFT to APPROVED and records the approval.
func (s *Service) ApproveOrder(ctx context.Context, id, actorID int64) error {
	var ref string
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != OrderDraft {
			return fmt.Errorf("%w: order is %s, only DRAFT can be approved", shared.ErrInvalidState, order.Status)
		}
		ref = order.Code
		return tx.UpdateOrderStatus(ctx, id, OrderApproved, "")
	})
	if err != nil {
		return err
	}
	s.recordApproval(ctx, "purchase_order", id, actorID, shared.ApprovalApprove, ref)
	s.recordAudit(ctx, actorID, "order.approve", id, nil)
	return nil
}

// CancelOrder cancels an order that has not completed.
func (s *Service) CancelOrder(ctx context.Context, id, actorID int64, remark string) error {
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch order.Status {
		case OrderCompleted, OrderCancelled:
			return fmt.Errorf("%w: order is %s", shared.ErrInvalidState, order.Status)
		}
		active, err := tx.CountActiveReceipts(ctx, id, 0)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: order has %d active receipts, reverse them first", shared.ErrInvalidState, active)
		}
		return tx.UpdateOrderStatus(ctx, id, OrderCancelled, remark)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "order.cancel", id, map[string]any{"remark": remark})
	return nil
}

// OverrideOrderStatus sets the order status directly. This is the manual
// escape hatch; normal flow derives status from quantities.
func (s *Service) OverrideOrderStatus(ctx context.Context, id int64, status OrderStatus, remark string, actorID int64) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown order status %q", shared.ErrValidation, status)
	}
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		if _, err := tx.GetOrderForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.UpdateOrderStatus(ctx, id, status, remark)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "order.status_override", id, map[string]any{"status": status})
	return nil
}

// OverrideLineStatus sets one line's status directly.
func (s *Service) OverrideLineStatus(ctx context.Context, orderID, lineID int64, status LineStatus, actorID int64) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown line status %q", shared.ErrValidation, status)
	}
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		for _, line := range order.Lines {
			if line.ID == lineID {
				line.Status = status
				return tx.UpdateOrderLineProgress(ctx, line)
			}
		}
		return fmt.Errorf("%w: order line %d", shared.ErrNotFound, lineID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "order.line_status_override", orderID, map[string]any{"line_id": lineID, "status": status})
	return nil
}

// CreateReceipt posts a goods receipt against an order: it validates every
// line against the item's tracking mode and the order line's remaining
// amounts, moves stock in through the ledger, advances the order line
// progress and derives the order status, all in one transaction.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput, idempotencyKey string) (Receipt, error) {
	if input.OrderID <= 0 || input.BranchID <= 0 {
		return Receipt{}, fmt.Errorf("%w: order and branch required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Receipt{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "receipt"); err != nil {
			return Receipt{}, err
		}
	}
	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = time.Now().UTC()
	}

	var receiptID int64
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == OrderDraft {
			if !s.policy.AutoApproveDraftOnReceipt {
				return fmt.Errorf("%w: order is DRAFT", shared.ErrInvalidState)
			}
			if err := tx.UpdateOrderStatus(ctx, order.ID, OrderApproved, "auto-approved on first receipt"); err != nil {
				return err
			}
			order.Status = OrderApproved
		}
		switch order.Status {
		case OrderApproved, OrderPartiallyReceived, OrderReturned:
		default:
			return fmt.Errorf("%w: order is %s, receipts need APPROVED or PARTIALLY_RECEIVED", shared.ErrInvalidState, order.Status)
		}

		receiptID, err = tx.InsertReceipt(ctx, Receipt{
			Ref:          uuid.NewString(),
			OrderID:      order.ID,
			SupplierID:   order.SupplierID,
			BranchID:     input.BranchID,
			ReceivedDate: receivedDate,
			Status:       ReceiptReceived,
			ReceivedBy:   input.ReceivedBy,
		})
		if err != nil {
			return err
		}
		totalItems, totalCost, err := s.applyReceiptLines(ctx, tx, &order, receiptID, input.BranchID, input.ReceivedBy, input.Lines)
		if err != nil {
			return err
		}
		receipt, err := tx.GetReceiptForUpdate(ctx, receiptID)
		if err != nil {
			return err
		}
		receipt.TotalItems = totalItems
		receipt.TotalCost = totalCost
		if err := tx.UpdateReceiptHeader(ctx, receipt); err != nil {
			return err
		}
		return s.persistOrderDerivation(ctx, tx, order, false)
	})
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, idempotencyKey); delErr != nil {
				s.logger.Warn("idempotency rollback failed", slog.String("key", idempotencyKey), slog.Any("error", delErr))
			}
		}
		return Receipt{}, err
	}
	s.metrics.IncReceiptPosted()
	s.metrics.IncMovement(string(inventory.MovementIn))
	s.cache.InvalidateBranch(ctx, input.BranchID)
	s.recordAudit(ctx, input.ReceivedBy, "receipt.create", receiptID, map[string]any{"order_id": input.OrderID})
	return s.repo.GetReceipt(ctx, receiptID)
}

// applyReceiptLines validates and posts each requested line, mutating the
// order's lines in place with their new received amounts and statuses.
func (s *Service) applyReceiptLines(ctx context.Context, tx TxRepository, order *PurchaseOrder, receiptID, branchID, actorID int64, inputs []ReceiptLineInput) (int, float64, error) {
	var totalCost float64
	for _, in := range inputs {
		var orderLine *OrderLine
		for i := range order.Lines {
			if order.Lines[i].ID == in.OrderLineID {
				orderLine = &order.Lines[i]
				break
			}
		}
		if orderLine == nil {
			return 0, 0, fmt.Errorf("%w: order line %d", shared.ErrNotFound, in.OrderLineID)
		}
		item, err := tx.GetItem(ctx, orderLine.ItemID)
		if err != nil {
			return 0, 0, err
		}
		if err := enforceTracking(item, in.Qty, in.Weight); err != nil {
			return 0, 0, err
		}
		if in.Cost < 0 {
			return 0, 0, fmt.Errorf("%w: negative cost on item %s", shared.ErrValidation, item.SKU)
		}
		if orderLine.ReceivedQty+in.Qty > orderLine.Qty+statusEpsilon {
			return 0, 0, fmt.Errorf("%w: item %s would exceed ordered quantity", shared.ErrValidation, item.SKU)
		}
		if orderLine.ReceivedWeight+in.Weight > orderLine.Weight+statusEpsilon {
			return 0, 0, fmt.Errorf("%w: item %s would exceed ordered weight", shared.ErrValidation, item.SKU)
		}

		lineCost := in.Cost*in.Qty + in.Cost*in.Weight
		metal, purity, stone := mergeAttributes(*orderLine, item)
		line := ReceiptLine{
			ReceiptID:     receiptID,
			OrderLineID:   orderLine.ID,
			ItemID:        orderLine.ItemID,
			OrderedQty:    orderLine.Qty,
			OrderedWeight: orderLine.Weight,
			Qty:           in.Qty,
			Weight:        in.Weight,
			Cost:          in.Cost,
			TotalCost:     lineCost,
			Metal:         metal,
			Purity:        purity,
			Stone:         stone,
		}
		if _, err := tx.InsertReceiptLine(ctx, line); err != nil {
			return 0, 0, err
		}
		if _, err := s.ledger.Apply(ctx, tx.Inventory(), inventory.MovementInput{
			BranchID:     branchID,
			ItemID:       orderLine.ItemID,
			QtyChange:    in.Qty,
			WeightChange: in.Weight,
			UnitCost:     in.Cost,
			Type:         inventory.MovementIn,
			Note:         fmt.Sprintf("receipt against %s", order.Code),
			ActorID:      actorID,
			RefModule:    "receipt",
		}); err != nil {
			return 0, 0, err
		}
		orderLine.ReceivedQty += in.Qty
		orderLine.ReceivedWeight += in.Weight
		orderLine.Status = DeriveLineStatus(*orderLine)
		if err := tx.UpdateOrderLineProgress(ctx, *orderLine); err != nil {
			return 0, 0, err
		}
		totalCost += lineCost
	}
	return len(inputs), totalCost, nil
}

// reverseReceiptLines undoes what remains of a receipt's ledger and order
// effects. Returned amounts were already reversed by their returns, so only
// the remainder moves back out.
func (s *Service) reverseReceiptLines(ctx context.Context, tx TxRepository, order *PurchaseOrder, receipt Receipt, actorID int64) error {
	for _, line := range receipt.Lines {
		remQty := line.Qty - line.ReturnedQty
		remWeight := line.Weight - line.ReturnedWeight
		if remQty > statusEpsilon || remWeight > statusEpsilon {
			if _, err := s.ledger.Apply(ctx, tx.Inventory(), inventory.MovementInput{
				BranchID:     receipt.BranchID,
				ItemID:       line.ItemID,
				QtyChange:    -remQty,
				WeightChange: -remWeight,
				UnitCost:     line.Cost,
				Type:         inventory.MovementOut,
				Note:         "receipt reversal",
				ActorID:      actorID,
				RefModule:    "receipt",
			}); err != nil {
				return err
			}
		}
		for i := range order.Lines {
			if order.Lines[i].ID != line.OrderLineID {
				continue
			}
			order.Lines[i].ReceivedQty = clampZero(order.Lines[i].ReceivedQty - remQty)
			order.Lines[i].ReceivedWeight = clampZero(order.Lines[i].ReceivedWeight - remWeight)
			order.Lines[i].Status = DeriveLineStatus(order.Lines[i])
			if err := tx.UpdateOrderLineProgress(ctx, order.Lines[i]); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// UpdateReceipt corrects a posted receipt by reversing every existing line
// and re-applying the new list. Only DRAFT or RECEIVED receipts may change.
func (s *Service) UpdateReceipt(ctx context.Context, id int64, lines []ReceiptLineInput, actorID int64) (Receipt, error) {
	if len(lines) == 0 {
		return Receipt{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	var branchID int64
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		receipt, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch receipt.Status {
		case ReceiptDraft, ReceiptReceived:
		default:
			return fmt.Errorf("%w: receipt is %s", shared.ErrInvalidState, receipt.Status)
		}
		// Returns reference receipt lines by id; recreating the lines would
		// strand them, so the returns have to go first.
		active, err := tx.CountActiveReturns(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: receipt has %d returns, delete them first", shared.ErrInvalidState, active)
		}
		branchID = receipt.BranchID
		order, err := tx.GetOrderForUpdate(ctx, receipt.OrderID)
		if err != nil {
			return err
		}
		if err := s.reverseReceiptLines(ctx, tx, &order, receipt, actorID); err != nil {
			return err
		}
		if err := tx.DeleteReceiptLines(ctx, id); err != nil {
			return err
		}
		totalItems, totalCost, err := s.applyReceiptLines(ctx, tx, &order, id, receipt.BranchID, actorID, lines)
		if err != nil {
			return err
		}
		receipt.TotalItems = totalItems
		receipt.TotalCost = totalCost
		receipt.IsFullyReturned = false
		if err := tx.UpdateReceiptHeader(ctx, receipt); err != nil {
			return err
		}
		return s.persistOrderDerivation(ctx, tx, order, false)
	})
	if err != nil {
		return Receipt{}, err
	}
	s.cache.InvalidateBranch(ctx, branchID)
	s.recordAudit(ctx, actorID, "receipt.update", id, nil)
	return s.repo.GetReceipt(ctx, id)
}

// DeleteReceipt reverses a receipt's remaining effects and removes it.
// Verified receipts are immutable.
func (s *Service) DeleteReceipt(ctx context.Context, id, actorID int64) error {
	var branchID int64
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		receipt, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if receipt.Status == ReceiptVerified {
			return fmt.Errorf("%w: verified receipts cannot be deleted", shared.ErrInvalidState)
		}
		active, err := tx.CountActiveReturns(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: receipt has %d returns, delete them first", shared.ErrInvalidState, active)
		}
		branchID = receipt.BranchID
		order, err := tx.GetOrderForUpdate(ctx, receipt.OrderID)
		if err != nil {
			return err
		}
		if err := s.reverseReceiptLines(ctx, tx, &order, receipt, actorID); err != nil {
			return err
		}
		if err := tx.DeleteReceiptLines(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteReceipt(ctx, id); err != nil {
			return err
		}
		return s.persistOrderDerivation(ctx, tx, order, false)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateBranch(ctx, branchID)
	s.recordAudit(ctx, actorID, "receipt.delete", id, nil)
	return nil
}

// VerifyReceipt is a one-way RECEIVED to VERIFIED transition with no ledger
// effect; it is an approval checkpoint.
func (s *Service) VerifyReceipt(ctx context.Context, id, verifiedBy int64) error {
	var ref string
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		receipt, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if receipt.Status == ReceiptVerified {
			return fmt.Errorf("%w: receipt already verified", shared.ErrInvalidState)
		}
		if receipt.Status != ReceiptReceived {
			return fmt.Errorf("%w: receipt is %s, only RECEIVED can be verified", shared.ErrInvalidState, receipt.Status)
		}
		if receipt.IsFullyReturned {
			return fmt.Errorf("%w: receipt is fully returned", shared.ErrInvalidState)
		}
		ref = receipt.Ref
		receipt.Status = ReceiptVerified
		receipt.VerifiedBy = verifiedBy
		return tx.UpdateReceiptHeader(ctx, receipt)
	})
	if err != nil {
		return err
	}
	if s.approvals != nil && ref != "" {
		if parsed, parseErr := uuid.Parse(ref); parseErr == nil {
			if recErr := s.approvals.Record(ctx, shared.ApprovalLog{
				Module:  "receipt",
				RefID:   parsed,
				ActorID: verifiedBy,
				Action:  shared.ApprovalApprove,
			}); recErr != nil {
				s.logger.Warn("record verification approval", slog.Any("error", recErr))
			}
		}
	}
	s.recordAudit(ctx, verifiedBy, "receipt.verify", id, nil)
	return nil
}

// GetReceipt loads one receipt with its lines.
func (s *Service) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts pages through receipts; activeOnly hides cancelled and fully
// returned ones.
func (s *Service) ListReceipts(ctx context.Context, orderID int64, activeOnly bool, limit, offset int) ([]Receipt, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListReceipts(ctx, orderID, activeOnly, limit, offset)
}

// persistOrderDerivation recomputes and stores the order status from the
// current line state.
func (s *Service) persistOrderDerivation(ctx context.Context, tx TxRepository, order PurchaseOrder, afterReturn bool) error {
	status := DeriveOrderStatus(order.Lines, afterReturn)
	if status == order.Status {
		return nil
	}
	return tx.UpdateOrderStatus(ctx, order.ID, status, "")
}

func enforceTracking(item items.Item, qty, weight float64) error {
	switch item.TrackBy {
	case items.TrackByQuantity:
		if qty <= 0 {
			return fmt.Errorf("%w: item %s is quantity-tracked and needs a quantity", shared.ErrValidation, item.SKU)
		}
		if weight > 0 {
			return fmt.Errorf("%w: item %s is quantity-tracked and must not carry weight", shared.ErrValidation, item.SKU)
		}
	case items.TrackByWeight:
		if weight <= 0 {
			return fmt.Errorf("%w: item %s is weight-tracked and needs a weight", shared.ErrValidation, item.SKU)
		}
		if qty > 0 {
			return fmt.Errorf("%w: item %s is weight-tracked and must not carry quantity", shared.ErrValidation, item.SKU)
		}
	case items.TrackByBoth:
		if qty <= 0 && weight <= 0 {
			return fmt.Errorf("%w: item %s needs a quantity or a weight", shared.ErrValidation, item.SKU)
		}
	default:
		return fmt.Errorf("%w: item %s has unknown tracking mode %q", shared.ErrValidation, item.SKU, item.TrackBy)
	}
	return nil
}

// mergeAttributes resolves the descriptive attributes recorded on a receipt
// line: the order line wins over the item's defaults, and purity lists union
// as a set.
func mergeAttributes(line OrderLine, item items.Item) (metal string, purity []string, stone string) {
	metal = line.Metal
	if metal == "" {
		metal = item.Metal
	}
	stone = line.Stone
	if stone == "" {
		stone = item.Stone
	}
	seen := map[string]bool{}
	for _, p := range append(append([]string{}, line.Purity...), item.Purity...) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		purity = append(purity, p)
	}
	return metal, purity, stone
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "procurement",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) recordApproval(ctx context.Context, module string, entityID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	// Approvals key on UUIDs; derive a stable one from the entity identity.
	ref := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", module, entityID)))
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  module,
		RefID:   ref,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	}); err != nil {
		s.logger.Warn("record approval", slog.String("module", module), slog.Any("error", err))
	}
}
