package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurum-erp/aurum/internal/inventory"
	"github.com/aurum-erp/aurum/internal/shared"
)

// CreateReturn posts a purchase return against a receipt. Each line moves
// stock back out through the ledger at the receipt line's original cost,
// decrements the receipt line's and order line's received amounts, and the
// order status is re-derived. Returns are approved at creation; there is no
// pending-approval stage.
func (s *Service) CreateReturn(ctx context.Context, input CreateReturnInput, idempotencyKey string) (Return, error) {
	if input.ReceiptID <= 0 {
		return Return{}, fmt.Errorf("%w: receipt required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Return{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "purchase_return"); err != nil {
			return Return{}, err
		}
	}
	returnDate := input.ReturnDate
	if returnDate.IsZero() {
		returnDate = time.Now().UTC()
	}

	var returnID int64
	var branchID int64
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		receipt, err := tx.GetReceiptForUpdate(ctx, input.ReceiptID)
		if err != nil {
			return err
		}
		if receipt.Status == ReceiptCancelled {
			return fmt.Errorf("%w: receipt is cancelled", shared.ErrInvalidState)
		}
		branchID = receipt.BranchID
		order, err := tx.GetOrderForUpdate(ctx, receipt.OrderID)
		if err != nil {
			return err
		}

		returnID, err = tx.InsertReturn(ctx, Return{
			Ref:        uuid.NewString(),
			ReceiptID:  receipt.ID,
			SupplierID: receipt.SupplierID,
			BranchID:   receipt.BranchID,
			ReturnDate: returnDate,
			Status:     "APPROVED",
			CreatedBy:  input.ActorID,
		})
		if err != nil {
			return err
		}
		totalCost, err := s.applyReturnLines(ctx, tx, &order, &receipt, returnID, input.ActorID, input.Lines)
		if err != nil {
			return err
		}
		if err := s.finishReturnReconciliation(ctx, tx, order, receipt); err != nil {
			return err
		}
		return tx.UpdateReturnTotal(ctx, returnID, totalCost)
	})
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, idempotencyKey); delErr != nil {
				s.logger.Warn("idempotency rollback failed", slog.String("key", idempotencyKey), slog.Any("error", delErr))
			}
		}
		return Return{}, err
	}
	s.metrics.IncReturnPosted()
	s.metrics.IncMovement(string(inventory.MovementReturn))
	s.cache.InvalidateBranch(ctx, branchID)
	s.recordAudit(ctx, input.ActorID, "return.create", returnID, map[string]any{"receipt_id": input.ReceiptID})
	return s.repo.GetReturn(ctx, returnID)
}

// applyReturnLines validates each requested line against the receipt line's
// remaining received amounts and posts the reversals.
func (s *Service) applyReturnLines(ctx context.Context, tx TxRepository, order *PurchaseOrder, receipt *Receipt, returnID, actorID int64, inputs []ReturnLineInput) (float64, error) {
	var totalCost float64
	for _, in := range inputs {
		var receiptLine *ReceiptLine
		for i := range receipt.Lines {
			if receipt.Lines[i].ID == in.ReceiptLineID {
				receiptLine = &receipt.Lines[i]
				break
			}
		}
		if receiptLine == nil {
			return 0, fmt.Errorf("%w: receipt line %d", shared.ErrNotFound, in.ReceiptLineID)
		}
		if in.Qty < 0 || in.Weight < 0 {
			return 0, fmt.Errorf("%w: negative return amounts", shared.ErrValidation)
		}
		if in.Qty <= 0 && in.Weight <= 0 {
			return 0, fmt.Errorf("%w: return line carries neither quantity nor weight", shared.ErrValidation)
		}
		remQty := receiptLine.Qty - receiptLine.ReturnedQty
		remWeight := receiptLine.Weight - receiptLine.ReturnedWeight
		if in.Qty > remQty+statusEpsilon || in.Weight > remWeight+statusEpsilon {
			return 0, fmt.Errorf("%w: return exceeds remaining received amounts", shared.ErrValidation)
		}

		lineCost := receiptLine.Cost*in.Qty + receiptLine.Cost*in.Weight
		if err := tx.InsertReturnLine(ctx, ReturnLine{
			ReturnID:      returnID,
			ReceiptLineID: receiptLine.ID,
			ItemID:        receiptLine.ItemID,
			Qty:           in.Qty,
			Weight:        in.Weight,
			Cost:          receiptLine.Cost,
			TotalCost:     lineCost,
		}); err != nil {
			return 0, err
		}
		// Reverse at the receipt line's cost so the ledger drops exactly the
		// contribution this stock added when it came in.
		if _, err := s.ledger.Apply(ctx, tx.Inventory(), inventory.MovementInput{
			BranchID:     receipt.BranchID,
			ItemID:       receiptLine.ItemID,
			QtyChange:    -in.Qty,
			WeightChange: -in.Weight,
			UnitCost:     receiptLine.Cost,
			Type:         inventory.MovementReturn,
			Note:         "purchase return",
			ActorID:      actorID,
			RefModule:    "purchase_return",
		}); err != nil {
			return 0, err
		}

		receiptLine.ReturnedQty += in.Qty
		receiptLine.ReturnedWeight += in.Weight
		if err := tx.UpdateReceiptLineReturned(ctx, receiptLine.ID, receiptLine.ReturnedQty, receiptLine.ReturnedWeight); err != nil {
			return 0, err
		}
		for i := range order.Lines {
			if order.Lines[i].ID != receiptLine.OrderLineID {
				continue
			}
			order.Lines[i].ReceivedQty = clampZero(order.Lines[i].ReceivedQty - in.Qty)
			order.Lines[i].ReceivedWeight = clampZero(order.Lines[i].ReceivedWeight - in.Weight)
			order.Lines[i].Status = DeriveLineStatus(order.Lines[i])
			if err := tx.UpdateOrderLineProgress(ctx, order.Lines[i]); err != nil {
				return 0, err
			}
			break
		}
		totalCost += lineCost
	}
	return totalCost, nil
}

// reverseReturnLines puts returned stock back in and restores the receipt
// and order line amounts. Used when a return is corrected or deleted.
func (s *Service) reverseReturnLines(ctx context.Context, tx TxRepository, order *PurchaseOrder, receipt *Receipt, ret Return, actorID int64) error {
	for _, line := range ret.Lines {
		var receiptLine *ReceiptLine
		for i := range receipt.Lines {
			if receipt.Lines[i].ID == line.ReceiptLineID {
				receiptLine = &receipt.Lines[i]
				break
			}
		}
		// The stock must not re-enter the ledger unless the receipt and order
		// sides can absorb the reversal too.
		if receiptLine == nil {
			return fmt.Errorf("%w: receipt line %d for return line %d", shared.ErrNotFound, line.ReceiptLineID, line.ID)
		}
		if _, err := s.ledger.Apply(ctx, tx.Inventory(), inventory.MovementInput{
			BranchID:     receipt.BranchID,
			ItemID:       line.ItemID,
			QtyChange:    line.Qty,
			WeightChange: line.Weight,
			UnitCost:     line.Cost,
			Type:         inventory.MovementReturn,
			Note:         "purchase return reversal",
			ActorID:      actorID,
			RefModule:    "purchase_return",
		}); err != nil {
			return err
		}
		receiptLine.ReturnedQty = clampZero(receiptLine.ReturnedQty - line.Qty)
		receiptLine.ReturnedWeight = clampZero(receiptLine.ReturnedWeight - line.Weight)
		if err := tx.UpdateReceiptLineReturned(ctx, receiptLine.ID, receiptLine.ReturnedQty, receiptLine.ReturnedWeight); err != nil {
			return err
		}
		for j := range order.Lines {
			if order.Lines[j].ID != receiptLine.OrderLineID {
				continue
			}
			order.Lines[j].ReceivedQty += line.Qty
			order.Lines[j].ReceivedWeight += line.Weight
			order.Lines[j].Status = DeriveLineStatus(order.Lines[j])
			if err := tx.UpdateOrderLineProgress(ctx, order.Lines[j]); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// UpdateReturn corrects a return by reversing the old lines and applying the
// new list.
func (s *Service) UpdateReturn(ctx context.Context, id int64, lines []ReturnLineInput, actorID int64) (Return, error) {
	if len(lines) == 0 {
		return Return{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	var branchID int64
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		ret, err := tx.GetReturnForUpdate(ctx, id)
		if err != nil {
			return err
		}
		receipt, err := tx.GetReceiptForUpdate(ctx, ret.ReceiptID)
		if err != nil {
			return err
		}
		branchID = receipt.BranchID
		order, err := tx.GetOrderForUpdate(ctx, receipt.OrderID)
		if err != nil {
			return err
		}
		if err := s.reverseReturnLines(ctx, tx, &order, &receipt, ret, actorID); err != nil {
			return err
		}
		if err := tx.DeleteReturnLines(ctx, id); err != nil {
			return err
		}
		totalCost, err := s.applyReturnLines(ctx, tx, &order, &receipt, id, actorID, lines)
		if err != nil {
			return err
		}
		if err := s.finishReturnReconciliation(ctx, tx, order, receipt); err != nil {
			return err
		}
		return tx.UpdateReturnTotal(ctx, id, totalCost)
	})
	if err != nil {
		return Return{}, err
	}
	s.cache.InvalidateBranch(ctx, branchID)
	s.recordAudit(ctx, actorID, "return.update", id, nil)
	return s.repo.GetReturn(ctx, id)
}

// DeleteReturn reverses a return and removes it.
func (s *Service) DeleteReturn(ctx context.Context, id, actorID int64) error {
	var branchID int64
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		ret, err := tx.GetReturnForUpdate(ctx, id)
		if err != nil {
			return err
		}
		receipt, err := tx.GetReceiptForUpdate(ctx, ret.ReceiptID)
		if err != nil {
			return err
		}
		branchID = receipt.BranchID
		order, err := tx.GetOrderForUpdate(ctx, receipt.OrderID)
		if err != nil {
			return err
		}
		if err := s.reverseReturnLines(ctx, tx, &order, &receipt, ret, actorID); err != nil {
			return err
		}
		if err := tx.DeleteReturnLines(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteReturn(ctx, id); err != nil {
			return err
		}
		return s.finishReturnReconciliation(ctx, tx, order, receipt)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateBranch(ctx, branchID)
	s.recordAudit(ctx, actorID, "return.delete", id, nil)
	return nil
}

// GetReturn loads one return with its lines.
func (s *Service) GetReturn(ctx context.Context, id int64) (Return, error) {
	return s.repo.GetReturn(ctx, id)
}

// ListReturns pages through returns, optionally for one receipt.
func (s *Service) ListReturns(ctx context.Context, receiptID int64, limit, offset int) ([]Return, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListReturns(ctx, receiptID, limit, offset)
}

// finishReturnReconciliation recomputes the receipt's fully-returned flag
// and the order status after return lines changed.
func (s *Service) finishReturnReconciliation(ctx context.Context, tx TxRepository, order PurchaseOrder, receipt Receipt) error {
	fullyReturned := true
	for _, line := range receipt.Lines {
		if line.Qty-line.ReturnedQty > statusEpsilon || line.Weight-line.ReturnedWeight > statusEpsilon {
			fullyReturned = false
			break
		}
	}
	if fullyReturned != receipt.IsFullyReturned {
		if err := tx.SetReceiptFullyReturned(ctx, receipt.ID, fullyReturned); err != nil {
			return err
		}
	}
	return s.persistOrderDerivation(ctx, tx, order, true)
}
