package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aurum-erp/aurum/internal/shared"
)

const balanceEpsilon = 1e-4

// Ledger applies stock movements against a transactional repository. It is
// the one place the non-negative-stock invariant and the weighted-average
// recomputation live; receipts, returns, adjustments and transfers all go
// through Apply.
type Ledger struct {
	allowNegative bool
}

// NewLedger constructs a Ledger.
func NewLedger(allowNegative bool) *Ledger {
	return &Ledger{allowNegative: allowNegative}
}

// Apply posts one movement inside the caller's transaction and returns the
// resulting card entry. The balance row is locked for the duration of the
// transaction, so concurrent movements against the same (item, branch)
// serialize instead of losing updates.
func (l *Ledger) Apply(ctx context.Context, tx TxRepository, params MovementInput) (StockCardEntry, error) {
	if params.BranchID == 0 || params.ItemID == 0 {
		return StockCardEntry{}, fmt.Errorf("%w: branch and item required", shared.ErrValidation)
	}
	if math.Abs(params.QtyChange) < balanceEpsilon && math.Abs(params.WeightChange) < balanceEpsilon {
		return StockCardEntry{}, ErrInvalidQuantity
	}
	if params.UnitCost < 0 {
		return StockCardEntry{}, ErrInvalidUnitCost
	}
	now := time.Now().UTC()
	code := params.Code
	if code == "" {
		code = fmt.Sprintf("MV-%d", now.UnixNano())
	}
	if params.RefID != "" {
		if _, err := uuid.Parse(params.RefID); err != nil {
			return StockCardEntry{}, fmt.Errorf("inventory: invalid ref id: %w", err)
		}
	}

	balance, err := tx.GetBalanceForUpdate(ctx, params.ItemID, params.BranchID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return StockCardEntry{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{ItemID: params.ItemID, BranchID: params.BranchID}
	}

	newQty := balance.Qty + params.QtyChange
	newWeight := balance.Weight + params.WeightChange
	if !l.allowNegative && (newQty < -balanceEpsilon || newWeight < -balanceEpsilon) {
		return StockCardEntry{}, shared.ErrInsufficientStock
	}
	if math.Abs(newQty) < balanceEpsilon {
		newQty = 0
	}
	if math.Abs(newWeight) < balanceEpsilon {
		newWeight = 0
	}

	// The average-cost base is the combined quantity+weight scalar; the
	// source system never separated the two dimensions.
	scalar := params.QtyChange + params.WeightChange
	unitCost := params.UnitCost
	if scalar < 0 && unitCost == 0 {
		unitCost = balance.AvgCost
	}
	newValue := balance.TotalValue + unitCost*scalar
	if newValue < 0 {
		newValue = 0
	}
	denom := newQty + newWeight
	var newAvg float64
	if denom > balanceEpsilon {
		newAvg = newValue / denom
	} else {
		newAvg = 0
		newValue = 0
	}

	header := Movement{
		Code:      code,
		Type:      params.Type,
		BranchID:  params.BranchID,
		RefModule: params.RefModule,
		RefID:     params.RefID,
		Note:      params.Note,
		PostedAt:  now,
		CreatedBy: params.ActorID,
	}
	movementID, err := tx.InsertMovement(ctx, header)
	if err != nil {
		return StockCardEntry{}, err
	}
	line := MovementLine{
		MovementID: movementID,
		ItemID:     params.ItemID,
		Qty:        params.QtyChange,
		Weight:     params.WeightChange,
		UnitCost:   unitCost,
	}
	if scalar < 0 {
		line.SrcBranchID = params.BranchID
	} else {
		line.DstBranchID = params.BranchID
	}
	if err := tx.InsertMovementLine(ctx, line); err != nil {
		return StockCardEntry{}, err
	}

	balance.Qty = newQty
	balance.Weight = newWeight
	balance.AvgCost = newAvg
	balance.TotalValue = newValue
	balance.UpdatedBy = params.ActorID
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return StockCardEntry{}, err
	}

	card := StockCardEntry{
		TxCode:        code,
		TxType:        params.Type,
		PostedAt:      now,
		QtyIn:         math.Max(params.QtyChange, 0),
		QtyOut:        math.Max(-params.QtyChange, 0),
		WeightIn:      math.Max(params.WeightChange, 0),
		WeightOut:     math.Max(-params.WeightChange, 0),
		BalanceQty:    newQty,
		BalanceWeight: newWeight,
		UnitCost:      unitCost,
		BalanceCost:   newAvg,
		Note:          params.Note,
	}
	if err := tx.InsertCardEntry(ctx, card, params.ItemID, params.BranchID, movementID); err != nil {
		return StockCardEntry{}, err
	}
	return card, nil
}
