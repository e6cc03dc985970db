package inventory

import (
	"fmt"
	"time"

	"github.com/aurum-erp/aurum/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement (goods receipt).
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement (issue or receipt reversal).
	MovementOut MovementType = "OUT"
	// MovementReturn represents a purchase return back to the supplier.
	MovementReturn MovementType = "RETURN"
	// MovementAdjust indicates manual adjustments.
	MovementAdjust MovementType = "ADJUST"
	// MovementTransfer is used for branch-to-branch transfer legs.
	MovementTransfer MovementType = "TRANSFER"
)

// Movement models the header of a stock movement.
type Movement struct {
	ID        int64
	Code      string
	Type      MovementType
	BranchID  int64
	RefModule string
	RefID     string
	Note      string
	PostedAt  time.Time
	CreatedBy int64
	CreatedAt time.Time
}

// MovementLine models each item movement line.
type MovementLine struct {
	ID          int64
	MovementID  int64
	ItemID      int64
	Qty         float64
	Weight      float64
	UnitCost    float64
	SrcBranchID int64
	DstBranchID int64
}

// Balance is the running stock per (item, branch). AvgCost is the moving
// average over the combined quantity+weight scalar, and TotalValue is kept
// explicitly so the invariant avg_cost * (qty + weight) == total_value holds.
type Balance struct {
	ItemID     int64     `json:"item_id"`
	BranchID   int64     `json:"branch_id"`
	Qty        float64   `json:"current_quantity"`
	Weight     float64   `json:"current_weight"`
	AvgCost    float64   `json:"average_cost"`
	TotalValue float64   `json:"total_value"`
	UpdatedBy  int64     `json:"updated_by"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StockCardEntry describes one ledger card entry with running balances.
type StockCardEntry struct {
	TxCode        string       `json:"tx_code"`
	TxType        MovementType `json:"tx_type"`
	PostedAt      time.Time    `json:"posted_at"`
	QtyIn         float64      `json:"qty_in"`
	QtyOut        float64      `json:"qty_out"`
	WeightIn      float64      `json:"weight_in"`
	WeightOut     float64      `json:"weight_out"`
	BalanceQty    float64      `json:"balance_qty"`
	BalanceWeight float64      `json:"balance_weight"`
	UnitCost      float64      `json:"unit_cost"`
	BalanceCost   float64      `json:"balance_cost"`
	Note          string       `json:"note"`
}

// MovementInput is the single entry point payload for every ledger mutation.
// QtyChange and WeightChange are signed; UnitCost carries the cost basis for
// inbound stock, and for outbound stock it removes the original contribution
// when set (receipt reversals) or falls back to the moving average (issues).
type MovementInput struct {
	Code         string
	BranchID     int64
	ItemID       int64
	QtyChange    float64
	WeightChange float64
	UnitCost     float64
	Type         MovementType
	Note         string
	ActorID      int64
	RefModule    string
	RefID        string
}

// AdjustmentInput describes a manual stock adjustment request.
type AdjustmentInput struct {
	Code     string
	BranchID int64
	ItemID   int64
	Qty      float64
	Weight   float64
	UnitCost float64
	Note     string
	ActorID  int64
}

// TransferInput describes a transfer request between branches.
type TransferInput struct {
	Code      string
	ItemID    int64
	Qty       float64
	Weight    float64
	SrcBranch int64
	DstBranch int64
	UnitCost  float64
	Note      string
	ActorID   int64
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	BranchID int64
	ItemID   int64
	From     time.Time
	To       time.Time
	Limit    int
}

// ErrInvalidQuantity indicates a movement without any quantity or weight.
var ErrInvalidQuantity = fmt.Errorf("%w: quantity or weight must be non zero", shared.ErrValidation)

// ErrInvalidUnitCost indicates an invalid cost value.
var ErrInvalidUnitCost = fmt.Errorf("%w: unit cost must be >= 0", shared.ErrValidation)
