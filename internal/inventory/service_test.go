package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurum-erp/aurum/internal/shared"
)

type memRepo struct {
	balances  map[string]Balance
	movements []Movement
	lines     []MovementLine
	cards     []StockCardEntry
	nextID    int64
}

func newMemRepo() *memRepo {
	return &memRepo{balances: map[string]Balance{}}
}

func balKey(itemID, branchID int64) string {
	return fmt.Sprintf("%d:%d", itemID, branchID)
}

func (m *memRepo) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	snapshot := make(map[string]Balance, len(m.balances))
	for k, v := range m.balances {
		snapshot[k] = v
	}
	movements, lines, cards := len(m.movements), len(m.lines), len(m.cards)
	if err := fn(m); err != nil {
		m.balances = snapshot
		m.movements = m.movements[:movements]
		m.lines = m.lines[:lines]
		m.cards = m.cards[:cards]
		return err
	}
	return nil
}

func (m *memRepo) GetBalanceForUpdate(_ context.Context, itemID, branchID int64) (Balance, error) {
	b, ok := m.balances[balKey(itemID, branchID)]
	if !ok {
		return Balance{}, ErrBalanceNotFound
	}
	return b, nil
}

func (m *memRepo) UpsertBalance(_ context.Context, b Balance) error {
	m.balances[balKey(b.ItemID, b.BranchID)] = b
	return nil
}

func (m *memRepo) InsertMovement(_ context.Context, mv Movement) (int64, error) {
	m.nextID++
	mv.ID = m.nextID
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memRepo) InsertMovementLine(_ context.Context, l MovementLine) error {
	m.lines = append(m.lines, l)
	return nil
}

func (m *memRepo) InsertCardEntry(_ context.Context, e StockCardEntry, _, _, _ int64) error {
	m.cards = append(m.cards, e)
	return nil
}

func (m *memRepo) GetBalance(_ context.Context, itemID, branchID int64) (Balance, error) {
	b, ok := m.balances[balKey(itemID, branchID)]
	if !ok {
		return Balance{}, ErrBalanceNotFound
	}
	return b, nil
}

func (m *memRepo) ListBalances(_ context.Context, branchID int64, _ string, _, _ int) ([]Balance, int64, error) {
	var out []Balance
	for _, b := range m.balances {
		if branchID == 0 || b.BranchID == branchID {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memRepo) GetStockCard(_ context.Context, f StockCardFilter) ([]StockCardEntry, error) {
	return m.cards, nil
}

func (m *memRepo) SumValueDrift(_ context.Context, _ float64) (int64, error) {
	return 0, nil
}

func newTestService(repo Repository) *Service {
	logger := slog.Default()
	return NewService(logger, repo, NewLedger(false), nil, nil, nil)
}

func TestLedgerMovingAverage(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(false)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx TxRepository) error {
		_, err := ledger.Apply(ctx, tx, MovementInput{
			BranchID: 1, ItemID: 7, QtyChange: 10, WeightChange: 0, UnitCost: 100, Type: MovementIn,
		})
		return err
	})
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(tx TxRepository) error {
		_, err := ledger.Apply(ctx, tx, MovementInput{
			BranchID: 1, ItemID: 7, QtyChange: 10, WeightChange: 0, UnitCost: 200, Type: MovementIn,
		})
		return err
	})
	require.NoError(t, err)

	bal := repo.balances[balKey(7, 1)]
	require.InDelta(t, 20.0, bal.Qty, 1e-9)
	require.InDelta(t, 150.0, bal.AvgCost, 1e-9)
	require.InDelta(t, 3000.0, bal.TotalValue, 1e-9)
}

func TestLedgerWeightedScalarAverage(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(false)
	ctx := context.Background()

	// 2 pieces and 10 grams at 50 per unit-scalar: value 600 over base 12.
	err := repo.WithTx(ctx, func(tx TxRepository) error {
		_, err := ledger.Apply(ctx, tx, MovementInput{
			BranchID: 1, ItemID: 3, QtyChange: 2, WeightChange: 10, UnitCost: 50, Type: MovementIn,
		})
		return err
	})
	require.NoError(t, err)

	bal := repo.balances[balKey(3, 1)]
	require.InDelta(t, 2.0, bal.Qty, 1e-9)
	require.InDelta(t, 10.0, bal.Weight, 1e-9)
	require.InDelta(t, 50.0, bal.AvgCost, 1e-9)
	require.InDelta(t, 600.0, bal.TotalValue, 1e-9)
}

func TestLedgerReversalRestoresAverage(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(false)
	ctx := context.Background()

	apply := func(in MovementInput) error {
		return repo.WithTx(ctx, func(tx TxRepository) error {
			_, err := ledger.Apply(ctx, tx, in)
			return err
		})
	}

	require.NoError(t, apply(MovementInput{BranchID: 1, ItemID: 9, QtyChange: 10, UnitCost: 100, Type: MovementIn}))
	require.NoError(t, apply(MovementInput{BranchID: 1, ItemID: 9, QtyChange: 5, UnitCost: 400, Type: MovementIn}))
	// Reverse the second receipt with its original cost.
	require.NoError(t, apply(MovementInput{BranchID: 1, ItemID: 9, QtyChange: -5, UnitCost: 400, Type: MovementOut}))

	bal := repo.balances[balKey(9, 1)]
	require.InDelta(t, 10.0, bal.Qty, 1e-9)
	require.InDelta(t, 100.0, bal.AvgCost, 1e-9)
	require.InDelta(t, 1000.0, bal.TotalValue, 1e-9)
}

func TestLedgerIssueUsesMovingAverage(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(false)
	ctx := context.Background()

	apply := func(in MovementInput) error {
		return repo.WithTx(ctx, func(tx TxRepository) error {
			_, err := ledger.Apply(ctx, tx, in)
			return err
		})
	}

	require.NoError(t, apply(MovementInput{BranchID: 1, ItemID: 4, QtyChange: 10, UnitCost: 100, Type: MovementIn}))
	require.NoError(t, apply(MovementInput{BranchID: 1, ItemID: 4, QtyChange: 10, UnitCost: 200, Type: MovementIn}))
	// Issue without a cost: the moving average (150) applies.
	require.NoError(t, apply(MovementInput{BranchID: 1, ItemID: 4, QtyChange: -4, Type: MovementOut}))

	bal := repo.balances[balKey(4, 1)]
	require.InDelta(t, 16.0, bal.Qty, 1e-9)
	require.InDelta(t, 150.0, bal.AvgCost, 1e-9)
	require.InDelta(t, 2400.0, bal.TotalValue, 1e-9)
}

func TestLedgerRejectsNegativeStock(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(false)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx TxRepository) error {
		_, err := ledger.Apply(ctx, tx, MovementInput{
			BranchID: 1, ItemID: 2, QtyChange: -1, Type: MovementOut,
		})
		return err
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, repo.movements)
	require.Empty(t, repo.cards)
}

func TestLedgerAllowNegativeOverride(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(true)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx TxRepository) error {
		_, err := ledger.Apply(ctx, tx, MovementInput{
			BranchID: 1, ItemID: 2, QtyChange: -3, UnitCost: 10, Type: MovementOut,
		})
		return err
	})
	require.NoError(t, err)
	bal := repo.balances[balKey(2, 1)]
	require.InDelta(t, -3.0, bal.Qty, 1e-9)
	// Value clamps at zero so the average never goes negative.
	require.InDelta(t, 0.0, bal.TotalValue, 1e-9)
}

func TestLedgerZeroMovementRejected(t *testing.T) {
	repo := newMemRepo()
	ledger := NewLedger(false)

	err := repo.WithTx(context.Background(), func(tx TxRepository) error {
		_, err := ledger.Apply(context.Background(), tx, MovementInput{BranchID: 1, ItemID: 1, Type: MovementIn})
		return err
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestServiceTransferMovesCostBasis(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{BranchID: 1, ItemID: 5, Qty: 10, UnitCost: 120})
	require.NoError(t, err)

	err = svc.PostTransfer(ctx, TransferInput{ItemID: 5, Qty: 4, SrcBranch: 1, DstBranch: 2})
	require.NoError(t, err)

	src := repo.balances[balKey(5, 1)]
	dst := repo.balances[balKey(5, 2)]
	require.InDelta(t, 6.0, src.Qty, 1e-9)
	require.InDelta(t, 4.0, dst.Qty, 1e-9)
	require.InDelta(t, 120.0, src.AvgCost, 1e-9)
	require.InDelta(t, 120.0, dst.AvgCost, 1e-9)
}

func TestServiceTransferSameBranchRejected(t *testing.T) {
	svc := newTestService(newMemRepo())
	err := svc.PostTransfer(context.Background(), TransferInput{ItemID: 1, Qty: 1, SrcBranch: 3, DstBranch: 3})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceTransferInsufficientRollsBack(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{BranchID: 1, ItemID: 6, Qty: 2, UnitCost: 10})
	require.NoError(t, err)

	err = svc.PostTransfer(ctx, TransferInput{ItemID: 6, Qty: 5, SrcBranch: 1, DstBranch: 2})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	src := repo.balances[balKey(6, 1)]
	require.InDelta(t, 2.0, src.Qty, 1e-9)
	_, ok := repo.balances[balKey(6, 2)]
	require.False(t, ok)
}

func TestServiceItemStockMissingReadsZero(t *testing.T) {
	svc := newTestService(newMemRepo())
	bal, err := svc.ItemStock(context.Background(), 42, 1)
	require.NoError(t, err)
	require.Zero(t, bal.Qty)
	require.Zero(t, bal.AvgCost)
	require.Equal(t, int64(42), bal.ItemID)
}
