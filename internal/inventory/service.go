package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/aurum-erp/aurum/internal/observability"
	"github.com/aurum-erp/aurum/internal/shared"
)

// Service exposes the inventory operations: current stock, stock cards,
// manual adjustments and branch transfers. Receipts and returns post through
// the same Ledger but from their own transactions.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	ledger  *Ledger
	cache   *StockCache
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewService wires the inventory service. cache, audit and metrics may be
// nil in tests.
func NewService(logger *slog.Logger, repo Repository, ledger *Ledger, cache *StockCache, audit *shared.AuditLogger, metrics *observability.Metrics) *Service {
	return &Service{
		logger:  logger,
		repo:    repo,
		ledger:  ledger,
		cache:   cache,
		audit:   audit,
		metrics: metrics,
	}
}

// Ledger exposes the movement entry point for modules that post inside their
// own transactions.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// InvalidateBranch drops cached stock listings for a branch after an
// out-of-band mutation.
func (s *Service) InvalidateBranch(ctx context.Context, branchID int64) {
	s.cache.InvalidateBranch(ctx, branchID)
}

type stockPage struct {
	Balances []Balance `json:"balances"`
	Total    int64     `json:"total"`
}

// CurrentStock lists balances for a branch with optional item search.
// Concurrent identical requests collapse into a single database query.
func (s *Service) CurrentStock(ctx context.Context, branchID int64, search string, limit, offset int) ([]Balance, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if balances, total, ok := s.cache.Get(ctx, branchID, search, limit, offset); ok {
		return balances, total, nil
	}
	key := stockKey(branchID, search, limit, offset)
	v, err, _ := s.group.Do(key, func() (any, error) {
		balances, total, err := s.repo.ListBalances(ctx, branchID, search, limit, offset)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, branchID, search, limit, offset, balances, total)
		return stockPage{Balances: balances, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	page := v.(stockPage)
	return page.Balances, page.Total, nil
}

// ItemStock returns the balance for one (item, branch) pair. A missing row
// reads as zero stock rather than an error.
func (s *Service) ItemStock(ctx context.Context, itemID, branchID int64) (Balance, error) {
	if itemID <= 0 || branchID <= 0 {
		return Balance{}, fmt.Errorf("%w: item and branch required", shared.ErrValidation)
	}
	b, err := s.repo.GetBalance(ctx, itemID, branchID)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return Balance{ItemID: itemID, BranchID: branchID}, nil
		}
		return Balance{}, err
	}
	return b, nil
}

// StockCard returns the movement history for one item at one branch.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error) {
	if filter.ItemID <= 0 || filter.BranchID <= 0 {
		return nil, fmt.Errorf("%w: item and branch required", shared.ErrValidation)
	}
	return s.repo.GetStockCard(ctx, filter)
}

// PostAdjustment applies a signed manual correction to a balance.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (StockCardEntry, error) {
	var entry StockCardEntry
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		var err error
		entry, err = s.ledger.Apply(ctx, tx, MovementInput{
			Code:         input.Code,
			BranchID:     input.BranchID,
			ItemID:       input.ItemID,
			QtyChange:    input.Qty,
			WeightChange: input.Weight,
			UnitCost:     input.UnitCost,
			Type:         MovementAdjust,
			Note:         input.Note,
			ActorID:      input.ActorID,
			RefModule:    "inventory",
		})
		return err
	})
	if err != nil {
		return StockCardEntry{}, err
	}
	s.metrics.IncMovement(string(MovementAdjust))
	s.cache.InvalidateBranch(ctx, input.BranchID)
	s.recordAudit(ctx, input.ActorID, "inventory.adjust", fmt.Sprintf("%d:%d", input.ItemID, input.BranchID), map[string]any{
		"qty":    input.Qty,
		"weight": input.Weight,
		"code":   entry.TxCode,
	})
	return entry, nil
}

// PostTransfer moves stock between branches as two ledger legs inside one
// transaction. The outbound leg carries the source moving average so the
// destination inherits the same cost basis.
func (s *Service) PostTransfer(ctx context.Context, input TransferInput) error {
	if input.SrcBranch == input.DstBranch {
		return fmt.Errorf("%w: source and destination branches must differ", shared.ErrValidation)
	}
	if input.Qty < 0 || input.Weight < 0 {
		return fmt.Errorf("%w: transfer quantities must be positive", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		out, err := s.ledger.Apply(ctx, tx, MovementInput{
			Code:         input.Code,
			BranchID:     input.SrcBranch,
			ItemID:       input.ItemID,
			QtyChange:    -input.Qty,
			WeightChange: -input.Weight,
			Type:         MovementTransfer,
			Note:         input.Note,
			ActorID:      input.ActorID,
			RefModule:    "inventory",
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.Apply(ctx, tx, MovementInput{
			Code:         input.Code,
			BranchID:     input.DstBranch,
			ItemID:       input.ItemID,
			QtyChange:    input.Qty,
			WeightChange: input.Weight,
			UnitCost:     out.UnitCost,
			Type:         MovementTransfer,
			Note:         input.Note,
			ActorID:      input.ActorID,
			RefModule:    "inventory",
		})
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.IncMovement(string(MovementTransfer))
	s.cache.InvalidateBranch(ctx, input.SrcBranch)
	s.cache.InvalidateBranch(ctx, input.DstBranch)
	s.recordAudit(ctx, input.ActorID, "inventory.transfer", fmt.Sprintf("%d", input.ItemID), map[string]any{
		"src":    input.SrcBranch,
		"dst":    input.DstBranch,
		"qty":    input.Qty,
		"weight": input.Weight,
	})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
