package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurum-erp/aurum/internal/platform/db"
)

// ErrBalanceNotFound reports a missing balance row for an (item, branch) pair.
var ErrBalanceNotFound = errors.New("inventory: balance not found")

// TxRepository is the write surface the ledger needs inside one database
// transaction. Callers that already hold a transaction (purchase receipts,
// returns) bind their own TxRepository over the same pgx.Tx so the whole
// workflow commits or rolls back together.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, itemID, branchID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	InsertMovementLine(ctx context.Context, line MovementLine) error
	InsertCardEntry(ctx context.Context, entry StockCardEntry, itemID, branchID, movementID int64) error
}

// Repository adds the read side and transaction management on top of
// TxRepository.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error
	GetBalance(ctx context.Context, itemID, branchID int64) (Balance, error)
	ListBalances(ctx context.Context, branchID int64, search string, limit, offset int) ([]Balance, int64, error)
	GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error)
	SumValueDrift(ctx context.Context, tolerance float64) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the ledger write surface to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *repository) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepository{tx: tx})
	})
}

func (t *txRepository) GetBalanceForUpdate(ctx context.Context, itemID, branchID int64) (Balance, error) {
	var b Balance
	err := t.tx.QueryRow(ctx, `SELECT item_id, branch_id, current_quantity, current_weight, average_cost, total_value, updated_by, updated_at
FROM inventory_balances WHERE item_id=$1 AND branch_id=$2 FOR UPDATE`, itemID, branchID).
		Scan(&b.ItemID, &b.BranchID, &b.Qty, &b.Weight, &b.AvgCost, &b.TotalValue, &b.UpdatedBy, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func (t *txRepository) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_balances (item_id, branch_id, current_quantity, current_weight, average_cost, total_value, updated_by, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
ON CONFLICT (item_id, branch_id) DO UPDATE SET
  current_quantity=EXCLUDED.current_quantity,
  current_weight=EXCLUDED.current_weight,
  average_cost=EXCLUDED.average_cost,
  total_value=EXCLUDED.total_value,
  updated_by=EXCLUDED.updated_by,
  updated_at=NOW()`,
		b.ItemID, b.BranchID, b.Qty, b.Weight, b.AvgCost, b.TotalValue, b.UpdatedBy)
	return err
}

func (t *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO inventory_movements (code, type, branch_id, ref_module, ref_id, note, posted_at, created_by, created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,NOW()) RETURNING id`,
		m.Code, m.Type, m.BranchID, m.RefModule, m.RefID, m.Note, m.PostedAt, m.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) InsertMovementLine(ctx context.Context, l MovementLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_movement_lines (movement_id, item_id, qty, weight, unit_cost, src_branch_id, dst_branch_id)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,0),NULLIF($7,0))`,
		l.MovementID, l.ItemID, l.Qty, l.Weight, l.UnitCost, l.SrcBranchID, l.DstBranchID)
	return err
}

func (t *txRepository) InsertCardEntry(ctx context.Context, e StockCardEntry, itemID, branchID, movementID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_cards (item_id, branch_id, movement_id, tx_code, tx_type, posted_at, qty_in, qty_out, weight_in, weight_out, balance_qty, balance_weight, unit_cost, balance_cost, note)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		itemID, branchID, movementID, e.TxCode, e.TxType, e.PostedAt,
		e.QtyIn, e.QtyOut, e.WeightIn, e.WeightOut, e.BalanceQty, e.BalanceWeight, e.UnitCost, e.BalanceCost, e.Note)
	return err
}

func (r *repository) GetBalance(ctx context.Context, itemID, branchID int64) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `SELECT item_id, branch_id, current_quantity, current_weight, average_cost, total_value, updated_by, updated_at
FROM inventory_balances WHERE item_id=$1 AND branch_id=$2`, itemID, branchID).
		Scan(&b.ItemID, &b.BranchID, &b.Qty, &b.Weight, &b.AvgCost, &b.TotalValue, &b.UpdatedBy, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func (r *repository) ListBalances(ctx context.Context, branchID int64, search string, limit, offset int) ([]Balance, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	idx := 1
	if branchID > 0 {
		where = append(where, fmt.Sprintf("b.branch_id=$%d", idx))
		args = append(args, branchID)
		idx++
	}
	if search != "" {
		where = append(where, fmt.Sprintf("(i.sku ILIKE $%d OR i.name ILIKE $%d)", idx, idx))
		args = append(args, "%"+search+"%")
		idx++
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countQ := `SELECT COUNT(*) FROM inventory_balances b JOIN inventory_items i ON i.id=b.item_id WHERE ` + cond
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT b.item_id, b.branch_id, b.current_quantity, b.current_weight, b.average_cost, b.total_value, b.updated_by, b.updated_at
FROM inventory_balances b JOIN inventory_items i ON i.id=b.item_id
WHERE ` + cond + fmt.Sprintf(" ORDER BY i.name ASC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ItemID, &b.BranchID, &b.Qty, &b.Weight, &b.AvgCost, &b.TotalValue, &b.UpdatedBy, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		balances = append(balances, b)
	}
	return balances, total, rows.Err()
}

func (r *repository) GetStockCard(ctx context.Context, f StockCardFilter) ([]StockCardEntry, error) {
	where := []string{"item_id=$1", "branch_id=$2"}
	args := []any{f.ItemID, f.BranchID}
	idx := 3
	if !f.From.IsZero() {
		where = append(where, fmt.Sprintf("posted_at >= $%d", idx))
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where = append(where, fmt.Sprintf("posted_at < $%d", idx))
		args = append(args, f.To.Add(24*time.Hour))
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT tx_code, tx_type, posted_at, qty_in, qty_out, weight_in, weight_out, balance_qty, balance_weight, unit_cost, balance_cost, note
FROM inventory_cards WHERE ` + strings.Join(where, " AND ") + fmt.Sprintf(" ORDER BY posted_at ASC, id ASC LIMIT $%d", idx)
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []StockCardEntry
	for rows.Next() {
		var e StockCardEntry
		if err := rows.Scan(&e.TxCode, &e.TxType, &e.PostedAt, &e.QtyIn, &e.QtyOut, &e.WeightIn, &e.WeightOut, &e.BalanceQty, &e.BalanceWeight, &e.UnitCost, &e.BalanceCost, &e.Note); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumValueDrift counts balance rows whose stored total value no longer
// matches average_cost * (quantity + weight) beyond the given tolerance.
// The background integrity scan uses it to flag corruption early.
func (r *repository) SumValueDrift(ctx context.Context, tolerance float64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_balances
WHERE ABS(total_value - average_cost * (current_quantity + current_weight)) > $1`, tolerance).Scan(&n)
	return n, err
}
