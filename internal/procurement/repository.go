package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurum-erp/aurum/internal/inventory"
	"github.com/aurum-erp/aurum/internal/masterdata/items"
	"github.com/aurum-erp/aurum/internal/platform/db"
	"github.com/aurum-erp/aurum/internal/shared"
)

// TxRepository is the procurement write surface inside one transaction. The
// Inventory accessor hands back a ledger repository bound to the same
// transaction, so the receipt, the order lines and the stock balances commit
// or roll back as one unit.
type TxRepository interface {
	Inventory() inventory.TxRepository

	GetItem(ctx context.Context, id int64) (items.Item, error)

	InsertOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertOrderLine(ctx context.Context, line OrderLine) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, remark string) error
	UpdateOrderLineProgress(ctx context.Context, line OrderLine) error

	InsertReceipt(ctx context.Context, receipt Receipt) (int64, error)
	InsertReceiptLine(ctx context.Context, line ReceiptLine) (int64, error)
	GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error)
	UpdateReceiptHeader(ctx context.Context, receipt Receipt) error
	UpdateReceiptLineReturned(ctx context.Context, lineID int64, returnedQty, returnedWeight float64) error
	SetReceiptFullyReturned(ctx context.Context, id int64, fullyReturned bool) error
	DeleteReceiptLines(ctx context.Context, receiptID int64) error
	DeleteReceipt(ctx context.Context, id int64) error
	CountActiveReceipts(ctx context.Context, orderID, excludeReceiptID int64) (int64, error)
	CountActiveReturns(ctx context.Context, receiptID int64) (int64, error)

	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertReturnLine(ctx context.Context, line ReturnLine) error
	UpdateReturnTotal(ctx context.Context, id int64, totalCost float64) error
	GetReturnForUpdate(ctx context.Context, id int64) (Return, error)
	DeleteReturnLines(ctx context.Context, returnID int64) error
	DeleteReturn(ctx context.Context, id int64) error
}

// Repository adds transaction management and the read side.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, status OrderStatus, branchID int64, limit, offset int) ([]PurchaseOrder, int64, error)
	GetReceipt(ctx context.Context, id int64) (Receipt, error)
	ListReceipts(ctx context.Context, orderID int64, activeOnly bool, limit, offset int) ([]Receipt, int64, error)
	GetReturn(ctx context.Context, id int64) (Return, error)
	ListReturns(ctx context.Context, receiptID int64, limit, offset int) ([]Return, int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx  pgx.Tx
	inv inventory.TxRepository
}

func (r *repository) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepository{tx: tx, inv: inventory.NewTxRepository(tx)})
	})
}

func (t *txRepository) Inventory() inventory.TxRepository {
	return t.inv
}

func (t *txRepository) GetItem(ctx context.Context, id int64) (items.Item, error) {
	var it items.Item
	err := t.tx.QueryRow(ctx, `SELECT id, sku, name, category, track_by, metal, purity, stone, created_at, updated_at
FROM inventory_items WHERE id=$1`, id).
		Scan(&it.ID, &it.SKU, &it.Name, &it.Category, &it.TrackBy, &it.Metal, &it.Purity, &it.Stone, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return items.Item{}, fmt.Errorf("%w: item %d", shared.ErrNotFound, id)
		}
		return items.Item{}, err
	}
	return it, nil
}

func (t *txRepository) InsertOrder(ctx context.Context, o PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (code, supplier_id, branch_id, currency, total_cost, status, remark, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		o.Code, o.SupplierID, o.BranchID, o.Currency, o.TotalCost, o.Status, o.Remark, o.CreatedBy).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: order code %s already exists", shared.ErrDuplicate, o.Code)
	}
	return id, err
}

func (t *txRepository) InsertOrderLine(ctx context.Context, l OrderLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (order_id, item_id, quantity, weight, received_quantity, received_weight, rate, metal, purity, stone, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		l.OrderID, l.ItemID, l.Qty, l.Weight, l.ReceivedQty, l.ReceivedWeight, l.Rate, l.Metal, l.Purity, l.Stone, l.Status).Scan(&id)
	return id, err
}

const orderColumns = `id, code, supplier_id, branch_id, currency, total_cost, status, remark, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var o PurchaseOrder
	err := row.Scan(&o.ID, &o.Code, &o.SupplierID, &o.BranchID, &o.Currency, &o.TotalCost, &o.Status, &o.Remark, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: purchase order", shared.ErrNotFound)
		}
		return PurchaseOrder{}, err
	}
	return o, nil
}

const orderLineColumns = `id, order_id, item_id, quantity, weight, received_quantity, received_weight, rate, metal, purity, stone, status`

func collectOrderLines(rows pgx.Rows) ([]OrderLine, error) {
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Qty, &l.Weight, &l.ReceivedQty, &l.ReceivedWeight, &l.Rate, &l.Metal, &l.Purity, &l.Stone, &l.Status); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT `+orderLineColumns+` FROM purchase_order_items WHERE order_id=$1 ORDER BY id ASC FOR UPDATE`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Lines, err = collectOrderLines(rows)
	return order, err
}

func (t *txRepository) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, remark string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, remark=CASE WHEN $2 <> '' THEN $2 ELSE remark END, updated_at=NOW() WHERE id=$3`,
		status, remark, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) UpdateOrderLineProgress(ctx context.Context, l OrderLine) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET received_quantity=$1, received_weight=$2, status=$3 WHERE id=$4`,
		l.ReceivedQty, l.ReceivedWeight, l.Status, l.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) InsertReceipt(ctx context.Context, r Receipt) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO receipts (ref, order_id, supplier_id, branch_id, received_date, status, total_items, total_cost, is_fully_returned, received_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW()) RETURNING id`,
		r.Ref, r.OrderID, r.SupplierID, r.BranchID, r.ReceivedDate, r.Status, r.TotalItems, r.TotalCost, r.IsFullyReturned, r.ReceivedBy).Scan(&id)
	return id, err
}

func (t *txRepository) InsertReceiptLine(ctx context.Context, l ReceiptLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO receipt_items (receipt_id, order_line_id, item_id, ordered_quantity, ordered_weight, quantity, weight, cost, total_cost, metal, purity, stone, returned_quantity, returned_weight)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
		l.ReceiptID, l.OrderLineID, l.ItemID, l.OrderedQty, l.OrderedWeight, l.Qty, l.Weight, l.Cost, l.TotalCost, l.Metal, l.Purity, l.Stone, l.ReturnedQty, l.ReturnedWeight).Scan(&id)
	return id, err
}

const receiptColumns = `id, ref, order_id, supplier_id, branch_id, received_date, status, total_items, total_cost, is_fully_returned, received_by, COALESCE(verified_by,0), created_at, updated_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var r Receipt
	err := row.Scan(&r.ID, &r.Ref, &r.OrderID, &r.SupplierID, &r.BranchID, &r.ReceivedDate, &r.Status, &r.TotalItems, &r.TotalCost, &r.IsFullyReturned, &r.ReceivedBy, &r.VerifiedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, fmt.Errorf("%w: receipt", shared.ErrNotFound)
		}
		return Receipt{}, err
	}
	return r, nil
}

const receiptLineColumns = `id, receipt_id, order_line_id, item_id, ordered_quantity, ordered_weight, quantity, weight, cost, total_cost, metal, purity, stone, returned_quantity, returned_weight`

func collectReceiptLines(rows pgx.Rows) ([]ReceiptLine, error) {
	defer rows.Close()
	var lines []ReceiptLine
	for rows.Next() {
		var l ReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.OrderLineID, &l.ItemID, &l.OrderedQty, &l.OrderedWeight, &l.Qty, &l.Weight, &l.Cost, &l.TotalCost, &l.Metal, &l.Purity, &l.Stone, &l.ReturnedQty, &l.ReturnedWeight); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *txRepository) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	receipt, err := scanReceipt(t.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Receipt{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT `+receiptLineColumns+` FROM receipt_items WHERE receipt_id=$1 ORDER BY id ASC FOR UPDATE`, id)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Lines, err = collectReceiptLines(rows)
	return receipt, err
}

func (t *txRepository) UpdateReceiptHeader(ctx context.Context, r Receipt) error {
	tag, err := t.tx.Exec(ctx, `UPDATE receipts SET received_date=$1, status=$2, total_items=$3, total_cost=$4, is_fully_returned=$5, verified_by=NULLIF($6,0), updated_at=NOW() WHERE id=$7`,
		r.ReceivedDate, r.Status, r.TotalItems, r.TotalCost, r.IsFullyReturned, r.VerifiedBy, r.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) UpdateReceiptLineReturned(ctx context.Context, lineID int64, returnedQty, returnedWeight float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE receipt_items SET returned_quantity=$1, returned_weight=$2 WHERE id=$3`,
		returnedQty, returnedWeight, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) SetReceiptFullyReturned(ctx context.Context, id int64, fullyReturned bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE receipts SET is_fully_returned=$1, updated_at=NOW() WHERE id=$2`, fullyReturned, id)
	return err
}

func (t *txRepository) DeleteReceiptLines(ctx context.Context, receiptID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM receipt_items WHERE receipt_id=$1`, receiptID)
	return err
}

func (t *txRepository) DeleteReceipt(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM receipts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) CountActiveReceipts(ctx context.Context, orderID, excludeReceiptID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM receipts
WHERE order_id=$1 AND id <> $2 AND status <> $3 AND NOT is_fully_returned`,
		orderID, excludeReceiptID, ReceiptCancelled).Scan(&n)
	return n, err
}

func (t *txRepository) CountActiveReturns(ctx context.Context, receiptID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_returns WHERE receipt_id=$1`, receiptID).Scan(&n)
	return n, err
}

func (t *txRepository) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_returns (ref, receipt_id, supplier_id, branch_id, return_date, status, total_cost, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		ret.Ref, ret.ReceiptID, ret.SupplierID, ret.BranchID, ret.ReturnDate, ret.Status, ret.TotalCost, ret.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) InsertReturnLine(ctx context.Context, l ReturnLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_return_items (return_id, receipt_line_id, item_id, return_quantity, return_weight, cost, total_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.ReturnID, l.ReceiptLineID, l.ItemID, l.Qty, l.Weight, l.Cost, l.TotalCost)
	return err
}

func (t *txRepository) UpdateReturnTotal(ctx context.Context, id int64, totalCost float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_returns SET total_cost=$1 WHERE id=$2`, totalCost, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const returnColumns = `id, ref, receipt_id, supplier_id, branch_id, return_date, status, total_cost, created_by, created_at`

func scanReturn(row pgx.Row) (Return, error) {
	var ret Return
	err := row.Scan(&ret.ID, &ret.Ref, &ret.ReceiptID, &ret.SupplierID, &ret.BranchID, &ret.ReturnDate, &ret.Status, &ret.TotalCost, &ret.CreatedBy, &ret.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Return{}, fmt.Errorf("%w: purchase return", shared.ErrNotFound)
		}
		return Return{}, err
	}
	return ret, nil
}

func collectReturnLines(rows pgx.Rows) ([]ReturnLine, error) {
	defer rows.Close()
	var lines []ReturnLine
	for rows.Next() {
		var l ReturnLine
		if err := rows.Scan(&l.ID, &l.ReturnID, &l.ReceiptLineID, &l.ItemID, &l.Qty, &l.Weight, &l.Cost, &l.TotalCost); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const returnLineColumns = `id, return_id, receipt_line_id, item_id, return_quantity, return_weight, cost, total_cost`

func (t *txRepository) GetReturnForUpdate(ctx context.Context, id int64) (Return, error) {
	ret, err := scanReturn(t.tx.QueryRow(ctx, `SELECT `+returnColumns+` FROM purchase_returns WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Return{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT `+returnLineColumns+` FROM purchase_return_items WHERE return_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Return{}, err
	}
	ret.Lines, err = collectReturnLines(rows)
	return ret, err
}

func (t *txRepository) DeleteReturnLines(ctx context.Context, returnID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_return_items WHERE return_id=$1`, returnID)
	return err
}

func (t *txRepository) DeleteReturn(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_returns WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderLineColumns+` FROM purchase_order_items WHERE order_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Lines, err = collectOrderLines(rows)
	return order, err
}

func (r *repository) ListOrders(ctx context.Context, status OrderStatus, branchID int64, limit, offset int) ([]PurchaseOrder, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	idx := 1
	if status != "" {
		where = append(where, fmt.Sprintf("status=$%d", idx))
		args = append(args, status)
		idx++
	}
	if branchID > 0 {
		where = append(where, fmt.Sprintf("branch_id=$%d", idx))
		args = append(args, branchID)
		idx++
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE ` + cond + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

func (r *repository) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	receipt, err := scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id=$1`, id))
	if err != nil {
		return Receipt{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+receiptLineColumns+` FROM receipt_items WHERE receipt_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Lines, err = collectReceiptLines(rows)
	return receipt, err
}

func (r *repository) ListReceipts(ctx context.Context, orderID int64, activeOnly bool, limit, offset int) ([]Receipt, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	idx := 1
	if orderID > 0 {
		where = append(where, fmt.Sprintf("order_id=$%d", idx))
		args = append(args, orderID)
		idx++
	}
	if activeOnly {
		where = append(where, fmt.Sprintf("NOT is_fully_returned AND status <> $%d", idx))
		args = append(args, ReceiptCancelled)
		idx++
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM receipts WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + receiptColumns + ` FROM receipts WHERE ` + cond + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var receipts []Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, total, rows.Err()
}

func (r *repository) GetReturn(ctx context.Context, id int64) (Return, error) {
	ret, err := scanReturn(r.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM purchase_returns WHERE id=$1`, id))
	if err != nil {
		return Return{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+returnLineColumns+` FROM purchase_return_items WHERE return_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Return{}, err
	}
	ret.Lines, err = collectReturnLines(rows)
	return ret, err
}

func (r *repository) ListReturns(ctx context.Context, receiptID int64, limit, offset int) ([]Return, int64, error) {
	where := "1=1"
	args := []any{}
	idx := 1
	if receiptID > 0 {
		where = fmt.Sprintf("receipt_id=$%d", idx)
		args = append(args, receiptID)
		idx++
	}
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_returns WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + returnColumns + ` FROM purchase_returns WHERE ` + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var returns []Return
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, 0, err
		}
		returns = append(returns, ret)
	}
	return returns, total, rows.Err()
}
