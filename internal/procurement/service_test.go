package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurum-erp/aurum/internal/inventory"
	"github.com/aurum-erp/aurum/internal/masterdata/items"
	"github.com/aurum-erp/aurum/internal/shared"
)

// memInventory is an in-memory inventory.TxRepository.
type memInventory struct {
	balances  map[string]inventory.Balance
	movements int
}

func newMemInventory() *memInventory {
	return &memInventory{balances: map[string]inventory.Balance{}}
}

func invKey(itemID, branchID int64) string {
	return fmt.Sprintf("%d:%d", itemID, branchID)
}

func (m *memInventory) GetBalanceForUpdate(_ context.Context, itemID, branchID int64) (inventory.Balance, error) {
	b, ok := m.balances[invKey(itemID, branchID)]
	if !ok {
		return inventory.Balance{}, inventory.ErrBalanceNotFound
	}
	return b, nil
}

func (m *memInventory) UpsertBalance(_ context.Context, b inventory.Balance) error {
	m.balances[invKey(b.ItemID, b.BranchID)] = b
	return nil
}

func (m *memInventory) InsertMovement(_ context.Context, _ inventory.Movement) (int64, error) {
	m.movements++
	return int64(m.movements), nil
}

func (m *memInventory) InsertMovementLine(_ context.Context, _ inventory.MovementLine) error {
	return nil
}

func (m *memInventory) InsertCardEntry(_ context.Context, _ inventory.StockCardEntry, _, _, _ int64) error {
	return nil
}

func (m *memInventory) clone() *memInventory {
	c := newMemInventory()
	c.movements = m.movements
	for k, v := range m.balances {
		c.balances[k] = v
	}
	return c
}

// memStore is an in-memory procurement Repository + TxRepository. WithTx
// snapshots state so a returned error rolls everything back, the way the
// real transaction does.
type memStore struct {
	items    map[int64]items.Item
	orders   map[int64]PurchaseOrder
	receipts map[int64]Receipt
	returns  map[int64]Return
	inv      *memInventory
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		items:    map[int64]items.Item{},
		orders:   map[int64]PurchaseOrder{},
		receipts: map[int64]Receipt{},
		returns:  map[int64]Return{},
		inv:      newMemInventory(),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func cloneOrder(o PurchaseOrder) PurchaseOrder {
	c := o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return c
}

func cloneReceipt(r Receipt) Receipt {
	c := r
	c.Lines = append([]ReceiptLine(nil), r.Lines...)
	return c
}

func cloneReturn(r Return) Return {
	c := r
	c.Lines = append([]ReturnLine(nil), r.Lines...)
	return c
}

func (m *memStore) WithTx(_ context.Context, fn func(tx TxRepository) error) error {
	orders := make(map[int64]PurchaseOrder, len(m.orders))
	for k, v := range m.orders {
		orders[k] = cloneOrder(v)
	}
	receipts := make(map[int64]Receipt, len(m.receipts))
	for k, v := range m.receipts {
		receipts[k] = cloneReceipt(v)
	}
	returns := make(map[int64]Return, len(m.returns))
	for k, v := range m.returns {
		returns[k] = cloneReturn(v)
	}
	inv := m.inv.clone()
	nextID := m.nextID
	if err := fn(m); err != nil {
		m.orders = orders
		m.receipts = receipts
		m.returns = returns
		m.inv = inv
		m.nextID = nextID
		return err
	}
	return nil
}

func (m *memStore) Inventory() inventory.TxRepository { return m.inv }

func (m *memStore) GetItem(_ context.Context, id int64) (items.Item, error) {
	it, ok := m.items[id]
	if !ok {
		return items.Item{}, fmt.Errorf("%w: item %d", shared.ErrNotFound, id)
	}
	return it, nil
}

func (m *memStore) InsertOrder(_ context.Context, o PurchaseOrder) (int64, error) {
	o.ID = m.id()
	m.orders[o.ID] = o
	return o.ID, nil
}

func (m *memStore) InsertOrderLine(_ context.Context, l OrderLine) (int64, error) {
	o, ok := m.orders[l.OrderID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	l.ID = m.id()
	o.Lines = append(o.Lines, l)
	m.orders[l.OrderID] = o
	return l.ID, nil
}

func (m *memStore) GetOrderForUpdate(_ context.Context, id int64) (PurchaseOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order", shared.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id int64, status OrderStatus, remark string) error {
	o, ok := m.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	o.Status = status
	if remark != "" {
		o.Remark = remark
	}
	m.orders[id] = o
	return nil
}

func (m *memStore) UpdateOrderLineProgress(_ context.Context, l OrderLine) error {
	o, ok := m.orders[l.OrderID]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range o.Lines {
		if o.Lines[i].ID == l.ID {
			o.Lines[i] = l
			m.orders[l.OrderID] = o
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memStore) InsertReceipt(_ context.Context, r Receipt) (int64, error) {
	r.ID = m.id()
	m.receipts[r.ID] = r
	return r.ID, nil
}

func (m *memStore) InsertReceiptLine(_ context.Context, l ReceiptLine) (int64, error) {
	r, ok := m.receipts[l.ReceiptID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	l.ID = m.id()
	r.Lines = append(r.Lines, l)
	m.receipts[l.ReceiptID] = r
	return l.ID, nil
}

func (m *memStore) GetReceiptForUpdate(_ context.Context, id int64) (Receipt, error) {
	r, ok := m.receipts[id]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: receipt", shared.ErrNotFound)
	}
	return cloneReceipt(r), nil
}

func (m *memStore) UpdateReceiptHeader(_ context.Context, r Receipt) error {
	stored, ok := m.receipts[r.ID]
	if !ok {
		return shared.ErrNotFound
	}
	r.Lines = stored.Lines
	m.receipts[r.ID] = r
	return nil
}

func (m *memStore) UpdateReceiptLineReturned(_ context.Context, lineID int64, returnedQty, returnedWeight float64) error {
	for id, r := range m.receipts {
		for i := range r.Lines {
			if r.Lines[i].ID == lineID {
				r.Lines[i].ReturnedQty = returnedQty
				r.Lines[i].ReturnedWeight = returnedWeight
				m.receipts[id] = r
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (m *memStore) SetReceiptFullyReturned(_ context.Context, id int64, fullyReturned bool) error {
	r, ok := m.receipts[id]
	if !ok {
		return shared.ErrNotFound
	}
	r.IsFullyReturned = fullyReturned
	m.receipts[id] = r
	return nil
}

func (m *memStore) DeleteReceiptLines(_ context.Context, receiptID int64) error {
	r, ok := m.receipts[receiptID]
	if !ok {
		return shared.ErrNotFound
	}
	r.Lines = nil
	m.receipts[receiptID] = r
	return nil
}

func (m *memStore) DeleteReceipt(_ context.Context, id int64) error {
	if _, ok := m.receipts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.receipts, id)
	return nil
}

func (m *memStore) CountActiveReceipts(_ context.Context, orderID, excludeReceiptID int64) (int64, error) {
	var n int64
	for _, r := range m.receipts {
		if r.OrderID == orderID && r.ID != excludeReceiptID && r.Status != ReceiptCancelled && !r.IsFullyReturned {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountActiveReturns(_ context.Context, receiptID int64) (int64, error) {
	var n int64
	for _, ret := range m.returns {
		if ret.ReceiptID == receiptID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) InsertReturn(_ context.Context, ret Return) (int64, error) {
	ret.ID = m.id()
	m.returns[ret.ID] = ret
	return ret.ID, nil
}

func (m *memStore) InsertReturnLine(_ context.Context, l ReturnLine) error {
	ret, ok := m.returns[l.ReturnID]
	if !ok {
		return shared.ErrNotFound
	}
	l.ID = m.id()
	ret.Lines = append(ret.Lines, l)
	m.returns[l.ReturnID] = ret
	return nil
}

func (m *memStore) UpdateReturnTotal(_ context.Context, id int64, totalCost float64) error {
	ret, ok := m.returns[id]
	if !ok {
		return shared.ErrNotFound
	}
	ret.TotalCost = totalCost
	m.returns[id] = ret
	return nil
}

func (m *memStore) GetReturnForUpdate(_ context.Context, id int64) (Return, error) {
	ret, ok := m.returns[id]
	if !ok {
		return Return{}, fmt.Errorf("%w: purchase return", shared.ErrNotFound)
	}
	return cloneReturn(ret), nil
}

func (m *memStore) DeleteReturnLines(_ context.Context, returnID int64) error {
	ret, ok := m.returns[returnID]
	if !ok {
		return shared.ErrNotFound
	}
	ret.Lines = nil
	m.returns[returnID] = ret
	return nil
}

func (m *memStore) DeleteReturn(_ context.Context, id int64) error {
	if _, ok := m.returns[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.returns, id)
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return m.GetOrderForUpdate(ctx, id)
}

func (m *memStore) ListOrders(_ context.Context, status OrderStatus, branchID int64, _, _ int) ([]PurchaseOrder, int64, error) {
	var out []PurchaseOrder
	for _, o := range m.orders {
		if (status == "" || o.Status == status) && (branchID == 0 || o.BranchID == branchID) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return m.GetReceiptForUpdate(ctx, id)
}

func (m *memStore) ListReceipts(_ context.Context, orderID int64, activeOnly bool, _, _ int) ([]Receipt, int64, error) {
	var out []Receipt
	for _, r := range m.receipts {
		if orderID > 0 && r.OrderID != orderID {
			continue
		}
		if activeOnly && (r.IsFullyReturned || r.Status == ReceiptCancelled) {
			continue
		}
		out = append(out, cloneReceipt(r))
	}
	return out, int64(len(out)), nil
}

func (m *memStore) GetReturn(ctx context.Context, id int64) (Return, error) {
	return m.GetReturnForUpdate(ctx, id)
}

func (m *memStore) ListReturns(_ context.Context, receiptID int64, _, _ int) ([]Return, int64, error) {
	var out []Return
	for _, ret := range m.returns {
		if receiptID == 0 || ret.ReceiptID == receiptID {
			out = append(out, cloneReturn(ret))
		}
	}
	return out, int64(len(out)), nil
}

func newTestService(store *memStore, policy Policy) *Service {
	return NewService(slog.Default(), store, inventory.NewLedger(false), nil, nil, nil, nil, nil, policy)
}

func seedItem(store *memStore, trackBy items.TrackBy) items.Item {
	it := items.Item{
		ID:      store.id(),
		SKU:     fmt.Sprintf("SKU-%d", store.nextID),
		Name:    "Gold Ring",
		TrackBy: trackBy,
		Metal:   "gold",
		Purity:  []string{"22K"},
	}
	store.items[it.ID] = it
	return it
}

func seedOrder(t *testing.T, svc *Service, store *memStore, lines ...OrderLineInput) PurchaseOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 1,
		BranchID:   1,
		Lines:      lines,
	})
	require.NoError(t, err)
	return order
}

func TestEndToEndReceiptAndReturn(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)

	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})
	lineID := order.Lines[0].ID

	// First receipt: 6 of 10.
	receipt1, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: lineID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, ReceiptReceived, receipt1.Status)
	require.InDelta(t, 600.0, receipt1.TotalCost, 1e-9)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderPartiallyReceived, order.Status)
	require.Equal(t, LinePartiallyReceived, order.Lines[0].Status)
	require.InDelta(t, 6.0, order.Lines[0].ReceivedQty, 1e-9)

	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 6.0, bal.Qty, 1e-9)
	require.InDelta(t, 100.0, bal.AvgCost, 1e-9)

	// Second receipt: remaining 4 completes the order.
	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: lineID, Qty: 4, Cost: 100}},
	}, "")
	require.NoError(t, err)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderCompleted, order.Status)
	require.Equal(t, LineReceived, order.Lines[0].Status)
	bal = store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 10.0, bal.Qty, 1e-9)
	require.InDelta(t, 100.0, bal.AvgCost, 1e-9)

	// Return 4 against the first receipt.
	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt1.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt1.Lines[0].ID, Qty: 4}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, "APPROVED", ret.Status)
	require.InDelta(t, 400.0, ret.TotalCost, 1e-9)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderPartiallyReceived, order.Status)
	require.Equal(t, LinePartiallyReceived, order.Lines[0].Status)
	require.InDelta(t, 6.0, order.Lines[0].ReceivedQty, 1e-9)
	bal = store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 6.0, bal.Qty, 1e-9)
	require.InDelta(t, 100.0, bal.AvgCost, 1e-9)
}

func TestCreateReceiptAutoApprovesDraft(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		SupplierID: 1, BranchID: 1, Draft: true,
		Lines: []OrderLineInput{{ItemID: item.ID, Qty: 5, Rate: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, OrderDraft, order.Status)

	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 2, Cost: 10}},
	}, "")
	require.NoError(t, err)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderPartiallyReceived, order.Status)
	require.Equal(t, "auto-approved on first receipt", order.Remark)
}

func TestCreateReceiptDraftRejectedWithoutPolicy(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: false})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		SupplierID: 1, BranchID: 1, Draft: true,
		Lines: []OrderLineInput{{ItemID: item.ID, Qty: 5, Rate: 10}},
	})
	require.NoError(t, err)

	_, err = svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 2, Cost: 10}},
	}, "")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateReceiptTrackingModeEnforced(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()

	qtyItem := seedItem(store, items.TrackByQuantity)
	wtItem := seedItem(store, items.TrackByWeight)
	bothItem := seedItem(store, items.TrackByBoth)
	order := seedOrder(t, svc, store,
		OrderLineInput{ItemID: qtyItem.ID, Qty: 10, Rate: 100},
		OrderLineInput{ItemID: wtItem.ID, Weight: 50, Rate: 5},
		OrderLineInput{ItemID: bothItem.ID, Qty: 2, Weight: 8, Rate: 60},
	)

	cases := []struct {
		name string
		line ReceiptLineInput
	}{
		{"quantity item with weight", ReceiptLineInput{OrderLineID: order.Lines[0].ID, Qty: 1, Weight: 2, Cost: 100}},
		{"quantity item without quantity", ReceiptLineInput{OrderLineID: order.Lines[0].ID, Cost: 100}},
		{"weight item with quantity", ReceiptLineInput{OrderLineID: order.Lines[1].ID, Qty: 1, Weight: 2, Cost: 5}},
		{"weight item without weight", ReceiptLineInput{OrderLineID: order.Lines[1].ID, Cost: 5}},
		{"both item with neither", ReceiptLineInput{OrderLineID: order.Lines[2].ID, Cost: 60}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateReceipt(ctx, CreateReceiptInput{
				OrderID:  order.ID,
				BranchID: 1,
				Lines:    []ReceiptLineInput{tc.line},
			}, "")
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestCreateReceiptOverReceiptRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	_, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 11, Cost: 100}},
	}, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateReceiptFailureRollsBackEverything(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	// Second line over-receives, so the first line's ledger effect must
	// roll back too.
	_, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines: []ReceiptLineInput{
			{OrderLineID: order.Lines[0].ID, Qty: 5, Cost: 100},
			{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100},
		},
	}, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, ok := store.inv.balances[invKey(item.ID, 1)]
	require.False(t, ok)
	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Zero(t, order.Lines[0].ReceivedQty)
	require.Equal(t, LinePending, order.Lines[0].Status)
	require.Empty(t, store.receipts)
}

func TestUpdateReceiptReverseThenReapply(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	updated, err := svc.UpdateReceipt(ctx, receipt.ID, []ReceiptLineInput{
		{OrderLineID: order.Lines[0].ID, Qty: 3, Cost: 150},
	}, 0)
	require.NoError(t, err)
	require.InDelta(t, 450.0, updated.TotalCost, 1e-9)

	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 3.0, bal.Qty, 1e-9)
	require.InDelta(t, 150.0, bal.AvgCost, 1e-9)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 3.0, order.Lines[0].ReceivedQty, 1e-9)
	require.Equal(t, LinePartiallyReceived, order.Lines[0].Status)
}

func TestDeleteReceiptRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReceipt(ctx, receipt.ID, 0))

	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 0.0, bal.Qty, 1e-9)
	require.InDelta(t, 0.0, bal.TotalValue, 1e-9)
	require.InDelta(t, 0.0, bal.AvgCost, 1e-9)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderApproved, order.Status)
	require.Equal(t, LinePending, order.Lines[0].Status)
	require.Zero(t, order.Lines[0].ReceivedQty)
	require.Empty(t, store.receipts)
}

func TestDeleteVerifiedReceiptForbidden(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyReceipt(ctx, receipt.ID, 9))

	err = svc.DeleteReceipt(ctx, receipt.ID, 0)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestVerifyReceiptOneWay(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	before := store.inv.balances[invKey(item.ID, 1)]
	require.NoError(t, svc.VerifyReceipt(ctx, receipt.ID, 9))
	require.Equal(t, before, store.inv.balances[invKey(item.ID, 1)])

	err = svc.VerifyReceipt(ctx, receipt.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestReturnExceedingReceivedRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	_, err = svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt.Lines[0].ID, Qty: 7}},
	}, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFullReturnCollapsesOrder(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	_, err = svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt.Lines[0].ID, Qty: 6}},
	}, "")
	require.NoError(t, err)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderReturned, order.Status)
	require.Zero(t, order.Lines[0].ReceivedQty)

	receipt, err = svc.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	require.True(t, receipt.IsFullyReturned)

	active, _, err := svc.ListReceipts(ctx, order.ID, true, 0, 0)
	require.NoError(t, err)
	require.Empty(t, active)

	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 0.0, bal.Qty, 1e-9)
	require.InDelta(t, 0.0, bal.TotalValue, 1e-9)
}

func TestDeleteReturnRestoresState(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt.Lines[0].ID, Qty: 4}},
	}, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReturn(ctx, ret.ID, 0))

	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 6.0, bal.Qty, 1e-9)
	require.InDelta(t, 100.0, bal.AvgCost, 1e-9)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 6.0, order.Lines[0].ReceivedQty, 1e-9)
	require.Equal(t, OrderPartiallyReceived, order.Status)

	receipt, err = svc.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	require.Zero(t, receipt.Lines[0].ReturnedQty)
	require.False(t, receipt.IsFullyReturned)
}

func TestUpdateReturnReverseThenReapply(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt.Lines[0].ID, Qty: 4}},
	}, "")
	require.NoError(t, err)

	updated, err := svc.UpdateReturn(ctx, ret.ID, []ReturnLineInput{
		{ReceiptLineID: receipt.Lines[0].ID, Qty: 1},
	}, 0)
	require.NoError(t, err)
	require.InDelta(t, 100.0, updated.TotalCost, 1e-9)

	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 5.0, bal.Qty, 1e-9)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 5.0, order.Lines[0].ReceivedQty, 1e-9)
}

func TestReceiptCorrectionBlockedWhileReturnExists(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt.Lines[0].ID, Qty: 2}},
	}, "")
	require.NoError(t, err)

	// Recreating receipt lines would strand the return's line references, so
	// both corrections are rejected while the return stands.
	_, err = svc.UpdateReceipt(ctx, receipt.ID, []ReceiptLineInput{
		{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100},
	}, 0)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	err = svc.DeleteReceipt(ctx, receipt.ID, 0)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// Deleting the return first unblocks the correction, and the ledger and
	// order stay reconciled.
	require.NoError(t, svc.DeleteReturn(ctx, ret.ID, 0))
	_, err = svc.UpdateReceipt(ctx, receipt.ID, []ReceiptLineInput{
		{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100},
	}, 0)
	require.NoError(t, err)

	order, err = svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, order.Lines[0].ReceivedQty, bal.Qty, 1e-9)
	require.InDelta(t, 6.0, bal.Qty, 1e-9)
}

func TestDeleteReturnUnmatchedReceiptLineRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt.Lines[0].ID, Qty: 2}},
	}, "")
	require.NoError(t, err)

	// Point the stored return line at a receipt line that no longer exists.
	// The reversal must fail before anything re-enters the ledger.
	stored := store.returns[ret.ID]
	stored.Lines[0].ReceiptLineID = 9999
	store.returns[ret.ID] = stored

	err = svc.DeleteReturn(ctx, ret.ID, 0)
	require.ErrorIs(t, err, shared.ErrNotFound)

	bal := store.inv.balances[invKey(item.ID, 1)]
	require.InDelta(t, 4.0, bal.Qty, 1e-9)
	_, err = svc.GetReturn(ctx, ret.ID)
	require.NoError(t, err)
}

func TestVerifyFullyReturnedReceiptRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 10, Rate: 100})

	receipt, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 6, Cost: 100}},
	}, "")
	require.NoError(t, err)

	_, err = svc.CreateReturn(ctx, CreateReturnInput{
		ReceiptID: receipt.ID,
		Lines:     []ReturnLineInput{{ReceiptLineID: receipt.Lines[0].ID, Qty: 6}},
	}, "")
	require.NoError(t, err)

	err = svc.VerifyReceipt(ctx, receipt.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMergeAttributes(t *testing.T) {
	item := items.Item{Metal: "gold", Purity: []string{"22K", "18K"}, Stone: "diamond"}

	metal, purity, stone := mergeAttributes(OrderLine{Metal: "silver", Purity: []string{"925", "22K"}}, item)
	require.Equal(t, "silver", metal)
	require.Equal(t, []string{"925", "22K", "18K"}, purity)
	require.Equal(t, "diamond", stone)

	metal, purity, stone = mergeAttributes(OrderLine{}, item)
	require.Equal(t, "gold", metal)
	require.Equal(t, []string{"22K", "18K"}, purity)
	require.Equal(t, "diamond", stone)
}

func TestCancelCompletedOrderRejected(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, Policy{AutoApproveDraftOnReceipt: true})
	ctx := context.Background()
	item := seedItem(store, items.TrackByQuantity)
	order := seedOrder(t, svc, store, OrderLineInput{ItemID: item.ID, Qty: 2, Rate: 10})

	_, err := svc.CreateReceipt(ctx, CreateReceiptInput{
		OrderID:  order.ID,
		BranchID: 1,
		Lines:    []ReceiptLineInput{{OrderLineID: order.Lines[0].ID, Qty: 2, Cost: 10}},
	}, "")
	require.NoError(t, err)

	err = svc.CancelOrder(ctx, order.ID, 0, "late cancel")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
