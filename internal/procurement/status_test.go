package procurement

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveLineStatus(t *testing.T) {
	cases := []struct {
		name string
		line OrderLine
		want LineStatus
	}{
		{"nothing received", OrderLine{Qty: 10}, LinePending},
		{"partial quantity", OrderLine{Qty: 10, ReceivedQty: 4}, LinePartiallyReceived},
		{"full quantity", OrderLine{Qty: 10, ReceivedQty: 10}, LineReceived},
		{"weight only full", OrderLine{Weight: 25.5, ReceivedWeight: 25.5}, LineReceived},
		{"weight only partial", OrderLine{Weight: 25.5, ReceivedWeight: 10}, LinePartiallyReceived},
		{"both dims one full", OrderLine{Qty: 2, Weight: 8, ReceivedQty: 2}, LinePartiallyReceived},
		{"both dims both full", OrderLine{Qty: 2, Weight: 8, ReceivedQty: 2, ReceivedWeight: 8}, LineReceived},
		{"float tolerance", OrderLine{Weight: 0.3, ReceivedWeight: 0.1 + 0.2}, LineReceived},
		{"empty line", OrderLine{}, LinePending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveLineStatus(tc.line))
		})
	}
}

func TestDeriveOrderStatus(t *testing.T) {
	cases := []struct {
		name        string
		lines       []OrderLine
		afterReturn bool
		want        OrderStatus
	}{
		{"no lines", nil, false, OrderApproved},
		{"all pending", []OrderLine{{Qty: 5}, {Qty: 3}}, false, OrderApproved},
		{"one partial", []OrderLine{{Qty: 5, ReceivedQty: 2}, {Qty: 3}}, false, OrderPartiallyReceived},
		{"one full one pending", []OrderLine{{Qty: 5, ReceivedQty: 5}, {Qty: 3}}, false, OrderPartiallyReceived},
		{"all full", []OrderLine{{Qty: 5, ReceivedQty: 5}, {Weight: 3, ReceivedWeight: 3}}, false, OrderCompleted},
		{"collapsed after return", []OrderLine{{Qty: 5}, {Qty: 3}}, true, OrderReturned},
		{"partial after return", []OrderLine{{Qty: 5, ReceivedQty: 1}}, true, OrderPartiallyReceived},
		{"full after return", []OrderLine{{Qty: 5, ReceivedQty: 5}}, true, OrderCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveOrderStatus(tc.lines, tc.afterReturn))
		})
	}
}

func TestDeriveOrderStatusOrderIndependent(t *testing.T) {
	lines := []OrderLine{
		{Qty: 5, ReceivedQty: 5},
		{Qty: 3, ReceivedQty: 1},
		{Weight: 10},
		{Qty: 2, Weight: 4, ReceivedQty: 2, ReceivedWeight: 4},
	}
	want := DeriveOrderStatus(lines, false)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]OrderLine(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		require.Equal(t, want, DeriveOrderStatus(shuffled, false))
	}
}
