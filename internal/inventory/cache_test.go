package inventory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *StockCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStockCache(client)
}

func TestStockCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	balances := []Balance{{ItemID: 1, BranchID: 2, Qty: 5, AvgCost: 100, TotalValue: 500}}
	cache.Set(ctx, 2, "", 50, 0, balances, 1)

	got, total, ok := cache.Get(ctx, 2, "", 50, 0)
	require.True(t, ok)
	require.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	require.InDelta(t, 100.0, got[0].AvgCost, 1e-9)
}

func TestStockCacheMissOnDifferentPage(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 2, "", 50, 0, []Balance{{ItemID: 1, BranchID: 2}}, 1)
	_, _, ok := cache.Get(ctx, 2, "", 50, 50)
	require.False(t, ok)
}

func TestStockCacheInvalidateBranch(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 2, "", 50, 0, []Balance{{ItemID: 1, BranchID: 2}}, 1)
	cache.Set(ctx, 3, "", 50, 0, []Balance{{ItemID: 1, BranchID: 3}}, 1)

	cache.InvalidateBranch(ctx, 2)

	_, _, ok := cache.Get(ctx, 2, "", 50, 0)
	require.False(t, ok)
	_, _, ok = cache.Get(ctx, 3, "", 50, 0)
	require.True(t, ok)
}

func TestStockCacheNilClientDisabled(t *testing.T) {
	var cache *StockCache
	ctx := context.Background()
	cache.Set(ctx, 1, "", 50, 0, nil, 0)
	_, _, ok := cache.Get(ctx, 1, "", 50, 0)
	require.False(t, ok)
	cache.InvalidateBranch(ctx, 1)
}
