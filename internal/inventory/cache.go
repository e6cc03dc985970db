package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const currentStockTTL = 30 * time.Second

// StockCache keeps the current-stock listing in Redis for a short TTL. Every
// ledger mutation invalidates the affected branch so readers never see stale
// balances for longer than one refresh window.
type StockCache struct {
	client *redis.Client
}

// NewStockCache wraps a Redis client. A nil client disables caching.
func NewStockCache(client *redis.Client) *StockCache {
	return &StockCache{client: client}
}

type cachedStock struct {
	Balances []Balance `json:"balances"`
	Total    int64     `json:"total"`
}

func stockKey(branchID int64, search string, limit, offset int) string {
	return fmt.Sprintf("stock:current:%d:%s:%d:%d", branchID, search, limit, offset)
}

func (c *StockCache) Get(ctx context.Context, branchID int64, search string, limit, offset int) ([]Balance, int64, bool) {
	if c == nil || c.client == nil {
		return nil, 0, false
	}
	raw, err := c.client.Get(ctx, stockKey(branchID, search, limit, offset)).Bytes()
	if err != nil {
		return nil, 0, false
	}
	var payload cachedStock
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, 0, false
	}
	return payload.Balances, payload.Total, true
}

func (c *StockCache) Set(ctx context.Context, branchID int64, search string, limit, offset int, balances []Balance, total int64) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(cachedStock{Balances: balances, Total: total})
	if err != nil {
		return
	}
	c.client.Set(ctx, stockKey(branchID, search, limit, offset), raw, currentStockTTL)
}

// InvalidateBranch drops every cached page for one branch. Cache misses are
// cheap next to a wrong balance, so errors are ignored.
func (c *StockCache) InvalidateBranch(ctx context.Context, branchID int64) {
	if c == nil || c.client == nil {
		return
	}
	pattern := fmt.Sprintf("stock:current:%d:*", branchID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
