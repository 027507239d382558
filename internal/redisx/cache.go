package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// SummaryCache is a read-through cache of orders.Summary. A nil cache is a
// valid, always-missing cache.
type SummaryCache struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewSummaryCache(rdb *redis.Client, log *slog.Logger) *SummaryCache {
	if rdb == nil {
		return nil
	}
	return &SummaryCache{rdb: rdb, log: log}
}

func (c *SummaryCache) Get(ctx context.Context, orderID string) (orders.Summary, bool) {
	if c == nil {
		return orders.Summary{}, false
	}
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderSummary, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.DebugContext(ctx, "summary cache get failed", "order_id", orderID, "err", err)
		}
		return orders.Summary{}, false
	}
	var s orders.Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return orders.Summary{}, false
	}
	return s, true
}

func (c *SummaryCache) Set(ctx context.Context, s orders.Summary) {
	if c == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(KeyOrderSummary, s.ID), b, TTLSummaryCache).Err(); err != nil {
		c.log.DebugContext(ctx, "summary cache set failed", "order_id", s.ID, "err", err)
	}
}

func (c *SummaryCache) Invalidate(ctx context.Context, orderID string) {
	if c == nil {
		return
	}
	_ = c.rdb.Del(ctx, fmt.Sprintf(KeyOrderSummary, orderID)).Err()
}
