package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids for TTLDedup. It implements
// inventory.Deduper; the database still rejects replays on its own.
type Dedup struct {
	rdb *redis.Client
}

func NewDedup(rdb *redis.Client) *Dedup { return &Dedup{rdb: rdb} }

func (d *Dedup) Seen(ctx context.Context, scope, id string) (bool, error) {
	return Exists(ctx, d.rdb, fmt.Sprintf(KeyDedup, scope, id))
}

func (d *Dedup) Mark(ctx context.Context, scope, id string) error {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, scope, id), 1, TTLDedup).Err()
}
