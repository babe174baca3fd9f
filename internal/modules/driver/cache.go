// README: Fleet snapshot cache backed by Redis for the polling admin board.
package driver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const fleetSnapshotKey = "fleet:drivers"

// Cache holds a short-lived snapshot of the whole fleet. Clients poll the
// driver list on a fixed interval, so serving a snapshot no older than that
// interval changes nothing they can observe.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCache(redis *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: redis, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context) ([]*Driver, bool) {
	val, err := c.redis.Get(ctx, fleetSnapshotKey).Bytes()
	if err != nil {
		return nil, false
	}
	var drivers []*Driver
	if err := json.Unmarshal(val, &drivers); err != nil {
		return nil, false
	}
	return drivers, true
}

func (c *Cache) Set(ctx context.Context, drivers []*Driver) {
	val, err := json.Marshal(drivers)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, fleetSnapshotKey, val, c.ttl).Err()
}

// Invalidate drops the snapshot after any driver or assignment mutation.
func (c *Cache) Invalidate(ctx context.Context) {
	_ = c.redis.Del(ctx, fleetSnapshotKey).Err()
}
