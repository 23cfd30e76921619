package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/observability"
)

// Cache stores JSON blobs with a TTL. Rate previews are its only tenant;
// entries age out rather than being invalidated on sync.
type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := c.c.Get(ctx, key).Bytes()
	switch {
	case err == redis.Nil:
		observability.ObserveCache("redis", "miss")
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return false, err
	}
	observability.ObserveCache("redis", "hit")
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.c.Set(ctx, key, b, time.Duration(ttlSec)*time.Second).Err(); err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return nil
}

func (c *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return c.c.Del(ctx, key).Err()
}

func (c *Cache) Close() error { return c.c.Close() }
