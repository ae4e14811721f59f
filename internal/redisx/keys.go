package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Catalog read cache: product:slug:{slug} -> product JSON
	KeyProductSlug = "product:slug:%s"
	// Consumer dedup: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

// Short TTL instead of invalidation; reservation counters may be briefly
// stale in the cached copy, which only ever feeds the read-only browse path.
var TTLProductCache = 60 * time.Second

// Kafka redelivery windows are short; the unique constraint on the audit
// table backstops anything older than this.
var TTLDedup = 24 * time.Hour

func Exists(ctx context.Context, r *redis.Client, key string) (bool, error) {
	n, err := r.Exists(ctx, key).Result()
	return n > 0, err
}
