package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup marks keys as seen for a TTL.
type Dedup struct {
	Client redis.Cmdable
}

func (d *Dedup) Seen(ctx context.Context, key string) (bool, error) {
	return Exists(ctx, d.Client, key)
}

func (d *Dedup) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return d.Client.Set(ctx, key, "1", ttl).Err()
}

// Claim marks key and reports whether this caller was first.
func (d *Dedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.Client.SetNX(ctx, key, "1", ttl).Result()
}
