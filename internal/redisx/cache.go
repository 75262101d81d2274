package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/def-order-backend/internal/orders"
)

// StatusCache keeps the latest order status under KeyOrderStatus.
type StatusCache struct {
	Client redis.Cmdable
	TTL    time.Duration
}

type cachedStatus struct {
	Status orders.Status `json:"status"`
}

func (c *StatusCache) SetStatus(ctx context.Context, orderID string, s orders.Status) error {
	b, err := json.Marshal(cachedStatus{Status: s})
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, c.ttl()).Err()
}

// Status returns the cached status. ok is false on a cache miss.
func (c *StatusCache) Status(ctx context.Context, orderID string) (s orders.Status, ok bool, err error) {
	raw, err := c.Client.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var cs cachedStatus
	if err := json.Unmarshal(raw, &cs); err != nil {
		return "", false, err
	}
	return cs.Status, cs.Status != "", nil
}

func (c *StatusCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return TTLStatusCache
}
