package redisx

import "time"

const (
	// Cached order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup of processed work: dedup:{service}:{id}
	// (id = order_id for inventory deductions, event_id for push deliveries)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
