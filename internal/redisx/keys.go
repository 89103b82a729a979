package redisx

import "time"

const (
	// Dedup processed webhook deliveries: dedup:webhook:{event_id} -> "1".
	// Fast path only; the unique constraint on orders.session_ref is the
	// actual guarantee.
	KeyWebhookDedup = "dedup:webhook:%s"

	// Cache order status: order_status:{order_id} -> {"status":"...",...}
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLWebhookDedup = 48 * time.Hour
	TTLStatusCache  = 5 * time.Minute
)
