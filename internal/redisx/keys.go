package redisx

import "time"

const (
	// Order read model: order_summary:{order_id} -> JSON orders.Summary
	KeyOrderSummary = "order_summary:%s"

	// Dedup event processing: dedup:{scope}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLSummaryCache = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
)
