package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot for the ops dashboard.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	ClearanceDecisions       uint64    `json:"clearance_decisions"`
	MessagesSent             uint64    `json:"messages_sent"`
	ConnectedUsers           int       `json:"connected_users"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
