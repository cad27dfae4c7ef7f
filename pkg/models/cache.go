package models

import "time"

// QueryStats holds per-query cache effectiveness counters
type QueryStats struct {
	Name           string  `json:"name"`
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	TotalSavedMs   float64 `json:"total_saved_ms"`
	AvgTimeSavedMs float64 `json:"avg_time_saved_ms"`
}

// HourlyBucket is a per-hour rollup of cache activity
type HourlyBucket struct {
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	TotalSavedMs float64 `json:"total_saved_ms"`
}

// MetricsSummary is the aggregated cache metrics view returned to operators
type MetricsSummary struct {
	TotalRequests  uint64                  `json:"total_requests"`
	Hits           uint64                  `json:"hits"`
	Misses         uint64                  `json:"misses"`
	HitRate        float64                 `json:"hit_rate"`
	TotalSavedMs   float64                 `json:"total_saved_ms"`
	AvgTimeSavedMs float64                 `json:"avg_time_saved_ms"`
	TopQueries     []QueryStats            `json:"top_queries"`
	HourlyStats    map[string]HourlyBucket `json:"hourly_stats"`
	Since          time.Time               `json:"since"`
}
