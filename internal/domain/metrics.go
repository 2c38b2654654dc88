package domain

// FunnelMetrics is an aggregated snapshot of import and messaging activity,
// served by GET /v1/metrics/funnel.
type FunnelMetrics struct {
	LeadsImported    int64   `json:"leads_imported"`
	DuplicatesSkipped int64  `json:"duplicates_skipped"`
	InvalidSkipped   int64   `json:"invalid_skipped"`
	LeadsMoved       int64   `json:"leads_moved"`
	MessagesSent     int64   `json:"messages_sent"`
	MessagesFailed   int64   `json:"messages_failed"`
	SendErrorRate    float64 `json:"send_error_rate"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	Period           string  `json:"period"`
}
