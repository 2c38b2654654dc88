package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/asherv/martpal-go/internal/domain"
)

// Metrics holds all Prometheus metrics for MartPal.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	leadsImported   *prometheus.CounterVec
	leadsMoved      *prometheus.CounterVec
	messagesTotal   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "martpal_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "martpal_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "martpal_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "martpal_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		leadsImported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "martpal_leads_imported_total",
				Help: "Total lead import outcomes by result.",
			},
			[]string{"result"},
		),
		leadsMoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "martpal_leads_moved_total",
				Help: "Total leads moved between funnel segments.",
			},
			[]string{"to"},
		),
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "martpal_messages_total",
				Help: "Total outbound messages by channel and status.",
			},
			[]string{"channel", "status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordImport records the outcome counts of one import run.
func (m *Metrics) RecordImport(result domain.ImportResult) {
	m.leadsImported.WithLabelValues("imported").Add(float64(result.Imported))
	m.leadsImported.WithLabelValues("duplicate").Add(float64(result.Duplicates))
	m.leadsImported.WithLabelValues("invalid").Add(float64(result.Invalid))
	m.leadsImported.WithLabelValues("failed").Add(float64(result.Failed))
}

// IncrLeadMoved increments the move counter with the target segment.
func (m *Metrics) IncrLeadMoved(to string) {
	m.leadsMoved.WithLabelValues(to).Inc()
}

// IncrMessage increments the outbound message counter.
func (m *Metrics) IncrMessage(channel, status string) {
	m.messagesTotal.WithLabelValues(channel, status).Inc()
}

// GetFunnelSnapshot returns a snapshot of funnel-related metrics suitable for
// the GET /v1/metrics/funnel endpoint.
func (m *Metrics) GetFunnelSnapshot() *domain.FunnelMetrics {
	// Prometheus counters expose cumulative values.
	imported := getCounterValue(m.leadsImported, "imported")
	duplicates := getCounterValue(m.leadsImported, "duplicate")
	invalid := getCounterValue(m.leadsImported, "invalid")

	moved := float64(0)
	for _, seg := range domain.Segments() {
		moved += getCounterValue(m.leadsMoved, seg)
	}

	sent := getCounterValue(m.messagesTotal, domain.PlatformEmail, "sent") +
		getCounterValue(m.messagesTotal, domain.PlatformWhatsApp, "sent")
	failed := getCounterValue(m.messagesTotal, domain.PlatformEmail, "failed") +
		getCounterValue(m.messagesTotal, domain.PlatformWhatsApp, "failed")

	cacheHits := getCounterValue(m.cacheHits, "profile")
	cacheMisses := getCounterValue(m.cacheMisses, "profile")

	errorRate := float64(0)
	if sent+failed > 0 {
		errorRate = failed / (sent + failed)
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.FunnelMetrics{
		LeadsImported:     int64(imported),
		DuplicatesSkipped: int64(duplicates),
		InvalidSkipped:    int64(invalid),
		LeadsMoved:        int64(moved),
		MessagesSent:      int64(sent),
		MessagesFailed:    int64(failed),
		SendErrorRate:     errorRate,
		CacheHitRate:      cacheHitRate,
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the
// given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
