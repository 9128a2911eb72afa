package observability

import (
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the CRM.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration        *prometheus.HistogramVec
	externalErrors         *prometheus.CounterVec
	cacheHits              *prometheus.CounterVec
	cacheMisses            *prometheus.CounterVec
	transitions            *prometheus.CounterVec
	notificationsGenerated *prometheus.CounterVec
	checkFailures          *prometheus.CounterVec
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
				Name:    "crm_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_lead_transitions_total",
				Help: "Lead stage transitions by outcome.",
			},
			[]string{"from", "to", "outcome"},
		),
		notificationsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_notifications_generated_total",
				Help: "Notifications created by the proactive generator.",
			},
			[]string{"type"},
		),
		checkFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_notification_check_failures_total",
				Help: "Existence checks that failed and were treated as not found.",
			},
			[]string{"type"},
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

// IncrTransition counts a transition attempt. outcome is one of
// "applied", "missing_fields", "invalid", "invalid_input" or "store_error".
func (m *Metrics) IncrTransition(from, to domain.LeadStatus, outcome string) {
	m.transitions.WithLabelValues(string(from), string(to), outcome).Inc()
}

// IncrNotificationGenerated counts a generator insert.
func (m *Metrics) IncrNotificationGenerated(notifType string) {
	m.notificationsGenerated.WithLabelValues(notifType).Inc()
}

// IncrCheckFailure counts a failed existence check.
func (m *Metrics) IncrCheckFailure(notifType string) {
	m.checkFailures.WithLabelValues(notifType).Inc()
}

var generatedTypes = []string{
	domain.NotifFlightTomorrow,
	domain.NotifCustomerReturned,
	domain.NotifDocumentExpiring,
}

// NotificationSnapshot returns cumulative generator and transition counters
// for GET /v1/metrics/notifications.
func (m *Metrics) NotificationSnapshot() *domain.NotificationMetrics {
	snap := &domain.NotificationMetrics{Generated: make(map[string]int64, len(generatedTypes))}
	for _, t := range generatedTypes {
		snap.Generated[t] = int64(counterValue(m.notificationsGenerated.WithLabelValues(t)))
		snap.CheckFailures += int64(counterValue(m.checkFailures.WithLabelValues(t)))
	}

	for i := 0; i+1 < len(domain.Pipeline); i++ {
		a, b := string(domain.Pipeline[i]), string(domain.Pipeline[i+1])
		for _, pair := range [][2]string{{a, b}, {b, a}} {
			snap.Transitions += int64(counterValue(m.transitions.WithLabelValues(pair[0], pair[1], "applied")))
			snap.Rejected += int64(counterValue(m.transitions.WithLabelValues(pair[0], pair[1], "missing_fields")))
		}
	}
	return snap
}

// counterValue extracts the current float64 value of a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
