package observability

import (
	"time"

	"github.com/strangerdangercoffee/portal/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the portal.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	requestsCreated *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	statusUpdates   *prometheus.CounterVec
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
				Name:    "portal_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_service_requests_created_total",
				Help: "Service requests persisted, by service type.",
			},
			[]string{"service_type"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_notifications_total",
				Help: "Notification attempts by template kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		statusUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_status_updates_total",
				Help: "Admin status changes by target status.",
			},
			[]string{"status"},
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

// IncrRequestCreated counts a persisted service request.
func (m *Metrics) IncrRequestCreated(t domain.ServiceType) {
	m.requestsCreated.WithLabelValues(string(t)).Inc()
}

// IncrNotification counts one notification outcome.
func (m *Metrics) IncrNotification(kind string, outcome domain.NotifyStatus) {
	m.notifications.WithLabelValues(kind, string(outcome)).Inc()
}

// IncrStatusUpdate counts an admin status change.
func (m *Metrics) IncrStatusUpdate(s domain.Status) {
	m.statusUpdates.WithLabelValues(string(s)).Inc()
}

// NotificationKinds are the template kinds the dispatcher labels with.
var NotificationKinds = []string{"request", "onboarding", "contact"}

// Snapshot reads the write counters back from the registry for the admin
// overview.
func (m *Metrics) Snapshot() *domain.RequestCounters {
	out := &domain.RequestCounters{}
	for _, t := range domain.ServiceCatalog {
		out.Created += int64(getCounterValue(m.requestsCreated, string(t)))
	}
	for _, s := range []domain.Status{domain.StatusPending, domain.StatusInProgress, domain.StatusCompleted} {
		out.StatusUpdates += int64(getCounterValue(m.statusUpdates, string(s)))
	}
	for _, k := range NotificationKinds {
		out.Notifications.Sent += int64(getCounterValue(m.notifications, k, string(domain.NotifySent)))
		out.Notifications.Failed += int64(getCounterValue(m.notifications, k, string(domain.NotifyFailed)))
		out.Notifications.Skipped += int64(getCounterValue(m.notifications, k, string(domain.NotifySkipped)))
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
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
