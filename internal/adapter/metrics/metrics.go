package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenancy_engine"

// LeaseMetrics holds all Prometheus metrics for the lease service.
type LeaseMetrics struct {
	TransitionsTotal   *prometheus.CounterVec
	LedgerEntriesTotal *prometheus.CounterVec
	DomainErrorsTotal  *prometheus.CounterVec
	ActiveAlerts       *prometheus.GaugeVec
	DirectoryCacheHits prometheus.Counter
	DirectoryCacheMiss prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// NewLeaseMetrics initializes the metrics and registers them with reg. A nil
// reg uses the default registry.
func NewLeaseMetrics(reg prometheus.Registerer) *LeaseMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &LeaseMetrics{
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "transitions_total",
			Help:      "Total number of applied lease status transitions.",
		}, []string{"from", "to"}),
		LedgerEntriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Total number of ledger entries appended.",
		}, []string{"kind", "field"}), // kind: adjustment, indexation
		DomainErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "domain_errors_total",
			Help:      "Total number of rejected operations by error kind.",
		}, []string{"kind"}),
		ActiveAlerts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Number of active alerts at the last evaluation, by type.",
		}, []string{"type"}),
		DirectoryCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "cache_hits_total",
			Help:      "Total number of directory cache hits.",
		}),
		DirectoryCacheMiss: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "cache_misses_total",
			Help:      "Total number of directory cache misses.",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}
