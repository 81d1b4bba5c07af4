// Package observability holds the Prometheus metrics and OpenTelemetry
// tracer shared by the scan orchestrator and the SEO aggregator.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace prefixes every metric.
	MetricsNamespace = "seoscan"

	subsystemScan = "scan"
	subsystemSEO  = "seo"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	// Scan orchestrator
	ScansEnqueued    *prometheus.CounterVec
	ScansFinished    *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	ScansRunning     prometheus.Gauge
	PagesProcessed   *prometheus.CounterVec
	PlagiarismChecks *prometheus.CounterVec
	Recoveries       *prometheus.CounterVec

	// SEO aggregation
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	ProviderCacheHit *prometheus.CounterVec
}

// NewMetrics registers every collector on reg, or the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}
	m.initScanMetrics(factory)
	m.initSEOMetrics(factory)
	return m
}

func (m *Metrics) initScanMetrics(factory promauto.Factory) {
	m.ScansEnqueued = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemScan,
			Name:      "enqueued_total",
			Help:      "Enqueue requests by outcome (created or deduplicated)",
		},
		[]string{"outcome"},
	)

	m.ScansFinished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemScan,
			Name:      "finished_total",
			Help:      "Scans reaching a terminal status",
		},
		[]string{"status"},
	)

	m.ScanDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Wall time from running to a terminal status",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		},
	)

	m.ScansRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemScan,
			Name:      "running",
			Help:      "Scans currently executing",
		},
	)

	m.PagesProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemScan,
			Name:      "pages_total",
			Help:      "Candidate pages processed by result and fetch source",
		},
		[]string{"result", "source"},
	)

	m.PlagiarismChecks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemScan,
			Name:      "plagiarism_checks_total",
			Help:      "Plagiarism checks by result",
		},
		[]string{"result"},
	)

	m.Recoveries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemScan,
			Name:      "blog_recoveries_total",
			Help:      "Blog candidate recoveries after discovery found none",
		},
		[]string{"method"},
	)
}

func (m *Metrics) initSEOMetrics(factory promauto.Factory) {
	m.ProviderRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemSEO,
			Name:      "provider_requests_total",
			Help:      "Provider calls by result",
		},
		[]string{"provider", "result"},
	)

	m.ProviderDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemSEO,
			Name:      "provider_duration_seconds",
			Help:      "Provider call latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"provider"},
	)

	m.ProviderCacheHit = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: subsystemSEO,
			Name:      "provider_cache_hits_total",
			Help:      "Provider responses served from cache",
		},
		[]string{"provider"},
	)
}
