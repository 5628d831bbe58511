// Package metrics provides Prometheus metrics for the pausemap pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector used by the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Source fetches
	sourceFetches        *prometheus.CounterVec
	sourceFetchLatency   *prometheus.HistogramVec
	sourceBytes          *prometheus.CounterVec
	sourceRowsProduced   *prometheus.GaugeVec
	gdeltDuplicateEvents prometheus.Counter

	// Raw payload cache
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheErrors *prometheus.CounterVec

	// Reconciliation
	reconcileRuns    prometheus.Counter
	reconcileErrors  *prometheus.CounterVec
	reconcileLatency prometheus.Histogram
	reconcileWeeks   prometheus.Gauge
	reconcileSeries  prometheus.Gauge
	lastRunUnix      prometheus.Gauge

	// Repository
	repositoryRecords      prometheus.Gauge
	repositoryWriteLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pausemap",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.sourceFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("source_fetches_total"),
		Help:        "Upstream fetches by source and outcome (ok, cached, error)",
		ConstLabels: constLabels,
	}, []string{"source", "outcome"})

	m.sourceFetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("source_fetch_duration_milliseconds"),
		Help:        "Latency of upstream HTTP fetches in milliseconds",
		Buckets:     []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		ConstLabels: constLabels,
	}, []string{"source"})

	m.sourceBytes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("source_bytes_total"),
		Help:        "Raw payload bytes downloaded from upstream sources",
		ConstLabels: constLabels,
	}, []string{"source"})

	m.sourceRowsProduced = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("source_rows"),
		Help:        "Rows in the last frame produced by each source",
		ConstLabels: constLabels,
	}, []string{"source"})

	m.gdeltDuplicateEvents = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("gdelt_duplicate_events_total"),
		Help:        "GDELT rows dropped because their GLOBALEVENTID was already seen",
		ConstLabels: constLabels,
	})

	m.cacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_hits_total"),
		Help:        "Raw payload cache hits by backend",
		ConstLabels: constLabels,
	}, []string{"backend"})

	m.cacheMisses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_misses_total"),
		Help:        "Raw payload cache misses by backend",
		ConstLabels: constLabels,
	}, []string{"backend"})

	m.cacheErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_errors_total"),
		Help:        "Raw payload cache backend errors",
		ConstLabels: constLabels,
	}, []string{"backend", "op"})

	m.reconcileRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reconcile_runs_total"),
		Help:        "Completed weekly reconciliation runs",
		ConstLabels: constLabels,
	})

	m.reconcileErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reconcile_errors_total"),
		Help:        "Failed reconciliation runs by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.reconcileLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reconcile_duration_milliseconds"),
		Help:        "Time spent in a reconciliation call",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})

	m.reconcileWeeks = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reconcile_weeks"),
		Help:        "Weekly summaries produced by the last run",
		ConstLabels: constLabels,
	})

	m.reconcileSeries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reconcile_metrics"),
		Help:        "Distinct metric names in the last run",
		ConstLabels: constLabels,
	})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("last_run_timestamp_seconds"),
		Help:        "Unix time of the last successful run",
		ConstLabels: constLabels,
	})

	m.repositoryRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("repository_records"),
		Help:        "Weekly summaries held by the repository",
		ConstLabels: constLabels,
	})

	m.repositoryWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("repository_write_duration_milliseconds"),
		Help:        "Latency of repository saves",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "HTTP requests by endpoint, method and status code",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_component_total"),
		Help:        "Errors by component and type",
		ConstLabels: constLabels,
	}, []string{"component", "error_type"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_endpoint_total"),
		Help:        "HTTP errors by endpoint, method and type",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_bytes"),
		Help:        "Heap bytes allocated",
		ConstLabels: constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutines"),
		Help:        "Number of goroutines",
		ConstLabels: constLabels,
	})
}

// RecordSourceFetch counts an upstream fetch. outcome is ok, cached or error.
func RecordSourceFetch(source, outcome string) {
	globalManager.sourceFetches.WithLabelValues(source, outcome).Inc()
}

// RecordSourceFetchLatency records an upstream fetch latency in milliseconds.
func RecordSourceFetchLatency(source string, latencyMs float64) {
	globalManager.sourceFetchLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordSourceBytes adds downloaded payload bytes.
func RecordSourceBytes(source string, n int) {
	globalManager.sourceBytes.WithLabelValues(source).Add(float64(n))
}

// UpdateSourceRows sets the row count of the last frame a source produced.
func UpdateSourceRows(source string, rows int) {
	globalManager.sourceRowsProduced.WithLabelValues(source).Set(float64(rows))
}

// RecordGDELTDuplicates adds n duplicate GDELT events.
func RecordGDELTDuplicates(n int) {
	globalManager.gdeltDuplicateEvents.Add(float64(n))
}

// RecordCacheHit increments cache hits for backend.
func RecordCacheHit(backend string) {
	globalManager.cacheHits.WithLabelValues(backend).Inc()
}

// RecordCacheMiss increments cache misses for backend.
func RecordCacheMiss(backend string) {
	globalManager.cacheMisses.WithLabelValues(backend).Inc()
}

// RecordCacheError increments cache errors for backend and operation.
func RecordCacheError(backend, op string) {
	globalManager.cacheErrors.WithLabelValues(backend, op).Inc()
}

// RecordReconcileRun records a successful run.
func RecordReconcileRun(weeks, series int, latencyMs float64) {
	globalManager.reconcileRuns.Inc()
	globalManager.reconcileWeeks.Set(float64(weeks))
	globalManager.reconcileSeries.Set(float64(series))
	globalManager.reconcileLatency.Observe(latencyMs)
	globalManager.lastRunUnix.Set(float64(time.Now().Unix()))
}

// RecordReconcileError counts a failed run by kind (schema, source, repository, export).
func RecordReconcileError(kind string) {
	globalManager.reconcileErrors.WithLabelValues(kind).Inc()
}

// UpdateRepositoryRecords sets the number of stored summaries.
func UpdateRepositoryRecords(n int) {
	globalManager.repositoryRecords.Set(float64(n))
}

// RecordRepositoryWriteLatency records a repository save latency in milliseconds.
func RecordRepositoryWriteLatency(latencyMs float64) {
	globalManager.repositoryWriteLatency.Observe(latencyMs)
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments errors for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint increments errors for an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RefreshInterval returns how often periodic gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
