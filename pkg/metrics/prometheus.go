// Package metrics provides Prometheus metrics for the timeline reconciliation service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync outcomes used as label values.
const (
	OutcomeMatched    = "matched"
	OutcomeFallback   = "fallback"
	OutcomeUnmatched  = "unmatched"
	OutcomeDamageOnly = "damage_only"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline Metrics - What a reconcile run produced
	reconcileRuns      *prometheus.CounterVec
	reportsProcessed   prometheus.Counter
	reportsFailed      prometheus.Counter
	stageDuration      *prometheus.HistogramVec
	occurrences        prometheus.Counter
	actions            prometheus.Counter
	suspiciousGroups   prometheus.Counter
	droppedGroups      prometheus.Counter
	mergedGroups       prometheus.Counter
	phaseFallbacks     prometheus.Counter
	multiHitCollapsed  prometheus.Counter
	syncEntries        *prometheus.CounterVec
	timelinesStored    prometheus.Gauge
	enrichmentHits     prometheus.Counter
	enrichedActions    prometheus.Counter

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	rateLimitWait           prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bosstimeline",
		subsystem:        "reconcile",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	// Pipeline Metrics
	m.reconcileRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Total number of reconcile runs by status",
		ConstLabels: m.constLabels,
	}, []string{"status"})
	m.reportsProcessed = m.counter("reports_processed_total", "Total number of reports clustered and normalized")
	m.reportsFailed = m.counter("reports_failed_total", "Total number of reports skipped because their events could not be loaded")
	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_duration_milliseconds",
		Help:        "Duration of pipeline stages in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"stage"})
	m.occurrences = m.counter("occurrences_total", "Total number of per-report occurrences produced by clustering")
	m.actions = m.counter("actions_total", "Total number of canonical actions produced")
	m.suspiciousGroups = m.counter("suspicious_groups_total", "Total number of occurrence groups flagged suspicious")
	m.droppedGroups = m.counter("dropped_groups_total", "Total number of occurrence groups dropped for low confidence")
	m.mergedGroups = m.counter("merged_groups_total", "Total number of duplicate occurrence groups merged")
	m.phaseFallbacks = m.counter("phase_fallbacks_total", "Total number of phase-aware runs that fell back to flat aggregation")
	m.multiHitCollapsed = m.counter("multihit_collapsed_total", "Total number of multi-hit bursts collapsed")
	m.syncEntries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sync_entries_total",
		Help:        "Scripted timeline sync results by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})
	m.timelinesStored = m.gauge("timelines_stored", "Number of reconciled timelines held in the store")
	m.enrichmentHits = m.counter("enrichment_cache_hits_total", "Enrichment lookups answered from the run cache")
	m.enrichedActions = m.counter("enriched_actions_total", "Actions annotated by the enricher")

	// Queue Metrics
	m.queueSize = m.gauge("queue_size", "Current number of report jobs waiting")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of report jobs enqueued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected report jobs")

	// Worker Metrics
	m.workerActiveCount = m.gauge("worker_active_count", "Number of running workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-report processing latency in milliseconds")
	m.rateLimitWait = m.histogram("rate_limit_wait_milliseconds", "Time workers waited on the source rate limiter in milliseconds")

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Total number of errors by component",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})

	// System Metrics
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Pipeline Metrics Functions.

// RecordRun counts a finished reconcile run; status is "ok" or "error".
func RecordRun(status string) {
	globalManager.reconcileRuns.WithLabelValues(status).Inc()
}

// RecordReportProcessed increments the processed reports counter.
func RecordReportProcessed() {
	globalManager.reportsProcessed.Inc()
}

// RecordReportFailed increments the failed reports counter.
func RecordReportFailed() {
	globalManager.reportsFailed.Inc()
}

// RecordStageDuration records how long a pipeline stage took.
func RecordStageDuration(stage string, latencyMs float64) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(latencyMs)
}

// AddOccurrences adds n produced occurrences.
func AddOccurrences(n int) {
	globalManager.occurrences.Add(float64(n))
}

// AddActions adds n canonical actions.
func AddActions(n int) {
	globalManager.actions.Add(float64(n))
}

// AddGroupOutcomes records tracking and aggregation group counts.
func AddGroupOutcomes(suspicious, dropped, merged int) {
	globalManager.suspiciousGroups.Add(float64(suspicious))
	globalManager.droppedGroups.Add(float64(dropped))
	globalManager.mergedGroups.Add(float64(merged))
}

// RecordPhaseFallback increments the phase fallback counter.
func RecordPhaseFallback() {
	globalManager.phaseFallbacks.Inc()
}

// AddMultiHitCollapsed adds n collapsed bursts.
func AddMultiHitCollapsed(n int) {
	globalManager.multiHitCollapsed.Add(float64(n))
}

// AddSyncOutcome adds n scripted sync results of the given outcome.
func AddSyncOutcome(outcome string, n int) error {
	switch outcome {
	case OutcomeMatched, OutcomeFallback, OutcomeUnmatched, OutcomeDamageOnly:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}
	globalManager.syncEntries.WithLabelValues(outcome).Add(float64(n))
	return nil
}

// UpdateTimelinesStored sets the number of stored timelines.
func UpdateTimelinesStored(n int) {
	globalManager.timelinesStored.Set(float64(n))
}

// AddEnrichment records enrichment cache hits and annotated actions.
func AddEnrichment(cacheHits, enriched int) {
	globalManager.enrichmentHits.Add(float64(cacheHits))
	globalManager.enrichedActions.Add(float64(enriched))
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-report processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordRateLimitWait records time spent waiting on the rate limiter.
func RecordRateLimitWait(latencyMs float64) {
	globalManager.rateLimitWait.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
