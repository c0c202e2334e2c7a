package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultLatencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}
	defaultScoreBuckets   = prometheus.LinearBuckets(10, 10, 10) // 10..100
)

// Manager manages all Prometheus metrics for the formcheck service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	scoreBuckets   []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Analysis metrics
	framesAnalyzed       *prometheus.CounterVec
	poseUnavailable      prometheus.Counter
	analysisRejected     *prometheus.CounterVec
	repsCompleted        *prometheus.CounterVec
	formScore            *prometheus.HistogramVec
	feedbackIssued       *prometheus.CounterVec
	analysisLatency      prometheus.Histogram
	poseDetectionLatency prometheus.Histogram

	// Session metrics
	activeSessions prometheus.Gauge
	historySize    prometheus.Gauge
	sessionsOpened prometheus.Counter
	sessionsClosed *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Frame pump metrics
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueUtilization        prometheus.Gauge
	queueEnqueueTotal       prometheus.Counter
	queueDequeueTotal       prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	framesDuplicate         prometheus.Counter

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "formcheck",
		subsystem:      "analysis",
		latencyBuckets: defaultLatencyBuckets,
		scoreBuckets:   defaultScoreBuckets,
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.framesAnalyzed = auto.NewCounterVec(m.counterOpts("frames_analyzed_total",
		"Total number of frames that produced an analysis"), []string{"exercise"})
	m.poseUnavailable = auto.NewCounter(m.counterOpts("pose_unavailable_total",
		"Total number of frames for which no usable pose was detected"))
	m.analysisRejected = auto.NewCounterVec(m.counterOpts("analysis_rejected_total",
		"Total number of analyze calls rejected before scoring"), []string{"reason"})
	m.repsCompleted = auto.NewCounterVec(m.counterOpts("reps_completed_total",
		"Total number of repetitions counted"), []string{"exercise"})
	m.formScore = auto.NewHistogramVec(m.histogramOpts("form_score",
		"Distribution of per-frame form scores", m.scoreBuckets), []string{"exercise"})
	m.feedbackIssued = auto.NewCounterVec(m.counterOpts("feedback_issued_total",
		"Total number of feedback items by kind and severity"), []string{"kind", "severity"})
	m.analysisLatency = auto.NewHistogram(m.histogramOpts("analysis_latency_milliseconds",
		"End-to-end latency of a single frame analysis in milliseconds", m.latencyBuckets))
	m.poseDetectionLatency = auto.NewHistogram(m.histogramOpts("pose_detection_latency_milliseconds",
		"Latency of the pose acquisition step in milliseconds", m.latencyBuckets))

	m.activeSessions = auto.NewGauge(m.gaugeOpts("active_sessions", "Number of open analysis sessions"))
	m.historySize = auto.NewGauge(m.gaugeOpts("history_size", "Total analyses held in session histories"))
	m.sessionsOpened = auto.NewCounter(m.counterOpts("sessions_opened_total", "Total sessions opened"))
	m.sessionsClosed = auto.NewCounterVec(m.counterOpts("sessions_closed_total",
		"Total sessions closed by reason"), []string{"reason"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.latencyBuckets), []string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("frame_queue_size", "Current number of queued frames"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("frame_queue_capacity", "Maximum frame queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("frame_queue_utilization_ratio",
		"Frame queue utilization ratio (current size / capacity)"))
	m.queueEnqueueTotal = auto.NewCounter(m.counterOpts("frame_queue_enqueue_total", "Total frames enqueued"))
	m.queueDequeueTotal = auto.NewCounter(m.counterOpts("frame_queue_dequeue_total", "Total frames dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("frame_queue_enqueue_errors_total",
		"Total frames rejected by the queue"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Frame pump processing latency in milliseconds", m.latencyBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total frame pump errors"))
	m.framesDuplicate = auto.NewCounter(m.counterOpts("frames_duplicate_total",
		"Total re-sent frames dropped before analysis"))

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Allocated heap memory in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds",
		"Average GC pause time in milliseconds", m.latencyBuckets))
}

// Analysis metrics.

// RecordFrameAnalyzed counts a successful analysis and observes its form score.
func RecordFrameAnalyzed(exercise string, score float64) {
	globalManager.framesAnalyzed.WithLabelValues(exercise).Inc()
	globalManager.formScore.WithLabelValues(exercise).Observe(score)
}

// RecordPoseUnavailable counts frames without a usable pose.
func RecordPoseUnavailable() {
	globalManager.poseUnavailable.Inc()
}

// RecordAnalysisRejected counts frames rejected before analysis, by reason.
func RecordAnalysisRejected(reason string) {
	globalManager.analysisRejected.WithLabelValues(reason).Inc()
}

// RecordRepCompleted counts one repetition.
func RecordRepCompleted(exercise string) {
	globalManager.repsCompleted.WithLabelValues(exercise).Inc()
}

// RecordFeedback counts one feedback item.
func RecordFeedback(kind, severity string) {
	globalManager.feedbackIssued.WithLabelValues(kind, severity).Inc()
}

// RecordAnalysisLatency records end-to-end analysis latency in milliseconds.
func RecordAnalysisLatency(latencyMs float64) {
	globalManager.analysisLatency.Observe(latencyMs)
}

// RecordPoseDetectionLatency records pose acquisition latency in milliseconds.
func RecordPoseDetectionLatency(latencyMs float64) {
	globalManager.poseDetectionLatency.Observe(latencyMs)
}

// Session metrics.

// UpdateActiveSessions sets the number of open sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// UpdateHistorySize sets the number of analyses held across sessions.
func UpdateHistorySize(count int) {
	globalManager.historySize.Set(float64(count))
}

// RecordSessionOpened counts a new session.
func RecordSessionOpened() {
	globalManager.sessionsOpened.Inc()
}

// RecordSessionClosed counts a closed session; reason is "deleted" or "expired".
func RecordSessionClosed(reason string) {
	globalManager.sessionsClosed.WithLabelValues(reason).Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Frame pump metrics.

// UpdateQueueSize sets the current frame queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum frame queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the frame queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordWorkerProcessingLatency records frame pump latency per frame.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the frame pump error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordFrameDuplicate counts a re-sent frame dropped before analysis.
func RecordFrameDuplicate() {
	globalManager.framesDuplicate.Inc()
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
