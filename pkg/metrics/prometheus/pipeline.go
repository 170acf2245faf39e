// Package prometheus implements the pipeline metrics contract on top of
// prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/filehorizon/filehorizon/pkg/metrics"
)

// pipelineMetrics is the Prometheus implementation of metrics.Pipeline.
type pipelineMetrics struct {
	filesProcessed       prometheus.Counter
	filesFailed          prometheus.Counter
	bytesCopied          prometheus.Counter
	processingDuration   prometheus.Histogram
	queueEnqueued        prometheus.Counter
	queueDequeued        prometheus.Counter
	queueEnqueueFailures prometheus.Counter
	queueDequeueFailures prometheus.Counter
	pollCycles           prometheus.Counter
	pollCycleDuration    prometheus.Histogram
	pollSources          prometheus.Gauge
	filesDiscovered      prometheus.Counter
	filesSkippedUnstable prometheus.Counter
	pollSourceErrors     *prometheus.CounterVec
	notifyPublished      prometheus.Counter
	notifyFailed         prometheus.Counter
	notifySuppressed     prometheus.Counter
	notifyDuration       prometheus.Histogram
}

// durationBucketsMs covers sub-millisecond queue hops up to multi-minute
// remote transfers.
var durationBucketsMs = []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 15000, 60000, 300000}

// NewPipelineMetrics creates a Prometheus-backed metrics.Pipeline.
//
// Returns nil if metrics are not enabled (InitRegistry not called); a nil
// Pipeline records nothing and costs nothing.
func NewPipelineMetrics() metrics.Pipeline {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &pipelineMetrics{
		filesProcessed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_files_processed_total",
			Help: "Total number of file events processed successfully",
		}),
		filesFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_files_failed_total",
			Help: "Total number of file events that failed processing",
		}),
		bytesCopied: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_bytes_copied_total",
			Help: "Total bytes streamed from readers to sinks",
		}),
		processingDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "filehorizon_processing_duration_milliseconds",
			Help:    "Wall-clock duration of per-event orchestration in milliseconds",
			Buckets: durationBucketsMs,
		}),
		queueEnqueued: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_queue_enqueued_total",
			Help: "Total events accepted by the work queue",
		}),
		queueDequeued: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_queue_dequeued_total",
			Help: "Total events delivered to consumers",
		}),
		queueEnqueueFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_queue_enqueue_failures_total",
			Help: "Total enqueue attempts rejected or errored",
		}),
		queueDequeueFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_queue_dequeue_failures_total",
			Help: "Total queue read errors",
		}),
		pollCycles: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_poll_cycles_total",
			Help: "Total completed composite poll cycles",
		}),
		pollCycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "filehorizon_poll_cycle_duration_milliseconds",
			Help:    "Duration of composite poll cycles in milliseconds",
			Buckets: durationBucketsMs,
		}),
		pollSources: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "filehorizon_poll_sources",
			Help: "Number of sources covered by the last poll cycle",
		}),
		filesDiscovered: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_files_discovered_total",
			Help: "Total ready files enqueued by pollers",
		}),
		filesSkippedUnstable: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_files_skipped_unstable_total",
			Help: "Total files held back because their size was still changing",
		}),
		pollSourceErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "filehorizon_poll_source_errors_total",
			Help: "Total failed poll attempts by source name",
		}, []string{"source"}),
		notifyPublished: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_notifications_published_total",
			Help: "Total processed-file notifications transmitted",
		}),
		notifyFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_notifications_failed_total",
			Help: "Total notifications that exhausted their retries",
		}),
		notifySuppressed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "filehorizon_notifications_suppressed_total",
			Help: "Total notifications suppressed by dedup or disabled mode",
		}),
		notifyDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "filehorizon_notify_publish_duration_milliseconds",
			Help:    "Duration of notification publishes in milliseconds",
			Buckets: durationBucketsMs,
		}),
	}
}

func (m *pipelineMetrics) EventProcessed(bytes int64, duration time.Duration) {
	m.filesProcessed.Inc()
	m.bytesCopied.Add(float64(bytes))
	m.processingDuration.Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *pipelineMetrics) EventFailed() {
	m.filesFailed.Inc()
}

func (m *pipelineMetrics) QueueEnqueued() {
	m.queueEnqueued.Inc()
}

func (m *pipelineMetrics) QueueEnqueueFailure() {
	m.queueEnqueueFailures.Inc()
}

func (m *pipelineMetrics) QueueDequeued(n int) {
	m.queueDequeued.Add(float64(n))
}

func (m *pipelineMetrics) QueueDequeueFailure() {
	m.queueDequeueFailures.Inc()
}

func (m *pipelineMetrics) PollCycle(sources int, duration time.Duration) {
	m.pollCycles.Inc()
	m.pollSources.Set(float64(sources))
	m.pollCycleDuration.Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *pipelineMetrics) FileDiscovered() {
	m.filesDiscovered.Inc()
}

func (m *pipelineMetrics) FileSkippedUnstable() {
	m.filesSkippedUnstable.Inc()
}

func (m *pipelineMetrics) PollSourceError(source string) {
	m.pollSourceErrors.WithLabelValues(source).Inc()
}

func (m *pipelineMetrics) NotificationPublished(duration time.Duration) {
	m.notifyPublished.Inc()
	m.notifyDuration.Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *pipelineMetrics) NotificationFailed() {
	m.notifyFailed.Inc()
}

func (m *pipelineMetrics) NotificationSuppressed() {
	m.notifySuppressed.Inc()
}
