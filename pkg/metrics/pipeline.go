package metrics

import "time"

// Pipeline records the pipeline-stage observations defined by the telemetry
// contract. The Prometheus implementation lives in pkg/metrics/prometheus;
// a nil Pipeline is valid and records nothing.
type Pipeline interface {
	// EventProcessed records a successful orchestration: bytes copied to the
	// destination and wall-clock processing duration.
	EventProcessed(bytes int64, duration time.Duration)

	// EventFailed records a failed orchestration.
	EventFailed()

	// QueueEnqueued records one accepted enqueue.
	QueueEnqueued()

	// QueueEnqueueFailure records one rejected or errored enqueue.
	QueueEnqueueFailure()

	// QueueDequeued records n events handed to a consumer.
	QueueDequeued(n int)

	// QueueDequeueFailure records one failed queue read.
	QueueDequeueFailure()

	// PollCycle records a completed composite poll cycle over n sources.
	PollCycle(sources int, duration time.Duration)

	// FileDiscovered records one newly enqueued file event.
	FileDiscovered()

	// FileSkippedUnstable records a file held back by the readiness window.
	FileSkippedUnstable()

	// PollSourceError records a failed poll attempt for the named source.
	PollSourceError(source string)

	// NotificationPublished records a transmitted processed-file notification.
	NotificationPublished(duration time.Duration)

	// NotificationFailed records a notification that exhausted its retries.
	NotificationFailed()

	// NotificationSuppressed records a duplicate or disabled-mode
	// notification that was not transmitted.
	NotificationSuppressed()
}

// The helpers below are nil-safe so call sites never branch on whether
// metrics are enabled.

// ObserveProcessed records a successful orchestration.
func ObserveProcessed(m Pipeline, bytes int64, duration time.Duration) {
	if m != nil {
		m.EventProcessed(bytes, duration)
	}
}

// ObserveFailed records a failed orchestration.
func ObserveFailed(m Pipeline) {
	if m != nil {
		m.EventFailed()
	}
}

// ObserveEnqueued records one accepted enqueue.
func ObserveEnqueued(m Pipeline) {
	if m != nil {
		m.QueueEnqueued()
	}
}

// ObserveEnqueueFailure records one failed enqueue.
func ObserveEnqueueFailure(m Pipeline) {
	if m != nil {
		m.QueueEnqueueFailure()
	}
}

// ObserveDequeued records n dequeued events.
func ObserveDequeued(m Pipeline, n int) {
	if m != nil && n > 0 {
		m.QueueDequeued(n)
	}
}

// ObserveDequeueFailure records one failed queue read.
func ObserveDequeueFailure(m Pipeline) {
	if m != nil {
		m.QueueDequeueFailure()
	}
}

// ObservePollCycle records a completed poll cycle.
func ObservePollCycle(m Pipeline, sources int, duration time.Duration) {
	if m != nil {
		m.PollCycle(sources, duration)
	}
}

// ObserveDiscovered records one discovered file.
func ObserveDiscovered(m Pipeline) {
	if m != nil {
		m.FileDiscovered()
	}
}

// ObserveSkippedUnstable records one readiness-deferred file.
func ObserveSkippedUnstable(m Pipeline) {
	if m != nil {
		m.FileSkippedUnstable()
	}
}

// ObserveSourceError records one failed poll attempt.
func ObserveSourceError(m Pipeline, source string) {
	if m != nil {
		m.PollSourceError(source)
	}
}

// ObserveNotified records a transmitted notification.
func ObserveNotified(m Pipeline, duration time.Duration) {
	if m != nil {
		m.NotificationPublished(duration)
	}
}

// ObserveNotifyFailed records a failed notification.
func ObserveNotifyFailed(m Pipeline) {
	if m != nil {
		m.NotificationFailed()
	}
}

// ObserveNotifySuppressed records a suppressed notification.
func ObserveNotifySuppressed(m Pipeline) {
	if m != nil {
		m.NotificationSuppressed()
	}
}
