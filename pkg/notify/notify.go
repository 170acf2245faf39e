// Package notify publishes processed-file notifications for downstream
// consumers. Publishing is best-effort: the orchestrator logs and counts
// notifier failures but never fails an event because of them.
package notify

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/filehorizon/filehorizon/pkg/metrics"
)

// SchemaVersion tags the notification payload so consumers can evolve.
const SchemaVersion = "1.0"

// DefaultDedupTTL is the window inside which a repeated notification for the
// same idempotency key and status is suppressed.
const DefaultDedupTTL = 10 * time.Minute

// Status is the processing outcome carried by a notification.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailure Status = "Failure"
)

// FileProcessedNotification describes one completed orchestration.
type FileProcessedNotification struct {
	SchemaVersion   string    `json:"schemaVersion"`
	Protocol        string    `json:"protocol"`
	FullPath        string    `json:"fullPath"`
	SizeBytes       int64     `json:"sizeBytes"`
	LastModifiedUTC time.Time `json:"lastModifiedUtc"`
	Status          Status    `json:"status"`

	// ProcessingDurationMs is the orchestration wall-clock time.
	ProcessingDurationMs int64 `json:"processingDurationMs"`

	IdempotencyKey string    `json:"idempotencyKey"`
	CorrelationID  string    `json:"correlationId"`
	CompletedUTC   time.Time `json:"completedUtc"`

	// Destinations lists the destination names the event was delivered to.
	Destinations []string `json:"destinations"`

	// ErrorCode carries the taxonomy code on failure notifications.
	ErrorCode string `json:"errorCode,omitempty"`
}

// Notifier publishes processed-file notifications.
type Notifier interface {
	Publish(ctx context.Context, n FileProcessedNotification) error
	Close() error
}

// DedupKey is the suppression key for one notification.
func DedupKey(idempotencyKey string, status Status) string {
	return fmt.Sprintf("notify:%s:%s", idempotencyKey, status)
}

// keyPrefix returns the first 8 characters of the idempotency key, used as a
// low-cardinality routing attribute.
func keyPrefix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}

// NoopNotifier is the disabled mode: every publish is counted as suppressed
// and succeeds.
type NoopNotifier struct {
	metrics metrics.Pipeline
}

// NewNoopNotifier creates the disabled notifier.
func NewNoopNotifier(m metrics.Pipeline) *NoopNotifier {
	return &NoopNotifier{metrics: m}
}

// Publish records the suppression and returns nil.
func (n *NoopNotifier) Publish(context.Context, FileProcessedNotification) error {
	metrics.ObserveNotifySuppressed(n.metrics)
	return nil
}

func (n *NoopNotifier) Close() error { return nil }

// RetryPolicy bounds the exponential backoff between publish attempts.
type RetryPolicy struct {
	Base       time.Duration
	Cap        time.Duration
	MaxRetries int
}

// DefaultRetryPolicy matches the notifier defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:       500 * time.Millisecond,
		Cap:        5 * time.Second,
		MaxRetries: 3,
	}
}

// Delay returns the backoff before retry number attempt (1-based), with
// plus or minus 25 percent jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.Base << (attempt - 1)
	if d > p.Cap || d <= 0 {
		d = p.Cap
	}

	jitter := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * jitter)
}
