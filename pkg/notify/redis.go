package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/internal/telemetry"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/idempotency"
	"github.com/filehorizon/filehorizon/pkg/metrics"
)

// streamPublisher is the slice of the Redis client the notifier needs.
type streamPublisher interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

const (
	// DefaultStream is the notification stream name.
	DefaultStream = "file-notifications"

	// DefaultPublishTimeout bounds one publish attempt.
	DefaultPublishTimeout = 5 * time.Second
)

// Config configures the stream notifier. Zero values fall back to defaults;
// a zero Breaker leaves the circuit breaker disabled.
type Config struct {
	Stream         string
	DedupTTL       time.Duration
	PublishTimeout time.Duration
	Retry          RetryPolicy
	Breaker        BreakerConfig
}

// StreamNotifier publishes notifications as JSON payloads on a Redis stream.
// Duplicate notifications for the same idempotency key and status are
// suppressed within the dedup TTL.
type StreamNotifier struct {
	stream   string
	client   streamPublisher
	dedup    idempotency.Store
	metrics  metrics.Pipeline
	retry    RetryPolicy
	brk      *breaker
	timeout  time.Duration
	dedupTTL time.Duration
}

// NewStreamNotifier creates the notifier. dedup may be nil to disable
// duplicate suppression; metrics may be nil.
func NewStreamNotifier(client streamPublisher, cfg Config, dedup idempotency.Store, m metrics.Pipeline) *StreamNotifier {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.Retry.Base <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &StreamNotifier{
		stream:   cfg.Stream,
		client:   client,
		dedup:    dedup,
		metrics:  m,
		retry:    cfg.Retry,
		brk:      newBreaker(cfg.Breaker),
		timeout:  cfg.PublishTimeout,
		dedupTTL: cfg.DedupTTL,
	}
}

// Publish serializes and transmits one notification, retrying transient
// failures with bounded backoff. While the breaker is open, publishes fail
// fast with a breaker-open error.
func (n *StreamNotifier) Publish(ctx context.Context, note FileProcessedNotification) error {
	const op = "StreamNotifier.Publish"

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNotifyPublish)
	defer span.End()
	span.SetAttributes(
		telemetry.FileProtocol(note.Protocol),
		telemetry.Status(string(note.Status)),
		telemetry.IdempotencyKey(note.IdempotencyKey),
	)

	if note.Status != StatusSuccess && note.Status != StatusFailure {
		return fherrors.Newf(fherrors.KindValidation, fherrors.CodeValidation, op,
			"unknown notification status %q", note.Status)
	}
	if note.SchemaVersion == "" {
		note.SchemaVersion = SchemaVersion
	}
	if note.CompletedUTC.IsZero() {
		note.CompletedUTC = time.Now().UTC()
	}

	if n.dedup != nil && note.IdempotencyKey != "" {
		key := DedupKey(note.IdempotencyKey, note.Status)
		if !n.dedup.TryMarkProcessed(ctx, key, n.dedupTTL) {
			metrics.ObserveNotifySuppressed(n.metrics)
			logger.DebugCtx(ctx, "duplicate notification suppressed",
				logger.KeyIdentityKey, note.IdempotencyKey,
				logger.KeyStatus, string(note.Status))
			return nil
		}
	}

	if !n.brk.allow() {
		metrics.ObserveNotifyFailed(n.metrics)
		err := fherrors.New(fherrors.KindBreakerOpen, fherrors.CodeBreakerOpen, op,
			"notification breaker open")
		telemetry.RecordError(ctx, err)
		return err
	}

	payload, err := json.Marshal(note)
	if err != nil {
		metrics.ObserveNotifyFailed(n.metrics)
		return fherrors.Wrap(fherrors.KindValidation, fherrors.CodeValidation, op, err)
	}

	values := map[string]any{
		"contentType":   "application/json",
		"schemaVersion": note.SchemaVersion,
		"protocol":      note.Protocol,
		"status":        string(note.Status),
		"idKeyPrefix":   keyPrefix(note.IdempotencyKey),
		"payload":       payload,
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := n.wait(ctx, n.retry.Delay(attempt)); err != nil {
				metrics.ObserveNotifyFailed(n.metrics)
				telemetry.RecordError(ctx, err)
				return err
			}
			logger.DebugCtx(ctx, "retrying notification publish",
				logger.KeyStream, n.stream,
				logger.KeyAttempt, attempt)
		}

		err := n.publishOnce(ctx, values)
		if err == nil {
			n.brk.recordSuccess()
			metrics.ObserveNotified(n.metrics, time.Since(start))
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	n.brk.recordFailure()
	metrics.ObserveNotifyFailed(n.metrics)
	wrapped := fherrors.Wrap(fherrors.KindNetwork, fherrors.CodePublishFailed, op, lastErr)
	telemetry.RecordError(ctx, wrapped)
	return wrapped
}

// Close is a no-op; the Redis client is shared and closed by its owner.
func (n *StreamNotifier) Close() error { return nil }

func (n *StreamNotifier) publishOnce(ctx context.Context, values map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	return n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: values,
	}).Err()
}

// wait sleeps for d or until ctx is canceled.
func (n *StreamNotifier) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fherrors.Wrap(fherrors.KindNetwork, fherrors.CodeTransient,
			"StreamNotifier.Publish", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
