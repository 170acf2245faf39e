// Package orchestrator drives one file event end to end: idempotency gate,
// routing, reader open, sink write, optional source deletion and the
// processed-file notification.
package orchestrator

import (
	"context"
	"io"
	"time"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/internal/telemetry"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/idempotency"
	"github.com/filehorizon/filehorizon/pkg/metrics"
	"github.com/filehorizon/filehorizon/pkg/notify"
	"github.com/filehorizon/filehorizon/pkg/reader"
	"github.com/filehorizon/filehorizon/pkg/router"
	"github.com/filehorizon/filehorizon/pkg/sink"
)

// Options tunes orchestration behavior.
type Options struct {
	// IdempotencyTTL bounds how long a processed marker is remembered.
	// Zero applies the store default.
	IdempotencyTTL time.Duration
}

// Orchestrator processes queued file events. It runs to completion on the
// calling worker; the caller decides acknowledgement from the returned error.
type Orchestrator struct {
	router   *router.Router
	readers  *reader.Registry
	sinks    *sink.Registry
	store    idempotency.Store
	notifier notify.Notifier
	metrics  metrics.Pipeline
	ttl      time.Duration

	now func() time.Time
}

// New wires the orchestrator. store may be nil to disable the idempotency
// gate; notifier may be nil to disable notifications; metrics may be nil.
func New(r *router.Router, readers *reader.Registry, sinks *sink.Registry,
	store idempotency.Store, notifier notify.Notifier, m metrics.Pipeline, opts Options) *Orchestrator {
	return &Orchestrator{
		router:   r,
		readers:  readers,
		sinks:    sinks,
		store:    store,
		notifier: notifier,
		metrics:  m,
		ttl:      opts.IdempotencyTTL,
		now:      time.Now,
	}
}

// Process handles one event. A nil return means the event is done (including
// the duplicate short-circuit) and may be acknowledged. A validation-kind
// error marks a poison event the caller should acknowledge as well; any other
// error leaves the event eligible for redelivery.
func (o *Orchestrator) Process(ctx context.Context, ev event.FileEvent) error {
	start := o.now()

	ctx, span := telemetry.StartOrchestrateSpan(ctx, ev.ID, string(ev.Protocol), ev.Metadata.SourcePath)
	defer span.End()
	span.SetAttributes(telemetry.FileSize(ev.Metadata.SizeBytes))

	if err := event.Validate(ev); err != nil {
		return o.fail(ctx, ev, start, nil, err)
	}

	if o.store != nil {
		if !o.store.TryMarkProcessed(ctx, ev.IdempotencyKey(), o.ttl) {
			logger.InfoCtx(ctx, "duplicate event skipped",
				logger.KeyEventID, ev.ID,
				logger.KeyIdentityKey, ev.Metadata.SourcePath)
			span.SetAttributes(telemetry.Status("duplicate"))
			return nil
		}
	}

	plans, err := o.router.Route(ev)
	if err != nil {
		return o.fail(ctx, ev, start, nil, err)
	}
	if len(plans) == 0 {
		return o.fail(ctx, ev, start, nil,
			fherrors.Newf(fherrors.KindValidation, fherrors.CodeNoRuleMatched,
				"Orchestrator.Process", "rule matched but produced no plans for %q", ev.Metadata.SourcePath))
	}

	// Fan-out is deferred: the first plan wins.
	plan := plans[0]
	if len(plans) > 1 {
		logger.WarnCtx(ctx, "ignoring additional destination plans",
			logger.KeyEventID, ev.ID,
			"ignored", len(plans)-1)
	}
	span.SetAttributes(
		telemetry.Destination(plan.DestinationName),
		telemetry.DestinationKind(plan.Kind.String()),
		telemetry.TargetPath(plan.TargetPath),
	)

	dst, err := o.sinks.For(plan)
	if err != nil {
		return o.fail(ctx, ev, start, plans, err)
	}

	ref, err := event.ParseReference(ev.Metadata.SourcePath)
	if err != nil {
		return o.fail(ctx, ev, start, plans,
			fherrors.Wrap(fherrors.KindValidation, fherrors.CodeValidation, "Orchestrator.Process", err))
	}

	src, err := o.readers.For(ref)
	if err != nil {
		return o.fail(ctx, ev, start, plans, err)
	}

	content, err := o.openSource(ctx, src, ref)
	if err != nil {
		return o.fail(ctx, ev, start, plans, err)
	}
	defer func() { _ = content.Close() }()

	written, err := o.writeSink(ctx, dst, ev, plan, content)
	if err != nil {
		return o.fail(ctx, ev, start, plans, err)
	}
	span.SetAttributes(telemetry.BytesWritten(written))

	if ev.DeleteAfterTransfer {
		o.deleteSource(ctx, src, ref, ev)
	}

	duration := o.now().Sub(start)
	metrics.ObserveProcessed(o.metrics, written, duration)
	span.SetAttributes(telemetry.Status("success"))
	logger.InfoCtx(ctx, "file processed",
		logger.KeyEventID, ev.ID,
		logger.KeyIdentityKey, ev.Metadata.SourcePath,
		logger.KeyDestination, plan.DestinationName,
		logger.KeyTarget, plan.TargetPath,
		logger.KeySize, written,
		logger.KeyDurationMs, float64(duration.Microseconds())/1000.0)

	o.publish(ctx, ev, notify.StatusSuccess, destinationNames(plans[:1]), duration, "")
	return nil
}

func (o *Orchestrator) openSource(ctx context.Context, src reader.Reader, ref event.FileReference) (io.ReadCloser, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanReaderOpen)
	defer span.End()
	span.SetAttributes(telemetry.FilePath(ref.Path), telemetry.FileProtocol(ref.Scheme))

	content, err := src.OpenRead(ctx, ref)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return content, err
}

func (o *Orchestrator) writeSink(ctx context.Context, dst sink.Sink, ev event.FileEvent,
	plan event.DestinationPlan, content io.Reader) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSinkWrite)
	defer span.End()
	span.SetAttributes(
		telemetry.Destination(plan.DestinationName),
		telemetry.TargetPath(plan.TargetPath),
	)

	written, err := dst.Write(ctx, ev, plan, content)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return written, err
	}
	span.SetAttributes(telemetry.BytesWritten(written))
	return written, nil
}

// deleteSource removes the transferred file from its source. Failures are
// logged and never revert the success status.
func (o *Orchestrator) deleteSource(ctx context.Context, src reader.Reader, ref event.FileReference, ev event.FileEvent) {
	rm, ok := src.(reader.Remover)
	if !ok {
		logger.DebugCtx(ctx, "source deletion unsupported for protocol",
			logger.KeyEventID, ev.ID,
			logger.KeyProtocol, ref.Scheme)
		return
	}
	if err := rm.Remove(ctx, ref); err != nil {
		logger.WarnCtx(ctx, "source deletion failed",
			logger.KeyEventID, ev.ID,
			logger.KeyIdentityKey, ev.Metadata.SourcePath,
			logger.KeyError, err.Error())
	}
}

func (o *Orchestrator) fail(ctx context.Context, ev event.FileEvent, start time.Time,
	plans []event.DestinationPlan, err error) error {
	telemetry.RecordError(ctx, err)
	telemetry.SetAttributes(ctx,
		telemetry.Status("failure"),
		telemetry.ErrorCode(fherrors.CodeOf(err)))
	metrics.ObserveFailed(o.metrics)

	logger.ErrorCtx(ctx, "file processing failed",
		logger.KeyEventID, ev.ID,
		logger.KeyIdentityKey, ev.Metadata.SourcePath,
		logger.KeyErrorCode, fherrors.CodeOf(err),
		logger.KeyError, err.Error())

	o.publish(ctx, ev, notify.StatusFailure, destinationNames(plans), o.now().Sub(start), fherrors.CodeOf(err))
	return err
}

// publish emits the processed-file notification. Notifier failures are logged
// and counted by the notifier itself; they never affect the event outcome.
func (o *Orchestrator) publish(ctx context.Context, ev event.FileEvent, status notify.Status,
	destinations []string, duration time.Duration, errorCode string) {
	if o.notifier == nil {
		return
	}

	note := notify.FileProcessedNotification{
		Protocol:             string(ev.Protocol),
		FullPath:             ev.Metadata.SourcePath,
		SizeBytes:            ev.Metadata.SizeBytes,
		LastModifiedUTC:      ev.Metadata.LastModifiedUTC,
		Status:               status,
		ProcessingDurationMs: duration.Milliseconds(),
		IdempotencyKey:       ev.IdempotencyKey(),
		CorrelationID:        ev.ID,
		CompletedUTC:         o.now().UTC(),
		Destinations:         destinations,
		ErrorCode:            errorCode,
	}
	if err := o.notifier.Publish(ctx, note); err != nil {
		logger.WarnCtx(ctx, "notification publish failed",
			logger.KeyEventID, ev.ID,
			logger.KeyError, err.Error())
	}
}

func destinationNames(plans []event.DestinationPlan) []string {
	if len(plans) == 0 {
		return nil
	}
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.DestinationName)
	}
	return names
}
