package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for pipeline spans. File-level keys use the "file."
// prefix, poller keys use "poll.", queue keys use "queue.".
const (
	AttrFileID       = "file.id"
	AttrFileProtocol = "file.protocol"
	AttrFilePath     = "file.path"
	AttrFileName     = "file.name"
	AttrFileSize     = "file.size"
	AttrIdemKey      = "file.idempotency_key"

	AttrPollSource   = "poll.source"
	AttrSourcesCount = "sources.count"

	AttrQueueStream   = "queue.stream"
	AttrQueueGroup    = "queue.group"
	AttrQueueConsumer = "queue.consumer"
	AttrQueueEntryID  = "queue.entry_id"
	AttrQueueBatch    = "queue.batch"

	AttrDestination     = "destination.name"
	AttrDestinationKind = "destination.kind"
	AttrTargetPath      = "destination.target"
	AttrRule            = "routing.rule"

	AttrStatus       = "status"
	AttrErrorCode    = "error.code"
	AttrBytesWritten = "bytes.written"
)

// Span names for pipeline stages.
const (
	SpanOrchestrate = "file.orchestrate"
	SpanReaderOpen  = "reader.open"
	SpanSinkWrite   = "sink.write"

	SpanQueueEnqueue = "queue.enqueue"
	SpanQueueDequeue = "queue.dequeue"

	SpanPollCycle  = "poll.remote.cycle"
	SpanPollSource = "poll.remote.source"

	SpanNotifyPublish = "notify.publish"
)

// FileID returns an attribute for a FileEvent id
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrFileID, id)
}

// FileProtocol returns an attribute for a source protocol tag
func FileProtocol(p string) attribute.KeyValue {
	return attribute.String(AttrFileProtocol, p)
}

// FilePath returns an attribute for a source file path
func FilePath(path string) attribute.KeyValue {
	return attribute.String(AttrFilePath, path)
}

// FileName returns an attribute for a file base name
func FileName(name string) attribute.KeyValue {
	return attribute.String(AttrFileName, name)
}

// FileSize returns an attribute for a file size in bytes
func FileSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, size)
}

// IdempotencyKey returns an attribute for a processing gate key
func IdempotencyKey(key string) attribute.KeyValue {
	return attribute.String(AttrIdemKey, key)
}

// PollSource returns an attribute for a configured source name
func PollSource(name string) attribute.KeyValue {
	return attribute.String(AttrPollSource, name)
}

// SourcesCount returns an attribute for the number of polled sources
func SourcesCount(n int) attribute.KeyValue {
	return attribute.Int(AttrSourcesCount, n)
}

// QueueStream returns an attribute for the backing stream name
func QueueStream(name string) attribute.KeyValue {
	return attribute.String(AttrQueueStream, name)
}

// QueueEntryID returns an attribute for a server-assigned entry id
func QueueEntryID(id string) attribute.KeyValue {
	return attribute.String(AttrQueueEntryID, id)
}

// QueueBatch returns an attribute for a drained batch size
func QueueBatch(n int) attribute.KeyValue {
	return attribute.Int(AttrQueueBatch, n)
}

// Destination returns an attribute for a destination name
func Destination(name string) attribute.KeyValue {
	return attribute.String(AttrDestination, name)
}

// DestinationKind returns an attribute for a destination kind
func DestinationKind(kind string) attribute.KeyValue {
	return attribute.String(AttrDestinationKind, kind)
}

// TargetPath returns an attribute for a rendered target path
func TargetPath(path string) attribute.KeyValue {
	return attribute.String(AttrTargetPath, path)
}

// Rule returns an attribute for a matched routing rule name
func Rule(name string) attribute.KeyValue {
	return attribute.String(AttrRule, name)
}

// Status returns an attribute for a processing outcome
func Status(s string) attribute.KeyValue {
	return attribute.String(AttrStatus, s)
}

// ErrorCode returns an attribute for a stable taxonomy code
func ErrorCode(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// BytesWritten returns an attribute for bytes copied to a destination
func BytesWritten(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesWritten, n)
}

// StartOrchestrateSpan starts the root span for one file event.
func StartOrchestrateSpan(ctx context.Context, eventID, protocol, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		FileID(eventID),
		FileProtocol(protocol),
		FilePath(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanOrchestrate, trace.WithAttributes(allAttrs...))
}

// StartPollSourceSpan starts a span for polling one configured source.
func StartPollSourceSpan(ctx context.Context, source string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{PollSource(source)}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanPollSource, trace.WithAttributes(allAttrs...))
}
