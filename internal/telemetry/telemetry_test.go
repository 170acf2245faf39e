package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "filehorizon", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, FileProtocol("sftp"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("FileID", func(t *testing.T) {
		attr := FileID("ev-1")
		assert.Equal(t, AttrFileID, string(attr.Key))
		assert.Equal(t, "ev-1", attr.Value.AsString())
	})

	t.Run("FileProtocol", func(t *testing.T) {
		attr := FileProtocol("ftp")
		assert.Equal(t, AttrFileProtocol, string(attr.Key))
		assert.Equal(t, "ftp", attr.Value.AsString())
	})

	t.Run("FilePath", func(t *testing.T) {
		attr := FilePath("/inbox/a.csv")
		assert.Equal(t, AttrFilePath, string(attr.Key))
		assert.Equal(t, "/inbox/a.csv", attr.Value.AsString())
	})

	t.Run("FileSize", func(t *testing.T) {
		attr := FileSize(1048576)
		assert.Equal(t, AttrFileSize, string(attr.Key))
		assert.Equal(t, int64(1048576), attr.Value.AsInt64())
	})

	t.Run("IdempotencyKey", func(t *testing.T) {
		attr := IdempotencyKey("file:ev-1")
		assert.Equal(t, AttrIdemKey, string(attr.Key))
		assert.Equal(t, "file:ev-1", attr.Value.AsString())
	})

	t.Run("PollSource", func(t *testing.T) {
		attr := PollSource("partner-sftp")
		assert.Equal(t, AttrPollSource, string(attr.Key))
		assert.Equal(t, "partner-sftp", attr.Value.AsString())
	})

	t.Run("SourcesCount", func(t *testing.T) {
		attr := SourcesCount(3)
		assert.Equal(t, AttrSourcesCount, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("QueueStream", func(t *testing.T) {
		attr := QueueStream("filehorizon:events")
		assert.Equal(t, AttrQueueStream, string(attr.Key))
		assert.Equal(t, "filehorizon:events", attr.Value.AsString())
	})

	t.Run("QueueEntryID", func(t *testing.T) {
		attr := QueueEntryID("1700000000000-0")
		assert.Equal(t, AttrQueueEntryID, string(attr.Key))
		assert.Equal(t, "1700000000000-0", attr.Value.AsString())
	})

	t.Run("QueueBatch", func(t *testing.T) {
		attr := QueueBatch(16)
		assert.Equal(t, AttrQueueBatch, string(attr.Key))
		assert.Equal(t, int64(16), attr.Value.AsInt64())
	})

	t.Run("Destination", func(t *testing.T) {
		attr := Destination("archive")
		assert.Equal(t, AttrDestination, string(attr.Key))
		assert.Equal(t, "archive", attr.Value.AsString())
	})

	t.Run("DestinationKind", func(t *testing.T) {
		attr := DestinationKind("local")
		assert.Equal(t, AttrDestinationKind, string(attr.Key))
		assert.Equal(t, "local", attr.Value.AsString())
	})

	t.Run("TargetPath", func(t *testing.T) {
		attr := TargetPath("/out/a.csv")
		assert.Equal(t, AttrTargetPath, string(attr.Key))
		assert.Equal(t, "/out/a.csv", attr.Value.AsString())
	})

	t.Run("Rule", func(t *testing.T) {
		attr := Rule("csv-to-archive")
		assert.Equal(t, AttrRule, string(attr.Key))
		assert.Equal(t, "csv-to-archive", attr.Value.AsString())
	})

	t.Run("Status", func(t *testing.T) {
		attr := Status("Completed")
		assert.Equal(t, AttrStatus, string(attr.Key))
		assert.Equal(t, "Completed", attr.Value.AsString())
	})

	t.Run("ErrorCode", func(t *testing.T) {
		attr := ErrorCode("File.NotFound")
		assert.Equal(t, AttrErrorCode, string(attr.Key))
		assert.Equal(t, "File.NotFound", attr.Value.AsString())
	})

	t.Run("BytesWritten", func(t *testing.T) {
		attr := BytesWritten(4096)
		assert.Equal(t, AttrBytesWritten, string(attr.Key))
		assert.Equal(t, int64(4096), attr.Value.AsInt64())
	})
}

func TestStartOrchestrateSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartOrchestrateSpan(ctx, "ev-1", "local", "/inbox/a.csv")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartOrchestrateSpan(ctx, "ev-2", "sftp", "/drop/b.bin", FileSize(2048))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartPollSourceSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartPollSourceSpan(ctx, "partner-sftp")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartPollSourceSpan(ctx, "ftp-inbox", FileProtocol("ftp"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
