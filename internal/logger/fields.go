package logger

import "log/slog"

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so aggregated logs from pollers, workers and the
// orchestrator can be queried uniformly.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for event correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Pipeline identity
	KeyEventID     = "event_id"    // FileEvent id
	KeyIdentityKey = "key"         // canonical file identity key
	KeyProtocol    = "protocol"    // source protocol: local, ftp, sftp
	KeySource      = "source"      // configured source name
	KeyDestination = "destination" // configured destination name
	KeyRule        = "rule"        // routing rule name

	// File attributes
	KeyPath     = "path"      // file path on the source
	KeyTarget   = "target"    // rendered target path
	KeySize     = "size"      // file size in bytes
	KeyModified = "modified"  // last modification time (UTC)
	KeyFileName = "file_name" // base name of the file

	// Queue
	KeyEntryID  = "entry_id" // stream entry id assigned by the backend
	KeyStream   = "stream"   // stream name
	KeyGroup    = "group"    // consumer group name
	KeyConsumer = "consumer" // consumer name within the group
	KeyBatch    = "batch"    // drained batch size

	// Operation metadata
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // stable taxonomy code
	KeyStatus     = "status"      // processing outcome: success, failure
	KeyAttempt    = "attempt"     // retry attempt number
	KeyBackoff    = "backoff"     // backoff delay before the next attempt
	KeyRole       = "role"        // process role: poller, worker, all
)

// Field constructors for type safety.

// TraceID returns a slog.Attr for an OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for an OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// EventID returns a slog.Attr for a FileEvent id.
func EventID(id string) slog.Attr {
	return slog.String(KeyEventID, id)
}

// IdentityKey returns a slog.Attr for a canonical identity key.
func IdentityKey(key string) slog.Attr {
	return slog.String(KeyIdentityKey, key)
}

// Protocol returns a slog.Attr for a source protocol tag.
func Protocol(p string) slog.Attr {
	return slog.String(KeyProtocol, p)
}

// Source returns a slog.Attr for a configured source name.
func Source(name string) slog.Attr {
	return slog.String(KeySource, name)
}

// Destination returns a slog.Attr for a configured destination name.
func Destination(name string) slog.Attr {
	return slog.String(KeyDestination, name)
}

// Path returns a slog.Attr for a source file path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Target returns a slog.Attr for a rendered target path.
func Target(p string) slog.Attr {
	return slog.String(KeyTarget, p)
}

// Size returns a slog.Attr for a file size in bytes.
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or the zero Attr when err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a stable taxonomy code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
