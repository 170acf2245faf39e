// Package errors provides the error taxonomy shared by all pipeline
// components. This is a leaf package with no internal dependencies, designed
// to be imported by pollers, queue backends, readers, sinks and the
// orchestrator without causing circular imports.
//
// Components return tagged errors; exceptions raised by third-party libraries
// are translated at component boundaries and never leak across them.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Kinds drive retry decisions, not types.
type Kind int

const (
	// KindValidation indicates structurally invalid input: empty event id,
	// missing metadata, empty source path, negative size, unknown destination.
	// Never retried; queued events carrying it are acknowledged to avoid
	// poison loops.
	KindValidation Kind = iota + 1

	// KindNotFound indicates the source file does not exist. Not retried.
	KindNotFound

	// KindSizeUnstable indicates the file is still being written. The poller
	// re-evaluates it on the next cycle.
	KindSizeUnstable

	// KindIO indicates a local or remote I/O failure. Retriable.
	KindIO

	// KindNetwork indicates connect failures, timeouts and transient bus
	// errors. Retried with exponential backoff at the sink/publisher layer.
	KindNetwork

	// KindAuth indicates failed secret resolution or rejected credentials.
	// Not retried; the owning source goes into backoff.
	KindAuth

	// KindQueue indicates a rejected enqueue or a dequeue read error.
	KindQueue

	// KindIdempotency indicates an idempotency store failure. The store
	// reports such failures as "not claimed" rather than raising.
	KindIdempotency

	// KindBreakerOpen indicates the notifier circuit breaker is open and the
	// publish was failed fast without touching the transport.
	KindBreakerOpen

	// KindUnspecified is the catch-all for untranslated failures.
	KindUnspecified
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindNotFound:
		return "NotFound"
	case KindSizeUnstable:
		return "SizeUnstable"
	case KindIO:
		return "IOError"
	case KindNetwork:
		return "Network"
	case KindAuth:
		return "Auth"
	case KindQueue:
		return "Queue"
	case KindIdempotency:
		return "Idempotency"
	case KindBreakerOpen:
		return "BreakerOpen"
	case KindUnspecified:
		return "Unspecified"
	default:
		return "Unknown"
	}
}

// Stable failure codes surfaced in logs and notifications.
const (
	CodeValidation    = "Validation.Failed"
	CodeNoRuleMatched = "Routing.NoRuleMatched"
	CodeUnknownDest   = "Routing.UnknownDestination"
	CodeFileNotFound  = "File.NotFound"
	CodeSizeUnstable  = "File.SizeUnstable"
	CodeIO            = "File.IOError"
	CodeConnectFailed = "Network.ConnectFailed"
	CodeTimeout       = "Network.Timeout"
	CodeTransient     = "Network.Transient"
	CodeAuthFailed    = "Auth.Failed"
	CodeSecretMissing = "Auth.SecretMissing"
	CodeEnqueueFailed = "Queue.EnqueueFailed"
	CodeDequeueFailed = "Queue.DequeueFailed"
	CodeStoreFailed   = "Idempotency.StoreFailed"
	CodeBreakerOpen   = "Notify.BreakerOpen"
	CodePublishFailed = "Notify.PublishFailed"
	CodeUnspecified   = "Unspecified"
)

// Error is the tagged failure type flowing between pipeline components.
type Error struct {
	// Kind classifies the failure for retry decisions.
	Kind Kind

	// Code is a stable machine-readable identifier (e.g. "File.NotFound").
	Code string

	// Op names the operation that failed (e.g. "sink.local.write").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
		b.WriteString(" ")
	}
	b.WriteString("[")
	b.WriteString(e.Code)
	b.WriteString("]")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error without an underlying cause.
func New(kind Kind, code, op, message string) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: message}
}

// Newf creates a tagged error with a formatted message.
func Newf(kind Kind, code, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with the taxonomy. Returns nil when err is
// nil so it can be used on return paths unconditionally.
func Wrap(kind Kind, code, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Op: op, Err: err}
}

// Validation is shorthand for a validation-class error.
func Validation(op, format string, args ...any) *Error {
	return Newf(KindValidation, CodeValidation, op, format, args...)
}

// KindOf returns the kind of err, or KindUnspecified when err carries no tag.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnspecified
}

// CodeOf returns the stable code of err, or CodeUnspecified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnspecified
}

// IsRetriable reports whether the failure class may succeed on retry.
// Validation, NotFound and Auth failures never do; store failures are
// "retried" by allowing the event to be reprocessed.
func IsRetriable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindAuth:
		return false
	default:
		return true
	}
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// As is re-exported so callers need a single errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}
