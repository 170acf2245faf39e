// Package sink delivers file content to configured destinations. One sink
// instance serves one named destination; a Registry resolves the sink for a
// routed plan.
package sink

import (
	"context"
	"io"
	"math/rand"
	"time"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// CopyChunkSize is the buffer size for streamed copies.
const CopyChunkSize = 64 * 1024

// Sink writes one event's content to its destination.
type Sink interface {
	Name() string
	Kind() event.DestinationKind

	// Write streams content to the plan's target and returns the bytes
	// written.
	Write(ctx context.Context, ev event.FileEvent, plan event.DestinationPlan, content io.Reader) (int64, error)
}

// Registry resolves sinks by destination name.
type Registry struct {
	sinks map[string]Sink
}

// NewRegistry indexes the given sinks by destination name.
func NewRegistry(sinks ...Sink) *Registry {
	reg := &Registry{sinks: make(map[string]Sink, len(sinks))}
	for _, s := range sinks {
		reg.sinks[s.Name()] = s
	}
	return reg
}

// For returns the sink serving the plan's destination.
func (reg *Registry) For(plan event.DestinationPlan) (Sink, error) {
	s, ok := reg.sinks[plan.DestinationName]
	if !ok {
		return nil, fherrors.Newf(fherrors.KindValidation, fherrors.CodeUnknownDest,
			"sink.Registry.For", "no sink for destination %q", plan.DestinationName)
	}
	return s, nil
}

// RetryPolicy is the bounded exponential retry used by bus publishes.
type RetryPolicy struct {
	Base       time.Duration
	Cap        time.Duration
	MaxRetries int
}

// DefaultRetryPolicy matches the bus sink defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:       200 * time.Millisecond,
		Cap:        4 * time.Second,
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

	// Jitter in [0.75, 1.25).
	jitter := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * jitter)
}

// sleep waits for d or until ctx is canceled. Cancellation during the wait
// is reported as a transient failure.
func sleep(ctx context.Context, d time.Duration, op string) error {
	select {
	case <-ctx.Done():
		return fherrors.Wrap(fherrors.KindNetwork, fherrors.CodeTransient, op, ctx.Err())
	case <-time.After(d):
		return nil
	}
}
