// Package queue provides the distributed work queue the pollers feed and the
// processing loop drains. Two backends exist: an in-memory queue for tests and
// single-process deployments, and a Redis Streams queue with consumer-group
// semantics for multi-replica deployments (at-least-once delivery; the
// orchestrator's idempotency gate makes processing effectively once).
package queue

import (
	"context"

	"github.com/filehorizon/filehorizon/pkg/event"
)

// Delivery is one dequeued event together with the backend-assigned entry id
// the orchestrator must acknowledge after successful processing.
type Delivery struct {
	EntryID string
	Event   event.FileEvent
}

// Queue is the work queue contract shared by all backends.
type Queue interface {
	// Enqueue validates the event structurally and appends it. Validation
	// failures are non-retriable; backend failures are transient.
	Enqueue(ctx context.Context, ev event.FileEvent) error

	// Drain returns up to maxBatch pending deliveries for this consumer
	// without blocking. An empty slice means no work.
	Drain(ctx context.Context, maxBatch int) ([]Delivery, error)

	// Iterate returns a channel of deliveries that blocks on the backend
	// until work arrives. The channel closes when ctx is canceled or the
	// queue is closed.
	Iterate(ctx context.Context) (<-chan Delivery, error)

	// Acknowledge marks a delivery as processed so it is not redelivered.
	Acknowledge(ctx context.Context, entryID string) error

	// Close releases queue-owned resources. Shared client connections are
	// not closed.
	Close() error
}
