package queue

import (
	"context"
	"strconv"
	"sync"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/metrics"
)

// MemoryQueue is an unbounded ordered in-process queue. Drained deliveries
// stay in-flight until acknowledged; there is no redelivery timer, so an
// unacknowledged delivery in a crashed process is lost. Multi-replica
// deployments use the stream backend instead.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []Delivery
	inflight map[string]event.FileEvent
	nextID   uint64
	closed   bool

	// notify wakes Iterate consumers when work arrives.
	notify chan struct{}

	metrics metrics.Pipeline
}

// NewMemoryQueue creates an empty in-memory queue. m may be nil.
func NewMemoryQueue(m metrics.Pipeline) *MemoryQueue {
	return &MemoryQueue{
		inflight: make(map[string]event.FileEvent),
		notify:   make(chan struct{}, 1),
		metrics:  m,
	}
}

// Enqueue appends the event after structural validation.
func (q *MemoryQueue) Enqueue(ctx context.Context, ev event.FileEvent) error {
	if err := event.Validate(ev); err != nil {
		metrics.ObserveEnqueueFailure(q.metrics)
		return err
	}
	if err := ctx.Err(); err != nil {
		metrics.ObserveEnqueueFailure(q.metrics)
		return fherrors.Wrap(fherrors.KindQueue, fherrors.CodeEnqueueFailed, "MemoryQueue.Enqueue", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fherrors.New(fherrors.KindQueue, fherrors.CodeEnqueueFailed,
			"MemoryQueue.Enqueue", "queue is closed")
	}

	q.nextID++
	q.pending = append(q.pending, Delivery{
		EntryID: strconv.FormatUint(q.nextID, 10),
		Event:   ev,
	})
	metrics.ObserveEnqueued(q.metrics)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Drain pops up to maxBatch deliveries without blocking.
func (q *MemoryQueue) Drain(ctx context.Context, maxBatch int) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, fherrors.Wrap(fherrors.KindQueue, fherrors.CodeDequeueFailed, "MemoryQueue.Drain", err)
	}
	if maxBatch <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(maxBatch, len(q.pending))
	if n == 0 {
		return nil, nil
	}

	batch := make([]Delivery, n)
	copy(batch, q.pending[:n])
	q.pending = q.pending[n:]
	for _, d := range batch {
		q.inflight[d.EntryID] = d.Event
	}
	metrics.ObserveDequeued(q.metrics, n)
	return batch, nil
}

// Iterate streams deliveries one at a time until ctx is canceled or the
// queue is closed.
func (q *MemoryQueue) Iterate(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			batch, err := q.Drain(ctx, 1)
			if err != nil {
				return
			}
			if len(batch) == 0 {
				q.mu.Lock()
				closed := q.closed
				q.mu.Unlock()
				if closed {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-q.notify:
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- batch[0]:
			}
		}
	}()

	return out, nil
}

// Acknowledge removes the delivery from the in-flight set. Unknown entry ids
// are ignored.
func (q *MemoryQueue) Acknowledge(_ context.Context, entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, entryID)
	return nil
}

// Close stops the queue; subsequent enqueues fail and iterators drain out.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Depth returns the number of pending (undelivered) events.
func (q *MemoryQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InflightCount returns the number of drained but unacknowledged deliveries.
func (q *MemoryQueue) InflightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}
