package queue

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/internal/telemetry"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/metrics"
)

const (
	// DefaultReadBlock bounds one blocking read; it also bounds the delay
	// after a transient read error.
	DefaultReadBlock = 5 * time.Second

	// groupStartID makes a freshly created group see entries enqueued
	// before the first consumer came up.
	groupStartID = "0"
)

// StreamConfig configures the Redis Streams backend.
type StreamConfig struct {
	Stream         string
	Group          string
	ConsumerPrefix string
	ReadBlock      time.Duration
}

// StreamQueue is a Queue over one Redis stream and one consumer group. Each
// replica registers a unique consumer name so pending entries are tracked per
// consumer. The client is shared with other components and is not closed here.
type StreamQueue struct {
	client   redis.UniversalClient
	cfg      StreamConfig
	consumer string
	metrics  metrics.Pipeline
	stop     chan struct{}
}

// NewStreamQueue creates the stream and consumer group if missing and
// registers a unique consumer name (prefix + host + uuid).
func NewStreamQueue(ctx context.Context, client redis.UniversalClient, cfg StreamConfig, m metrics.Pipeline) (*StreamQueue, error) {
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, fherrors.New(fherrors.KindValidation, fherrors.CodeValidation,
			"queue.NewStreamQueue", "stream and group names are required")
	}
	if cfg.ReadBlock <= 0 {
		cfg.ReadBlock = DefaultReadBlock
	}

	q := &StreamQueue{
		client:   client,
		cfg:      cfg,
		consumer: consumerName(cfg.ConsumerPrefix),
		metrics:  m,
		stop:     make(chan struct{}),
	}

	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}

	logger.Info("stream queue ready",
		logger.KeyStream, cfg.Stream,
		logger.KeyGroup, cfg.Group,
		logger.KeyConsumer, q.consumer)
	return q, nil
}

// ConsumerName returns this replica's registered consumer name.
func (q *StreamQueue) ConsumerName() string {
	return q.consumer
}

// Enqueue validates the event and appends it to the stream.
func (q *StreamQueue) Enqueue(ctx context.Context, ev event.FileEvent) error {
	if err := event.Validate(ev); err != nil {
		metrics.ObserveEnqueueFailure(q.metrics)
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanQueueEnqueue)
	defer span.End()
	span.SetAttributes(
		telemetry.QueueStream(q.cfg.Stream),
		telemetry.FileID(ev.ID),
	)

	entryID, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: encodeEvent(ev),
	}).Result()
	if err != nil {
		metrics.ObserveEnqueueFailure(q.metrics)
		telemetry.RecordError(ctx, err)
		return fherrors.Wrap(fherrors.KindQueue, fherrors.CodeEnqueueFailed, "StreamQueue.Enqueue", err)
	}

	span.SetAttributes(telemetry.QueueEntryID(entryID))
	metrics.ObserveEnqueued(q.metrics)
	logger.DebugCtx(ctx, "event enqueued",
		logger.KeyEventID, ev.ID,
		logger.KeyEntryID, entryID,
		logger.KeyStream, q.cfg.Stream)
	return nil
}

// Drain fetches up to maxBatch undelivered entries without blocking.
func (q *StreamQueue) Drain(ctx context.Context, maxBatch int) ([]Delivery, error) {
	if maxBatch <= 0 {
		return nil, nil
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanQueueDequeue)
	defer span.End()

	// Block < 0 disables the BLOCK option entirely.
	batch, err := q.readGroup(ctx, maxBatch, -1)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(telemetry.QueueBatch(len(batch)))
	return batch, nil
}

// Iterate streams deliveries using blocking reads until ctx is canceled or
// the queue is closed. Transient read errors delay one read-block interval
// and retry.
func (q *StreamQueue) Iterate(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stop:
				return
			default:
			}

			batch, err := q.readGroup(ctx, 1, q.cfg.ReadBlock)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("stream read failed, backing off",
					logger.KeyStream, q.cfg.Stream,
					logger.KeyError, err.Error())
				select {
				case <-ctx.Done():
					return
				case <-q.stop:
					return
				case <-time.After(q.cfg.ReadBlock):
				}
				continue
			}

			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case <-q.stop:
					return
				case out <- d:
				}
			}
		}
	}()

	return out, nil
}

// Acknowledge removes the entry from the group's pending list.
func (q *StreamQueue) Acknowledge(ctx context.Context, entryID string) error {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, entryID).Err(); err != nil {
		return fherrors.Wrap(fherrors.KindQueue, fherrors.CodeDequeueFailed, "StreamQueue.Acknowledge", err)
	}
	return nil
}

// Close stops iterators. The shared Redis client stays open.
func (q *StreamQueue) Close() error {
	select {
	case <-q.stop:
	default:
		close(q.stop)
	}
	return nil
}

// readGroup performs one XREADGROUP with the ">" cursor and decodes the
// result. Malformed entries are logged and acknowledged so they cannot poison
// the group. A missing group is re-created once and the read retried.
func (q *StreamQueue) readGroup(ctx context.Context, count int, block time.Duration) ([]Delivery, error) {
	recreated := false
	for {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.consumer,
			Streams:  []string{q.cfg.Stream, ">"},
			Count:    int64(count),
			Block:    block,
		}).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			if isNoGroupErr(err) && !recreated {
				recreated = true
				if gerr := q.ensureGroup(ctx); gerr != nil {
					return nil, gerr
				}
				continue
			}
			metrics.ObserveDequeueFailure(q.metrics)
			return nil, fherrors.Wrap(fherrors.KindQueue, fherrors.CodeDequeueFailed, "StreamQueue.readGroup", err)
		}

		var out []Delivery
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				ev, derr := decodeEvent(msg.Values)
				if derr != nil {
					logger.Warn("malformed stream entry acknowledged",
						logger.KeyStream, q.cfg.Stream,
						logger.KeyEntryID, msg.ID,
						logger.KeyError, derr.Error())
					if aerr := q.Acknowledge(ctx, msg.ID); aerr != nil {
						logger.Warn("failed to acknowledge malformed entry",
							logger.KeyEntryID, msg.ID,
							logger.KeyError, aerr.Error())
					}
					continue
				}
				out = append(out, Delivery{EntryID: msg.ID, Event: ev})
			}
		}
		if len(out) > 0 {
			metrics.ObserveDequeued(q.metrics, len(out))
		}
		return out, nil
	}
}

// ensureGroup creates the stream and group if missing. An existing group is
// not an error.
func (q *StreamQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, groupStartID).Err()
	if err != nil && !isBusyGroupErr(err) {
		return fherrors.Wrap(fherrors.KindQueue, fherrors.CodeDequeueFailed, "StreamQueue.ensureGroup", err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func isNoGroupErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}

// consumerName builds a replica-unique consumer name from the configured
// prefix, the host name, and a random suffix.
func consumerName(prefix string) string {
	if prefix == "" {
		prefix = "filehorizon"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, host, uuid.NewString()[:8])
}
