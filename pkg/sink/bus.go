package sink

import (
	"context"
	"io"
	"mime"
	"path"

	"github.com/redis/go-redis/v9"

	"github.com/filehorizon/filehorizon/internal/logger"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// busPublisher is the slice of the Redis client the bus sink needs.
type busPublisher interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// BusSink publishes file content as one message on a stream destination.
// Publishes retry with bounded exponential backoff and jitter; cancellation
// during a backoff wait surfaces as a transient failure.
type BusSink struct {
	name   string
	stream string
	client busPublisher
	retry  RetryPolicy
}

// NewBusSink creates a sink publishing to the given stream. A zero retry
// policy falls back to the defaults.
func NewBusSink(name, stream string, client busPublisher, retry RetryPolicy) *BusSink {
	if retry.Base <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &BusSink{name: name, stream: stream, client: client, retry: retry}
}

func (s *BusSink) Name() string { return s.name }

func (s *BusSink) Kind() event.DestinationKind { return event.DestinationBus }

// Write buffers the content and publishes it with subject and content-type
// attributes.
func (s *BusSink) Write(ctx context.Context, ev event.FileEvent, plan event.DestinationPlan, content io.Reader) (int64, error) {
	const op = "BusSink.Write"

	data, err := io.ReadAll(content)
	if err != nil {
		return 0, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	contentType := mime.TypeByExtension(path.Ext(plan.TargetPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	values := map[string]any{
		"subject":     plan.TargetPath,
		"contentType": contentType,
		"eventId":     ev.ID,
		"sourcePath":  ev.Metadata.SourcePath,
		"protocol":    string(ev.Protocol),
		"body":        data,
	}

	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, s.retry.Delay(attempt), op); err != nil {
				return 0, err
			}
			logger.Debug("retrying bus publish",
				logger.KeyDestination, s.name,
				logger.KeyAttempt, attempt)
		}

		err := s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: values,
		}).Err()
		if err == nil {
			return int64(len(data)), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return 0, fherrors.Wrap(fherrors.KindNetwork, fherrors.CodePublishFailed, op, lastErr)
}
