package pipeline

import (
	"context"
	"time"

	"github.com/filehorizon/filehorizon/internal/logger"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// processor handles one dequeued event. Satisfied by the orchestrator.
type processor interface {
	Process(ctx context.Context, ev event.FileEvent) error
}

// Idle backoff bounds for the processing loop.
const (
	idleBackoffStart = 25 * time.Millisecond
	idleBackoffMax   = 500 * time.Millisecond
)

// pollLoop runs one poll cycle per interval. A cycle overrunning the interval
// is logged; a panicking cycle is contained and the loop pauses briefly
// before the next tick.
func (p *Pipeline) pollLoop(ctx context.Context) {
	interval := p.cfg.Polling.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("polling loop started", "interval", interval.String())
	p.health.markPoll()

	for {
		p.runCycle(ctx, interval)
		p.health.markPoll()

		select {
		case <-ctx.Done():
			logger.Info("polling loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) runCycle(ctx context.Context, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("poll cycle panicked", "panic", r)
			pause := minDuration(2*time.Second, interval)
			select {
			case <-ctx.Done():
			case <-time.After(pause):
			}
		}
	}()

	start := time.Now()
	p.poller.Cycle(ctx)
	if elapsed := time.Since(start); elapsed > interval {
		logger.Warn("poll cycle overran its interval",
			logger.KeyDurationMs, float64(elapsed.Milliseconds()),
			"interval", interval.String())
	}
}

// processLoop drains the queue in batches and dispatches each delivery to the
// orchestrator. An empty drain backs the loop off adaptively; any work resets
// the backoff. Processing failures leave the delivery unacknowledged for
// redelivery, except validation failures, which are poison and acked.
func (p *Pipeline) processLoop(ctx context.Context) {
	batch := p.cfg.Polling.BatchReadLimit
	backoff := idleBackoffStart

	logger.Info("processing loop started", logger.KeyBatch, batch)
	p.health.markProcess()

	for {
		if ctx.Err() != nil {
			logger.Info("processing loop stopped")
			return
		}

		deliveries, err := p.queue.Drain(ctx, batch)
		p.health.markProcess()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Warn("queue drain failed", logger.KeyError, err.Error())
			if !sleepCtx(ctx, backoff) {
				continue
			}
			backoff = nextIdleBackoff(backoff)
			continue
		}

		if len(deliveries) == 0 {
			if !sleepCtx(ctx, backoff) {
				continue
			}
			backoff = nextIdleBackoff(backoff)
			continue
		}
		backoff = idleBackoffStart

		for _, d := range deliveries {
			if ctx.Err() != nil {
				break
			}
			p.dispatch(ctx, d.EntryID, d.Event)
		}
	}
}

// dispatch processes one delivery and decides acknowledgement.
func (p *Pipeline) dispatch(ctx context.Context, entryID string, ev event.FileEvent) {
	err := p.orch.Process(ctx, ev)
	if err != nil && fherrors.KindOf(err) != fherrors.KindValidation {
		logger.Warn("event processing failed, leaving for redelivery",
			logger.KeyEventID, ev.ID,
			logger.KeyEntryID, entryID,
			logger.KeyError, err.Error())
		return
	}
	if err != nil {
		logger.Warn("poison event acknowledged",
			logger.KeyEventID, ev.ID,
			logger.KeyEntryID, entryID,
			logger.KeyError, err.Error())
	}

	if ackErr := p.queue.Acknowledge(ctx, entryID); ackErr != nil {
		logger.Warn("acknowledge failed",
			logger.KeyEntryID, entryID,
			logger.KeyError, ackErr.Error())
	}
}

func nextIdleBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > idleBackoffMax {
		return idleBackoffMax
	}
	return next
}

// sleepCtx waits for d, returning false when ctx was canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
