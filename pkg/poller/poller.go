// Package poller discovers files on configured sources, waits for them to
// become stable, and enqueues FileEvents exactly once per observed content.
// Observation snapshots, dispatch marks, and backoff state are owned by one
// Poller instance and never shared across replicas.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/internal/telemetry"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/metrics"
	"github.com/filehorizon/filehorizon/pkg/queue"
)

// ErrSourceDisabled marks a source that cannot be polled until its
// configuration changes or its path reappears. It is not a failure: no
// backoff applies.
var ErrSourceDisabled = errors.New("source disabled")

// Entry is one directory entry observed on a source.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Source enumerates candidate files on one configured endpoint.
type Source interface {
	Name() string
	Protocol() event.Protocol
	DeleteAfterTransfer() bool
	StabilityWindow() time.Duration

	// List connects if needed and returns all entries matching the source's
	// pattern. Directories may be included; the poller skips them.
	List(ctx context.Context) ([]Entry, error)

	// Identity returns the canonical identity key for an entry path.
	Identity(path string) string
}

// Options tunes the composite poller.
type Options struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// dispatchMark suppresses duplicate enqueues for unchanged ready files.
type dispatchMark struct {
	size    int64
	lastMod time.Time
}

// Poller runs one poll cycle over a set of sources.
type Poller struct {
	sources []Source
	queue   queue.Queue
	metrics metrics.Pipeline
	backoff *Backoff

	mu         sync.Mutex
	snapshots  map[string]Snapshot
	dispatched map[string]dispatchMark

	// now is swappable for tests.
	now func() time.Time
}

// New creates a poller over the given sources.
func New(q queue.Queue, m metrics.Pipeline, sources []Source, opts Options) *Poller {
	return &Poller{
		sources:    sources,
		queue:      q,
		metrics:    m,
		backoff:    NewBackoff(opts.BackoffBase, opts.BackoffMax),
		snapshots:  make(map[string]Snapshot),
		dispatched: make(map[string]dispatchMark),
		now:        time.Now,
	}
}

// Cycle polls every source once. Source failures are contained: they back the
// failing source off and the cycle continues.
func (p *Poller) Cycle(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPollCycle)
	defer span.End()
	span.SetAttributes(telemetry.SourcesCount(len(p.sources)))

	start := p.now()
	for _, src := range p.sources {
		if ctx.Err() != nil {
			break
		}
		p.pollSource(ctx, src)
	}
	metrics.ObservePollCycle(p.metrics, len(p.sources), p.now().Sub(start))
}

func (p *Poller) pollSource(ctx context.Context, src Source) {
	ctx, span := telemetry.StartPollSourceSpan(ctx, src.Name())
	defer span.End()

	now := p.now()
	if skip, remaining := p.backoff.ShouldSkip(src.Name(), now); skip {
		logger.Debug("source in backoff window, skipping",
			logger.KeySource, src.Name(),
			logger.KeyBackoff, remaining.String())
		return
	}

	entries, err := src.List(ctx)
	if err != nil {
		if errors.Is(err, ErrSourceDisabled) {
			logger.Debug("source disabled, skipping", logger.KeySource, src.Name())
			return
		}
		delay := p.backoff.RegisterFailure(src.Name(), now)
		metrics.ObserveSourceError(p.metrics, src.Name())
		telemetry.RecordError(ctx, err)
		logger.Warn("poll failed, backing off source",
			logger.KeySource, src.Name(),
			logger.KeyError, err.Error(),
			logger.KeyAttempt, p.backoff.Failures(src.Name()),
			logger.KeyBackoff, delay.String())
		return
	}

	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		p.observe(ctx, src, entry)
	}

	p.backoff.Reset(src.Name())
}

// observe applies the readiness state machine and enqueues when a file is
// newly stable.
func (p *Poller) observe(ctx context.Context, src Source, entry Entry) {
	key := src.Identity(entry.Path)
	now := p.now()

	p.mu.Lock()
	var prev *Snapshot
	if s, ok := p.snapshots[key]; ok {
		prev = &s
	}
	ready, next := Evaluate(prev, entry.Size, entry.ModTime, src.StabilityWindow(), now)
	p.snapshots[key] = next

	if !ready {
		p.mu.Unlock()
		metrics.ObserveSkippedUnstable(p.metrics)
		logger.Debug("file not yet stable",
			logger.KeySource, src.Name(),
			logger.KeyIdentityKey, key,
			logger.KeySize, entry.Size)
		return
	}

	if mark, ok := p.dispatched[key]; ok &&
		mark.size == entry.Size && mark.lastMod.Equal(entry.ModTime) {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	meta := event.FileMetadata{
		SourcePath:      key,
		SizeBytes:       entry.Size,
		LastModifiedUTC: entry.ModTime.UTC(),
		HashAlgorithm:   "none",
	}
	ev := event.New(meta, src.Protocol(), src.DeleteAfterTransfer())

	if err := p.queue.Enqueue(ctx, ev); err != nil {
		logger.Warn("enqueue failed, will retry next cycle",
			logger.KeySource, src.Name(),
			logger.KeyIdentityKey, key,
			logger.KeyError, err.Error())
		return
	}

	p.mu.Lock()
	p.dispatched[key] = dispatchMark{size: entry.Size, lastMod: entry.ModTime}
	p.mu.Unlock()

	metrics.ObserveDiscovered(p.metrics)
	logger.Info("file event enqueued",
		logger.KeySource, src.Name(),
		logger.KeyEventID, ev.ID,
		logger.KeyIdentityKey, key,
		logger.KeySize, entry.Size)
}
