// Package pipeline is the composition root: it builds the queue, stores,
// pollers, router, readers, sinks and orchestrator from configuration and
// runs the polling and processing loops for the configured role.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/pkg/config"
	"github.com/filehorizon/filehorizon/pkg/idempotency"
	"github.com/filehorizon/filehorizon/pkg/metrics"
	"github.com/filehorizon/filehorizon/pkg/metrics/prometheus"
	"github.com/filehorizon/filehorizon/pkg/notify"
	"github.com/filehorizon/filehorizon/pkg/orchestrator"
	"github.com/filehorizon/filehorizon/pkg/poller"
	"github.com/filehorizon/filehorizon/pkg/queue"
)

// Pipeline owns every runtime component of one replica.
type Pipeline struct {
	cfg *config.Config

	client   *redis.Client
	queue    queue.Queue
	store    idempotency.Store
	notifier notify.Notifier
	metrics  metrics.Pipeline
	poller   *poller.Poller
	orch     processor

	health *healthState
}

// New builds the full component graph from cfg. Secrets must already be
// resolved.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	var m metrics.Pipeline
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = prometheus.NewPipelineMetrics()
	}

	var client *redis.Client
	if config.NeedsRedis(cfg) {
		client = config.NewRedisClient(cfg.Queue.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Queue.Redis.Addr, err)
		}
	}

	q, err := config.BuildQueue(ctx, cfg, client, m)
	if err != nil {
		return nil, err
	}

	store, err := config.BuildIdempotencyStore(cfg, client)
	if err != nil {
		return nil, err
	}

	var dedup idempotency.Store
	if cfg.Notification.Enabled {
		// Notification dedup shares the idempotency backend; with the gate
		// disabled an in-process store still suppresses local repeats.
		dedup = store
		if dedup == nil {
			dedup = idempotency.NewMemoryStore()
		}
	}
	notifier, err := config.BuildNotifier(cfg, client, dedup, m)
	if err != nil {
		return nil, err
	}

	r, err := config.BuildRouter(cfg)
	if err != nil {
		return nil, err
	}

	sinks, err := config.BuildSinks(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		client:   client,
		queue:    q,
		store:    store,
		notifier: notifier,
		metrics:  m,
		health:   newHealthState(cfg.Pipeline.Role),
	}

	if cfg.Pipeline.Role != config.RoleWorker {
		p.poller = poller.New(q, m, config.BuildSources(cfg), poller.Options{
			BackoffBase: cfg.Polling.BackoffBase,
			BackoffMax:  cfg.Polling.BackoffMax,
		})
	}

	if cfg.Pipeline.Role != config.RolePoller {
		p.orch = orchestrator.New(r, config.BuildReaders(cfg), sinks,
			store, notifier, m, orchestrator.Options{
				IdempotencyTTL: cfg.Idempotency.TTL,
			})
	}

	return p, nil
}

// Run starts the loops for the configured role and the API server, then
// blocks until ctx is canceled. Shutdown is bounded by the configured
// timeout.
func (p *Pipeline) Run(ctx context.Context) error {
	logger.Info("pipeline starting",
		logger.KeyRole, p.cfg.Pipeline.Role,
		"queue_backend", p.cfg.Queue.Backend)

	srv := p.startAPIServer()

	var wg sync.WaitGroup
	if p.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.pollLoop(ctx)
		}()
	}
	if p.orch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.processLoop(ctx)
		}()
	}

	<-ctx.Done()
	logger.Info("pipeline stopping", logger.KeyRole, p.cfg.Pipeline.Role)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown incomplete", logger.KeyError, err.Error())
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("loops did not stop within shutdown timeout")
	}

	p.close()
	return nil
}

// close releases component resources in dependency order.
func (p *Pipeline) close() {
	if p.notifier != nil {
		if err := p.notifier.Close(); err != nil {
			logger.Warn("notifier close failed", logger.KeyError, err.Error())
		}
	}
	if p.queue != nil {
		if err := p.queue.Close(); err != nil {
			logger.Warn("queue close failed", logger.KeyError, err.Error())
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			logger.Warn("idempotency store close failed", logger.KeyError, err.Error())
		}
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			logger.Warn("redis close failed", logger.KeyError, err.Error())
		}
	}
}

// minDuration is used by the poll loop's panic recovery pause.
func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
