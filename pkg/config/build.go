package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/idempotency"
	"github.com/filehorizon/filehorizon/pkg/metrics"
	"github.com/filehorizon/filehorizon/pkg/notify"
	"github.com/filehorizon/filehorizon/pkg/poller"
	"github.com/filehorizon/filehorizon/pkg/queue"
	"github.com/filehorizon/filehorizon/pkg/reader"
	"github.com/filehorizon/filehorizon/pkg/remote"
	"github.com/filehorizon/filehorizon/pkg/router"
	"github.com/filehorizon/filehorizon/pkg/sink"
)

// NewRedisClient creates the shared Redis connection used by the queue,
// idempotency store, bus sinks and notifier.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NeedsRedis reports whether any configured backend requires a Redis
// connection.
func NeedsRedis(cfg *Config) bool {
	if cfg.Queue.Backend == "redis" {
		return true
	}
	if cfg.Idempotency.Enabled && cfg.Idempotency.Backend == "redis" {
		return true
	}
	if cfg.Notification.Enabled {
		return true
	}
	return len(cfg.Destinations.Bus) > 0
}

// BuildSources materializes the enabled poll sources.
func BuildSources(cfg *Config) []poller.Source {
	var sources []poller.Source

	if cfg.Features.EnableLocalPoller {
		for _, s := range cfg.FileSources {
			sources = append(sources, poller.NewLocalSource(poller.LocalConfig{
				Name:                s.Name,
				Path:                s.Path,
				Pattern:             s.Pattern,
				Recursive:           s.Recursive,
				DeleteAfterTransfer: s.DeleteAfterTransfer,
				StabilityWindow:     s.StabilityWindow,
			}))
		}
	}

	if cfg.Features.EnableFTPPoller {
		for _, s := range cfg.RemoteFileSources.FTP {
			sources = append(sources, poller.NewFTPSource(poller.FTPConfig{
				Name: s.Name,
				Remote: remote.FTPConfig{
					Host:           s.Host,
					Port:           s.Port,
					Username:       s.Username,
					Password:       s.Password,
					ConnectTimeout: s.ConnectTimeout,
				},
				RemotePath:          s.RemotePath,
				Pattern:             s.Pattern,
				Recursive:           s.Recursive,
				DeleteAfterTransfer: s.DeleteAfterTransfer,
				StabilityWindow:     s.StabilityWindow,
			}))
		}
	}

	if cfg.Features.EnableSFTPPoller {
		for _, s := range cfg.RemoteFileSources.SFTP {
			sources = append(sources, poller.NewSFTPSource(poller.SFTPConfig{
				Name: s.Name,
				Remote: remote.SFTPConfig{
					Host:           s.Host,
					Port:           s.Port,
					Username:       s.Username,
					Password:       s.Password,
					PrivateKeyPath: s.PrivateKeyPath,
					ConnectTimeout: s.ConnectTimeout,
				},
				RemotePath:          s.RemotePath,
				Pattern:             s.Pattern,
				Recursive:           s.Recursive,
				DeleteAfterTransfer: s.DeleteAfterTransfer,
				StabilityWindow:     s.StabilityWindow,
			}))
		}
	}

	return sources
}

// BuildRouter compiles the routing table against the declared destinations.
func BuildRouter(cfg *Config) (*router.Router, error) {
	rules := make([]router.Rule, 0, len(cfg.Routing.Rules))
	for _, r := range cfg.Routing.Rules {
		rules = append(rules, router.Rule{
			Name: r.Name,
			Match: router.Matcher{
				Protocol:   r.Protocol,
				PathGlob:   r.PathGlob,
				PathRegex:  r.PathRegex,
				SourceName: r.SourceName,
			},
			Destinations:  r.Destinations,
			RenamePattern: r.RenamePattern,
			Overwrite:     r.Overwrite,
			ComputeHash:   r.ComputeHash,
		})
	}

	var dests []router.Destination
	for _, d := range cfg.Destinations.Local {
		dests = append(dests, router.Destination{
			Name: d.Name, Kind: event.DestinationLocal, Root: d.Root,
		})
	}
	for _, d := range cfg.Destinations.SFTP {
		dests = append(dests, router.Destination{
			Name: d.Name, Kind: event.DestinationSFTP, Root: d.Root,
		})
	}
	for _, d := range cfg.Destinations.Bus {
		dests = append(dests, router.Destination{
			Name: d.Name, Kind: event.DestinationBus, Root: d.Stream, IsTopic: d.IsTopic,
		})
	}
	for _, d := range cfg.Destinations.S3 {
		dests = append(dests, router.Destination{
			Name: d.Name, Kind: event.DestinationS3, Root: d.Prefix,
		})
	}

	return router.New(rules, dests)
}

// BuildReaders assembles the protocol readers. The local reader is always
// registered; remote readers are registered when matching sources exist so
// queued events from other replicas can still be served.
func BuildReaders(cfg *Config) *reader.Registry {
	readers := []reader.Reader{reader.NewLocalReader()}

	if len(cfg.RemoteFileSources.SFTP) > 0 {
		configs := make([]remote.SFTPConfig, 0, len(cfg.RemoteFileSources.SFTP))
		for _, s := range cfg.RemoteFileSources.SFTP {
			configs = append(configs, remote.SFTPConfig{
				Host:           s.Host,
				Port:           s.Port,
				Username:       s.Username,
				Password:       s.Password,
				PrivateKeyPath: s.PrivateKeyPath,
				ConnectTimeout: s.ConnectTimeout,
			})
		}
		readers = append(readers, reader.NewSFTPReader(configs))
	}

	if len(cfg.RemoteFileSources.FTP) > 0 {
		configs := make([]remote.FTPConfig, 0, len(cfg.RemoteFileSources.FTP))
		for _, s := range cfg.RemoteFileSources.FTP {
			configs = append(configs, remote.FTPConfig{
				Host:           s.Host,
				Port:           s.Port,
				Username:       s.Username,
				Password:       s.Password,
				ConnectTimeout: s.ConnectTimeout,
			})
		}
		readers = append(readers, reader.NewFTPReader(configs))
	}

	return reader.NewRegistry(readers...)
}

// BuildSinks materializes one sink per declared destination. client may be
// nil when no bus destinations are declared.
func BuildSinks(ctx context.Context, cfg *Config, client redis.UniversalClient) (*sink.Registry, error) {
	chunk := int(cfg.Transfer.ChunkSize)
	retry := sink.RetryPolicy{
		Base:       cfg.Transfer.Retry.Base,
		Cap:        cfg.Transfer.Retry.Cap,
		MaxRetries: cfg.Transfer.Retry.MaxRetries,
	}

	var sinks []sink.Sink
	for _, d := range cfg.Destinations.Local {
		sinks = append(sinks, sink.NewLocalSink(d.Name, d.Root).WithChunkSize(chunk))
	}
	for _, d := range cfg.Destinations.SFTP {
		sinks = append(sinks, sink.NewSFTPSink(d.Name, d.Root, remote.SFTPConfig{
			Host:           d.Host,
			Port:           d.Port,
			Username:       d.Username,
			Password:       d.Password,
			PrivateKeyPath: d.PrivateKeyPath,
			ConnectTimeout: d.ConnectTimeout,
		}).WithChunkSize(chunk))
	}
	for _, d := range cfg.Destinations.Bus {
		if client == nil {
			return nil, fmt.Errorf("bus destination %q requires a redis connection", d.Name)
		}
		sinks = append(sinks, sink.NewBusSink(d.Name, d.Stream, client, retry))
	}
	for _, d := range cfg.Destinations.S3 {
		s, err := sink.NewS3Sink(ctx, d.Name, sink.S3Options{
			Bucket:   d.Bucket,
			Prefix:   d.Prefix,
			Region:   d.Region,
			Endpoint: d.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 destination %q: %w", d.Name, err)
		}
		sinks = append(sinks, s)
	}

	return sink.NewRegistry(sinks...), nil
}

// BuildQueue creates the configured work queue backend.
func BuildQueue(ctx context.Context, cfg *Config, client redis.UniversalClient, m metrics.Pipeline) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("queue backend redis requires a redis connection")
		}
		return queue.NewStreamQueue(ctx, client, queue.StreamConfig{
			Stream:         cfg.Queue.Stream,
			Group:          cfg.Queue.Group,
			ConsumerPrefix: cfg.Queue.ConsumerPrefix,
			ReadBlock:      cfg.Queue.ReadBlock,
		}, m)
	case "memory":
		return queue.NewMemoryQueue(m), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// BuildIdempotencyStore creates the configured gate, or nil when disabled.
func BuildIdempotencyStore(cfg *Config, client redis.UniversalClient) (idempotency.Store, error) {
	if !cfg.Idempotency.Enabled {
		return nil, nil
	}

	switch cfg.Idempotency.Backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("idempotency backend redis requires a redis connection")
		}
		return idempotency.NewRedisStore(client, cfg.Idempotency.KeyPrefix), nil
	case "badger":
		return idempotency.NewBadgerStore(cfg.Idempotency.BadgerPath)
	case "memory":
		return idempotency.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", cfg.Idempotency.Backend)
	}
}

// BuildNotifier creates the processed-file notifier. Disabled notification
// yields the suppressing no-op notifier.
func BuildNotifier(cfg *Config, client redis.UniversalClient, dedup idempotency.Store, m metrics.Pipeline) (notify.Notifier, error) {
	if !cfg.Notification.Enabled {
		return notify.NewNoopNotifier(m), nil
	}
	if client == nil {
		return nil, fmt.Errorf("notification requires a redis connection")
	}

	return notify.NewStreamNotifier(client, notify.Config{
		Stream:         cfg.Notification.Stream,
		DedupTTL:       cfg.Notification.DedupTTL,
		PublishTimeout: cfg.Notification.PublishTimeout,
		Retry: notify.RetryPolicy{
			Base:       cfg.Notification.Retry.Base,
			Cap:        cfg.Notification.Retry.Cap,
			MaxRetries: cfg.Notification.Retry.MaxRetries,
		},
		Breaker: notify.BreakerConfig{
			Threshold:     cfg.Notification.Breaker.Threshold,
			ResetInterval: cfg.Notification.Breaker.ResetInterval,
		},
	}, dedup, m), nil
}
