package config

import (
	"strings"
	"time"

	"github.com/filehorizon/filehorizon/internal/bytesize"
)

// Default values applied to unset entries.
const (
	DefaultRole            = RoleAll
	DefaultPollInterval    = 5 * time.Second
	DefaultBatchReadLimit  = 16
	DefaultBackoffBase     = 5 * time.Second
	DefaultBackoffMax      = 5 * time.Minute
	DefaultChunkSize       = bytesize.ByteSize(64 * 1024)
	DefaultIdempotencyTTL  = 24 * time.Hour
	DefaultStream          = "file-events"
	DefaultGroup           = "file-workers"
	DefaultConsumerPrefix  = "filehorizon"
	DefaultRedisAddr       = "localhost:6379"
	DefaultAPIPort         = 8080
	DefaultShutdownTimeout = 30 * time.Second
)

// ApplyDefaults fills unset entries in place. Called after unmarshalling so
// partial config files behave predictably.
func ApplyDefaults(cfg *Config) {
	applyPipelineDefaults(&cfg.Pipeline)
	applyPollingDefaults(&cfg.Polling)
	applyTransferDefaults(&cfg.Transfer)
	applyIdempotencyDefaults(&cfg.Idempotency)
	applyQueueDefaults(&cfg.Queue)
	applyNotificationDefaults(&cfg.Notification)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAPIDefaults(&cfg.API)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyPipelineDefaults(cfg *PipelineConfig) {
	if cfg.Role == "" {
		cfg.Role = DefaultRole
	}
	cfg.Role = strings.ToLower(cfg.Role)
	if cfg.FanoutPolicy == "" {
		cfg.FanoutPolicy = "first"
	}
}

func applyPollingDefaults(cfg *PollingConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.BatchReadLimit == 0 {
		cfg.BatchReadLimit = DefaultBatchReadLimit
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
}

func applyTransferDefaults(cfg *TransferConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Checksum == "" {
		cfg.Checksum = "none"
	}
	if cfg.Retry.Base == 0 {
		cfg.Retry.Base = 200 * time.Millisecond
	}
	if cfg.Retry.Cap == 0 {
		cfg.Retry.Cap = 4 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
}

func applyIdempotencyDefaults(cfg *IdempotencyConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "filehorizon:idem:"
	}
}

func applyQueueDefaults(cfg *QueueConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.ConsumerPrefix == "" {
		cfg.ConsumerPrefix = DefaultConsumerPrefix
	}
	if cfg.ReadBlock == 0 {
		cfg.ReadBlock = 5 * time.Second
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
}

func applyNotificationDefaults(cfg *NotificationConfig) {
	if cfg.Stream == "" {
		cfg.Stream = "file-notifications"
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = 10 * time.Minute
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Retry.Base == 0 {
		cfg.Retry.Base = 500 * time.Millisecond
	}
	if cfg.Retry.Cap == 0 {
		cfg.Retry.Cap = 5 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Breaker.Threshold > 0 && cfg.Breaker.ResetInterval == 0 {
		cfg.Breaker.ResetInterval = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
		cfg.Insecure = true
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu", "alloc_objects", "alloc_space",
			"inuse_objects", "inuse_space", "goroutines",
		}
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultAPIPort
	}
}

// GetDefaultConfig returns a fully defaulted configuration with no sources,
// destinations, or rules.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Features: FeaturesConfig{
			EnableLocalPoller:  true,
			EnableFileTransfer: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
