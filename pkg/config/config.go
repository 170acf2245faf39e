// Package config loads, validates and materializes the pipeline
// configuration. Static configuration (sources, destinations, routing rules,
// queue and idempotency backends) lives in one YAML file; environment
// variables override individual entries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/filehorizon/filehorizon/internal/bytesize"
)

// Role selects which background loops a replica runs.
const (
	RolePoller = "poller"
	RoleWorker = "worker"
	RoleAll    = "all"
)

// Config is the full pipeline configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FILEHORIZON_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Pipeline selects the process role.
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`

	// Polling drives the discovery loop.
	Polling PollingConfig `mapstructure:"polling" yaml:"polling"`

	// Features toggles pollers and the transfer path.
	Features FeaturesConfig `mapstructure:"features" yaml:"features"`

	// FileSources are watched local directories.
	FileSources []FileSourceConfig `mapstructure:"file_sources" yaml:"file_sources,omitempty"`

	// RemoteFileSources are polled FTP/SFTP endpoints.
	RemoteFileSources RemoteSourcesConfig `mapstructure:"remote_file_sources" yaml:"remote_file_sources,omitempty"`

	// Destinations declares every target files can be routed to.
	Destinations DestinationsConfig `mapstructure:"destinations" yaml:"destinations"`

	// Routing is the ordered rule table.
	Routing RoutingConfig `mapstructure:"routing" yaml:"routing"`

	// Transfer tunes the copy path.
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`

	// Idempotency configures the processed-marker gate.
	Idempotency IdempotencyConfig `mapstructure:"idempotency" yaml:"idempotency"`

	// Queue selects and configures the work queue backend.
	Queue QueueConfig `mapstructure:"queue" yaml:"queue"`

	// Notification configures the processed-file notifier.
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the health/metrics HTTP listener.
	API APIConfig `mapstructure:"api" yaml:"api"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// PipelineConfig selects the process role.
type PipelineConfig struct {
	// Role is poller, worker, or all.
	Role string `mapstructure:"role" validate:"required,oneof=poller worker all" yaml:"role"`

	// FanoutPolicy is accepted for forward compatibility; only "first" is
	// implemented.
	FanoutPolicy string `mapstructure:"fanout_policy" validate:"omitempty,oneof=first" yaml:"fanout_policy,omitempty"`
}

// PollingConfig drives the discovery loop.
type PollingConfig struct {
	// Interval between composite poll cycles.
	Interval time.Duration `mapstructure:"interval" validate:"required,gt=0" yaml:"interval"`

	// BatchReadLimit caps how many events one drain hands to the worker.
	BatchReadLimit int `mapstructure:"batch_read_limit" validate:"required,min=1" yaml:"batch_read_limit"`

	// BackoffBase is the first per-source retry delay after a poll failure.
	BackoffBase time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`

	// BackoffMax caps the per-source retry delay.
	BackoffMax time.Duration `mapstructure:"backoff_max" yaml:"backoff_max"`
}

// FeaturesConfig toggles pipeline stages.
type FeaturesConfig struct {
	EnableLocalPoller  bool `mapstructure:"enable_local_poller" yaml:"enable_local_poller"`
	EnableFTPPoller    bool `mapstructure:"enable_ftp_poller" yaml:"enable_ftp_poller"`
	EnableSFTPPoller   bool `mapstructure:"enable_sftp_poller" yaml:"enable_sftp_poller"`
	EnableFileTransfer bool `mapstructure:"enable_file_transfer" yaml:"enable_file_transfer"`
}

// FileSourceConfig is a watched local directory.
type FileSourceConfig struct {
	Name                string        `mapstructure:"name" validate:"required" yaml:"name"`
	Path                string        `mapstructure:"path" validate:"required" yaml:"path"`
	Pattern             string        `mapstructure:"pattern" yaml:"pattern,omitempty"`
	Recursive           bool          `mapstructure:"recursive" yaml:"recursive"`
	DeleteAfterTransfer bool          `mapstructure:"delete_after_transfer" yaml:"delete_after_transfer"`
	StabilityWindow     time.Duration `mapstructure:"stability_window" yaml:"stability_window"`
}

// RemoteSourcesConfig groups the remote poller endpoints.
type RemoteSourcesConfig struct {
	FTP  []FTPSourceConfig  `mapstructure:"ftp" yaml:"ftp,omitempty"`
	SFTP []SFTPSourceConfig `mapstructure:"sftp" yaml:"sftp,omitempty"`
}

// FTPSourceConfig is one polled FTP endpoint.
type FTPSourceConfig struct {
	Name     string `mapstructure:"name" validate:"required" yaml:"name"`
	Host     string `mapstructure:"host" validate:"required" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`

	// Password is the literal credential; PasswordSecret names a secret to
	// resolve instead. Exactly one may be set.
	Password       string `mapstructure:"password" yaml:"password,omitempty"`
	PasswordSecret string `mapstructure:"password_secret" yaml:"password_secret,omitempty"`

	RemotePath          string        `mapstructure:"remote_path" yaml:"remote_path,omitempty"`
	Pattern             string        `mapstructure:"pattern" yaml:"pattern,omitempty"`
	Recursive           bool          `mapstructure:"recursive" yaml:"recursive"`
	DeleteAfterTransfer bool          `mapstructure:"delete_after_transfer" yaml:"delete_after_transfer"`
	StabilityWindow     time.Duration `mapstructure:"stability_window" yaml:"stability_window"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout,omitempty"`
}

// SFTPSourceConfig is one polled SFTP endpoint.
type SFTPSourceConfig struct {
	Name     string `mapstructure:"name" validate:"required" yaml:"name"`
	Host     string `mapstructure:"host" validate:"required" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`
	Username string `mapstructure:"username" validate:"required" yaml:"username"`

	Password       string `mapstructure:"password" yaml:"password,omitempty"`
	PasswordSecret string `mapstructure:"password_secret" yaml:"password_secret,omitempty"`

	// PrivateKeyPath takes precedence over password auth when set.
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path,omitempty"`

	RemotePath          string        `mapstructure:"remote_path" yaml:"remote_path,omitempty"`
	Pattern             string        `mapstructure:"pattern" yaml:"pattern,omitempty"`
	Recursive           bool          `mapstructure:"recursive" yaml:"recursive"`
	DeleteAfterTransfer bool          `mapstructure:"delete_after_transfer" yaml:"delete_after_transfer"`
	StabilityWindow     time.Duration `mapstructure:"stability_window" yaml:"stability_window"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout,omitempty"`
}

// DestinationsConfig declares the routable targets by kind.
type DestinationsConfig struct {
	Local []LocalDestinationConfig `mapstructure:"local" yaml:"local,omitempty"`
	SFTP  []SFTPDestinationConfig  `mapstructure:"sftp" yaml:"sftp,omitempty"`
	Bus   []BusDestinationConfig   `mapstructure:"bus" yaml:"bus,omitempty"`
	S3    []S3DestinationConfig    `mapstructure:"s3" yaml:"s3,omitempty"`
}

// LocalDestinationConfig is a directory target.
type LocalDestinationConfig struct {
	Name string `mapstructure:"name" validate:"required" yaml:"name"`
	Root string `mapstructure:"root" validate:"required" yaml:"root"`
}

// SFTPDestinationConfig is a remote directory target.
type SFTPDestinationConfig struct {
	Name     string `mapstructure:"name" validate:"required" yaml:"name"`
	Root     string `mapstructure:"root" validate:"required" yaml:"root"`
	Host     string `mapstructure:"host" validate:"required" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`
	Username string `mapstructure:"username" validate:"required" yaml:"username"`

	Password       string `mapstructure:"password" yaml:"password,omitempty"`
	PasswordSecret string `mapstructure:"password_secret" yaml:"password_secret,omitempty"`
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path,omitempty"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout,omitempty"`
}

// BusDestinationConfig is a message-stream target.
type BusDestinationConfig struct {
	Name    string `mapstructure:"name" validate:"required" yaml:"name"`
	Stream  string `mapstructure:"stream" validate:"required" yaml:"stream"`
	IsTopic bool   `mapstructure:"is_topic" yaml:"is_topic"`
}

// S3DestinationConfig is an object-storage target.
type S3DestinationConfig struct {
	Name   string `mapstructure:"name" validate:"required" yaml:"name"`
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// RoutingConfig is the ordered rule table.
type RoutingConfig struct {
	Rules []RuleConfig `mapstructure:"rules" yaml:"rules"`
}

// RuleConfig routes matching events to destinations. Declared criteria are
// ANDed; the first matching rule wins.
type RuleConfig struct {
	Name          string   `mapstructure:"name" validate:"required" yaml:"name"`
	Protocol      string   `mapstructure:"protocol" validate:"omitempty,oneof=local ftp sftp synthetic" yaml:"protocol,omitempty"`
	PathGlob      string   `mapstructure:"path_glob" yaml:"path_glob,omitempty"`
	PathRegex     string   `mapstructure:"path_regex" yaml:"path_regex,omitempty"`
	SourceName    string   `mapstructure:"source_name" yaml:"source_name,omitempty"`
	Destinations  []string `mapstructure:"destinations" validate:"required,min=1" yaml:"destinations"`
	RenamePattern string   `mapstructure:"rename_pattern" yaml:"rename_pattern,omitempty"`
	Overwrite     bool     `mapstructure:"overwrite" yaml:"overwrite"`
	ComputeHash   bool     `mapstructure:"compute_hash" yaml:"compute_hash"`
}

// TransferConfig tunes the copy path.
type TransferConfig struct {
	// ChunkSize is the streaming buffer size. Accepts human-readable sizes
	// like "64KiB".
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size,omitempty"`

	// Retry bounds the bus-sink publish retries.
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// Checksum names the hash algorithm recorded on events ("none" disables).
	Checksum string `mapstructure:"checksum" validate:"omitempty,oneof=none sha256" yaml:"checksum,omitempty"`
}

// RetryConfig is a bounded exponential backoff.
type RetryConfig struct {
	Base       time.Duration `mapstructure:"base" yaml:"base"`
	Cap        time.Duration `mapstructure:"cap" yaml:"cap"`
	MaxRetries int           `mapstructure:"max_retries" validate:"omitempty,min=0,max=10" yaml:"max_retries"`
}

// IdempotencyConfig configures the processed-marker gate.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// Backend is memory, redis or badger.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=memory redis badger" yaml:"backend,omitempty"`

	// BadgerPath is the on-disk marker directory for the badger backend.
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path,omitempty"`

	// KeyPrefix namespaces markers in the shared redis backend.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
}

// QueueConfig selects and configures the work queue backend.
type QueueConfig struct {
	// Backend is memory or redis.
	Backend string `mapstructure:"backend" validate:"required,oneof=memory redis" yaml:"backend"`

	Stream         string        `mapstructure:"stream" yaml:"stream,omitempty"`
	Group          string        `mapstructure:"group" yaml:"group,omitempty"`
	ConsumerPrefix string        `mapstructure:"consumer_prefix" yaml:"consumer_prefix,omitempty"`
	ReadBlock      time.Duration `mapstructure:"read_block" yaml:"read_block,omitempty"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis,omitempty"`
}

// RedisConfig is the shared Redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" validate:"omitempty,min=0,max=15" yaml:"db,omitempty"`
}

// NotificationConfig configures the processed-file notifier.
type NotificationConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	Stream         string        `mapstructure:"stream" yaml:"stream,omitempty"`
	DedupTTL       time.Duration `mapstructure:"dedup_ttl" yaml:"dedup_ttl,omitempty"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout,omitempty"`
	Retry          RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Breaker        BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

// BreakerConfig enables the notifier circuit breaker.
type BreakerConfig struct {
	Threshold     int           `mapstructure:"threshold" validate:"omitempty,min=0" yaml:"threshold"`
	ResetInterval time.Duration `mapstructure:"reset_interval" yaml:"reset_interval,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// APIConfig configures the health/metrics HTTP listener.
type APIConfig struct {
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file is
// missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  filehorizon init\n\n"+
				"Or specify a custom config file:\n"+
				"  filehorizon <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  filehorizon init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML. Restricted permissions:
// sources and destinations may carry credentials.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variable support and config file search.
// Example: FILEHORIZON_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FILEHORIZON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file is
// acceptable; defaults apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks combines the custom type hooks: human-readable byte
// sizes and durations.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64.
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns XDG_CONFIG_HOME/filehorizon, falling back to
// ~/.config/filehorizon, then the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filehorizon")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "filehorizon")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
