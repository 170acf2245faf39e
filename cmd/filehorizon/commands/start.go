package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/internal/telemetry"
	"github.com/filehorizon/filehorizon/pkg/config"
	"github.com/filehorizon/filehorizon/pkg/pipeline"
)

var startRole string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the FileHorizon pipeline",
	Long: `Start the FileHorizon pipeline with the specified configuration.

The process role decides which loops run: "poller" discovers files and feeds
the queue, "worker" drains the queue and transfers files, "all" runs both in
one process. Split roles require the redis queue backend.

Examples:
  # Run poller and worker in one process
  filehorizon start

  # Run a dedicated worker replica
  filehorizon start --role worker --config /etc/filehorizon/config.yaml

  # Environment variable overrides
  FILEHORIZON_LOGGING_LEVEL=DEBUG filehorizon start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startRole, "role", "", "process role: poller, worker, or all (overrides config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if startRole != "" {
		cfg.Pipeline.Role = startRole
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	if err := config.ResolveSecrets(cfg, config.EnvResolver{}); err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "filehorizon",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err.Error())
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "filehorizon",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err.Error())
		}
	}()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled",
			"endpoint", cfg.Telemetry.Endpoint,
			"sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Hot-reload applies logging changes live; structural changes (sources,
	// destinations, rules) need a restart.
	if configPath := getConfigSource(GetConfigFile()); configPath != "defaults" {
		stopWatch, err := config.Watch(configPath, func(next *config.Config) {
			if err := InitLogger(next); err != nil {
				logger.Warn("failed to apply reloaded logging config", logger.KeyError, err.Error())
			}
		})
		if err != nil {
			logger.Warn("config watch unavailable", logger.KeyError, err.Error())
		} else {
			defer func() { _ = stopWatch() }()
		}
	}

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- p.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("pipeline is running, press Ctrl+C to stop",
		logger.KeyRole, cfg.Pipeline.Role)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, stopping")
		cancel()

		if err := <-pipelineDone; err != nil {
			logger.Error("pipeline shutdown error", logger.KeyError, err.Error())
			return err
		}
		logger.Info("pipeline stopped")

	case err := <-pipelineDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("pipeline error", logger.KeyError, err.Error())
			return err
		}
		logger.Info("pipeline stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
