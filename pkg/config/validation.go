package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks struct tags and the cross-entry invariants the tags cannot
// express. Returns a descriptive error naming the offending entry.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return err
	}

	if err := validateSourceNames(cfg); err != nil {
		return err
	}
	if err := validateDestinations(cfg); err != nil {
		return err
	}
	if err := validateRules(cfg); err != nil {
		return err
	}
	if err := validateCredentials(cfg); err != nil {
		return err
	}
	if err := validateBackoff(&cfg.Polling); err != nil {
		return err
	}
	if err := validateRetry("transfer.retry", cfg.Transfer.Retry); err != nil {
		return err
	}
	if err := validateRetry("notification.retry", cfg.Notification.Retry); err != nil {
		return err
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}
	if cfg.Queue.Backend == "memory" && cfg.Pipeline.Role != RoleAll {
		return fmt.Errorf("queue backend %q cannot serve split role %q: poller and worker would not share a queue",
			cfg.Queue.Backend, cfg.Pipeline.Role)
	}
	if cfg.Idempotency.Backend == "badger" && cfg.Idempotency.BadgerPath == "" {
		return fmt.Errorf("idempotency backend badger requires badger_path")
	}
	return nil
}

// validateSourceNames rejects duplicate names across all source kinds.
func validateSourceNames(cfg *Config) error {
	seen := make(map[string]string)

	check := func(name, kind string) error {
		key := strings.ToLower(name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("duplicate source name %q (%s and %s)", name, prev, kind)
		}
		seen[key] = kind
		return nil
	}

	for _, s := range cfg.FileSources {
		if err := check(s.Name, "file_sources"); err != nil {
			return err
		}
	}
	for _, s := range cfg.RemoteFileSources.FTP {
		if err := check(s.Name, "remote_file_sources.ftp"); err != nil {
			return err
		}
	}
	for _, s := range cfg.RemoteFileSources.SFTP {
		if err := check(s.Name, "remote_file_sources.sftp"); err != nil {
			return err
		}
	}
	return nil
}

// validateDestinations rejects duplicate destination names across kinds.
func validateDestinations(cfg *Config) error {
	seen := make(map[string]string)

	check := func(name, kind string) error {
		key := strings.ToLower(name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("duplicate destination name %q (%s and %s)", name, prev, kind)
		}
		seen[key] = kind
		return nil
	}

	for _, d := range cfg.Destinations.Local {
		if err := check(d.Name, "local"); err != nil {
			return err
		}
	}
	for _, d := range cfg.Destinations.SFTP {
		if err := check(d.Name, "sftp"); err != nil {
			return err
		}
	}
	for _, d := range cfg.Destinations.Bus {
		if err := check(d.Name, "bus"); err != nil {
			return err
		}
	}
	for _, d := range cfg.Destinations.S3 {
		if err := check(d.Name, "s3"); err != nil {
			return err
		}
	}
	return nil
}

// validateRules checks that every rule references declared destinations.
func validateRules(cfg *Config) error {
	names := DestinationNames(cfg)

	seenRules := make(map[string]bool)
	for _, rule := range cfg.Routing.Rules {
		key := strings.ToLower(rule.Name)
		if seenRules[key] {
			return fmt.Errorf("duplicate rule name %q", rule.Name)
		}
		seenRules[key] = true

		for _, dest := range rule.Destinations {
			if !names[strings.ToLower(dest)] {
				return fmt.Errorf("rule %q references unknown destination %q", rule.Name, dest)
			}
		}
	}
	return nil
}

// DestinationNames returns the lowercase set of declared destination names.
func DestinationNames(cfg *Config) map[string]bool {
	names := make(map[string]bool)
	for _, d := range cfg.Destinations.Local {
		names[strings.ToLower(d.Name)] = true
	}
	for _, d := range cfg.Destinations.SFTP {
		names[strings.ToLower(d.Name)] = true
	}
	for _, d := range cfg.Destinations.Bus {
		names[strings.ToLower(d.Name)] = true
	}
	for _, d := range cfg.Destinations.S3 {
		names[strings.ToLower(d.Name)] = true
	}
	return names
}

// validateCredentials enforces that a literal password and a secret name are
// never both set, and that SFTP entries carry some form of authentication.
func validateCredentials(cfg *Config) error {
	for _, s := range cfg.RemoteFileSources.FTP {
		if s.Password != "" && s.PasswordSecret != "" {
			return fmt.Errorf("ftp source %q sets both password and password_secret", s.Name)
		}
	}
	for _, s := range cfg.RemoteFileSources.SFTP {
		if s.Password != "" && s.PasswordSecret != "" {
			return fmt.Errorf("sftp source %q sets both password and password_secret", s.Name)
		}
		if s.Password == "" && s.PasswordSecret == "" && s.PrivateKeyPath == "" {
			return fmt.Errorf("sftp source %q has no credentials: set password, password_secret, or private_key_path", s.Name)
		}
	}
	for _, d := range cfg.Destinations.SFTP {
		if d.Password != "" && d.PasswordSecret != "" {
			return fmt.Errorf("sftp destination %q sets both password and password_secret", d.Name)
		}
		if d.Password == "" && d.PasswordSecret == "" && d.PrivateKeyPath == "" {
			return fmt.Errorf("sftp destination %q has no credentials: set password, password_secret, or private_key_path", d.Name)
		}
	}
	return nil
}

func validateBackoff(cfg *PollingConfig) error {
	if cfg.BackoffBase <= 0 {
		return fmt.Errorf("polling.backoff_base must be positive, got %s", cfg.BackoffBase)
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		return fmt.Errorf("polling.backoff_max (%s) must be at least backoff_base (%s)",
			cfg.BackoffMax, cfg.BackoffBase)
	}
	return nil
}

func validateRetry(section string, cfg RetryConfig) error {
	if cfg.Base <= 0 {
		return fmt.Errorf("%s.base must be positive, got %s", section, cfg.Base)
	}
	if cfg.Cap < cfg.Base {
		return fmt.Errorf("%s.cap (%s) must be at least base (%s)", section, cfg.Cap, cfg.Base)
	}
	return nil
}
