package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a fully wired config that passes validation; tests
// mutate one entry at a time.
func validConfig() *Config {
	cfg := GetDefaultConfig()

	cfg.FileSources = []FileSourceConfig{
		{Name: "inbox", Path: "/var/spool/inbox"},
	}
	cfg.RemoteFileSources.SFTP = []SFTPSourceConfig{
		{Name: "partner", Host: "sftp.example.com", Username: "fh", Password: "hunter2"},
	}
	cfg.Destinations = DestinationsConfig{
		Local: []LocalDestinationConfig{{Name: "archive", Root: "/var/spool/archive"}},
		Bus:   []BusDestinationConfig{{Name: "events", Stream: "file-copies"}},
	}
	cfg.Routing.Rules = []RuleConfig{
		{Name: "archive-everything", Destinations: []string{"archive"}},
	}
	return cfg
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidateDuplicateSourceNames(t *testing.T) {
	cfg := validConfig()
	cfg.RemoteFileSources.SFTP[0].Name = "Inbox"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source name")
}

func TestValidateDuplicateDestinationNamesAcrossKinds(t *testing.T) {
	cfg := validConfig()
	cfg.Destinations.Bus[0].Name = "archive"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate destination name")
}

func TestValidateRuleReferencesUnknownDestination(t *testing.T) {
	cfg := validConfig()
	cfg.Routing.Rules[0].Destinations = []string{"nowhere"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown destination")
}

func TestValidateDuplicateRuleNames(t *testing.T) {
	cfg := validConfig()
	cfg.Routing.Rules = append(cfg.Routing.Rules, RuleConfig{
		Name: "ARCHIVE-EVERYTHING", Destinations: []string{"archive"},
	})

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule name")
}

func TestValidatePasswordAndSecretAreExclusive(t *testing.T) {
	cfg := validConfig()
	cfg.RemoteFileSources.SFTP[0].PasswordSecret = "partner-password"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both password and password_secret")
}

func TestValidateSFTPSourceNeedsCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.RemoteFileSources.SFTP[0].Password = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestValidateSFTPPrivateKeyIsEnoughCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.RemoteFileSources.SFTP[0].Password = ""
	cfg.RemoteFileSources.SFTP[0].PrivateKeyPath = "/etc/filehorizon/partner.pem"

	assert.NoError(t, Validate(cfg))
}

func TestValidateBackoffOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Polling.BackoffBase = cfg.Polling.BackoffMax * 2

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backoff_max")
}

func TestValidateMemoryQueueRequiresSingleRole(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Role = RolePoller

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot serve split role")

	cfg.Queue.Backend = "redis"
	assert.NoError(t, Validate(cfg))
}

func TestValidateBadgerBackendNeedsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Idempotency.Enabled = true
	cfg.Idempotency.Backend = "badger"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badger_path")

	cfg.Idempotency.BadgerPath = t.TempDir()
	assert.NoError(t, Validate(cfg))
}

func TestValidateTelemetryNeedsEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry")
}

func TestValidateRetryOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Notification.Retry.Cap = cfg.Notification.Retry.Base / 2

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification.retry")
}

func TestValidateStructTags(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Redis.DB = 42

	assert.Error(t, Validate(cfg))
}
