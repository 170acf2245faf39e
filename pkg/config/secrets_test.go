package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
)

func TestEnvResolverResolve(t *testing.T) {
	t.Setenv("FILEHORIZON_SECRET_FTP_INBOUND", "s3cret")

	value, err := EnvResolver{}.Resolve("ftp-inbound")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)
}

func TestEnvResolverMissingSecret(t *testing.T) {
	_, err := EnvResolver{}.Resolve("definitely-not-set")
	require.Error(t, err)
	assert.Equal(t, fherrors.KindAuth, fherrors.KindOf(err))
	assert.Equal(t, fherrors.CodeSecretMissing, fherrors.CodeOf(err))
}

func TestEnvResolverCustomPrefix(t *testing.T) {
	t.Setenv("VAULT_PARTNER_KEY", "from-vault")

	value, err := EnvResolver{Prefix: "VAULT_"}.Resolve("partner.key")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", value)
}

func TestResolveSecretsFillsPasswords(t *testing.T) {
	t.Setenv("FILEHORIZON_SECRET_PARTNER_SFTP", "sftp-pw")
	t.Setenv("FILEHORIZON_SECRET_LEGACY_FTP", "ftp-pw")
	t.Setenv("FILEHORIZON_SECRET_OUTBOUND", "dest-pw")

	cfg := GetDefaultConfig()
	cfg.RemoteFileSources.SFTP = []SFTPSourceConfig{
		{Name: "partner", Host: "h", Username: "u", PasswordSecret: "partner-sftp"},
	}
	cfg.RemoteFileSources.FTP = []FTPSourceConfig{
		{Name: "legacy", Host: "h", PasswordSecret: "legacy-ftp"},
	}
	cfg.Destinations.SFTP = []SFTPDestinationConfig{
		{Name: "out", Root: "/out", Host: "h", Username: "u", PasswordSecret: "outbound"},
	}

	require.NoError(t, ResolveSecrets(cfg, EnvResolver{}))

	assert.Equal(t, "sftp-pw", cfg.RemoteFileSources.SFTP[0].Password)
	assert.Equal(t, "ftp-pw", cfg.RemoteFileSources.FTP[0].Password)
	assert.Equal(t, "dest-pw", cfg.Destinations.SFTP[0].Password)
}

func TestResolveSecretsMissingIsFatal(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.RemoteFileSources.SFTP = []SFTPSourceConfig{
		{Name: "partner", Host: "h", Username: "u", PasswordSecret: "nope"},
	}

	err := ResolveSecrets(cfg, EnvResolver{})
	require.Error(t, err)
	assert.Equal(t, fherrors.KindAuth, fherrors.KindOf(err))
}
