package config

import (
	"os"
	"strings"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
)

// Resolver resolves named secrets to credential values. The default
// implementation reads environment variables; deployments with a vault can
// plug their own.
type Resolver interface {
	Resolve(name string) (string, error)
}

// EnvResolver resolves secrets from environment variables. The secret name is
// uppercased, non-alphanumeric characters become underscores, and the prefix
// is prepended: secret "ftp-inbound" reads FILEHORIZON_SECRET_FTP_INBOUND.
type EnvResolver struct {
	// Prefix overrides the default FILEHORIZON_SECRET_ prefix.
	Prefix string
}

// DefaultSecretPrefix is the environment prefix for resolved secrets.
const DefaultSecretPrefix = "FILEHORIZON_SECRET_"

// Resolve reads the environment variable derived from name.
func (r EnvResolver) Resolve(name string) (string, error) {
	const op = "config.EnvResolver.Resolve"

	prefix := r.Prefix
	if prefix == "" {
		prefix = DefaultSecretPrefix
	}

	value, ok := os.LookupEnv(prefix + envKey(name))
	if !ok {
		return "", fherrors.Newf(fherrors.KindAuth, fherrors.CodeSecretMissing, op,
			"secret %q not found in environment (%s%s)", name, prefix, envKey(name))
	}
	return value, nil
}

// envKey converts a secret name to an environment variable suffix.
func envKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ResolveSecrets fills every password_secret reference in cfg with its
// resolved value. Resolution happens once at startup; a missing secret is a
// fatal configuration error.
func ResolveSecrets(cfg *Config, r Resolver) error {
	for i := range cfg.RemoteFileSources.FTP {
		s := &cfg.RemoteFileSources.FTP[i]
		if s.PasswordSecret == "" {
			continue
		}
		value, err := r.Resolve(s.PasswordSecret)
		if err != nil {
			return err
		}
		s.Password = value
	}

	for i := range cfg.RemoteFileSources.SFTP {
		s := &cfg.RemoteFileSources.SFTP[i]
		if s.PasswordSecret == "" {
			continue
		}
		value, err := r.Resolve(s.PasswordSecret)
		if err != nil {
			return err
		}
		s.Password = value
	}

	for i := range cfg.Destinations.SFTP {
		d := &cfg.Destinations.SFTP[i]
		if d.PasswordSecret == "" {
			continue
		}
		value, err := r.Resolve(d.PasswordSecret)
		if err != nil {
			return err
		}
		d.Password = value
	}

	return nil
}
