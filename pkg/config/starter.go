package config

import (
	"fmt"
	"os"
	"time"
)

// StarterConfig returns the config written by "filehorizon init": a single
// watched inbox routed to a local archive, ready to edit.
func StarterConfig() *Config {
	cfg := GetDefaultConfig()

	cfg.FileSources = []FileSourceConfig{{
		Name:            "inbox",
		Path:            "/var/spool/filehorizon/inbox",
		Pattern:         "*",
		StabilityWindow: 2 * time.Second,
	}}

	cfg.Destinations = DestinationsConfig{
		Local: []LocalDestinationConfig{{
			Name: "archive",
			Root: "/var/spool/filehorizon/archive",
		}},
	}

	cfg.Routing = RoutingConfig{
		Rules: []RuleConfig{{
			Name:         "archive-everything",
			Destinations: []string{"archive"},
		}},
	}

	return cfg
}

// WriteStarterConfig writes the starter configuration to path, refusing to
// overwrite an existing file unless force is set.
func WriteStarterConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	return SaveConfig(StarterConfig(), path)
}
