package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/filehorizon/filehorizon/internal/logger"
)

// Observer is notified with the freshly loaded config after a file change.
type Observer func(*Config)

// Watch reloads the config file whenever it changes on disk and notifies the
// observers with the new config. A change that fails to load or validate is
// logged and skipped; the previous config stays in effect. The returned
// function stops watching.
func Watch(configPath string, observers ...Observer) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors often replace the file, which drops a
	// watch registered on the file itself.
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	target := filepath.Clean(configPath)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}

				cfg, err := Load(configPath)
				if err != nil {
					logger.Warn("config reload failed, keeping previous config",
						"path", configPath,
						logger.KeyError, err.Error())
					continue
				}
				logger.Info("config reloaded", "path", configPath)
				for _, notify := range observers {
					notify(cfg)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", logger.KeyError, err.Error())
			}
		}
	}()

	return watcher.Close, nil
}
