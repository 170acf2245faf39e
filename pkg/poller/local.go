package poller

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// LocalConfig describes one watched local directory.
type LocalConfig struct {
	Name                string
	Path                string
	Pattern             string
	Recursive           bool
	DeleteAfterTransfer bool
	StabilityWindow     time.Duration
}

// LocalSource polls a local directory. A missing or invalid path disables the
// source; an fsnotify watch on the parent directory re-enables it when the
// path reappears, and Recheck re-enables it after a configuration change.
type LocalSource struct {
	cfg      LocalConfig
	disabled atomic.Bool

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewLocalSource creates a local source. The path is resolved to an absolute
// path once at construction.
func NewLocalSource(cfg LocalConfig) *LocalSource {
	if abs, err := filepath.Abs(cfg.Path); err == nil {
		cfg.Path = abs
	}
	return &LocalSource{cfg: cfg}
}

func (s *LocalSource) Name() string                   { return s.cfg.Name }
func (s *LocalSource) Protocol() event.Protocol       { return event.ProtocolLocal }
func (s *LocalSource) DeleteAfterTransfer() bool      { return s.cfg.DeleteAfterTransfer }
func (s *LocalSource) StabilityWindow() time.Duration { return s.cfg.StabilityWindow }

// Identity returns the canonical local identity key for an absolute path.
func (s *LocalSource) Identity(path string) string {
	return event.IdentityKey(string(event.ProtocolLocal), "", 0, path)
}

// List enumerates matching files under the configured directory.
func (s *LocalSource) List(ctx context.Context) ([]Entry, error) {
	if s.disabled.Load() {
		return nil, ErrSourceDisabled
	}

	info, err := os.Stat(s.cfg.Path)
	if err != nil || !info.IsDir() {
		s.disable(err)
		return nil, ErrSourceDisabled
	}

	var entries []Entry
	if s.cfg.Recursive {
		err = filepath.WalkDir(s.cfg.Path, func(p string, d fs.DirEntry, werr error) error {
			if werr != nil {
				// Unreadable subtrees are skipped, not fatal.
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			if e, ok := s.entryFor(p, d); ok {
				entries = append(entries, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return entries, nil
	}

	dirEntries, err := os.ReadDir(s.cfg.Path)
	if err != nil {
		s.disable(err)
		return nil, ErrSourceDisabled
	}
	for _, d := range dirEntries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if d.IsDir() {
			continue
		}
		if e, ok := s.entryFor(filepath.Join(s.cfg.Path, d.Name()), d); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *LocalSource) entryFor(path string, d fs.DirEntry) (Entry, bool) {
	rel, err := filepath.Rel(s.cfg.Path, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	if !matchPattern(s.cfg.Pattern, rel) {
		return Entry{}, false
	}

	info, err := d.Info()
	if err != nil {
		// Deleted between listing and stat.
		return Entry{}, false
	}
	return Entry{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, true
}

// Recheck clears the disabled flag after a configuration change.
func (s *LocalSource) Recheck() {
	if s.disabled.CompareAndSwap(true, false) {
		s.stopWatcher()
		logger.Info("local source re-enabled", logger.KeySource, s.cfg.Name)
	}
}

// Close stops the reappearance watcher if one is running.
func (s *LocalSource) Close() error {
	s.stopWatcher()
	return nil
}

// disable flags the source and watches the parent directory so the source
// comes back without a restart when the path reappears.
func (s *LocalSource) disable(cause error) {
	if !s.disabled.CompareAndSwap(false, true) {
		return
	}

	msg := "path is not a directory"
	if cause != nil {
		msg = cause.Error()
	}
	logger.Warn("local source disabled",
		logger.KeySource, s.cfg.Name,
		logger.KeyPath, s.cfg.Path,
		logger.KeyError, msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	if err := watcher.Add(filepath.Dir(s.cfg.Path)); err != nil {
		watcher.Close()
		return
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == s.cfg.Path && ev.Has(fsnotify.Create) {
					s.Recheck()
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

func (s *LocalSource) stopWatcher() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}
