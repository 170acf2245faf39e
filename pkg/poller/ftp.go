package poller

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/remote"
)

// FTPConfig describes one polled FTP source.
type FTPConfig struct {
	Name                string
	Remote              remote.FTPConfig
	RemotePath          string
	Pattern             string
	Recursive           bool
	DeleteAfterTransfer bool
	StabilityWindow     time.Duration
}

// FTPSource polls a directory on an FTP server. A fresh connection is opened
// per cycle and closed when the listing is done.
type FTPSource struct {
	cfg FTPConfig
}

// NewFTPSource creates an FTP source.
func NewFTPSource(cfg FTPConfig) *FTPSource {
	if cfg.RemotePath == "" {
		cfg.RemotePath = "/"
	}
	return &FTPSource{cfg: cfg}
}

func (s *FTPSource) Name() string                   { return s.cfg.Name }
func (s *FTPSource) Protocol() event.Protocol       { return event.ProtocolFTP }
func (s *FTPSource) DeleteAfterTransfer() bool      { return s.cfg.DeleteAfterTransfer }
func (s *FTPSource) StabilityWindow() time.Duration { return s.cfg.StabilityWindow }

// Identity returns the canonical identity key for a remote path.
func (s *FTPSource) Identity(remotePath string) string {
	port := s.cfg.Remote.Port
	if port == 0 {
		port = remote.DefaultFTPPort
	}
	return event.IdentityKey(string(event.ProtocolFTP), s.cfg.Remote.Host, port, remotePath)
}

// List connects, enumerates matching files, and quits the connection.
func (s *FTPSource) List(ctx context.Context) ([]Entry, error) {
	conn, err := remote.DialFTP(ctx, s.cfg.Remote)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Quit() }()

	var entries []Entry
	dirs := []string{s.cfg.RemotePath}
	for len(dirs) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := dirs[0]
		dirs = dirs[1:]

		listed, err := conn.List(dir)
		if err != nil {
			return nil, err
		}

		for _, item := range listed {
			full := path.Join(dir, item.Name)
			switch item.Type {
			case ftp.EntryTypeFolder:
				if item.Name == "." || item.Name == ".." {
					continue
				}
				if s.cfg.Recursive {
					dirs = append(dirs, full)
				}
			case ftp.EntryTypeFile:
				rel := strings.TrimPrefix(strings.TrimPrefix(full, s.cfg.RemotePath), "/")
				if !matchPattern(s.cfg.Pattern, rel) {
					continue
				}
				entries = append(entries, Entry{
					Path:    full,
					Size:    int64(item.Size),
					ModTime: item.Time.UTC(),
				})
			}
		}
	}
	return entries, nil
}
