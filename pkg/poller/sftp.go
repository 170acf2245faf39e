package poller

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/remote"
)

// SFTPConfig describes one polled SFTP source.
type SFTPConfig struct {
	Name                string
	Remote              remote.SFTPConfig
	RemotePath          string
	Pattern             string
	Recursive           bool
	DeleteAfterTransfer bool
	StabilityWindow     time.Duration
}

// SFTPSource polls a directory over SFTP. A fresh session is opened per
// cycle and closed when the listing is done.
type SFTPSource struct {
	cfg SFTPConfig
}

// NewSFTPSource creates an SFTP source.
func NewSFTPSource(cfg SFTPConfig) *SFTPSource {
	if cfg.RemotePath == "" {
		cfg.RemotePath = "/"
	}
	return &SFTPSource{cfg: cfg}
}

func (s *SFTPSource) Name() string                   { return s.cfg.Name }
func (s *SFTPSource) Protocol() event.Protocol       { return event.ProtocolSFTP }
func (s *SFTPSource) DeleteAfterTransfer() bool      { return s.cfg.DeleteAfterTransfer }
func (s *SFTPSource) StabilityWindow() time.Duration { return s.cfg.StabilityWindow }

// Identity returns the canonical identity key for a remote path.
func (s *SFTPSource) Identity(remotePath string) string {
	port := s.cfg.Remote.Port
	if port == 0 {
		port = remote.DefaultSFTPPort
	}
	return event.IdentityKey(string(event.ProtocolSFTP), s.cfg.Remote.Host, port, remotePath)
}

// List connects, enumerates matching files, and closes the session.
func (s *SFTPSource) List(ctx context.Context) ([]Entry, error) {
	conn, err := remote.DialSFTP(ctx, s.cfg.Remote)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	var entries []Entry
	dirs := []string{s.cfg.RemotePath}
	for len(dirs) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := dirs[0]
		dirs = dirs[1:]

		listed, err := conn.Client.ReadDir(dir)
		if err != nil {
			return nil, err
		}

		for _, info := range listed {
			full := path.Join(dir, info.Name())
			if info.IsDir() {
				if s.cfg.Recursive {
					dirs = append(dirs, full)
				}
				continue
			}

			rel := strings.TrimPrefix(strings.TrimPrefix(full, s.cfg.RemotePath), "/")
			if !matchPattern(s.cfg.Pattern, rel) {
				continue
			}
			entries = append(entries, Entry{
				Path:    full,
				Size:    info.Size(),
				ModTime: info.ModTime().UTC(),
			})
		}
	}
	return entries, nil
}
