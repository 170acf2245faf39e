package reader

import (
	"context"
	"fmt"
	"io"
	"os"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/remote"
)

// SFTPReader opens files on configured SFTP endpoints. Each open dials a
// fresh session; the returned stream owns it exclusively and closing the
// stream closes the session. Streams must not be shared across workers.
type SFTPReader struct {
	// configs is keyed by "host:port".
	configs map[string]remote.SFTPConfig
}

// NewSFTPReader indexes endpoint credentials by host and port.
func NewSFTPReader(configs []remote.SFTPConfig) *SFTPReader {
	r := &SFTPReader{configs: make(map[string]remote.SFTPConfig, len(configs))}
	for _, cfg := range configs {
		r.configs[endpointKey(cfg.Host, cfg.Port, remote.DefaultSFTPPort)] = cfg
	}
	return r
}

// Scheme returns "sftp".
func (r *SFTPReader) Scheme() string {
	return string(event.ProtocolSFTP)
}

// sftpStream couples the open remote file with the session it came from.
type sftpStream struct {
	io.ReadCloser
	conn *remote.SFTPConn
}

func (s *sftpStream) Close() error {
	err := s.ReadCloser.Close()
	if cerr := s.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// OpenRead dials the endpoint and opens the remote file. The returned stream
// owns the connection.
func (r *SFTPReader) OpenRead(ctx context.Context, ref event.FileReference) (io.ReadCloser, error) {
	const op = "SFTPReader.OpenRead"

	cfg, err := r.configFor(ref, op)
	if err != nil {
		return nil, err
	}

	conn, err := remote.DialSFTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	f, err := conn.Client.Open(ref.Path)
	if err != nil {
		_ = conn.Close()
		if os.IsNotExist(err) {
			return nil, fherrors.Wrap(fherrors.KindNotFound, fherrors.CodeFileNotFound, op, err)
		}
		return nil, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return &sftpStream{ReadCloser: f, conn: conn}, nil
}

// GetAttributes stats the remote file over a short-lived session.
func (r *SFTPReader) GetAttributes(ctx context.Context, ref event.FileReference) (Attributes, error) {
	const op = "SFTPReader.GetAttributes"

	cfg, err := r.configFor(ref, op)
	if err != nil {
		return Attributes{}, err
	}

	conn, err := remote.DialSFTP(ctx, cfg)
	if err != nil {
		return Attributes{}, err
	}
	defer func() { _ = conn.Close() }()

	info, err := conn.Client.Stat(ref.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Attributes{}, fherrors.Wrap(fherrors.KindNotFound, fherrors.CodeFileNotFound, op, err)
		}
		return Attributes{}, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return Attributes{
		SizeBytes:    info.Size(),
		LastWriteUTC: info.ModTime().UTC(),
	}, nil
}

// Remove deletes the remote file over a short-lived session.
func (r *SFTPReader) Remove(ctx context.Context, ref event.FileReference) error {
	const op = "SFTPReader.Remove"

	cfg, err := r.configFor(ref, op)
	if err != nil {
		return err
	}

	conn, err := remote.DialSFTP(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Client.Remove(ref.Path); err != nil && !os.IsNotExist(err) {
		return fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return nil
}

func (r *SFTPReader) configFor(ref event.FileReference, op string) (remote.SFTPConfig, error) {
	cfg, ok := r.configs[endpointKey(ref.Host, ref.Port, remote.DefaultSFTPPort)]
	if !ok {
		return remote.SFTPConfig{}, fherrors.Newf(fherrors.KindValidation, fherrors.CodeValidation, op,
			"no credentials configured for sftp endpoint %s:%d", ref.Host, ref.Port)
	}
	return cfg, nil
}

func endpointKey(host string, port, defaultPort int) string {
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}
