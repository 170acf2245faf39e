package reader

import (
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/remote"
)

// FTPReader opens files on configured FTP endpoints. As with SFTP, the
// returned stream owns the connection.
type FTPReader struct {
	configs map[string]remote.FTPConfig
}

// NewFTPReader indexes endpoint credentials by host and port.
func NewFTPReader(configs []remote.FTPConfig) *FTPReader {
	r := &FTPReader{configs: make(map[string]remote.FTPConfig, len(configs))}
	for _, cfg := range configs {
		r.configs[endpointKey(cfg.Host, cfg.Port, remote.DefaultFTPPort)] = cfg
	}
	return r
}

// Scheme returns "ftp".
func (r *FTPReader) Scheme() string {
	return string(event.ProtocolFTP)
}

// ftpStream couples the data connection with the control connection so one
// Close tears both down.
type ftpStream struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (s *ftpStream) Read(p []byte) (int, error) {
	return s.resp.Read(p)
}

func (s *ftpStream) Close() error {
	err := s.resp.Close()
	if qerr := s.conn.Quit(); qerr != nil && err == nil {
		err = qerr
	}
	return err
}

// OpenRead dials the endpoint and starts retrieving the file.
func (r *FTPReader) OpenRead(ctx context.Context, ref event.FileReference) (io.ReadCloser, error) {
	const op = "FTPReader.OpenRead"

	cfg, err := r.configFor(ref, op)
	if err != nil {
		return nil, err
	}

	conn, err := remote.DialFTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(ref.Path)
	if err != nil {
		_ = conn.Quit()
		return nil, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return &ftpStream{resp: resp, conn: conn}, nil
}

// GetAttributes fetches size and modification time over a short-lived
// connection. Servers without MDTM support yield a zero time.
func (r *FTPReader) GetAttributes(ctx context.Context, ref event.FileReference) (Attributes, error) {
	const op = "FTPReader.GetAttributes"

	cfg, err := r.configFor(ref, op)
	if err != nil {
		return Attributes{}, err
	}

	conn, err := remote.DialFTP(ctx, cfg)
	if err != nil {
		return Attributes{}, err
	}
	defer func() { _ = conn.Quit() }()

	size, err := conn.FileSize(ref.Path)
	if err != nil {
		return Attributes{}, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	var mtime time.Time
	if t, err := conn.GetTime(ref.Path); err == nil {
		mtime = t.UTC()
	}
	return Attributes{SizeBytes: size, LastWriteUTC: mtime}, nil
}

// Remove deletes the remote file over a short-lived connection.
func (r *FTPReader) Remove(ctx context.Context, ref event.FileReference) error {
	const op = "FTPReader.Remove"

	cfg, err := r.configFor(ref, op)
	if err != nil {
		return err
	}

	conn, err := remote.DialFTP(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Delete(ref.Path); err != nil {
		return fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return nil
}

func (r *FTPReader) configFor(ref event.FileReference, op string) (remote.FTPConfig, error) {
	cfg, ok := r.configs[endpointKey(ref.Host, ref.Port, remote.DefaultFTPPort)]
	if !ok {
		return remote.FTPConfig{}, fherrors.Newf(fherrors.KindValidation, fherrors.CodeValidation, op,
			"no credentials configured for ftp endpoint %s:%d", ref.Host, ref.Port)
	}
	return cfg, nil
}
