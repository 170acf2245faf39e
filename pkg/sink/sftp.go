package sink

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/filehorizon/filehorizon/pkg/bufpool"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
	"github.com/filehorizon/filehorizon/pkg/remote"
)

// SFTPSink uploads files to a directory on an SFTP endpoint. A fresh session
// is dialed per write.
type SFTPSink struct {
	name   string
	root   string
	remote remote.SFTPConfig
	chunk  int
}

// NewSFTPSink creates a sink uploading under root on the endpoint.
func NewSFTPSink(name, root string, cfg remote.SFTPConfig) *SFTPSink {
	return &SFTPSink{name: name, root: root, remote: cfg, chunk: CopyChunkSize}
}

// WithChunkSize overrides the streaming buffer size.
func (s *SFTPSink) WithChunkSize(n int) *SFTPSink {
	if n > 0 {
		s.chunk = n
	}
	return s
}

func (s *SFTPSink) Name() string { return s.name }

func (s *SFTPSink) Kind() event.DestinationKind { return event.DestinationSFTP }

// Write creates parent directories remotely and streams the content up.
func (s *SFTPSink) Write(ctx context.Context, _ event.FileEvent, plan event.DestinationPlan, content io.Reader) (int64, error) {
	const op = "SFTPSink.Write"

	conn, err := remote.DialSFTP(ctx, s.remote)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	target := path.Join(s.root, plan.TargetPath)
	if err := conn.Client.MkdirAll(path.Dir(target)); err != nil {
		return 0, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	if !plan.Options.Overwrite {
		if _, err := conn.Client.Stat(target); err == nil {
			return 0, fherrors.Newf(fherrors.KindIO, fherrors.CodeIO, op,
				"target %q already exists and overwrite is disabled", target)
		} else if !os.IsNotExist(err) {
			return 0, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
		}
	}

	f, err := conn.Client.Create(target)
	if err != nil {
		return 0, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	buf := bufpool.Get(s.chunk)
	written, err := io.CopyBuffer(f, &contextReader{ctx: ctx, r: content}, buf)
	bufpool.Put(buf)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		_ = conn.Client.Remove(target)
		return written, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return written, nil
}
