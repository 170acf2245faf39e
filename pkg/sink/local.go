package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/filehorizon/filehorizon/pkg/bufpool"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// LocalSink writes files under a root directory. With overwrite disabled the
// create is exclusive, so two workers racing on the same target cannot
// clobber each other.
type LocalSink struct {
	name  string
	root  string
	chunk int
}

// NewLocalSink creates a sink rooted at dir.
func NewLocalSink(name, dir string) *LocalSink {
	return &LocalSink{name: name, root: dir, chunk: CopyChunkSize}
}

// WithChunkSize overrides the streaming buffer size.
func (s *LocalSink) WithChunkSize(n int) *LocalSink {
	if n > 0 {
		s.chunk = n
	}
	return s
}

func (s *LocalSink) Name() string { return s.name }

func (s *LocalSink) Kind() event.DestinationKind { return event.DestinationLocal }

// Write streams content to root/targetPath in chunks, creating parent
// directories as needed.
func (s *LocalSink) Write(ctx context.Context, _ event.FileEvent, plan event.DestinationPlan, content io.Reader) (int64, error) {
	const op = "LocalSink.Write"

	target := filepath.Join(s.root, filepath.FromSlash(plan.TargetPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !plan.Options.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(target, flags, 0o644)
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
		// A partial file must not look like a completed transfer.
		_ = os.Remove(target)
		return written, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return written, nil
}

// contextReader fails the copy as soon as ctx is canceled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
