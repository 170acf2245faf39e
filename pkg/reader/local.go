package reader

import (
	"context"
	"io"
	"os"
	"path/filepath"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// LocalReader opens files on the local filesystem.
type LocalReader struct{}

// NewLocalReader creates a local reader.
func NewLocalReader() *LocalReader {
	return &LocalReader{}
}

// Scheme returns "local".
func (r *LocalReader) Scheme() string {
	return string(event.ProtocolLocal)
}

// OpenRead opens the file for shared reading. A missing file fails fast with
// File.NotFound.
func (r *LocalReader) OpenRead(ctx context.Context, ref event.FileReference) (io.ReadCloser, error) {
	const op = "LocalReader.OpenRead"

	path, err := r.localPath(ref, op)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fherrors.Wrap(fherrors.KindNotFound, fherrors.CodeFileNotFound, op, err)
		}
		return nil, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return f, nil
}

// GetAttributes stats the file.
func (r *LocalReader) GetAttributes(ctx context.Context, ref event.FileReference) (Attributes, error) {
	const op = "LocalReader.GetAttributes"

	path, err := r.localPath(ref, op)
	if err != nil {
		return Attributes{}, err
	}
	if err := ctx.Err(); err != nil {
		return Attributes{}, fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}

	info, err := os.Stat(path)
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

// Remove deletes the file. A file that is already gone is not an error.
func (r *LocalReader) Remove(_ context.Context, ref event.FileReference) error {
	const op = "LocalReader.Remove"

	path, err := r.localPath(ref, op)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fherrors.Wrap(fherrors.KindIO, fherrors.CodeIO, op, err)
	}
	return nil
}

func (r *LocalReader) localPath(ref event.FileReference, op string) (string, error) {
	if ref.Scheme != string(event.ProtocolLocal) {
		return "", fherrors.Newf(fherrors.KindValidation, fherrors.CodeValidation, op,
			"expected local reference, got scheme %q", ref.Scheme)
	}
	if ref.Path == "" {
		return "", fherrors.New(fherrors.KindValidation, fherrors.CodeValidation, op,
			"reference has empty path")
	}
	return filepath.FromSlash(ref.Path), nil
}
