package reader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

func localFile(t *testing.T, content string) (string, event.FileReference) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path, event.LocalReference(path, "test")
}

func TestLocalReaderOpenRead(t *testing.T) {
	_, ref := localFile(t, "hello")
	r := NewLocalReader()

	stream, err := r.OpenRead(context.Background(), ref)
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalReaderMissingFileFailsFast(t *testing.T) {
	r := NewLocalReader()
	ref := event.LocalReference(filepath.Join(t.TempDir(), "missing.txt"), "test")

	_, err := r.OpenRead(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, fherrors.KindNotFound, fherrors.KindOf(err))
	assert.Equal(t, fherrors.CodeFileNotFound, fherrors.CodeOf(err))

	_, err = r.GetAttributes(context.Background(), ref)
	assert.Equal(t, fherrors.CodeFileNotFound, fherrors.CodeOf(err))
}

func TestLocalReaderRejectsForeignScheme(t *testing.T) {
	r := NewLocalReader()
	ref := event.RemoteReference(event.ProtocolSFTP, "host", 22, "/a.txt", "")

	_, err := r.OpenRead(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, fherrors.KindValidation, fherrors.KindOf(err))
}

func TestLocalReaderGetAttributes(t *testing.T) {
	path, ref := localFile(t, "12345")
	r := NewLocalReader()

	attrs, err := r.GetAttributes(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, int64(5), attrs.SizeBytes)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().UTC(), attrs.LastWriteUTC)
}

func TestLocalReaderRemove(t *testing.T) {
	path, ref := localFile(t, "x")
	r := NewLocalReader()

	require.NoError(t, r.Remove(context.Background(), ref))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing an already-deleted file is fine.
	assert.NoError(t, r.Remove(context.Background(), ref))
}

func TestRegistryResolvesByScheme(t *testing.T) {
	reg := NewRegistry(NewLocalReader())

	_, ref := localFile(t, "x")
	r, err := reg.For(ref)
	require.NoError(t, err)
	assert.Equal(t, "local", r.Scheme())

	_, err = reg.For(event.RemoteReference(event.ProtocolSFTP, "host", 22, "/a", ""))
	require.Error(t, err)
	assert.Equal(t, fherrors.KindValidation, fherrors.KindOf(err))
}

func TestLocalReaderImplementsRemover(t *testing.T) {
	var r Reader = NewLocalReader()
	_, ok := r.(Remover)
	assert.True(t, ok)
}
