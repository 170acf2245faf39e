// Package reader opens source files for the orchestrator. Each reader serves
// one scheme; a Registry picks the reader for a FileReference. Remote readers
// return streams that own their protocol client, so closing the stream closes
// the connection too.
package reader

import (
	"context"
	"io"
	"time"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// Attributes are the source-side file attributes.
type Attributes struct {
	SizeBytes    int64
	LastWriteUTC time.Time
	Checksum     string
}

// Reader opens attribute and content streams for one scheme.
type Reader interface {
	Scheme() string
	OpenRead(ctx context.Context, ref event.FileReference) (io.ReadCloser, error)
	GetAttributes(ctx context.Context, ref event.FileReference) (Attributes, error)
}

// Remover deletes a source file after a successful transfer. Readers that
// support deletion implement it.
type Remover interface {
	Remove(ctx context.Context, ref event.FileReference) error
}

// Registry resolves the reader for a reference's scheme.
type Registry struct {
	readers map[string]Reader
}

// NewRegistry indexes the given readers by scheme.
func NewRegistry(readers ...Reader) *Registry {
	reg := &Registry{readers: make(map[string]Reader, len(readers))}
	for _, r := range readers {
		reg.readers[r.Scheme()] = r
	}
	return reg
}

// For returns the reader for the reference's scheme.
func (reg *Registry) For(ref event.FileReference) (Reader, error) {
	r, ok := reg.readers[ref.Scheme]
	if !ok {
		return nil, fherrors.Newf(fherrors.KindValidation, fherrors.CodeValidation,
			"reader.Registry.For", "no reader for scheme %q", ref.Scheme)
	}
	return r, nil
}
