package event

import (
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
)

// Validate checks the structural invariants of a FileEvent. Queue backends
// call it before appending; the orchestrator relies on it having passed.
func Validate(e FileEvent) error {
	const op = "event.validate"

	if e.ID == "" {
		return fherrors.Validation(op, "event id is empty")
	}
	if e.Metadata.SourcePath == "" {
		return fherrors.Validation(op, "source path is empty")
	}
	if e.Metadata.SizeBytes < 0 {
		return fherrors.Validation(op, "size is negative: %d", e.Metadata.SizeBytes)
	}
	if e.Protocol == "" {
		return fherrors.Validation(op, "protocol is empty")
	}
	if !KnownProtocol(e.Protocol) {
		return fherrors.Validation(op, "unknown protocol %q", e.Protocol)
	}
	return nil
}
