// Package event defines the immutable data model flowing through the
// pipeline: discovered files, their addressing, and routed destination plans.
package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Protocol identifies the transport a file was discovered on.
type Protocol string

const (
	ProtocolLocal     Protocol = "local"
	ProtocolFTP       Protocol = "ftp"
	ProtocolSFTP      Protocol = "sftp"
	ProtocolSynthetic Protocol = "synthetic"
)

// KnownProtocol reports whether p is one of the protocols the pipeline
// understands. Comparison is case-insensitive; events carry the lowercase tag.
func KnownProtocol(p Protocol) bool {
	switch Protocol(strings.ToLower(string(p))) {
	case ProtocolLocal, ProtocolFTP, ProtocolSFTP, ProtocolSynthetic:
		return true
	default:
		return false
	}
}

// FileMetadata describes an observed file. Size and modification time are
// authoritative for equality: two observations with the same SourcePath,
// SizeBytes and LastModifiedUTC describe the same file content.
type FileMetadata struct {
	// SourcePath is the normalized identity string of the file.
	SourcePath string

	// SizeBytes is the observed size. Never negative for a valid event.
	SizeBytes int64

	// LastModifiedUTC is the observed modification time in UTC.
	LastModifiedUTC time.Time

	// HashAlgorithm names the checksum algorithm ("none" when absent).
	HashAlgorithm string

	// Checksum is the optional hex or base64 digest.
	Checksum string
}

// FileEvent is the envelope describing a discovered, ready-to-transfer file.
// It is created by a poller, carried through the queue, and consumed exactly
// once by the orchestrator.
type FileEvent struct {
	// ID uniquely identifies this discovery (UUID).
	ID string

	// Metadata holds the observed file attributes.
	Metadata FileMetadata

	// DiscoveredAtUTC is when the poller emitted the event.
	DiscoveredAtUTC time.Time

	// Protocol is the lowercase source protocol tag.
	Protocol Protocol

	// DestinationPath is a routing hint. May be empty; the router resolves
	// the final target.
	DestinationPath string

	// DeleteAfterTransfer requests best-effort source deletion after a
	// successful sink write.
	DeleteAfterTransfer bool
}

// New creates a FileEvent with a fresh id and the discovery timestamp set to
// now (UTC).
func New(meta FileMetadata, protocol Protocol, deleteAfterTransfer bool) FileEvent {
	return FileEvent{
		ID:                  uuid.NewString(),
		Metadata:            meta,
		DiscoveredAtUTC:     time.Now().UTC(),
		Protocol:            Protocol(strings.ToLower(string(protocol))),
		DeleteAfterTransfer: deleteAfterTransfer,
	}
}

// IdempotencyKey returns the processing gate key for this event.
func (e FileEvent) IdempotencyKey() string {
	return "file:" + e.ID
}

// FileName returns the base name of the source path, independent of the
// separator convention the source used.
func (e FileEvent) FileName() string {
	return BaseName(e.Metadata.SourcePath)
}

// BaseName returns the final path element of p under either separator.
func BaseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
