package event

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileReference is the addressing tuple used by readers and sinks. It
// decouples the I/O capabilities from the event envelope.
type FileReference struct {
	// Scheme is the lowercase protocol ("local", "ftp", "sftp").
	Scheme string

	// Host is the remote host, empty for local files.
	Host string

	// Port is the remote port, zero for local files.
	Port int

	// Path is the file path on the source.
	Path string

	// SourceName optionally names the configured source the reference
	// originated from.
	SourceName string
}

// LocalHostPlaceholder is the host segment of local identity keys.
const LocalHostPlaceholder = "_"

// IdentityKey returns the canonical string uniquely naming a file source:
//
//	{protocol}://{host}:{port}{normalizedPath}
//
// Local files use "local://_:" followed by the absolute path with forward
// slashes. Re-observations of the same file across poll cycles collapse to
// the same key.
func IdentityKey(scheme, host string, port int, path string) string {
	scheme = strings.ToLower(scheme)
	normalized := NormalizePath(path)

	if scheme == string(ProtocolLocal) || host == "" {
		return fmt.Sprintf("%s://%s:%s", scheme, LocalHostPlaceholder, normalized)
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, strings.ToLower(host), port, normalized)
}

// IdentityKey returns the canonical identity key for this reference.
func (r FileReference) IdentityKey() string {
	return IdentityKey(r.Scheme, r.Host, r.Port, r.Path)
}

// NormalizePath converts p to forward slashes and ensures a leading slash.
// Relative local paths are made absolute before normalization so the same
// file always yields the same key.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// LocalReference builds a reference for a local file, resolving the path to
// its absolute form.
func LocalReference(path, sourceName string) FileReference {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return FileReference{
		Scheme:     string(ProtocolLocal),
		Path:       filepath.ToSlash(path),
		SourceName: sourceName,
	}
}

// RemoteReference builds a reference for a remote file.
func RemoteReference(scheme Protocol, host string, port int, path, sourceName string) FileReference {
	return FileReference{
		Scheme:     strings.ToLower(string(scheme)),
		Host:       host,
		Port:       port,
		Path:       path,
		SourceName: sourceName,
	}
}

// ParseReference reconstructs a FileReference from an identity key. It is
// the inverse of IdentityKey for well-formed keys and is used when the
// orchestrator needs to address the source named by a queued event.
func ParseReference(key string) (FileReference, error) {
	schemeEnd := strings.Index(key, "://")
	if schemeEnd < 0 {
		return FileReference{}, fmt.Errorf("identity key %q: missing scheme", key)
	}
	scheme := strings.ToLower(key[:schemeEnd])
	rest := key[schemeEnd+3:]

	hostEnd := strings.Index(rest, ":")
	if hostEnd < 0 {
		return FileReference{}, fmt.Errorf("identity key %q: missing host separator", key)
	}
	host := rest[:hostEnd]
	rest = rest[hostEnd+1:]

	if host == LocalHostPlaceholder {
		return FileReference{Scheme: scheme, Path: rest}, nil
	}

	// Remote keys carry "{port}{/path}".
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return FileReference{}, fmt.Errorf("identity key %q: missing path", key)
	}
	var port int
	if _, err := fmt.Sscanf(rest[:slash], "%d", &port); err != nil {
		return FileReference{}, fmt.Errorf("identity key %q: bad port: %w", key, err)
	}
	return FileReference{Scheme: scheme, Host: host, Port: port, Path: rest[slash:]}, nil
}
