package poller

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matchPattern tests a glob pattern against a path relative to the source
// root. Matching is case-insensitive. Patterns without a separator match the
// base name only; patterns with separators match the whole relative path.
// An empty pattern matches everything; an invalid pattern matches nothing.
func matchPattern(pattern, relPath string) bool {
	if pattern == "" {
		return true
	}

	pattern = strings.ToLower(strings.ReplaceAll(pattern, "\\", "/"))
	relPath = strings.ToLower(strings.ReplaceAll(relPath, "\\", "/"))

	candidate := relPath
	if !strings.Contains(pattern, "/") {
		candidate = path.Base(relPath)
	}

	ok, err := doublestar.Match(pattern, candidate)
	return err == nil && ok
}
