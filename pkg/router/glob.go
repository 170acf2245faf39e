package router

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matchGlob tests a glob against a normalized path. `**` crosses directory
// separators, `*` does not, `?` matches one character; matching is
// case-insensitive. Invalid patterns match nothing.
func matchGlob(pattern, normPath string) bool {
	ok, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(normPath))
	return err == nil && ok
}
