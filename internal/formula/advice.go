// Package formula provides glob matching against step-style dotted names,
// reused by the template renderer (spec §4.5) to filter a component tag's
// issue list by a label="..." pattern.
package formula

import (
	"path/filepath"
	"strings"
)

// MatchGlob reports whether name matches pattern. Beyond filepath.Match's
// own glob syntax it also supports the dotted step-name shorthand from the
// original formula engine this was distilled from:
//   - "*" matches everything
//   - "*.suffix" matches any name ending in ".suffix"
//   - "prefix.*" matches any name starting with "prefix."
//   - anything else falls through to filepath.Match, then exact match
func MatchGlob(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(name, pattern[1:])
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	if matched, err := filepath.Match(pattern, name); err == nil && matched {
		return true
	}
	return pattern == name
}
