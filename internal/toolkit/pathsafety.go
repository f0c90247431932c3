package toolkit

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ReservedDir is the directory every path-resolving tool must refuse to
// touch, matching the persistence layer's default working-directory-relative
// store location.
const ReservedDir = ".babylon"

// ErrPathEscape is returned (wrapped in a ToolResult, not as a Go error) when
// a resolved path would leave the working directory root or enter the
// reserved directory.
var ErrPathEscape = fmt.Errorf("path escapes the working directory or targets the reserved directory")

// ResolvePath computes path relative to root and rejects any resolution
// that escapes root (a leading ".." component) or that equals/descends into
// ReservedDir.
func ResolvePath(root, path string) (string, error) {
	if path == "" {
		path = "."
	}
	cleaned := filepath.Clean(path)
	var abs string
	if filepath.IsAbs(cleaned) {
		abs = cleaned
	} else {
		abs = filepath.Join(root, cleaned)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", ErrPathEscape
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", ErrPathEscape
	}
	if rel == ReservedDir || strings.HasPrefix(rel, ReservedDir+"/") {
		return "", ErrPathEscape
	}
	return abs, nil
}
