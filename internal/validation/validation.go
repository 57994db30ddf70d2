// Package validation guards paths built from engine-supplied names.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for names or paths that could escape their
// base directory.
var ErrUnsafePath = errors.New("unsafe path")

// ValidateComponent checks that name is a single path element: non-empty,
// no separators of either style, no NUL byte and not "." or "..".
// Names like "a..b" are allowed.
func ValidateComponent(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrUnsafePath)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a null byte", ErrUnsafePath, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafePath, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return nil
}

// ValidatePathInDirectory checks that path, resolved against baseDir when
// relative, stays inside baseDir.
func ValidatePathInDirectory(path, baseDir string) error {
	if path == "" || baseDir == "" {
		return fmt.Errorf("%w: empty path or base directory", ErrUnsafePath)
	}
	base, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}
	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s escapes %s", ErrUnsafePath, path, baseDir)
	}
	return nil
}
