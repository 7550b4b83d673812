// Package library confirms that acquired files have landed in the user's
// media library and removes files replaced by upgrades.
package library

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutsideLibrary is returned when asked to touch a path that is not
// under any configured library root.
var ErrOutsideLibrary = errors.New("path outside library")

// Confirmation is the answer of a library lookup.
type Confirmation struct {
	Collected bool
	// Location is where the file lives in the library.
	Location string
	// OriginalPath is the symlink target when Location is a link, else Location.
	OriginalPath string
}

func fileKey(p string) string {
	return strings.ToLower(filepath.Base(p))
}

// resolve returns the symlink target of p, or p itself.
func resolve(p string) string {
	if target, err := filepath.EvalSymlinks(p); err == nil {
		return target
	}
	return p
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
