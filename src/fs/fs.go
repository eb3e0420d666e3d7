// Package fs provides various filesystem helpers.
package fs

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDirectory checks if a given path is a directory, following symlinks.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsUnder returns true if path is root or lies somewhere beneath it.
// Both are expected to be clean absolute paths.
func IsUnder(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
