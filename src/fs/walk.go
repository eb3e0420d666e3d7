package fs

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// SkipDir can be returned from a Walk callback to avoid descending into a directory.
var SkipDir = godirwalk.SkipThis

// Walk implements an equivalent to filepath.Walk.
// It's implemented over github.com/karrick/godirwalk but the provided interface doesn't use that
// to make it a little easier to handle.
// Symlinks are not followed.
func Walk(rootPath string, callback func(name string, isDir bool) error) error {
	// Compatibility with filepath.Walk which allows passing a file as the root argument.
	if info, err := os.Lstat(rootPath); err != nil {
		return err
	} else if !info.IsDir() {
		return callback(rootPath, false)
	}
	return godirwalk.Walk(rootPath, &godirwalk.Options{
		Callback: func(name string, info *godirwalk.Dirent) error {
			return callback(name, info.IsDir())
		},
		Unsorted: true,
	})
}

// WalkDirs is like Walk but only calls back for directories, and never descends into any
// directory whose base name is in skip.
func WalkDirs(rootPath string, skip map[string]bool, callback func(dir string) error) error {
	return Walk(rootPath, func(name string, isDir bool) error {
		if !isDir {
			return nil
		} else if name != rootPath && skip[filepath.Base(name)] {
			return SkipDir
		}
		return callback(name)
	})
}
