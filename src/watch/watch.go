// Package watch provides filesystem watchers that tell us when a workspace's Credo
// configuration may have changed.
package watch

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/op/go-logging.v1"

	"github.com/thought-machine/credo_langserver/src/fs"
	"github.com/thought-machine/credo_langserver/src/workspace"
)

var log = logging.MustGetLogger("watch")

const debounceInterval = 50 * time.Millisecond

// WatchedFiles are the basenames of files whose creation or modification reloads a workspace.
var WatchedFiles = map[string]bool{
	"mix.lock":                true,
	".credo.exs":              true,
	workspace.ConfigFileName: true,
}

// skipDirs are directories we never descend into; they're big and nothing in them matters.
var skipDirs = map[string]bool{
	"deps":         true,
	"_build":       true,
	".git":         true,
	".elixir_ls":   true,
	"node_modules": true,
}

// IsWatchedFile returns true if a change to the given file should reload its workspace.
func IsWatchedFile(path string) bool {
	return WatchedFiles[filepath.Base(path)]
}

// A Watcher watches a single workspace, recursively.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	onChange func(root string)
	done     chan struct{}
}

// Watch starts watching the given workspace root. onChange is called (on the watcher's own
// goroutine) after any watched file is created or written, at most once per burst of events.
func Watch(root string, onChange func(root string)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		watcher:  watcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		watcher.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

// addRecursive adds watches on dir and every directory beneath it.
func (w *Watcher) addRecursive(dir string) error {
	return fs.WalkDirs(dir, skipDirs, func(dir string) error {
		log.Debug("Adding watch on %s", dir)
		if err := w.watcher.Add(dir); err != nil {
			log.Error("Failed to add watch on %s: %s", dir, err)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.handle(event) {
				continue
			}
			// Quick debounce; poll and discard all events for the next brief period.
		outer:
			for {
				select {
				case event, ok := <-w.watcher.Events:
					if !ok {
						return
					}
					w.handle(event)
				case <-time.After(debounceInterval):
					break outer
				}
			}
			log.Notice("Configuration changed in %s", w.root)
			w.onChange(w.root)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error("Error watching %s: %s", w.root, err)
		}
	}
}

// handle deals with a single event, returning true if it concerns a watched file.
func (w *Watcher) handle(event fsnotify.Event) bool {
	log.Debug("Event: %s", event)
	if event.Op&fsnotify.Create != 0 && fs.IsDirectory(event.Name) && !skipDirs[filepath.Base(event.Name)] {
		if err := w.addRecursive(event.Name); err != nil {
			log.Warning("Failed to watch new directory %s: %s", event.Name, err)
		}
	}
	return event.Op&(fsnotify.Create|fsnotify.Write) != 0 && IsWatchedFile(event.Name)
}

// Close stops watching and waits for the watcher's goroutine to finish.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

// A Set manages one Watcher per workspace.
type Set struct {
	watchers map[string]*Watcher
	onChange func(root string)
	mutex    sync.Mutex
}

// NewSet returns a new Set, whose watchers all call the given function.
func NewSet(onChange func(root string)) *Set {
	return &Set{
		watchers: map[string]*Watcher{},
		onChange: onChange,
	}
}

// Add starts watching a workspace. It's a no-op if it's already watched.
func (s *Set) Add(root string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, present := s.watchers[root]; present {
		return nil
	}
	w, err := Watch(root, s.onChange)
	if err != nil {
		return err
	}
	s.watchers[root] = w
	return nil
}

// Remove stops watching a workspace.
func (s *Set) Remove(root string) error {
	s.mutex.Lock()
	w, present := s.watchers[root]
	delete(s.watchers, root)
	s.mutex.Unlock()
	if !present {
		return nil
	}
	return w.Close()
}

// Roots returns the roots of all watched workspaces, sorted.
func (s *Set) Roots() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	roots := make([]string, 0, len(s.watchers))
	for root := range s.watchers {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

// Close stops all the watchers.
func (s *Set) Close() error {
	s.mutex.Lock()
	watchers := s.watchers
	s.watchers = map[string]*Watcher{}
	s.mutex.Unlock()
	var result error
	for _, w := range watchers {
		if err := w.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
