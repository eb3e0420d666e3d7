// Package workspace implements the table of per-workspace lint configurations.
// Each workspace the client has open gets exactly one Config, which in turn owns exactly
// one diagnostic Collection.
package workspace

import (
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/exp/maps"
	"gopkg.in/op/go-logging.v1"

	"github.com/thought-machine/credo_langserver/src/credo"
	"github.com/thought-machine/credo_langserver/src/fs"
)

var log = logging.MustGetLogger("workspace")

// A Table holds the Config for each known workspace, keyed by its root.
type Table struct {
	configs       map[string]*Config
	publisher     Publisher
	hasDependency func(dir string) bool
	mutex         sync.Mutex
}

// NewTable returns a new, empty Table whose collections publish to the given publisher.
func NewTable(publisher Publisher) *Table {
	return &Table{
		configs:       map[string]*Config{},
		publisher:     publisher,
		hasDependency: credoInstalled,
	}
}

// credoInstalled returns true if Credo has been fetched into the Mix project at dir.
func credoInstalled(dir string) bool {
	return fs.IsDirectory(filepath.Join(dir, "deps", "credo"))
}

// Get returns the Config for a workspace root. If there isn't one it returns a fresh, empty one
// which is not added to the table (and so is disabled and publishes nothing).
func (t *Table) Get(root string) *Config {
	if c, present := t.Lookup(root); present {
		return c
	}
	return &Config{
		Root:       filepath.Clean(root),
		Collection: newCollection(credo.Source, nil),
	}
}

// Lookup returns the Config for a workspace root, if there is one.
func (t *Table) Lookup(root string) (*Config, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	c, present := t.configs[filepath.Clean(root)]
	return c, present
}

// ForPath returns the Config of the innermost workspace containing the given path.
func (t *Table) ForPath(path string) (*Config, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	var best *Config
	for root, c := range t.configs {
		if fs.IsUnder(path, root) && (best == nil || len(root) > len(best.Root)) {
			best = c
		}
	}
	return best, best != nil
}

// Roots returns the roots of all known workspaces, sorted.
func (t *Table) Roots() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	roots := maps.Keys(t.configs)
	sort.Strings(roots)
	return roots
}

// Load creates a new Config for a workspace from the given settings and installs it,
// replacing any existing one. The old one's collection is disposed before the new one exists,
// so the client never sees two sets of diagnostics for the same workspace.
// If linting is enabled but Credo isn't present in the project, the new Config is disabled.
func (t *Table) Load(root string, settings Settings) *Config {
	root = filepath.Clean(root)
	c := &Config{
		Root:     root,
		Settings: settings,
	}
	if c.Enable && !t.hasDependency(c.Dir()) {
		log.Warning("Credo not found in %s (has mix deps.get been run?), disabling linting for %s", filepath.Join(c.Dir(), "deps"), root)
		c.Enable = false
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if old, present := t.configs[root]; present {
		old.Collection.Dispose()
	}
	c.Collection = newCollection(credo.Source, t.publisher)
	t.configs[root] = c
	log.Info("Loaded configuration for %s: enabled: %v, command: %s, mix env: %s, dir: %s", root, c.Enable, c.Command, c.MixEnv, c.Dir())
	return c
}

// Remove disposes of a workspace's Config and removes it from the table.
// It returns false if there was no such workspace.
func (t *Table) Remove(root string) bool {
	root = filepath.Clean(root)
	t.mutex.Lock()
	defer t.mutex.Unlock()
	c, present := t.configs[root]
	if present {
		c.Collection.Dispose()
		delete(t.configs, root)
	}
	return present
}

// Close disposes of every Config in the table.
func (t *Table) Close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for root, c := range t.configs {
		c.Collection.Dispose()
		delete(t.configs, root)
	}
}
