package workspace

import (
	"sort"
	"sync"

	"github.com/sourcegraph/go-lsp"
)

// A Publisher sends the complete set of diagnostics for one file to the client.
type Publisher interface {
	Publish(uri lsp.DocumentURI, diagnostics []lsp.Diagnostic)
}

// A Collection is a named set of diagnostics, keyed by file, belonging to one workspace.
// Every write replaces the full set for a file and is published immediately.
// Once disposed it discards any further writes.
type Collection struct {
	Name        string
	publisher   Publisher
	diagnostics map[lsp.DocumentURI][]lsp.Diagnostic
	disposed    bool
	mutex       sync.Mutex
}

func newCollection(name string, publisher Publisher) *Collection {
	return &Collection{
		Name:        name,
		publisher:   publisher,
		diagnostics: map[lsp.DocumentURI][]lsp.Diagnostic{},
	}
}

// Set replaces the diagnostics for a single file.
func (c *Collection) Set(uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.set(uri, diagnostics)
}

// Replace replaces the diagnostics for each of the given files. Files not mentioned are untouched.
func (c *Collection) Replace(sets map[lsp.DocumentURI][]lsp.Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, uri := range sortedURIs(sets) {
		c.set(uri, sets[uri])
	}
}

// ReplaceAll replaces the entire contents of the collection; any file not mentioned is cleared.
func (c *Collection) ReplaceAll(sets map[lsp.DocumentURI][]lsp.Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for uri := range c.diagnostics {
		if _, present := sets[uri]; !present {
			c.set(uri, nil)
		}
	}
	for _, uri := range sortedURIs(sets) {
		c.set(uri, sets[uri])
	}
}

func (c *Collection) set(uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) {
	if c.disposed {
		log.Debug("Discarding %d diagnostics for %s, collection has been disposed", len(diagnostics), uri)
		return
	}
	if len(diagnostics) == 0 {
		diagnostics = []lsp.Diagnostic{} // Must be published as [], not null.
		delete(c.diagnostics, uri)
	} else {
		c.diagnostics[uri] = diagnostics
	}
	if c.publisher != nil {
		c.publisher.Publish(uri, diagnostics)
	}
}

func (c *Collection) clear() {
	for _, uri := range sortedURIs(c.diagnostics) {
		c.set(uri, nil)
	}
}

// Dispose clears the collection and stops it accepting any more diagnostics.
func (c *Collection) Dispose() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.clear()
	c.disposed = true
}

// Disposed returns true if Dispose has been called.
func (c *Collection) Disposed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.disposed
}

func sortedURIs(m map[lsp.DocumentURI][]lsp.Diagnostic) []lsp.DocumentURI {
	uris := make([]lsp.DocumentURI, 0, len(m))
	for uri := range m {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })
	return uris
}
