package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sourcegraph/go-lsp"
	"github.com/stretchr/testify/require"
)

type published struct {
	URI         lsp.DocumentURI
	Diagnostics []lsp.Diagnostic
}

// recorder is a Publisher that remembers everything it was asked to publish.
type recorder struct {
	Published []published
	mutex     sync.Mutex
}

func (r *recorder) Publish(uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Published = append(r.Published, published{URI: uri, Diagnostics: diagnostics})
}

// Current returns the last set published for a file, as the client would see it.
func (r *recorder) Current(uri lsp.DocumentURI) []lsp.Diagnostic {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var current []lsp.Diagnostic
	for _, p := range r.Published {
		if p.URI == uri {
			current = p.Diagnostics
		}
	}
	return current
}

// Files returns the files whose last published set is non-empty, sorted.
func (r *recorder) Files() []lsp.DocumentURI {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	current := map[lsp.DocumentURI][]lsp.Diagnostic{}
	for _, p := range r.Published {
		current[p.URI] = p.Diagnostics
	}
	files := []lsp.DocumentURI{}
	for _, uri := range sortedURIs(current) {
		if len(current[uri]) > 0 {
			files = append(files, uri)
		}
	}
	return files
}

func diag(message string) lsp.Diagnostic {
	return lsp.Diagnostic{Severity: lsp.Warning, Source: "Credo", Message: message}
}

// mixProject creates a workspace directory, optionally with Credo installed in it.
func mixProject(t *testing.T, withCredo bool) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mix.exs"), []byte("defmodule App.MixProject do\nend\n"), 0644))
	if withCredo {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "deps", "credo"), 0755))
	}
	return dir
}
