package workspace

import (
	"testing"

	"github.com/sourcegraph/go-lsp"
	"github.com/stretchr/testify/assert"
)

func TestCollectionSetReplacesInFull(t *testing.T) {
	r := &recorder{}
	c := newCollection("Credo", r)
	c.Set("file:///app/lib/foo.ex", []lsp.Diagnostic{diag("a"), diag("b")})
	c.Set("file:///app/lib/foo.ex", []lsp.Diagnostic{diag("c")})
	assert.Equal(t, []lsp.Diagnostic{diag("c")}, r.Current("file:///app/lib/foo.ex"))
	assert.Equal(t, 2, len(r.Published))
	assert.Equal(t, []lsp.Diagnostic{diag("c")}, r.Published[1].Diagnostics)
}

func TestCollectionSetEmpty(t *testing.T) {
	r := &recorder{}
	c := newCollection("Credo", r)
	c.Set("file:///app/lib/foo.ex", []lsp.Diagnostic{diag("a")})
	c.Set("file:///app/lib/foo.ex", nil)
	assert.Equal(t, 0, len(r.Files()))
	assert.NotNil(t, r.Published[1].Diagnostics)
	assert.Equal(t, 0, len(r.Published[1].Diagnostics))
}

func TestCollectionReplace(t *testing.T) {
	r := &recorder{}
	c := newCollection("Credo", r)
	c.Set("file:///app/lib/a.ex", []lsp.Diagnostic{diag("a")})
	c.Replace(map[lsp.DocumentURI][]lsp.Diagnostic{
		"file:///app/lib/b.ex": {diag("b")},
	})
	assert.Equal(t, []lsp.DocumentURI{"file:///app/lib/a.ex", "file:///app/lib/b.ex"}, r.Files())
}

func TestCollectionReplaceAll(t *testing.T) {
	r := &recorder{}
	c := newCollection("Credo", r)
	c.Set("file:///app/lib/a.ex", []lsp.Diagnostic{diag("a")})
	r.Published = nil
	c.ReplaceAll(map[lsp.DocumentURI][]lsp.Diagnostic{
		"file:///app/lib/b.ex": {diag("b")},
	})
	assert.Equal(t, []lsp.DocumentURI{"file:///app/lib/b.ex"}, r.Files())
	assert.Equal(t, []published{
		{URI: "file:///app/lib/a.ex", Diagnostics: []lsp.Diagnostic{}},
		{URI: "file:///app/lib/b.ex", Diagnostics: []lsp.Diagnostic{diag("b")}},
	}, r.Published)
}

func TestCollectionDispose(t *testing.T) {
	r := &recorder{}
	c := newCollection("Credo", r)
	c.Set("file:///app/lib/a.ex", []lsp.Diagnostic{diag("a")})
	c.Dispose()
	assert.True(t, c.Disposed())
	assert.Equal(t, 0, len(r.Files()))
	assert.Equal(t, published{URI: "file:///app/lib/a.ex", Diagnostics: []lsp.Diagnostic{}}, r.Published[1])
	// Writes after disposal go nowhere.
	c.Set("file:///app/lib/a.ex", []lsp.Diagnostic{diag("late")})
	assert.Equal(t, 2, len(r.Published))
	assert.Equal(t, []lsp.Diagnostic{}, r.Current("file:///app/lib/a.ex"))
}
