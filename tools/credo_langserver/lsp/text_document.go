package lsp

import (
	"context"
	"strings"
	"sync"

	"github.com/sourcegraph/go-lsp"

	"github.com/thought-machine/credo_langserver/src/lint"
	"github.com/thought-machine/credo_langserver/src/workspace"
)

// A doc is a representation of a document that's opened by the editor.
type doc struct {
	URI        lsp.DocumentURI
	LanguageID string
	// The raw content of the document.
	Content []string
	Mutex   sync.Mutex
}

func (d *doc) Lines() []string {
	d.Mutex.Lock()
	defer d.Mutex.Unlock()
	return d.Content
}

func (d *doc) SetText(text string) {
	d.Mutex.Lock()
	defer d.Mutex.Unlock()
	d.Content = strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func (d *doc) lintable() lint.Document {
	return lint.Document{URI: d.URI, LanguageID: d.LanguageID}
}

// normalise returns the canonical form of a document URI, which is what we key documents and
// diagnostics by. Clients differ in how they escape file URIs.
func normalise(uri lsp.DocumentURI) lsp.DocumentURI {
	if path, err := workspace.FromURI(uri); err == nil {
		return workspace.ToURI(path)
	}
	return uri
}

func (h *Handler) didOpen(params *lsp.DidOpenTextDocumentParams) error {
	d := &doc{
		URI:        normalise(params.TextDocument.URI),
		LanguageID: params.TextDocument.LanguageID,
	}
	d.SetText(params.TextDocument.Text)
	h.mutex.Lock()
	h.docs[d.URI] = d
	h.mutex.Unlock()
	h.lintInBackground(d.lintable())
	return nil
}

func (h *Handler) didChange(params *lsp.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	d := h.doc(params.TextDocument.URI)
	if d == nil {
		log.Warning("Change to unopened document %s", params.TextDocument.URI)
		return nil
	}
	// We only support full sync, so the last change has the full content.
	d.SetText(params.ContentChanges[len(params.ContentChanges)-1].Text)
	return nil
}

func (h *Handler) didSave(params *lsp.DidSaveTextDocumentParams) error {
	uri := normalise(params.TextDocument.URI)
	if d := h.doc(uri); d != nil {
		h.lintInBackground(d.lintable())
	} else {
		h.lintInBackground(lint.Document{URI: uri})
	}
	return nil
}

func (h *Handler) didClose(params *lsp.DidCloseTextDocumentParams) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.docs, normalise(params.TextDocument.URI))
	return nil
}

// doc returns the open document with the given URI, or nil if it isn't open.
func (h *Handler) doc(uri lsp.DocumentURI) *doc {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.docs[normalise(uri)]
}

// openDocs returns all the currently open documents.
func (h *Handler) openDocs() []*doc {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	docs := make([]*doc, 0, len(h.docs))
	for _, d := range h.docs {
		docs = append(docs, d)
	}
	return docs
}

// Lines implements the lint.Documents interface.
func (h *Handler) Lines(uri lsp.DocumentURI) ([]string, bool) {
	if d := h.doc(uri); d != nil {
		return d.Lines(), true
	}
	return nil, false
}

// lintInBackground lints a single document without blocking the caller.
func (h *Handler) lintInBackground(d lint.Document) {
	h.background(func() {
		if err := h.linter.LintDocument(context.Background(), d); err != nil {
			log.Warning("Failed to lint %s: %s", d.URI, err)
		}
	})
}
