package lsp

import (
	"context"

	"github.com/sourcegraph/go-lsp"
)

// Publish implements the workspace.Publisher interface by sending diagnostics to the client.
func (h *Handler) Publish(uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) {
	if h.Conn == nil {
		log.Debug("Not publishing %d diagnostics for %s, no connection", len(diagnostics), uri)
		return
	}
	if err := h.Conn.Notify(context.Background(), "textDocument/publishDiagnostics", &lsp.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	}); err != nil {
		log.Error("Failed to publish diagnostics for %s: %s", uri, err)
	}
}
