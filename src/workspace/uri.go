package workspace

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/sourcegraph/go-lsp"
)

// FromURI converts a file:// DocumentURI to an absolute path.
// Anything else (e.g. an untitled: buffer) is an error.
func FromURI(uri lsp.DocumentURI) (string, error) {
	u, err := url.Parse(string(uri))
	if err != nil {
		return "", fmt.Errorf("invalid uri %s: %w", uri, err)
	} else if u.Scheme != "file" {
		return "", fmt.Errorf("not a file uri: %s", uri)
	} else if u.Path == "" {
		return "", fmt.Errorf("uri has no path: %s", uri)
	}
	return filepath.Clean(u.Path), nil
}

// ToURI converts an absolute path to a file:// DocumentURI.
func ToURI(path string) lsp.DocumentURI {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return lsp.DocumentURI(u.String())
}
