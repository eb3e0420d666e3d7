package lsp

import (
	"encoding/json"

	"github.com/sourcegraph/go-lsp"
)

// The go-lsp package predates workspace folders and pull configuration, so the few parts of the
// protocol we need from later versions are declared here.

type workspaceFolder struct {
	URI  lsp.DocumentURI `json:"uri"`
	Name string          `json:"name"`
}

type clientCapabilities struct {
	lsp.ClientCapabilities
	Workspace struct {
		Configuration    bool `json:"configuration,omitempty"`
		WorkspaceFolders bool `json:"workspaceFolders,omitempty"`
	} `json:"workspace,omitempty"`
}

type initializeParams struct {
	lsp.InitializeParams
	Capabilities          clientCapabilities `json:"capabilities"`
	InitializationOptions json.RawMessage    `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []workspaceFolder  `json:"workspaceFolders,omitempty"`
}

type workspaceFoldersServerCapabilities struct {
	Supported           bool `json:"supported"`
	ChangeNotifications bool `json:"changeNotifications"`
}

type serverCapabilities struct {
	lsp.ServerCapabilities
	Workspace struct {
		WorkspaceFolders workspaceFoldersServerCapabilities `json:"workspaceFolders"`
	} `json:"workspace"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
}

type didChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings,omitempty"`
}

type workspaceFoldersChangeEvent struct {
	Added   []workspaceFolder `json:"added"`
	Removed []workspaceFolder `json:"removed"`
}

type didChangeWorkspaceFoldersParams struct {
	Event workspaceFoldersChangeEvent `json:"event"`
}

type fileEvent struct {
	URI  lsp.DocumentURI `json:"uri"`
	Type int             `json:"type"`
}

type didChangeWatchedFilesParams struct {
	Changes []fileEvent `json:"changes"`
}

type configurationItem struct {
	ScopeURI lsp.DocumentURI `json:"scopeUri,omitempty"`
	Section  string          `json:"section,omitempty"`
}

type configurationParams struct {
	Items []configurationItem `json:"items"`
}

type executeCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}
