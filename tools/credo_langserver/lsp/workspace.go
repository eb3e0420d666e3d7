package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"golang.org/x/sync/errgroup"

	"github.com/thought-machine/credo_langserver/src/cli"
	"github.com/thought-machine/credo_langserver/src/watch"
	"github.com/thought-machine/credo_langserver/src/workspace"
)

// configurationTimeout is how long we wait for the client to answer a workspace/configuration request.
const configurationTimeout = 10 * time.Second

// File change types from workspace/didChangeWatchedFiles.
const (
	fileCreated = 1
	fileChanged = 2
)

// Commands we support via workspace/executeCommand.
const (
	lintWorkspaceCommand       = "credo.lintWorkspace"
	reloadConfigurationCommand = "credo.reloadConfiguration"
)

func commandNames() []string {
	return []string{lintWorkspaceCommand, reloadConfigurationCommand}
}

// addFolder starts tracking a workspace folder, using whatever settings we currently have for it.
func (h *Handler) addFolder(root string) {
	h.load(root)
	if h.watchers != nil {
		if err := h.watchers.Add(root); err != nil {
			log.Warning("Failed to watch %s, configuration changes won't be picked up: %s", root, err)
		}
	}
}

// removeFolder stops tracking a workspace folder and clears its diagnostics.
func (h *Handler) removeFolder(root string) {
	if h.watchers != nil {
		if err := h.watchers.Remove(root); err != nil {
			log.Warning("Error stopping watcher for %s: %s", root, err)
		}
	}
	if !h.table.Remove(root) {
		log.Warning("Asked to remove unknown workspace %s", root)
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.folderSettings, root)
}

// load (re)creates the configuration for a workspace from the settings we already have.
func (h *Handler) load(root string) *workspace.Config {
	h.mutex.Lock()
	global, folder := h.settings, h.folderSettings[root]
	h.mutex.Unlock()
	settings, err := workspace.LoadSettings(root, global, folder)
	if err != nil {
		log.Error("%s", err)
	}
	return h.table.Load(root, settings)
}

// reload fetches the latest settings for a workspace, recreates its configuration and lints it.
func (h *Handler) reload(ctx context.Context, root string) error {
	var err error
	if h.clientSupportsConfiguration() {
		err = h.fetchConfiguration(ctx, root)
	}
	h.lintConfig(ctx, h.load(root))
	return err
}

// lintConfig lints a whole workspace and then each of its documents that are open, so the
// open ones get diagnostics located using their current content.
func (h *Handler) lintConfig(ctx context.Context, cfg *workspace.Config) {
	if !cfg.Usable() {
		return
	}
	if err := h.linter.LintWorkspace(ctx, cfg); err != nil {
		log.Error("Failed to lint %s: %s", cfg.Root, err)
	}
	for _, d := range h.openDocs() {
		path, err := workspace.FromURI(d.URI)
		if err != nil {
			continue
		}
		if c, present := h.table.ForPath(path); present && c == cfg {
			if err := h.linter.LintDocument(ctx, d.lintable()); err != nil {
				log.Warning("Failed to lint %s: %s", d.URI, err)
			}
		}
	}
}

// reloadAll reloads every known workspace. A failure in one doesn't stop the others.
func (h *Handler) reloadAll(ctx context.Context) error {
	var g errgroup.Group
	for _, root := range h.table.Roots() {
		root := root
		g.Go(func() error {
			return h.reload(ctx, root)
		})
	}
	return g.Wait()
}

// reloadInBackground reloads a workspace without blocking the caller.
func (h *Handler) reloadInBackground(root string) {
	h.background(func() {
		if err := h.reload(context.Background(), root); err != nil {
			log.Error("Failed to reload configuration for %s: %s", root, err)
		}
	})
}

// fetchConfiguration asks the client for the settings scoped to a workspace folder.
func (h *Handler) fetchConfiguration(ctx context.Context, root string) error {
	if h.Conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, configurationTimeout)
	defer cancel()
	result := []json.RawMessage{}
	if err := h.Conn.Call(ctx, "workspace/configuration", &configurationParams{
		Items: []configurationItem{{ScopeURI: workspace.ToURI(root), Section: workspace.Section}},
	}, &result); err != nil {
		return fmt.Errorf("failed to fetch configuration for %s: %w", root, err)
	} else if len(result) == 0 {
		return nil
	}
	settings, err := workspace.ParseClientSettings(result[0])
	if err != nil {
		return err
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.folderSettings[root] = settings
	return nil
}

func (h *Handler) didChangeConfiguration(params *didChangeConfigurationParams) error {
	// Clients that support pull configuration often send nothing here, expecting us to ask.
	if len(params.Settings) > 0 && string(params.Settings) != "null" {
		settings, err := workspace.ParseClientSettings(params.Settings)
		if err != nil {
			return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
		h.mutex.Lock()
		h.settings = settings
		h.mutex.Unlock()
	}
	h.background(func() {
		if err := h.reloadAll(context.Background()); err != nil {
			log.Error("Failed to reload configuration: %s", err)
		}
	})
	return nil
}

func (h *Handler) didChangeWorkspaceFolders(params *didChangeWorkspaceFoldersParams) error {
	for _, folder := range params.Event.Removed {
		if root, err := workspace.FromURI(folder.URI); err != nil {
			log.Warning("Ignoring removed folder: %s", err)
		} else {
			h.removeFolder(root)
		}
	}
	for _, folder := range params.Event.Added {
		root, err := workspace.FromURI(folder.URI)
		if err != nil {
			log.Warning("Ignoring added folder: %s", err)
			continue
		}
		h.addFolder(root)
		h.reloadInBackground(root)
	}
	return nil
}

func (h *Handler) didChangeWatchedFiles(params *didChangeWatchedFilesParams) error {
	roots := map[string]bool{}
	for _, change := range params.Changes {
		if change.Type != fileCreated && change.Type != fileChanged {
			continue
		}
		path, err := workspace.FromURI(change.URI)
		if err != nil || !watch.IsWatchedFile(path) {
			continue
		}
		if cfg, present := h.table.ForPath(path); present && !roots[cfg.Root] {
			roots[cfg.Root] = true
			h.reloadInBackground(cfg.Root)
		}
	}
	return nil
}

func (h *Handler) executeCommand(params *executeCommandParams) (interface{}, error) {
	switch params.Command {
	case lintWorkspaceCommand:
		roots, err := h.commandRoots(params.Arguments)
		if err != nil {
			return nil, err
		}
		for _, root := range roots {
			cfg, present := h.table.Lookup(root)
			if !present {
				continue
			}
			h.background(func() {
				if err := h.linter.LintWorkspace(context.Background(), cfg); err != nil {
					log.Error("Failed to lint %s: %s", cfg.Root, err)
				}
			})
		}
		return nil, nil
	case reloadConfigurationCommand:
		h.background(func() {
			if err := h.reloadAll(context.Background()); err != nil {
				log.Error("Failed to reload configuration: %s", err)
			}
		})
		return nil, nil
	}
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeInvalidParams,
		Message: "Unknown command " + params.Command + cli.PrettyPrintSuggestion(params.Command, commandNames(), 8),
	}
}

// commandRoots returns the workspace roots a command applies to: the one containing the URI
// given as its first argument, or all of them if there isn't one.
func (h *Handler) commandRoots(args []json.RawMessage) ([]string, error) {
	if len(args) == 0 {
		return h.table.Roots(), nil
	}
	var uri string
	if err := json.Unmarshal(args[0], &uri); err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "expected a workspace URI argument"}
	}
	path, err := workspace.FromURI(lsp.DocumentURI(uri))
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	cfg, present := h.table.ForPath(path)
	if !present {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "no workspace contains " + uri}
	}
	return []string{cfg.Root}, nil
}
