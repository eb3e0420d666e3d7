// Package lsp implements the Language Server Protocol for linting Elixir with Credo.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"gopkg.in/op/go-logging.v1"

	"github.com/thought-machine/credo_langserver/src/lint"
	"github.com/thought-machine/credo_langserver/src/watch"
	"github.com/thought-machine/credo_langserver/src/workspace"
)

var log = logging.MustGetLogger("lsp")

// A Handler is a handler suitable for use with jsonrpc2.
type Handler struct {
	Conn   Conn
	docs   map[lsp.DocumentURI]*doc
	mutex  sync.Mutex // guards docs, settings and folderSettings
	table  *workspace.Table
	linter *lint.Linter
	// watchers may be nil, in which case we rely on the client to tell us about file changes.
	watchers *watch.Set
	// settings are the client's global settings; folderSettings are per workspace folder.
	settings              *workspace.ClientSettings
	folderSettings        map[string]*workspace.ClientSettings
	supportsConfiguration bool
	connOnce              sync.Once
	wg                    sync.WaitGroup
}

// A Conn is a minimal set of the jsonrpc2.Conn that we need.
type Conn interface {
	io.Closer
	// Notify sends an asynchronous notification.
	Notify(ctx context.Context, method string, params interface{}, opts ...jsonrpc2.CallOption) error
	// Call sends a request to the client and waits for its response.
	Call(ctx context.Context, method string, params, result interface{}, opts ...jsonrpc2.CallOption) error
}

// NewHandler returns a new Handler which runs Credo with the given runner.
// If watchFiles is true it watches each workspace for configuration changes itself.
func NewHandler(runner lint.Runner, timeout time.Duration, watchFiles bool) *Handler {
	h := &Handler{
		docs:           map[lsp.DocumentURI]*doc{},
		folderSettings: map[string]*workspace.ClientSettings{},
	}
	h.table = workspace.NewTable(h)
	h.linter = lint.New(h.table, runner, h, timeout)
	if watchFiles {
		h.watchers = watch.NewSet(h.reloadInBackground)
	}
	return h
}

// Handle implements the jsonrpc2.Handler interface
func (h *Handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	h.connOnce.Do(func() {
		if h.Conn == nil {
			h.Conn = conn
		}
	})
	resp, err := h.handle(req.Method, req.Params)
	if req.Notif {
		if err != nil {
			log.Error("Error handling %s: %s", req.Method, err)
		}
		return
	}
	if err != nil {
		if err := conn.ReplyWithError(ctx, req.ID, toRPCError(err)); err != nil {
			log.Error("Failed to send error response: %s", err)
		}
	} else if err := conn.Reply(ctx, req.ID, resp); err != nil {
		log.Error("Failed to send response: %s", err)
	}
}

func toRPCError(err error) *jsonrpc2.Error {
	if e, ok := err.(*jsonrpc2.Error); ok {
		return e
	}
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
}

// handle is the slightly higher-level handler that deals with individual methods.
func (h *Handler) handle(method string, params *json.RawMessage) (res interface{}, err error) {
	start := time.Now()
	log.Debug("Received %s message", method)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in handler for %s: %s", method, r)
			log.Debug("%s\n%v", r, string(debug.Stack()))
			err = &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInternalError,
				Message: fmt.Sprintf("%s", r),
			}
		} else {
			log.Debug("Handled %s message in %s", method, time.Since(start))
		}
	}()

	switch method {
	case "initialize":
		initializeParams := &initializeParams{}
		if err := unmarshal(params, initializeParams); err != nil {
			return nil, err
		}
		return h.initialize(initializeParams)
	case "initialized":
		h.initialized()
		return nil, nil
	case "shutdown":
		h.shutdown()
		return nil, nil
	case "exit":
		// exit is a request to terminate the process. We do this preferably by shutting
		// down the RPC connection but if we can't we just die.
		h.shutdown()
		if h.Conn != nil {
			if err := h.Conn.Close(); err != nil {
				log.Fatalf("Failed to close connection: %s", err)
			}
		} else {
			log.Fatalf("No active connection to shut down")
		}
		return nil, nil
	case "textDocument/didOpen":
		didOpenParams := &lsp.DidOpenTextDocumentParams{}
		if err := unmarshal(params, didOpenParams); err != nil {
			return nil, err
		}
		return nil, h.didOpen(didOpenParams)
	case "textDocument/didChange":
		didChangeParams := &lsp.DidChangeTextDocumentParams{}
		if err := unmarshal(params, didChangeParams); err != nil {
			return nil, err
		}
		return nil, h.didChange(didChangeParams)
	case "textDocument/didSave":
		didSaveParams := &lsp.DidSaveTextDocumentParams{}
		if err := unmarshal(params, didSaveParams); err != nil {
			return nil, err
		}
		return nil, h.didSave(didSaveParams)
	case "textDocument/didClose":
		didCloseParams := &lsp.DidCloseTextDocumentParams{}
		if err := unmarshal(params, didCloseParams); err != nil {
			return nil, err
		}
		return nil, h.didClose(didCloseParams)
	case "workspace/didChangeConfiguration":
		configParams := &didChangeConfigurationParams{}
		if err := unmarshal(params, configParams); err != nil {
			return nil, err
		}
		return nil, h.didChangeConfiguration(configParams)
	case "workspace/didChangeWorkspaceFolders":
		foldersParams := &didChangeWorkspaceFoldersParams{}
		if err := unmarshal(params, foldersParams); err != nil {
			return nil, err
		}
		return nil, h.didChangeWorkspaceFolders(foldersParams)
	case "workspace/didChangeWatchedFiles":
		filesParams := &didChangeWatchedFilesParams{}
		if err := unmarshal(params, filesParams); err != nil {
			return nil, err
		}
		return nil, h.didChangeWatchedFiles(filesParams)
	case "workspace/executeCommand":
		commandParams := &executeCommandParams{}
		if err := unmarshal(params, commandParams); err != nil {
			return nil, err
		}
		return h.executeCommand(commandParams)
	case "$/cancelRequest", "$/setTrace":
		return nil, nil
	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + method}
	}
}

// unmarshal decodes the params of a request.
func unmarshal(params *json.RawMessage, v interface{}) error {
	if params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	} else if err := json.Unmarshal(*params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (h *Handler) initialize(params *initializeParams) (*initializeResult, error) {
	settings, err := workspace.ParseClientSettings(params.InitializationOptions)
	if err != nil {
		log.Warning("Ignoring initialization options: %s", err)
		settings = nil
	}
	h.mutex.Lock()
	h.settings = settings
	h.supportsConfiguration = params.Capabilities.Workspace.Configuration
	h.mutex.Unlock()

	roots, err := initialRoots(params)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	for _, root := range roots {
		h.addFolder(root)
	}
	result := &initializeResult{}
	result.Capabilities.TextDocumentSync = &lsp.TextDocumentSyncOptionsOrKind{
		Options: &lsp.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    lsp.TDSKFull,
			Save:      &lsp.SaveOptions{},
		},
	}
	result.Capabilities.ExecuteCommandProvider = &lsp.ExecuteCommandOptions{
		Commands: commandNames(),
	}
	result.Capabilities.Workspace.WorkspaceFolders = workspaceFoldersServerCapabilities{
		Supported:           true,
		ChangeNotifications: true,
	}
	return result, nil
}

// initialRoots returns the workspace roots the client started us with.
func initialRoots(params *initializeParams) ([]string, error) {
	if len(params.WorkspaceFolders) > 0 {
		roots := make([]string, 0, len(params.WorkspaceFolders))
		for _, folder := range params.WorkspaceFolders {
			root, err := workspace.FromURI(folder.URI)
			if err != nil {
				return nil, err
			}
			roots = append(roots, root)
		}
		return roots, nil
	} else if params.RootURI != "" {
		root, err := workspace.FromURI(params.RootURI)
		if err != nil {
			return nil, err
		}
		return []string{root}, nil
	} else if params.RootPath != "" {
		return []string{params.RootPath}, nil
	}
	// A client with no folder open is fine; we just won't lint anything until it adds one.
	return nil, nil
}

// initialized is called once the client is ready, at which point we lint every workspace.
// If the client supports it we ask it for per-folder configuration first.
func (h *Handler) initialized() {
	if h.clientSupportsConfiguration() {
		h.background(func() {
			if err := h.reloadAll(context.Background()); err != nil {
				log.Error("Failed to load configuration: %s", err)
			}
		})
		return
	}
	for _, root := range h.table.Roots() {
		if cfg, present := h.table.Lookup(root); present {
			h.background(func() {
				h.lintConfig(context.Background(), cfg)
			})
		}
	}
}

func (h *Handler) clientSupportsConfiguration() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.supportsConfiguration
}

// shutdown stops everything we're running in the background.
func (h *Handler) shutdown() {
	if h.watchers != nil {
		if roots := h.watchers.Roots(); len(roots) > 0 {
			log.Info("Stopping watchers for %s", strings.Join(roots, ", "))
		}
		if err := h.watchers.Close(); err != nil {
			log.Warning("Error closing file watchers: %s", err)
		}
	}
	h.table.Close()
}

// background runs a function on a new goroutine, which Wait will wait for.
func (h *Handler) background(f func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		f()
	}()
}

// Wait waits for all background work to complete.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// A Logger provides an interface to our logger.
type Logger struct{}

// Printf implements the jsonrpc2.Logger interface.
func (l Logger) Printf(tmpl string, args ...interface{}) {
	log.Debug(tmpl, args...)
}
