// Package lint implements the orchestration of Credo runs: deciding whether a run should
// happen, running it, and turning its output into published diagnostics.
package lint

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/go-lsp"
	"gopkg.in/op/go-logging.v1"

	"github.com/thought-machine/credo_langserver/src/cli"
	"github.com/thought-machine/credo_langserver/src/credo"
	"github.com/thought-machine/credo_langserver/src/fs"
	"github.com/thought-machine/credo_langserver/src/metrics"
	"github.com/thought-machine/credo_langserver/src/workspace"
)

var log = logging.MustGetLogger("lint")

// ElixirLanguageID is the language identifier clients send for Elixir documents.
const ElixirLanguageID = "elixir"

// A Runner runs a subprocess to completion. process.Executor is the real implementation.
type Runner interface {
	ExecWithTimeout(ctx context.Context, dir string, env []string, timeout time.Duration, argv []string) ([]byte, []byte, error)
}

// Documents provides the content of files the client has open.
type Documents interface {
	// Lines returns the current lines of the given document, if it's open.
	Lines(uri lsp.DocumentURI) ([]string, bool)
}

// A Document identifies a single document to lint.
type Document struct {
	URI        lsp.DocumentURI
	LanguageID string
}

// A Linter runs Credo for workspaces in a Table.
type Linter struct {
	table   *workspace.Table
	runner  Runner
	docs    Documents
	timeout time.Duration
}

// New creates a new Linter.
func New(table *workspace.Table, runner Runner, docs Documents, timeout time.Duration) *Linter {
	return &Linter{
		table:   table,
		runner:  runner,
		docs:    docs,
		timeout: timeout,
	}
}

// IsElixir returns true if the given document should be linted as Elixir.
func IsElixir(doc Document) bool {
	if doc.LanguageID != "" {
		return doc.LanguageID == ElixirLanguageID
	}
	ext := strings.ToLower(filepath.Ext(string(doc.URI)))
	return ext == ".ex" || ext == ".exs"
}

// LintDocument runs Credo on a single document and publishes the results.
// Documents that aren't Elixir files in an enabled workspace are silently skipped.
func (l *Linter) LintDocument(ctx context.Context, doc Document) error {
	if !IsElixir(doc) {
		return nil
	}
	path, err := workspace.FromURI(doc.URI)
	if err != nil {
		log.Debug("Not linting %s: %s", doc.URI, err)
		return nil
	}
	cfg, present := l.table.ForPath(path)
	if !present {
		log.Debug("Not linting %s, it isn't in any known workspace", path)
		return nil
	} else if !cfg.Usable() {
		log.Debug("Not linting %s, linting is disabled for %s", path, cfg.Root)
		return nil
	} else if !fs.IsUnder(path, cfg.Dir()) {
		log.Debug("Not linting %s, it's outside the project directory %s", path, cfg.Dir())
		return nil
	}
	rel, err := filepath.Rel(cfg.Dir(), path)
	if err != nil {
		return err
	}
	return l.run(ctx, cfg, metrics.Document, rel, workspace.ToURI(path))
}

// LintWorkspace runs Credo over an entire workspace and publishes the results.
// Files that previously had diagnostics but are no longer reported are cleared.
func (l *Linter) LintWorkspace(ctx context.Context, cfg *workspace.Config) error {
	if !cfg.Usable() {
		log.Debug("Not linting %s, linting is disabled", cfg.Root)
		return nil
	}
	return l.run(ctx, cfg, metrics.Workspace, "", "")
}

// run performs one Credo run. file and uri are empty for a whole-workspace run.
func (l *Linter) run(ctx context.Context, cfg *workspace.Config, kind, file string, uri lsp.DocumentURI) error {
	start := time.Now()
	issues, outcome, err := l.execute(ctx, cfg, file)
	metrics.Record(kind, outcome, len(issues), time.Since(start))
	if err != nil {
		return err
	}
	sets := l.group(cfg, issues)
	if kind == metrics.Workspace {
		cfg.Collection.ReplaceAll(sets)
		log.Info("Linted %s in %s: %d issues in %d files", cfg.Root, time.Since(start).Round(time.Millisecond), len(issues), len(sets))
		return nil
	}
	if _, present := sets[uri]; !present {
		sets[uri] = nil
	}
	cfg.Collection.Replace(sets)
	log.Info("Linted %s in %s: %d issues", file, time.Since(start).Round(time.Millisecond), len(issues))
	return nil
}

// execute runs Credo and parses its output, returning the outcome to record.
func (l *Linter) execute(ctx context.Context, cfg *workspace.Config, file string) ([]credo.Issue, string, error) {
	if err := cfg.Precompile(func() error { return l.precompile(ctx, cfg) }); err != nil {
		if !errors.Is(err, workspace.ErrInvalidCommand) {
			log.Error("Disabling linting for %s: %s", cfg.Root, err)
		}
		return nil, metrics.InvalidCommand, err
	}
	argv, err := credo.Command(cfg.Command, file)
	if err != nil {
		return nil, metrics.InvalidCommand, err
	}
	stdout, stderr, err := l.runner.ExecWithTimeout(ctx, cfg.Dir(), credo.Env(cfg.MixEnv), l.timeout, argv)
	if err != nil && !isExitError(err) {
		log.Error("Failed to run %s in %s: %s", shellescape.QuoteCommand(argv), cfg.Dir(), err)
		return nil, metrics.StartFailure, err
	}
	log.Debug("%s produced %s of output", shellescape.QuoteCommand(argv), humanize.Bytes(uint64(len(stdout))))
	if msg := strings.TrimSpace(cli.StripAnsi.ReplaceAllString(string(stderr), "")); msg != "" {
		log.Warning("Credo reported errors in %s:\n%s", cfg.Dir(), msg)
	}
	issues, err := credo.ParseOutput(stdout)
	if errors.Is(err, credo.ErrEmptyOutput) {
		log.Error("%s in %s: %s", shellescape.QuoteCommand(argv), cfg.Dir(), err)
		return nil, metrics.EmptyOutput, err
	} else if err != nil {
		log.Error("%s in %s: %s", shellescape.QuoteCommand(argv), cfg.Dir(), err)
		return nil, metrics.ParseFailure, err
	}
	return issues, metrics.Success, nil
}

// precompile runs the command once with --version, which compiles the project and tells us
// which version of Credo we've got.
func (l *Linter) precompile(ctx context.Context, cfg *workspace.Config) error {
	argv, err := credo.PrecompileCommand(cfg.Command)
	if err != nil {
		return err
	}
	log.Notice("Compiling %s for Credo: %s", cfg.Dir(), shellescape.QuoteCommand(argv))
	stdout, stderr, err := l.runner.ExecWithTimeout(ctx, cfg.Dir(), credo.Env(cfg.MixEnv), l.timeout, argv)
	if err != nil {
		if msg := strings.TrimSpace(cli.StripAnsi.ReplaceAllString(string(stderr), "")); msg != "" {
			return fmt.Errorf("%s failed: %w\n%s", shellescape.QuoteCommand(argv), err, msg)
		}
		return fmt.Errorf("%s failed: %w", shellescape.QuoteCommand(argv), err)
	}
	if v, err := credo.ParseVersion(stdout); err != nil {
		log.Warning("Couldn't determine Credo version in %s: %s", cfg.Dir(), err)
	} else if !credo.SupportedVersion(v) {
		log.Warning("Credo %s in %s is older than %s, linting may not work", v, cfg.Dir(), credo.MinimumVersion)
	} else {
		log.Info("Found Credo %s in %s", v, cfg.Dir())
	}
	return nil
}

// group converts issues to diagnostics and groups them by file.
func (l *Linter) group(cfg *workspace.Config, issues []credo.Issue) map[lsp.DocumentURI][]lsp.Diagnostic {
	sets := map[lsp.DocumentURI][]lsp.Diagnostic{}
	for i := range issues {
		uri := workspace.ToURI(filepath.Join(cfg.Dir(), issues[i].Filename))
		var lines []string
		if l.docs != nil {
			lines, _ = l.docs.Lines(uri)
		}
		sets[uri] = append(sets[uri], credo.Diagnostic(&issues[i], lines))
	}
	return sets
}

// isExitError returns true if the error is only that the process exited unsuccessfully.
func isExitError(err error) bool {
	var exitError *exec.ExitError
	return errors.As(err, &exitError)
}
