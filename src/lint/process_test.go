package lint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sourcegraph/go-lsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thought-machine/credo_langserver/src/process"
	"github.com/thought-machine/credo_langserver/src/workspace"
)

// newScriptFixture sets up a workspace that runs the fake Credo script through a real executor.
func newScriptFixture(t *testing.T) *fixture {
	script, err := filepath.Abs("test_data/fake_credo.sh")
	require.NoError(t, err)
	f := &fixture{
		Root:     mixProject(t),
		Recorder: &recorder{},
		Docs:     fakeDocs{},
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.Root, "lib", "bar.ex"), []byte("defmodule Bar do\nend\n"), 0644))
	f.Table = workspace.NewTable(f.Recorder)
	settings := workspace.DefaultSettings()
	settings.Command = "sh " + script
	f.Config = f.Table.Load(f.Root, settings)
	f.Linter = New(f.Table, process.New(), f.Docs, 10*time.Second)
	return f
}

func TestScriptLintDocument(t *testing.T) {
	f := newScriptFixture(t)
	require.NoError(t, f.Linter.LintDocument(context.Background(), f.doc("lib/foo.ex")))
	assert.True(t, f.Config.Usable())
	assert.Equal(t, []lsp.DocumentURI{f.uri("lib/foo.ex")}, f.Recorder.Files())
	assert.Equal(t, []lsp.Diagnostic{{
		Range: lsp.Range{
			Start: lsp.Position{Line: 1, Character: 2},
			End:   lsp.Position{Line: 1, Character: 12},
		},
		Severity: lsp.Warning,
		Code:     "Credo.Check.Warning.IoInspect",
		Source:   "Credo",
		Message:  "There should be no calls to IO.inspect/1.",
	}}, f.Recorder.Current(f.uri("lib/foo.ex")))
}

func TestScriptLintWorkspace(t *testing.T) {
	f := newScriptFixture(t)
	f.Docs[f.uri("lib/bar.ex")] = []string{"defmodule Bar do", "end"}
	require.NoError(t, f.Linter.LintWorkspace(context.Background(), f.Config))
	assert.Equal(t, []lsp.DocumentURI{f.uri("lib/bar.ex"), f.uri("lib/foo.ex")}, f.Recorder.Files())
	bar := f.Recorder.Current(f.uri("lib/bar.ex"))
	require.Equal(t, 1, len(bar))
	assert.Equal(t, lsp.Position{Line: 0, Character: 10}, bar[0].Range.Start)
	assert.Equal(t, lsp.Position{Line: 0, Character: 13}, bar[0].Range.End)
}

func TestScriptNotFound(t *testing.T) {
	f := newScriptFixture(t)
	settings := workspace.DefaultSettings()
	settings.Command = "/definitely/not/a/real/mix credo"
	f.Config = f.Table.Load(f.Root, settings)
	assert.Error(t, f.Linter.LintDocument(context.Background(), f.doc("lib/foo.ex")))
	assert.True(t, f.Config.InvalidCommand())
}
