package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWatchedFile(t *testing.T) {
	assert.True(t, IsWatchedFile("/home/user/app/mix.lock"))
	assert.True(t, IsWatchedFile("/home/user/app/config/.credo.exs"))
	assert.True(t, IsWatchedFile("/home/user/app/.credolsconfig"))
	assert.False(t, IsWatchedFile("/home/user/app/mix.exs"))
	assert.False(t, IsWatchedFile("/home/user/app/lib/foo.ex"))
}

// waitFor returns the next root sent on ch, or fails the test after a while.
func waitFor(t *testing.T, ch chan string) string {
	select {
	case root := <-ch:
		return root
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher")
		return ""
	}
}

func assertQuiet(t *testing.T, ch chan string) {
	select {
	case root := <-ch:
		t.Errorf("unexpected change notification for %s", root)
	case <-time.After(4 * debounceInterval):
	}
}

func TestWatchLockFile(t *testing.T) {
	dir := t.TempDir()
	ch := make(chan string, 10)
	w, err := Watch(dir, func(root string) { ch <- root })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mix.lock"), []byte("%{}\n"), 0644))
	assert.Equal(t, dir, waitFor(t, ch))
	assertQuiet(t, ch)
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	ch := make(chan string, 10)
	w, err := Watch(dir, func(root string) { ch <- root })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mix.exs"), []byte("defmodule App.MixProject do\nend\n"), 0644))
	assertQuiet(t, ch)
}

func TestWatchNestedConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "apps", "web"), 0755))
	ch := make(chan string, 10)
	w, err := Watch(dir, func(root string) { ch <- root })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "apps", "web", ".credo.exs"), []byte("%{configs: []}\n"), 0644))
	assert.Equal(t, dir, waitFor(t, ch))
}

func TestWatchNewDirectory(t *testing.T) {
	dir := t.TempDir()
	ch := make(chan string, 10)
	w, err := Watch(dir, func(root string) { ch <- root })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0755))
	time.Sleep(4 * debounceInterval) // Give it a moment to notice the directory.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", ".credo.exs"), []byte("%{configs: []}\n"), 0644))
	assert.Equal(t, dir, waitFor(t, ch))
}

func TestWatchSkipsDeps(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "deps", "credo"), 0755))
	ch := make(chan string, 10)
	w, err := Watch(dir, func(root string) { ch <- root })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "deps", "credo", ".credo.exs"), []byte("%{configs: []}\n"), 0644))
	assertQuiet(t, ch)
}

func TestSet(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	ch := make(chan string, 10)
	s := NewSet(func(root string) { ch <- root })
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))
	require.NoError(t, s.Add(a))
	assert.Equal(t, 2, len(s.Roots()))

	require.NoError(t, os.WriteFile(filepath.Join(b, "mix.lock"), []byte("%{}\n"), 0644))
	assert.Equal(t, b, waitFor(t, ch))

	assert.NoError(t, s.Remove(b))
	assert.NoError(t, s.Remove(b))
	assert.Equal(t, []string{a}, s.Roots())
	assert.NoError(t, s.Close())
	assert.Equal(t, 0, len(s.Roots()))
}
