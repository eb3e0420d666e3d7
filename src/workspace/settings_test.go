package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, Settings{Enable: true, Command: "mix credo --strict", MixEnv: "test"}, s)
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`
[credo]
command = mix credo --all
projectdir = apps/web
`), 0644))
	s, err := LoadSettings(dir)
	assert.NoError(t, err)
	assert.Equal(t, Settings{Enable: true, Command: "mix credo --all", MixEnv: "test", ProjectDir: "apps/web"}, s)
}

func TestReadConfigFileInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[credo\ncommand = "), 0644))
	s, err := LoadSettings(dir)
	assert.Error(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestParseClientSettings(t *testing.T) {
	cs, err := ParseClientSettings([]byte(`{"credo": {"enable": false, "mixEnv": "dev"}}`))
	require.NoError(t, err)
	s := DefaultSettings()
	cs.Apply(&s)
	assert.Equal(t, Settings{Enable: false, Command: "mix credo --strict", MixEnv: "dev"}, s)
}

func TestParseClientSettingsUnwrapped(t *testing.T) {
	cs, err := ParseClientSettings([]byte(`{"command": "mix credo", "projectDir": "server"}`))
	require.NoError(t, err)
	s := DefaultSettings()
	cs.Apply(&s)
	assert.Equal(t, Settings{Enable: true, Command: "mix credo", MixEnv: "test", ProjectDir: "server"}, s)
}

func TestParseClientSettingsEmpty(t *testing.T) {
	for _, input := range []string{"", "null", "{}"} {
		cs, err := ParseClientSettings([]byte(input))
		require.NoError(t, err)
		s := DefaultSettings()
		cs.Apply(&s)
		assert.Equal(t, DefaultSettings(), s)
	}
}

func TestParseClientSettingsInvalid(t *testing.T) {
	_, err := ParseClientSettings([]byte(`{"credo": {"enable": "yes please"}}`))
	assert.Error(t, err)
	_, err = ParseClientSettings([]byte(`[1, 2, 3]`))
	assert.Error(t, err)
}

func TestSettingsLayering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[credo]\nmixenv = ci\ncommand = mix credo --all\n"), 0644))
	global, err := ParseClientSettings([]byte(`{"credo": {"mixEnv": "dev"}}`))
	require.NoError(t, err)
	folder, err := ParseClientSettings([]byte(`{"enable": false}`))
	require.NoError(t, err)
	s, err := LoadSettings(dir, global, folder, nil)
	assert.NoError(t, err)
	assert.Equal(t, Settings{Enable: false, Command: "mix credo --all", MixEnv: "dev"}, s)
}
