package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/please-build/gcfg"

	"github.com/thought-machine/credo_langserver/src/credo"
)

// ConfigFileName is the optional per-workspace config file, read from the workspace root.
const ConfigFileName = ".credolsconfig"

// Section is the name of our settings section, both in the config file and in client settings.
const Section = "credo"

// Settings are the user-facing knobs for linting one workspace.
type Settings struct {
	// Enable turns linting on or off for the workspace.
	Enable bool
	// Command is the command template used to run Credo.
	Command string
	// MixEnv is the Mix environment (build profile) Credo runs in.
	MixEnv string
	// ProjectDir is an optional subdirectory of the workspace containing the Mix project.
	ProjectDir string
}

// DefaultSettings returns the settings used when nothing else is configured.
func DefaultSettings() Settings {
	return Settings{
		Enable:  true,
		Command: credo.DefaultCommand,
		MixEnv:  credo.DefaultMixEnv,
	}
}

// fileConfig is the structure of ConfigFileName, e.g.
//
//	[credo]
//	enable = true
//	command = mix credo --strict
//	mixenv = test
//	projectdir = apps/web
type fileConfig struct {
	Credo Settings
}

// ReadConfigFile overlays any settings in the given workspace's config file onto settings.
// It's not an error for the file not to exist.
func ReadConfigFile(root string, settings *Settings) error {
	filename := filepath.Join(root, ConfigFileName)
	config := fileConfig{Credo: *settings}
	if err := gcfg.ReadFileInto(&config, filename); err != nil && os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	log.Debug("Read settings from %s", filename)
	*settings = config.Credo
	return nil
}

// ClientSettings are settings as sent by the LSP client. Fields are only applied if present.
type ClientSettings struct {
	Enable     *bool   `json:"enable"`
	Command    *string `json:"command"`
	MixEnv     *string `json:"mixEnv"`
	ProjectDir *string `json:"projectDir"`
}

// ParseClientSettings parses client settings from JSON. The settings may either be the
// credo section itself or an object containing it under the "credo" key, since clients
// differ in how much of their configuration they send. Empty input yields empty settings.
func ParseClientSettings(b []byte) (*ClientSettings, error) {
	cs := &ClientSettings{}
	if len(b) == 0 || string(b) == "null" {
		return cs, nil
	}
	wrapped := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if section, present := wrapped[Section]; present {
		b = section
	}
	if err := json.Unmarshal(b, cs); err != nil {
		return nil, fmt.Errorf("invalid %s settings: %w", Section, err)
	}
	return cs, nil
}

// Apply overlays any fields present in these client settings onto settings.
func (cs *ClientSettings) Apply(settings *Settings) {
	if cs == nil {
		return
	}
	if cs.Enable != nil {
		settings.Enable = *cs.Enable
	}
	if cs.Command != nil && *cs.Command != "" {
		settings.Command = *cs.Command
	}
	if cs.MixEnv != nil && *cs.MixEnv != "" {
		settings.MixEnv = *cs.MixEnv
	}
	if cs.ProjectDir != nil {
		settings.ProjectDir = *cs.ProjectDir
	}
}

// LoadSettings returns the effective settings for a workspace: the defaults, overridden by its
// config file, overridden in turn by each set of client settings in order.
// If the config file is broken the error is returned along with the settings derived without it.
func LoadSettings(root string, client ...*ClientSettings) (Settings, error) {
	settings := DefaultSettings()
	err := ReadConfigFile(root, &settings)
	for _, cs := range client {
		cs.Apply(&settings)
	}
	return settings, err
}
