package credo

import (
	"fmt"
	"os"

	"github.com/google/shlex"
)

// DefaultCommand is the command used when none is configured.
const DefaultCommand = "mix credo --strict"

// DefaultMixEnv is the Mix environment Credo is run in when none is configured.
const DefaultMixEnv = "test"

// Source is the source tag attached to every diagnostic we publish, and the name of
// each workspace's diagnostic collection.
const Source = "Credo"

// MixEnvVar is the environment variable that selects the Mix build profile.
const MixEnvVar = "MIX_ENV"

// fixedFlags request machine-readable output and a zero exit status regardless of findings.
var fixedFlags = []string{"--format=json", "--mute-exit-status"}

// Command builds the argv for a lint run from the configured command template.
// If file is non-empty the run is restricted to that file, which should be relative
// to the directory Credo runs in.
func Command(template, file string) ([]string, error) {
	argv, err := split(template)
	if err != nil {
		return nil, err
	}
	argv = append(argv, fixedFlags...)
	if file != "" {
		argv = append(argv, "--files-included", file)
	}
	return argv, nil
}

// PrecompileCommand builds the argv for the pre-compile step. It's the configured command
// unchanged apart from --version, which still makes Mix compile the project and its
// dependencies but stops Credo analysing anything, so the first real run isn't slowed down
// by compilation. It also tells us which Credo we are talking to.
func PrecompileCommand(template string) ([]string, error) {
	argv, err := split(template)
	if err != nil {
		return nil, err
	}
	return append(argv, "--version"), nil
}

func split(template string) ([]string, error) {
	if template == "" {
		template = DefaultCommand
	}
	argv, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("invalid credo command %q: %w", template, err)
	} else if len(argv) == 0 {
		return nil, fmt.Errorf("invalid credo command %q: no executable", template)
	}
	return argv, nil
}

// Env returns the environment to run Credo in: ours, plus the Mix environment.
func Env(mixEnv string) []string {
	if mixEnv == "" {
		mixEnv = DefaultMixEnv
	}
	return append(os.Environ(), MixEnvVar+"="+mixEnv)
}
