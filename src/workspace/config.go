package workspace

import (
	"errors"
	"path/filepath"
	"sync"
)

// ErrInvalidCommand is returned when a config's command is already known not to work.
var ErrInvalidCommand = errors.New("credo command is marked as invalid")

// A Config is the live lint configuration of a single workspace.
// It's never modified in place after it's loaded (other than its two flags); reconfiguring
// a workspace replaces it wholesale.
type Config struct {
	Settings
	// Root is the absolute path of the workspace.
	Root string
	// Collection holds the diagnostics published for this workspace.
	Collection *Collection

	invalidCommand  bool
	compiled        bool
	mutex           sync.Mutex // guards the two flags above
	precompileMutex sync.Mutex
}

// Dir returns the directory Credo is run in: the workspace root plus any project subdirectory.
func (c *Config) Dir() string {
	if c.ProjectDir == "" {
		return c.Root
	}
	return filepath.Join(c.Root, c.ProjectDir)
}

// Usable returns true if the workspace is enabled and its command isn't known to be broken.
func (c *Config) Usable() bool {
	return c.Enable && !c.InvalidCommand()
}

// InvalidCommand returns true if the configured command has been found not to work.
func (c *Config) InvalidCommand() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.invalidCommand
}

// Precompile calls f if the pre-compile step hasn't already succeeded for this config.
// If f fails the command is marked invalid, and every later call fails with ErrInvalidCommand
// without calling f again. Concurrent callers wait for the first one to finish.
func (c *Config) Precompile(f func() error) error {
	c.precompileMutex.Lock()
	defer c.precompileMutex.Unlock()
	c.mutex.Lock()
	compiled, invalid := c.compiled, c.invalidCommand
	c.mutex.Unlock()
	if compiled {
		return nil
	} else if invalid {
		return ErrInvalidCommand
	}
	err := f()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err != nil {
		c.invalidCommand = true
		return err
	}
	c.compiled = true
	return nil
}
