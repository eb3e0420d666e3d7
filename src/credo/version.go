package credo

import (
	"bytes"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// MinimumVersion is the oldest Credo that understands all the flags we pass it.
var MinimumVersion = semver.New("1.5.0")

// ParseVersion extracts Credo's version from the output of the pre-compile step.
// Mix may print compilation output first, so we take the last non-empty line.
func ParseVersion(stdout []byte) (*semver.Version, error) {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte{'\n'})
	last := strings.TrimSpace(string(lines[len(lines)-1]))
	last = strings.TrimPrefix(strings.TrimPrefix(last, "Credo "), "v")
	return semver.NewVersion(last)
}

// SupportedVersion returns true if the given version is at least MinimumVersion.
func SupportedVersion(v *semver.Version) bool {
	return !v.LessThan(*MinimumVersion)
}
