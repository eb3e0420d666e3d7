package credo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion([]byte("==> credo\nCompiling 236 files (.ex)\nGenerated credo app\n1.7.1\n"))
	require.NoError(t, err)
	assert.Equal(t, "1.7.1", v.String())
	assert.True(t, SupportedVersion(v))
}

func TestParseVersionPrefixed(t *testing.T) {
	v, err := ParseVersion([]byte("v1.4.1"))
	require.NoError(t, err)
	assert.False(t, SupportedVersion(v))
}

func TestParseVersionGarbage(t *testing.T) {
	_, err := ParseVersion([]byte("** (Mix) The task \"credo\" could not be found"))
	assert.Error(t, err)
}
