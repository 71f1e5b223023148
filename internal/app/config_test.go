package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	config, err := NewConfig(Config{Mode: ModeExport})
	require.NoError(t, err)
	assert.Equal(t, ".", config.RepoDir)
	assert.Equal(t, ".", config.OutputDir)

	config, err = NewConfig(Config{Mode: ModePush, RepoDir: "/repo"})
	require.NoError(t, err)
	assert.Equal(t, "/repo", config.RepoDir)

	_, err = NewConfig(Config{Mode: "deploy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
