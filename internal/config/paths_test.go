package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WHATSHUB_HOME", dir)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, dir, p.Base)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(dir, "data"), p.Data)
	assert.Equal(t, filepath.Join(dir, "logs"), p.Logs)

	require.NoError(t, p.EnsureDirs())
	assert.DirExists(t, p.Data)
	assert.DirExists(t, p.Logs)
}

func TestParseConfigPath(t *testing.T) {
	parts, err := ParseConfigPath("server.port")
	require.NoError(t, err)
	assert.Equal(t, []string{"server", "port"}, parts)

	_, err = ParseConfigPath("")
	assert.Error(t, err)

	_, err = ParseConfigPath("server..port")
	assert.Error(t, err)

	_, err = ParseConfigPath("__proto__.polluted")
	assert.Error(t, err)
}

func TestValueAtPath(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"server", "port"}, 4000)
	v, ok := GetValueAtPath(root, []string{"server", "port"})
	require.True(t, ok)
	assert.Equal(t, 4000, v)

	_, ok = GetValueAtPath(root, []string{"server", "missing"})
	assert.False(t, ok)

	assert.True(t, UnsetValueAtPath(root, []string{"server", "port"}))
	assert.False(t, UnsetValueAtPath(root, []string{"server", "port"}))
}
