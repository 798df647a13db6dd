package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ".coordinator/state.db", cfg.Storage.DatabasePath)
	require.Equal(t, ".todo", cfg.Sync.FilesRoot)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
database_path = "/tmp/other.db"

[sync]
files_root = "issues"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/other.db", cfg.Storage.DatabasePath)
	require.Equal(t, "issues", cfg.Sync.FilesRoot)
	require.Equal(t, ":8080", cfg.HTTP.ListenAddr)
}

func TestWriteDefaultFileThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, WriteDefaultFile(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Defaults().Sync.FilePattern, cfg.Sync.FilePattern)
}
