package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrefersExplicit(t *testing.T) {
	path, err := ResolvePath("/tmp/custom.conf")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.conf", path)
}

func TestResolvePathUsesXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "earshot", "config.conf"), path)
}

func TestResolvePathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "earshot", "config.conf"), path)
}

func TestResolveOutputDir(t *testing.T) {
	cfg := Default()
	cfg.Capture.OutputDir = "/data/recordings"
	dir, err := ResolveOutputDir(cfg)
	require.NoError(t, err)
	require.Equal(t, "/data/recordings", dir)

	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)
	cfg.Capture.OutputDir = ""
	dir, err = ResolveOutputDir(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "earshot", "recordings"), dir)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	loaded, err := Load("")
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.Len(t, loaded.Warnings, 1)
	require.Contains(t, loaded.Warnings[0].Message, "using defaults")
}

func TestLoadReadsExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"detect":{"cooldown_s":10}}`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, 10, loaded.Config.Detect.CooldownS)
}

func TestLoadPropagatesParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"bogus":true}`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}
