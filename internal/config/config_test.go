package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Setenv("CODE_BIN", "/opt/code/bin/code")

	cfg, err := Parse([]byte(`
launch_paths:
  vscode: ${CODE_BIN}
stop_timeout: 5s
force_timeout: 1500ms
workers: 2
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "/opt/code/bin/code", cfg.LaunchPath("vscode"))
	assert.Equal(t, 5*time.Second, cfg.StopTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.ForceTimeout)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "vscode", cfg.DefaultTarget, "unset keys keep defaults")
}

func TestParseClampsInvalidValues(t *testing.T) {
	cfg, err := Parse([]byte("workers: -3\nstop_timeout: 0s\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.StopTimeout)
}

func TestLaunchPathExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.LaunchPaths["kiro"] = "~/bin/kiro"
	assert.Equal(t, filepath.Join(home, "bin", "kiro"), cfg.LaunchPath("kiro"))
	assert.Empty(t, cfg.LaunchPath("windsurf"))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("workers: [1"), 0644))
	_, err := Load(dir)
	assert.Error(t, err)
}
