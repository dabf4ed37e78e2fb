package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFrom_FirstRun verifies that a fresh config directory
// gets a commented default file and that defaults are returned.
func TestLoadConfigFrom_FirstRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nbsetup")

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "venv", cfg.VenvDir)
	assert.Equal(t, "jupyter/scipy-notebook:latest", cfg.JupyterImage)
	assert.Empty(t, cfg.Python)
	assert.Empty(t, cfg.IndexURL)

	// The default file should now exist and parse on the next load.
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "venv_dir: venv")

	again, err := LoadConfigFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

// TestLoadConfigFrom_CustomValues verifies that an existing config.yaml
// overrides the defaults.
func TestLoadConfigFrom_CustomValues(t *testing.T) {
	dir := t.TempDir()
	content := `python: /opt/python3.12/bin/python3
venv_dir: .venv
index_url: https://mirror.example.edu/simple
jupyter_image: jupyter/minimal-notebook:latest
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "/opt/python3.12/bin/python3", cfg.Python)
	assert.Equal(t, ".venv", cfg.VenvDir)
	assert.Equal(t, "https://mirror.example.edu/simple", cfg.IndexURL)
	assert.Equal(t, "jupyter/minimal-notebook:latest", cfg.JupyterImage)
}

// TestLoadConfigFrom_PartialFile verifies that unset keys fall back to
// defaults instead of going empty.
func TestLoadConfigFrom_PartialFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("venv_dir: env\n"), 0o644))

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "env", cfg.VenvDir)
	assert.Equal(t, "jupyter/scipy-notebook:latest", cfg.JupyterImage)
}

// TestLoadConfigFrom_EnvOverride verifies that NBSETUP_* environment
// variables beat the file values.
func TestLoadConfigFrom_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("venv_dir: venv\n"), 0o644))

	t.Setenv("NBSETUP_VENV_DIR", "override-env")

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "override-env", cfg.VenvDir)
}

// TestLoadConfigFrom_MalformedFile verifies that broken YAML surfaces
// as an error rather than silently using defaults.
func TestLoadConfigFrom_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("venv_dir: [unclosed\n"), 0o644))

	_, err := LoadConfigFrom(dir)
	assert.Error(t, err)
}
