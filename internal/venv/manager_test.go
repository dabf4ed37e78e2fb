package venv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/python"
)

// writeVenvFixture fabricates the minimal on-disk shape of a virtual
// environment: a pyvenv.cfg and the platform's interpreter executable.
// Fabricating the layout keeps these tests fast and independent of a
// host Python installation.
func writeVenvFixture(t *testing.T, dir, cfgContent string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyvenv.cfg"), []byte(cfgContent), 0o644))

	paths := PathsFor(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.Python), 0o755))
	require.NoError(t, os.WriteFile(paths.Python, []byte("#!/bin/sh\n"), 0o755))
}

// TestPathsFor_Unix pins the bin/ layout used on Linux and macOS.
func TestPathsFor_Unix(t *testing.T) {
	p := pathsFor("/proj/venv", "linux")

	assert.Equal(t, "/proj/venv", p.Dir)
	assert.Equal(t, filepath.Join("/proj/venv", "bin", "python"), p.Python)
	assert.Equal(t, filepath.Join("/proj/venv", "bin", "pip"), p.Pip)
	assert.Equal(t, filepath.Join("/proj/venv", "bin", "activate"), p.Activate)
	assert.Empty(t, p.ActivatePS, "no PowerShell script on Unix")
}

// TestPathsFor_Windows pins the Scripts\ layout with .exe suffixes and
// the PowerShell activation script.
func TestPathsFor_Windows(t *testing.T) {
	p := pathsFor(`C:\proj\venv`, "windows")

	assert.Equal(t, filepath.Join(`C:\proj\venv`, "Scripts", "python.exe"), p.Python)
	assert.Equal(t, filepath.Join(`C:\proj\venv`, "Scripts", "pip.exe"), p.Pip)
	assert.Equal(t, filepath.Join(`C:\proj\venv`, "Scripts", "activate.bat"), p.Activate)
	assert.Equal(t, filepath.Join(`C:\proj\venv`, "Scripts", "Activate.ps1"), p.ActivatePS)
}

// TestIsVenv verifies the pyvenv.cfg probe distinguishes real venvs from
// arbitrary directories.
func TestIsVenv(t *testing.T) {
	m := NewManager()

	plain := t.TempDir()
	assert.False(t, m.IsVenv(plain), "empty directory is not a venv")
	assert.False(t, m.IsVenv(filepath.Join(plain, "nope")), "missing directory is not a venv")

	venvDir := filepath.Join(t.TempDir(), "venv")
	writeVenvFixture(t, venvDir, "home = /usr/bin\nversion = 3.11.4\n")
	assert.True(t, m.IsVenv(venvDir))
}

// TestReadConfig parses the key = value pairs written by Python's venv
// module, including the version_info spelling used by newer releases.
func TestReadConfig(t *testing.T) {
	m := NewManager()

	tests := []struct {
		name        string
		content     string
		wantHome    string
		wantVersion model.PythonVersion
	}{
		{
			name:        "classic fields",
			content:     "home = /usr/bin\ninclude-system-site-packages = false\nversion = 3.11.4\n",
			wantHome:    "/usr/bin",
			wantVersion: model.PythonVersion{Major: 3, Minor: 11, Micro: 4},
		},
		{
			name:        "version_info spelling",
			content:     "home = /opt/python/bin\nversion_info = 3.12.1\n",
			wantHome:    "/opt/python/bin",
			wantVersion: model.PythonVersion{Major: 3, Minor: 12, Micro: 1},
		},
		{
			name:        "no version field",
			content:     "home = /usr/bin\n",
			wantHome:    "/usr/bin",
			wantVersion: model.PythonVersion{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "venv")
			writeVenvFixture(t, dir, tt.content)

			cfg, err := m.ReadConfig(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHome, cfg.Home)
			assert.Equal(t, tt.wantVersion, cfg.Version)
		})
	}
}

// TestStatus walks the full classification table: missing, broken, stale,
// and ready environments.
func TestStatus(t *testing.T) {
	m := NewManager()
	min := model.PythonVersion{Major: 3, Minor: 8}

	t.Run("missing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "venv")
		assert.Equal(t, model.StatusMissing, m.Status(dir, min))
	})

	t.Run("broken without pyvenv.cfg", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "venv")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		assert.Equal(t, model.StatusBroken, m.Status(dir, min))
	})

	t.Run("broken without interpreter", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "venv")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644))
		assert.Equal(t, model.StatusBroken, m.Status(dir, min))
	})

	t.Run("stale interpreter", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "venv")
		writeVenvFixture(t, dir, "home = /usr/bin\nversion = 3.7.9\n")
		assert.Equal(t, model.StatusStale, m.Status(dir, min))
	})

	t.Run("ready", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "venv")
		writeVenvFixture(t, dir, "home = /usr/bin\nversion = 3.11.4\n")
		assert.Equal(t, model.StatusReady, m.Status(dir, min))
	})

	t.Run("unknown version counts as ready", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "venv")
		writeVenvFixture(t, dir, "home = /usr/bin\n")
		assert.Equal(t, model.StatusReady, m.Status(dir, min))
	})
}

// TestRemove verifies deletion of real venvs and the safety refusal for
// directories that are not venvs.
func TestRemove(t *testing.T) {
	m := NewManager()

	t.Run("removes a venv", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "venv")
		writeVenvFixture(t, dir, "home = /usr/bin\n")

		require.NoError(t, m.Remove(dir))
		assert.False(t, m.Exists(dir))
	})

	t.Run("missing directory is a no-op", func(t *testing.T) {
		assert.NoError(t, m.Remove(filepath.Join(t.TempDir(), "nope")))
	})

	t.Run("refuses non-venv directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "essay.ipynb"), []byte("{}"), 0o644))

		err := m.Remove(dir)
		require.Error(t, err)
		assert.True(t, m.Exists(dir), "directory must survive the refusal")

		cliErr, ok := err.(*model.CLIError)
		require.True(t, ok)
		assert.Equal(t, model.ExitVenvCreateFailed, cliErr.Code)
	})
}

// TestCreate exercises real venv creation against the host interpreter.
// Skipped when python3 is not installed.
func TestCreate(t *testing.T) {
	ctx := context.Background()
	interp, err := python.Find(ctx, "", model.PythonVersion{Major: 3})
	if err != nil {
		t.Skip("no Python 3 interpreter on PATH")
	}

	m := NewManager()
	dir := filepath.Join(t.TempDir(), "venv")

	require.NoError(t, m.Create(ctx, interp, dir))
	assert.True(t, m.IsVenv(dir))

	cfg, err := m.ReadConfig(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Home)

	assert.Equal(t, model.StatusReady, m.Status(dir, model.PythonVersion{Major: 3}))
}
