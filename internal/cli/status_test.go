// Package cli — status_test.go covers the environment snapshot and the
// text rendering of the status report.
package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/venv"
)

// writeVenvDir fabricates a venv directory on disk. With cfg empty no
// pyvenv.cfg is written, leaving the directory in the broken state.
func writeVenvDir(t *testing.T, dir, cfg string, withInterpreter bool) {
	t.Helper()

	paths := venv.PathsFor(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.Python), 0o755))
	if cfg != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pyvenv.cfg"), []byte(cfg), 0o644))
	}
	if withInterpreter {
		require.NoError(t, os.WriteFile(paths.Python, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}
}

// TestObserveEnvironment_Missing verifies the snapshot for a project
// that has never been set up.
func TestObserveEnvironment_Missing(t *testing.T) {
	venvDir := filepath.Join(t.TempDir(), "venv")

	env := observeEnvironment(t.Context(), venvDir, model.PythonVersion{Major: 3, Minor: 8})

	assert.Equal(t, model.StatusMissing, env.Status)
	assert.Equal(t, venvDir, env.VenvDir)
	assert.True(t, env.PythonVersion.IsZero())
	assert.Empty(t, env.Packages)
	assert.False(t, env.CheckedAt.IsZero())
}

// TestObserveEnvironment_BrokenKeepsVersion verifies that a venv whose
// interpreter is gone still reports the version recorded in pyvenv.cfg.
func TestObserveEnvironment_BrokenKeepsVersion(t *testing.T) {
	venvDir := filepath.Join(t.TempDir(), "venv")
	writeVenvDir(t, venvDir, "home = /usr/bin\nversion = 3.11.4\n", false)

	env := observeEnvironment(t.Context(), venvDir, model.PythonVersion{Major: 3, Minor: 8})

	assert.Equal(t, model.StatusBroken, env.Status)
	assert.Equal(t, model.PythonVersion{Major: 3, Minor: 11, Micro: 4}, env.PythonVersion)
}

// TestObserveEnvironment_Ready verifies the ready classification and
// that an unusable pip degrades to an empty package list rather than
// failing the snapshot.
func TestObserveEnvironment_Ready(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fixture interpreter is a shell script")
	}
	venvDir := filepath.Join(t.TempDir(), "venv")
	writeVenvDir(t, venvDir, "home = /usr/bin\nversion = 3.11.4\n", true)

	env := observeEnvironment(t.Context(), venvDir, model.PythonVersion{Major: 3, Minor: 8})

	assert.Equal(t, model.StatusReady, env.Status)
	assert.Empty(t, env.Packages)
}

// TestRenderStatus_UnknownVersion verifies that a pyvenv.cfg without a
// version does not render as "0.0.0" — the line is simply omitted.
func TestRenderStatus_UnknownVersion(t *testing.T) {
	info := &statusInfo{
		Assignment: "Visual Essay",
		Environment: model.Environment{
			VenvDir: "/proj/venv",
			Status:  model.StatusReady,
		},
	}

	var buf bytes.Buffer
	renderStatus(&buf, info)
	out := buf.String()

	assert.Contains(t, out, "ready (/proj/venv)")
	assert.NotContains(t, out, "Python version:")
	assert.NotContains(t, out, "0.0.0")
}

// TestRenderStatus_Full verifies the fully-populated report.
func TestRenderStatus_Full(t *testing.T) {
	info := &statusInfo{
		Assignment:   "Visual Essay",
		ManifestPath: "/proj/assignment.jsonc",
		Environment: model.Environment{
			VenvDir:       "/proj/venv",
			Status:        model.StatusReady,
			PythonVersion: model.PythonVersion{Major: 3, Minor: 11, Micro: 4},
			Packages: []model.Requirement{
				{Name: "pandas", Specifier: "==2.2.1"},
				{Name: "plotly", Specifier: "==5.20.0"},
			},
		},
		Notebook:      "visual_essay.ipynb",
		NotebookFound: true,
		LockFile:      "/proj/environment.lock.yaml",
	}

	var buf bytes.Buffer
	renderStatus(&buf, info)
	out := buf.String()

	assert.Contains(t, out, "Python version:      3.11.4")
	assert.Contains(t, out, "Installed packages:  2")
	assert.Contains(t, out, "visual_essay.ipynb (present)")
	assert.Contains(t, out, "/proj/environment.lock.yaml")
}
