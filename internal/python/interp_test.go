package python

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// TestParseVersionOutput covers the interpreter banner formats seen in the
// wild, including the noise printed by broken shims.
func TestParseVersionOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected model.PythonVersion
		hasError bool
	}{
		{"python3", "Python 3.11.4\n", model.PythonVersion{Major: 3, Minor: 11, Micro: 4}, false},
		{"python2 stderr style", "Python 2.7.18\n", model.PythonVersion{Major: 2, Minor: 7, Micro: 18}, false},
		{"release candidate", "Python 3.13.0rc2\n", model.PythonVersion{Major: 3, Minor: 13, Micro: 0}, false},
		{"empty output", "", model.PythonVersion{}, true},
		{"store alias banner", "Python was not found; run without arguments to install from the Microsoft Store", model.PythonVersion{}, true},
		{"shim help text", "usage: pyenv <command> [<args>]", model.PythonVersion{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseVersionOutput(tt.output)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

// TestCandidatesFor pins the probe order per platform. On Windows the py
// launcher must come first because `python` there is often the Microsoft
// Store alias.
func TestCandidatesFor(t *testing.T) {
	win := candidatesFor("windows")
	require.Len(t, win, 3)
	assert.Equal(t, "py", win[0].exe)
	assert.Equal(t, []string{"-3"}, win[0].args)
	assert.Equal(t, "python3", win[1].exe)

	unix := candidatesFor("linux")
	require.Len(t, unix, 2)
	assert.Equal(t, "python3", unix[0].exe)
	assert.Equal(t, "python", unix[1].exe)
	assert.Empty(t, unix[0].args)

	assert.Equal(t, unix, candidatesFor("darwin"))
}

// requirePython3 skips the test when no python3 is installed on the host.
// Discovery tests exercise the real interpreter, which is not guaranteed
// to exist on every CI runner.
func requirePython3(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not found on PATH")
	}
}

// TestFind verifies end-to-end discovery against the host interpreter.
func TestFind(t *testing.T) {
	requirePython3(t)

	interp, err := Find(context.Background(), "", model.PythonVersion{Major: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, interp.Path)
	assert.Equal(t, 3, interp.Version.Major)
}

// TestFind_TooOld verifies that an interpreter failing the minimum-version
// gate produces the "too old" error rather than "not found".
func TestFind_TooOld(t *testing.T) {
	requirePython3(t)

	// No CPython 99.x exists, so the host interpreter is always too old here.
	_, err := Find(context.Background(), "", model.PythonVersion{Major: 99})
	require.Error(t, err)

	cliErr, ok := err.(*model.CLIError)
	require.True(t, ok, "expected a CLIError")
	assert.Equal(t, model.ExitPythonNotFound, cliErr.Code)
	assert.Contains(t, cliErr.Message, "too old")
	assert.NotEmpty(t, cliErr.Hint)
}

// TestFind_OverrideMissing verifies that a bad explicit interpreter path is
// not silently replaced by PATH discovery.
func TestFind_OverrideMissing(t *testing.T) {
	_, err := Find(context.Background(), "definitely-not-a-python-binary", model.PythonVersion{Major: 3})
	require.Error(t, err)

	cliErr, ok := err.(*model.CLIError)
	require.True(t, ok)
	assert.Equal(t, model.ExitPythonNotFound, cliErr.Code)
}

// TestRun verifies the exec wrapper returns stdout on success and folds
// stderr into the error on failure.
func TestRun(t *testing.T) {
	requirePython3(t)

	interp, err := Find(context.Background(), "", model.PythonVersion{Major: 3})
	require.NoError(t, err)

	out, err := Run(context.Background(), interp, t.TempDir(), "-c", "print('hello')")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")

	_, err = Run(context.Background(), interp, t.TempDir(), "-c", "import sys; sys.exit(3)")
	assert.Error(t, err)
}

// TestRun_Cancelled verifies that an interrupted command surfaces the
// context error rather than a generic tool failure.
func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	interp := &model.Interpreter{Path: "/nonexistent/python3"}
	_, err := Run(ctx, interp, t.TempDir(), "-m", "venv", "venv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
