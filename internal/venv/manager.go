// Package venv manages the project-local Python virtual environment.
//
// This package wraps `python -m venv` (via os/exec) to create the
// environment and inspects the resulting directory directly: the
// pyvenv.cfg file at the venv root is the authoritative marker that a
// directory really is a virtual environment, much like a .git file marks
// a worktree. Nothing else inside the venv is parsed — its layout belongs
// to Python's venv module, not to us.
//
// The executable layout differs per platform (Scripts\ on Windows,
// bin/ elsewhere), so all path construction lives in PathsFor.
package venv

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/python"
)

// Paths holds the platform-resolved locations inside a virtual
// environment that the CLI needs: the interpreter, pip, and the
// activation scripts quoted in the next-steps output.
type Paths struct {
	// Dir is the venv root directory.
	Dir string

	// Python is the interpreter executable inside the venv.
	Python string

	// Pip is the pip executable inside the venv.
	Pip string

	// Activate is the shell activation script (bin/activate on Unix,
	// Scripts\activate.bat on Windows).
	Activate string

	// ActivatePS is the PowerShell activation script. Empty on
	// non-Windows platforms.
	ActivatePS string
}

// PathsFor computes the venv-internal paths for the current platform.
func PathsFor(dir string) Paths {
	return pathsFor(dir, runtime.GOOS)
}

// pathsFor is the testable core of PathsFor: the platform is a parameter
// so both layouts can be asserted on any host OS.
func pathsFor(dir, goos string) Paths {
	if goos == "windows" {
		scripts := filepath.Join(dir, "Scripts")
		return Paths{
			Dir:        dir,
			Python:     filepath.Join(scripts, "python.exe"),
			Pip:        filepath.Join(scripts, "pip.exe"),
			Activate:   filepath.Join(scripts, "activate.bat"),
			ActivatePS: filepath.Join(scripts, "Activate.ps1"),
		}
	}

	bin := filepath.Join(dir, "bin")
	return Paths{
		Dir:      dir,
		Python:   filepath.Join(bin, "python"),
		Pip:      filepath.Join(bin, "pip"),
		Activate: filepath.Join(bin, "activate"),
	}
}

// Config holds the fields of a pyvenv.cfg file that nbsetup cares about.
// The file is a flat "key = value" list written by Python's venv module.
type Config struct {
	// Home is the directory of the interpreter the venv was created from.
	Home string

	// Version is the creating interpreter's version. Zero when the file
	// omits it (the field name varies across Python releases; both
	// "version" and "version_info" are accepted).
	Version model.PythonVersion
}

// Manager provides virtual environment lifecycle operations.
//
// It is stateless — all methods receive the venv directory as a
// parameter. The struct exists as a receiver so that future options
// (custom venv module flags, logging) have a place to live.
type Manager struct{}

// NewManager creates a new venv Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// Exists reports whether the venv directory exists at all, regardless of
// whether it is a valid virtual environment.
func (m *Manager) Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// IsVenv reports whether dir looks like a real virtual environment:
// the directory exists and contains a pyvenv.cfg file at its root.
func (m *Manager) IsVenv(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "pyvenv.cfg"))
	return err == nil && !info.IsDir()
}

// ReadConfig parses the pyvenv.cfg file inside dir.
//
// Unknown keys are ignored and a missing version field is tolerated —
// the file's exact contents vary across Python versions and distros,
// and only home/version matter here.
func (m *Manager) ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "pyvenv.cfg")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	cfg := &Config{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "home":
			cfg.Home = value
		case "version", "version_info":
			// Best effort: a malformed version leaves the zero value.
			if v, parseErr := model.ParsePythonVersion(value); parseErr == nil {
				cfg.Version = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return cfg, nil
}

// Status classifies the environment at dir against the assignment's
// minimum interpreter version:
//
//   - missing: directory does not exist
//   - broken:  directory exists but has no pyvenv.cfg, or the venv
//     interpreter executable is gone (interrupted creation, manual edits)
//   - stale:   created with an interpreter older than required
//   - ready:   everything checks out
//
// A venv whose pyvenv.cfg omits the version is treated as ready — the
// version field is cosmetic in some distributions and guessing "stale"
// would force pointless recreations.
func (m *Manager) Status(dir string, min model.PythonVersion) model.EnvStatus {
	if !m.Exists(dir) {
		return model.StatusMissing
	}
	if !m.IsVenv(dir) {
		return model.StatusBroken
	}

	paths := PathsFor(dir)
	if _, err := os.Stat(paths.Python); err != nil {
		return model.StatusBroken
	}

	cfg, err := m.ReadConfig(dir)
	if err != nil {
		return model.StatusBroken
	}
	if !cfg.Version.IsZero() && !cfg.Version.AtLeast(min) {
		return model.StatusStale
	}

	return model.StatusReady
}

// Create builds a new virtual environment at dir using the given
// interpreter (`python -m venv <dir>`).
//
// The parent directory must already exist; the venv module creates dir
// itself. Returns a model.CLIError with ExitVenvCreateFailed on failure,
// carrying the original script's remediation hint.
func (m *Manager) Create(ctx context.Context, interp *model.Interpreter, dir string) error {
	_, err := python.Run(ctx, interp, filepath.Dir(dir), "-m", "venv", dir)
	if err != nil {
		return model.WrapCLIError(
			model.ExitVenvCreateFailed,
			"failed to create virtual environment",
			err,
		).WithHint("Try running: python -m pip install --user virtualenv")
	}
	return nil
}

// Remove deletes the virtual environment directory.
//
// The pyvenv.cfg guard means Remove refuses to delete a directory that is
// not actually a venv — protecting against a configured venv dir name
// that points at real student work.
func (m *Manager) Remove(dir string) error {
	if !m.Exists(dir) {
		return nil
	}
	if !m.IsVenv(dir) {
		return model.NewCLIError(
			model.ExitVenvCreateFailed,
			fmt.Sprintf("refusing to remove %s: not a virtual environment (no pyvenv.cfg)", dir),
		)
	}
	if err := os.RemoveAll(dir); err != nil {
		return model.WrapCLIError(
			model.ExitVenvCreateFailed,
			"failed to remove existing virtual environment",
			err,
		)
	}
	return nil
}

// LookPathInVenv resolves an executable by name inside the venv's
// script directory (bin/ or Scripts\). Used to locate entry points such
// as `jupyter` that pip installs next to the interpreter.
func LookPathInVenv(dir, name string) (string, error) {
	scriptDir := filepath.Dir(PathsFor(dir).Python)

	candidates := []string{name}
	if runtime.GOOS == "windows" {
		candidates = []string{name + ".exe", name + ".bat", name}
	}

	for _, c := range candidates {
		p := filepath.Join(scriptDir, c)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}

	// Fall back to PATH so a globally installed tool still works.
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%s not found in %s or on PATH", name, scriptDir)
}
