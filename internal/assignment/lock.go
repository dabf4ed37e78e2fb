// lock.go generates the environment.lock.yaml snapshot written at the end
// of a successful setup.
//
// The lock file is a record, not an input: nbsetup never reads it back to
// drive behavior. It exists so a grader (or a student asking "what do I
// actually have installed?") can see the resolved environment — the
// interpreter that built the venv and the exact package versions pip
// reported — without activating anything.
package assignment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// LockFileName is the snapshot file written next to the venv.
const LockFileName = "environment.lock.yaml"

// lockFile is the YAML structure of environment.lock.yaml.
type lockFile struct {
	// Assignment is the manifest's display name.
	Assignment string `yaml:"assignment"`

	// CreatedAt is the RFC3339 UTC timestamp of the setup run.
	CreatedAt string `yaml:"createdAt"`

	// Python records the interpreter the venv was created from.
	Python lockPython `yaml:"python"`

	// Packages are the installed distributions as "name==version" lines,
	// sorted for deterministic output.
	Packages []string `yaml:"packages"`
}

// lockPython records the resolved interpreter.
type lockPython struct {
	Version    string `yaml:"version"`
	Executable string `yaml:"executable"`
}

// GenerateLock produces the environment.lock.yaml bytes for a completed
// setup: a header comment, the assignment name, the interpreter, and the
// sorted frozen package list.
//
// Package lines are sorted (not left in pip freeze order) so an
// unchanged environment produces an unchanged package block; only the
// generated_at timestamp varies between runs.
func GenerateLock(m *Manifest, interp *model.Interpreter, frozen []model.Requirement, now time.Time) ([]byte, error) {
	packages := make([]string, 0, len(frozen))
	for _, r := range frozen {
		packages = append(packages, r.String())
	}
	sort.Strings(packages)

	lock := lockFile{
		Assignment: m.Name,
		CreatedAt:  now.UTC().Format(time.RFC3339),
		Python: lockPython{
			Version:    interp.Version.String(),
			Executable: interp.Path,
		},
		Packages: packages,
	}

	data, err := yaml.Marshal(&lock)
	if err != nil {
		return nil, fmt.Errorf("marshal lock file: %w", err)
	}

	header := "# Generated by nbsetup — snapshot of the installed environment.\n" +
		"# This file is informational; re-running setup refreshes it.\n"
	return append([]byte(header), data...), nil
}

// WriteLock writes the lock bytes to projectDir, overwriting any previous
// snapshot. The lock always reflects the latest successful setup.
func WriteLock(projectDir string, data []byte) (string, error) {
	path := filepath.Join(projectDir, LockFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", model.WrapCLIError(
			model.ExitGeneralError,
			"failed to write environment.lock.yaml",
			err,
		)
	}
	return path, nil
}
