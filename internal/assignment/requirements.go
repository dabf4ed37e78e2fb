package assignment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// RequirementsFileName is the conventional pip requirements file name.
const RequirementsFileName = "requirements.txt"

// RenderRequirements produces requirements.txt content from the manifest:
// a generated-file header naming the assignment, then one requirement
// line per package in manifest order.
func RenderRequirements(m *Manifest) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Requirements for %s\n", m.Name)
	b.WriteString("# Generated by nbsetup — edit assignment.jsonc instead of this file.\n")
	for _, p := range m.Packages {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// EnsureRequirementsFile makes sure projectDir contains a requirements
// file, writing one from the manifest only when absent. An existing file
// is never touched: students may have added packages for their essay,
// and instructors may distribute a hand-written one.
//
// Returns the file's path and whether it was created by this call.
func EnsureRequirementsFile(projectDir string, m *Manifest) (string, bool, error) {
	path := filepath.Join(projectDir, RequirementsFileName)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, false, nil
	}

	if err := os.WriteFile(path, RenderRequirements(m), 0o644); err != nil {
		return "", false, model.WrapCLIError(
			model.ExitGeneralError,
			"failed to write requirements.txt",
			err,
		)
	}
	return path, true, nil
}

// LoadRequirementsFile parses an existing requirements file into
// Requirement values, skipping blanks, comments, and pip option lines
// (-r, --index-url and friends).
func LoadRequirementsFile(path string) ([]model.Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var reqs []model.Requirement
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		r, parseErr := model.ParseRequirement(line)
		if parseErr != nil {
			return nil, fmt.Errorf("%s: %w", path, parseErr)
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}
