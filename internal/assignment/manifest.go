package assignment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// manifestFileNames are the file names probed for the assignment
// manifest, in preference order. The .jsonc spelling is canonical; plain
// .json is accepted for instructors whose editors fight the extension.
var manifestFileNames = []string{
	"assignment.jsonc",
	"assignment.json",
}

// Manifest is the parsed assignment manifest. Only the fields nbsetup
// acts on are declared; unknown fields are silently ignored so manifests
// can carry instructor-facing metadata (due dates, rubric links) without
// breaking setup.
type Manifest struct {
	// Name is the assignment's display name, used in headers and the
	// scaffolded notebook title.
	Name string `json:"name"`

	// PythonVersion is the minimum interpreter version, as a string
	// ("3.8" or "3.8.0").
	PythonVersion string `json:"pythonVersion,omitempty"`

	// Packages are the requirement lines to install, in requirements.txt
	// syntax ("pandas==2.2.1", "plotly>=5.0", "jupyter").
	Packages []string `json:"packages"`

	// Notebook is the assignment notebook filename. When set and the
	// file is absent, setup scaffolds a starter notebook there. Empty
	// disables scaffolding and the launch default.
	Notebook string `json:"notebook,omitempty"`
}

// Default returns the built-in manifest used when no assignment.jsonc is
// present: the Visual Essay assignment's original requirements.
func Default() *Manifest {
	return &Manifest{
		Name:          "Visual Essay",
		PythonVersion: "3.8",
		Packages:      []string{"pandas", "plotly", "jupyter"},
		Notebook:      "visual_essay.ipynb",
	}
}

// Find walks upward from startDir looking for an assignment manifest.
//
// Returns the manifest's absolute path, or empty string (and nil error)
// when no manifest exists anywhere up the tree — a missing manifest is
// the normal case for students who received only the project folder.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", startDir, err)
	}

	for {
		for _, name := range manifestFileNames {
			p := filepath.Join(dir, name)
			if info, statErr := os.Stat(p); statErr == nil && !info.IsDir() {
				return p, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the filesystem root without finding a manifest.
			return "", nil
		}
		dir = parent
	}
}

// Load reads and parses a manifest file.
//
// The file is treated as JSONC: comments and trailing commas are
// stripped via jsonc.ToJSON before the standard library parses it.
// The parsed manifest is validated before being returned.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to read manifest %s", path),
			err,
		)
	}

	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to parse manifest %s", path),
			err,
		)
	}

	if err := m.Validate(); err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("invalid manifest %s", path),
			err,
		)
	}

	return &m, nil
}

// Resolve locates, loads, and fills in a manifest for the given project
// directory. A missing manifest yields the built-in default; a present
// but unparseable one is an error (silently ignoring a broken manifest
// would install the wrong packages).
//
// The second return value is the manifest path, empty when defaults
// were used.
func Resolve(projectDir string) (*Manifest, string, error) {
	path, err := Find(projectDir)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Default(), "", nil
	}

	m, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	m.applyDefaults()
	return m, path, nil
}

// applyDefaults fills unset optional fields from the built-in manifest.
// Packages is deliberately NOT defaulted here — Validate already rejects
// an empty package list, and merging pins behind an instructor's back
// would be surprising.
func (m *Manifest) applyDefaults() {
	def := Default()
	if m.Name == "" {
		m.Name = def.Name
	}
	if m.PythonVersion == "" {
		m.PythonVersion = def.PythonVersion
	}
}

// Validate checks the manifest's contents: every package line must parse
// as a requirement, the version must be parseable when present, and the
// notebook name must be a plain file name (no directory escapes).
func (m *Manifest) Validate() error {
	if len(m.Packages) == 0 {
		return fmt.Errorf("manifest must list at least one package")
	}

	for _, p := range m.Packages {
		if _, err := model.ParseRequirement(p); err != nil {
			return fmt.Errorf("bad package entry: %w", err)
		}
	}

	if m.PythonVersion != "" {
		if _, err := model.ParsePythonVersion(m.PythonVersion); err != nil {
			return fmt.Errorf("bad pythonVersion: %w", err)
		}
	}

	if m.Notebook != "" {
		if filepath.Base(m.Notebook) != m.Notebook {
			return fmt.Errorf("notebook %q must be a plain file name", m.Notebook)
		}
		if filepath.Ext(m.Notebook) != ".ipynb" {
			return fmt.Errorf("notebook %q must have the .ipynb extension", m.Notebook)
		}
	}

	return nil
}

// MinPythonVersion returns the parsed minimum interpreter version,
// falling back to the built-in default when the field is empty.
func (m *Manifest) MinPythonVersion() model.PythonVersion {
	s := m.PythonVersion
	if s == "" {
		s = Default().PythonVersion
	}
	v, err := model.ParsePythonVersion(s)
	if err != nil {
		// Validate rejects unparseable versions, so this only triggers
		// for hand-built Manifest values; the default keeps setup moving.
		v, _ = model.ParsePythonVersion(Default().PythonVersion)
	}
	return v
}

// Requirements returns the package list parsed into Requirement values.
func (m *Manifest) Requirements() ([]model.Requirement, error) {
	reqs := make([]model.Requirement, 0, len(m.Packages))
	for _, p := range m.Packages {
		r, err := model.ParseRequirement(p)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}
