// notebook.go scaffolds the starter notebook named by the manifest.
//
// The scaffold is a minimal but valid nbformat 4 document: a title
// markdown cell and an imports code cell matching the assignment's
// package list. It is only written when the notebook file is absent —
// a student's in-progress essay is never overwritten.
package assignment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// notebookDoc mirrors the subset of the nbformat 4 JSON schema needed
// for a valid starter notebook.
type notebookDoc struct {
	Cells         []notebookCell `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// notebookCell is a single notebook cell. Source lines keep their
// trailing newlines except the last, per nbformat convention.
type notebookCell struct {
	CellType string         `json:"cell_type"`
	Metadata map[string]any `json:"metadata"`
	Source   []string       `json:"source"`

	// Code cells additionally require these two fields to validate:
	// execution_count must be present (null for a never-executed cell)
	// and outputs must be an array. Markdown cells must omit both.
	ExecutionCount json.RawMessage `json:"execution_count,omitempty"`
	Outputs        json.RawMessage `json:"outputs,omitempty"`
}

// starterImports maps known distribution names to their conventional
// import lines. Packages without an entry get a bare import of their
// module name with dashes replaced, which is right often enough for a
// starting point.
var starterImports = map[string]string{
	"pandas":  "import pandas as pd",
	"plotly":  "import plotly.express as px",
	"numpy":   "import numpy as np",
	"jupyter": "", // runtime, not an import
}

// RenderNotebook produces the starter notebook JSON for the manifest.
func RenderNotebook(m *Manifest) ([]byte, error) {
	var imports []string
	for _, p := range m.Packages {
		req, err := model.ParseRequirement(p)
		if err != nil {
			return nil, err
		}

		name := strings.ToLower(req.Name)
		// Strip extras: "jupyter[all]" imports as jupyter would.
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}

		line, known := starterImports[name]
		if !known {
			line = "import " + strings.ReplaceAll(name, "-", "_")
		}
		if line != "" {
			imports = append(imports, line)
		}
	}

	title := []string{
		fmt.Sprintf("# %s\n", m.Name),
		"\n",
		"Use this notebook to build your visual essay. Tell a story with\n",
		"your data: alternate narrative cells with the charts that support\n",
		"them.",
	}

	source := make([]string, 0, len(imports))
	for i, line := range imports {
		if i < len(imports)-1 {
			line += "\n"
		}
		source = append(source, line)
	}

	doc := notebookDoc{
		Cells: []notebookCell{
			{
				CellType: "markdown",
				Metadata: map[string]any{},
				Source:   title,
			},
			{
				CellType:       "code",
				Metadata:       map[string]any{},
				Source:         source,
				ExecutionCount: json.RawMessage("null"),
				Outputs:        json.RawMessage("[]"),
			},
		},
		Metadata: map[string]any{
			"language_info": map[string]any{"name": "python"},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}

	data, err := json.MarshalIndent(&doc, "", " ")
	if err != nil {
		return nil, fmt.Errorf("marshal notebook: %w", err)
	}
	return append(data, '\n'), nil
}

// EnsureNotebook scaffolds the manifest's notebook in projectDir when it
// does not already exist. A manifest without a notebook name disables
// scaffolding entirely.
//
// Returns the notebook path ("" when disabled) and whether this call
// created it.
func EnsureNotebook(projectDir string, m *Manifest) (string, bool, error) {
	if m.Notebook == "" {
		return "", false, nil
	}

	path := filepath.Join(projectDir, m.Notebook)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}

	data, err := RenderNotebook(m)
	if err != nil {
		return "", false, model.WrapCLIError(model.ExitGeneralError, "failed to render starter notebook", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false, model.WrapCLIError(model.ExitGeneralError, "failed to write starter notebook", err)
	}
	return path, true, nil
}
