package assignment

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRenderNotebook verifies the scaffold is valid nbformat 4 JSON with
// the expected cells.
func TestRenderNotebook(t *testing.T) {
	m := &Manifest{
		Name:     "Visual Essay",
		Packages: []string{"pandas==2.2.1", "plotly", "jupyter"},
		Notebook: "visual_essay.ipynb",
	}

	data, err := RenderNotebook(m)
	require.NoError(t, err)

	var doc struct {
		Cells []struct {
			CellType string          `json:"cell_type"`
			Source   []string        `json:"source"`
			ExecCnt  json.RawMessage `json:"execution_count"`
			Outputs  json.RawMessage `json:"outputs"`
		} `json:"cells"`
		NBFormat      int `json:"nbformat"`
		NBFormatMinor int `json:"nbformat_minor"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, 4, doc.NBFormat)
	assert.Equal(t, 5, doc.NBFormatMinor)
	require.Len(t, doc.Cells, 2)

	markdown := doc.Cells[0]
	assert.Equal(t, "markdown", markdown.CellType)
	assert.Contains(t, markdown.Source[0], "Visual Essay")
	assert.Nil(t, markdown.ExecCnt, "markdown cells must not carry execution_count")

	code := doc.Cells[1]
	assert.Equal(t, "code", code.CellType)
	assert.Equal(t, "null", string(code.ExecCnt), "unexecuted cell has null execution_count")
	assert.Equal(t, "[]", string(code.Outputs))

	joined := strings.Join(code.Source, "")
	assert.Contains(t, joined, "import pandas as pd")
	assert.Contains(t, joined, "import plotly.express as px")
	assert.NotContains(t, joined, "import jupyter", "the runtime is not an import")
}

// TestRenderNotebook_UnknownPackage verifies the bare-import fallback for
// packages outside the known import table.
func TestRenderNotebook_UnknownPackage(t *testing.T) {
	m := &Manifest{Name: "X", Packages: []string{"scikit-learn"}}

	data, err := RenderNotebook(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), "import scikit_learn")
}

// TestEnsureNotebook verifies create-if-absent semantics and that an
// existing notebook is never overwritten.
func TestEnsureNotebook(t *testing.T) {
	m := &Manifest{Name: "Visual Essay", Packages: []string{"pandas"}, Notebook: "essay.ipynb"}

	t.Run("creates when absent", func(t *testing.T) {
		dir := t.TempDir()

		path, created, err := EnsureNotebook(dir, m)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, filepath.Join(dir, "essay.ipynb"), path)

		_, statErr := os.Stat(path)
		assert.NoError(t, statErr)
	})

	t.Run("never overwrites student work", func(t *testing.T) {
		dir := t.TempDir()
		existing := filepath.Join(dir, "essay.ipynb")
		require.NoError(t, os.WriteFile(existing, []byte(`{"my": "essay"}`), 0o644))

		path, created, err := EnsureNotebook(dir, m)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing, path)

		content, readErr := os.ReadFile(existing)
		require.NoError(t, readErr)
		assert.Equal(t, `{"my": "essay"}`, string(content))
	})

	t.Run("disabled without a notebook name", func(t *testing.T) {
		path, created, err := EnsureNotebook(t.TempDir(), &Manifest{Name: "X", Packages: []string{"pandas"}})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Empty(t, path)
	})
}
