package assignment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// TestRenderRequirements verifies the generated file content: header plus
// one line per package in manifest order.
func TestRenderRequirements(t *testing.T) {
	m := &Manifest{Name: "Visual Essay", Packages: []string{"pandas==2.2.1", "plotly", "jupyter"}}

	content := string(RenderRequirements(m))
	assert.Contains(t, content, "# Requirements for Visual Essay")
	assert.Contains(t, content, "pandas==2.2.1\nplotly\njupyter\n")
}

// TestEnsureRequirementsFile verifies create-if-absent semantics.
func TestEnsureRequirementsFile(t *testing.T) {
	m := &Manifest{Name: "Visual Essay", Packages: []string{"pandas"}}

	t.Run("creates when absent", func(t *testing.T) {
		dir := t.TempDir()

		path, created, err := EnsureRequirementsFile(dir, m)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, filepath.Join(dir, RequirementsFileName), path)
	})

	t.Run("keeps an existing file untouched", func(t *testing.T) {
		dir := t.TempDir()
		existing := filepath.Join(dir, RequirementsFileName)
		require.NoError(t, os.WriteFile(existing, []byte("seaborn\n"), 0o644))

		path, created, err := EnsureRequirementsFile(dir, m)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing, path)

		content, readErr := os.ReadFile(existing)
		require.NoError(t, readErr)
		assert.Equal(t, "seaborn\n", string(content))
	})
}

// TestLoadRequirementsFile verifies parsing of a hand-written file with
// comments and pip option lines.
func TestLoadRequirementsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, RequirementsFileName)
	content := `# essay packages
pandas==2.2.1

--index-url https://mirror.example.edu/simple
plotly>=5.0
jupyter
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reqs, err := LoadRequirementsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []model.Requirement{
		{Name: "pandas", Specifier: "==2.2.1"},
		{Name: "plotly", Specifier: ">=5.0"},
		{Name: "jupyter"},
	}, reqs)
}

// TestLoadRequirementsFile_Invalid verifies malformed lines are surfaced.
func TestLoadRequirementsFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, RequirementsFileName)
	require.NoError(t, os.WriteFile(path, []byte("===broken===\n"), 0o644))

	_, err := LoadRequirementsFile(path)
	assert.Error(t, err)
}
