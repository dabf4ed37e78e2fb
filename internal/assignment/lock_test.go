package assignment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// lockFixture returns inputs for a representative lock generation.
func lockFixture() (*Manifest, *model.Interpreter, []model.Requirement, time.Time) {
	m := &Manifest{Name: "Visual Essay", Packages: []string{"pandas", "plotly", "jupyter"}}
	interp := &model.Interpreter{
		Path:    "/usr/bin/python3",
		Version: model.PythonVersion{Major: 3, Minor: 11, Micro: 4},
	}
	frozen := []model.Requirement{
		{Name: "plotly", Specifier: "==5.20.0"},
		{Name: "pandas", Specifier: "==2.2.1"},
		{Name: "numpy", Specifier: "==1.26.4"},
	}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return m, interp, frozen, now
}

// TestGenerateLock verifies the snapshot content round-trips through YAML
// and that the header comment is present.
func TestGenerateLock(t *testing.T) {
	data, err := GenerateLock(lockFixture())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(data), "# Generated by nbsetup"))

	var parsed struct {
		Assignment string `yaml:"assignment"`
		CreatedAt  string `yaml:"createdAt"`
		Python     struct {
			Version    string `yaml:"version"`
			Executable string `yaml:"executable"`
		} `yaml:"python"`
		Packages []string `yaml:"packages"`
	}
	require.NoError(t, yaml.Unmarshal(data, &parsed))

	assert.Equal(t, "Visual Essay", parsed.Assignment)
	assert.Equal(t, "2026-08-30T12:00:00Z", parsed.CreatedAt)
	assert.Equal(t, "3.11.4", parsed.Python.Version)
	assert.Equal(t, "/usr/bin/python3", parsed.Python.Executable)
	// Packages come out sorted regardless of pip freeze order.
	assert.Equal(t, []string{"numpy==1.26.4", "pandas==2.2.1", "plotly==5.20.0"}, parsed.Packages)
}

// TestGenerateLock_Deterministic verifies repeated generation with the
// same inputs (timestamp included) produces byte-identical files.
func TestGenerateLock_Deterministic(t *testing.T) {
	first, err := GenerateLock(lockFixture())
	require.NoError(t, err)
	second, err := GenerateLock(lockFixture())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestWriteLock verifies the file lands next to the project and is
// overwritten on refresh.
func TestWriteLock(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteLock(dir, []byte("# first\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockFileName), path)

	_, err = WriteLock(dir, []byte("# second\n"))
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# second\n", string(content))
}
