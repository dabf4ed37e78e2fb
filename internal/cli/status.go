package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/nbsetup/internal/assignment"
	"github.com/mmr-tortoise/nbsetup/internal/docker"
	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/pip"
	"github.com/mmr-tortoise/nbsetup/internal/venv"
)

// statusInfo is the machine-readable shape of the status report.
type statusInfo struct {
	Assignment    string                `json:"assignment"`
	ManifestPath  string                `json:"manifestPath,omitempty"`
	Environment   model.Environment     `json:"environment"`
	Notebook      string                `json:"notebook,omitempty"`
	NotebookFound bool                  `json:"notebookFound"`
	LockFile      string                `json:"lockFile,omitempty"`
	Container     *docker.ContainerInfo `json:"container,omitempty"`
}

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the assignment environment",
		Long: `Report the current state of the project: which assignment it is,
whether the virtual environment exists and is usable, whether the
starter notebook and lock file are present, and whether a managed
notebook container is running for this project.

Status only inspects; it never creates or repairs anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	projectDir, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	manifest, manifestPath, err := assignment.Resolve(projectDir)
	if err != nil {
		return err
	}

	info := &statusInfo{
		Assignment:   manifest.Name,
		ManifestPath: manifestPath,
		Notebook:     manifest.Notebook,
	}

	venvDir := filepath.Join(projectDir, cfg.VenvDir)
	info.Environment = observeEnvironment(ctx, venvDir, manifest.MinPythonVersion())

	if manifest.Notebook != "" {
		nbPath := filepath.Join(projectDir, manifest.Notebook)
		if _, statErr := os.Stat(nbPath); statErr == nil {
			info.NotebookFound = true
		}
	}

	lockPath := filepath.Join(projectDir, assignment.LockFileName)
	if _, statErr := os.Stat(lockPath); statErr == nil {
		info.LockFile = lockPath
	}

	// Container lookup is best-effort: when no daemon is reachable the
	// report simply has no container section.
	if cli, derr := docker.NewClient(); derr == nil {
		defer cli.Close()
		if cont, ferr := docker.FindForProject(ctx, cli, projectDir); ferr == nil && cont != nil {
			info.Container = cont
		}
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	renderStatus(os.Stdout, info)
	return nil
}

// observeEnvironment takes a point-in-time snapshot of the virtual
// environment: its classified state, the interpreter version recorded
// in pyvenv.cfg, and (for a ready environment) the installed packages.
// Probe failures degrade to an emptier snapshot rather than erroring —
// status reports what it can see.
func observeEnvironment(ctx context.Context, venvDir string, min model.PythonVersion) model.Environment {
	env := model.Environment{
		VenvDir:   venvDir,
		CheckedAt: time.Now(),
	}

	vm := venv.NewManager()
	env.Status = vm.Status(venvDir, min)

	if env.Status != model.StatusMissing {
		if vc, err := vm.ReadConfig(venvDir); err == nil {
			env.PythonVersion = vc.Version
		}
	}

	if env.Status == model.StatusReady {
		runner := pip.NewRunner(venv.PathsFor(venvDir).Python)
		if installed, err := runner.Freeze(ctx); err == nil {
			env.Packages = installed
		}
	}

	return env
}

// renderStatus writes the human-readable status report.
func renderStatus(w io.Writer, info *statusInfo) {
	fmt.Fprintf(w, "Assignment:          %s\n", info.Assignment)
	if info.ManifestPath != "" {
		fmt.Fprintf(w, "Manifest:            %s\n", info.ManifestPath)
	} else {
		fmt.Fprintf(w, "Manifest:            (built-in defaults)\n")
	}
	fmt.Fprintf(w, "Virtual environment: %s (%s)\n", info.Environment.Status, info.Environment.VenvDir)
	if !info.Environment.PythonVersion.IsZero() {
		fmt.Fprintf(w, "Python version:      %s\n", info.Environment.PythonVersion)
	}
	if len(info.Environment.Packages) > 0 {
		fmt.Fprintf(w, "Installed packages:  %d\n", len(info.Environment.Packages))
	}
	if info.Notebook != "" {
		found := "missing, run `nbsetup setup` to scaffold it"
		if info.NotebookFound {
			found = "present"
		}
		fmt.Fprintf(w, "Notebook:            %s (%s)\n", info.Notebook, found)
	}
	if info.LockFile != "" {
		fmt.Fprintf(w, "Lock file:           %s\n", info.LockFile)
	}
	if info.Container != nil {
		fmt.Fprintf(w, "Container:           %s (%s, %s)\n", info.Container.Name, info.Container.State, info.Container.ID)
	}
}
