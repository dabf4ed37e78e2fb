package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/nbsetup/internal/assignment"
	"github.com/mmr-tortoise/nbsetup/internal/docker"
	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/port"
	"github.com/mmr-tortoise/nbsetup/internal/venv"
)

// launchOptions holds the flag values for the launch command.
type launchOptions struct {
	container bool   // --container: run Jupyter in Docker instead of the venv
	image     string // --image: override the notebook image
	port      int    // --port: preferred host port
}

// NewLaunchCommand creates the "launch" cobra command.
func NewLaunchCommand() *cobra.Command {
	opts := &launchOptions{}

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start Jupyter Notebook for the assignment",
		Long: `Start Jupyter Notebook, opening the assignment's notebook file.

By default the notebook server runs from the project's virtual
environment, which must have been set up first. With --container the
server runs inside a Docker container instead, mounting the project
directory; this works even without a local Python installation.

Examples:
  nbsetup launch
  nbsetup launch --container
  nbsetup launch --container --port 9999`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.container || opts.image != "" {
				return runLaunchContainer(cmd.Context(), opts)
			}
			return runLaunchLocal(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.container, "container", false, "Run Jupyter inside a Docker container")
	cmd.Flags().StringVar(&opts.image, "image", "", "Notebook container image (implies --container)")
	cmd.Flags().IntVar(&opts.port, "port", port.DefaultJupyterPort, "Preferred host port for the notebook server")
	return cmd
}

// runLaunchLocal execs jupyter from the project's virtual environment.
func runLaunchLocal(ctx context.Context, opts *launchOptions) error {
	cfg, err := LoadConfig()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	projectDir, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}
	manifest, _, err := assignment.Resolve(projectDir)
	if err != nil {
		return err
	}

	venvDir := filepath.Join(projectDir, cfg.VenvDir)
	status := venv.NewManager().Status(venvDir, manifest.MinPythonVersion())
	if status != model.StatusReady {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("virtual environment is %s", status)).
			WithHint("Run: nbsetup setup")
	}

	jupyterPath, err := venv.LookPathInVenv(venvDir, "jupyter")
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "jupyter not found in the virtual environment", err).
			WithHint("Run `nbsetup setup` to install the required packages")
	}

	args := []string{"notebook"}
	if manifest.Notebook != "" {
		if _, statErr := os.Stat(filepath.Join(projectDir, manifest.Notebook)); statErr == nil {
			args = append(args, manifest.Notebook)
		}
	}

	VerboseLog("Executing: %s %v", jupyterPath, args)
	if !IsJSONOutput() {
		fmt.Println("Starting Jupyter Notebook... (press Ctrl+C to stop)")
	}

	// Jupyter owns the terminal until the student stops it, so wire the
	// standard streams straight through.
	jupyter := exec.CommandContext(ctx, jupyterPath, args...)
	jupyter.Dir = projectDir
	jupyter.Stdin = os.Stdin
	jupyter.Stdout = os.Stdout
	jupyter.Stderr = os.Stderr
	if err := jupyter.Run(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "jupyter exited with an error", err)
	}
	return nil
}

// containerLaunchResult is the JSON shape for a container launch.
type containerLaunchResult struct {
	ContainerID string `json:"containerId"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	URL         string `json:"url"`
	Reused      bool   `json:"reused"`
}

// runLaunchContainer starts (or reuses) a managed notebook container.
func runLaunchContainer(ctx context.Context, opts *launchOptions) error {
	cfg, err := LoadConfig()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	projectDir, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}
	manifest, _, err := assignment.Resolve(projectDir)
	if err != nil {
		return err
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()
	if err := cli.Ping(ctx); err != nil {
		return err
	}

	// Reuse a running container for this project rather than stacking a
	// second server on another port.
	if existing, ferr := docker.FindForProject(ctx, cli, projectDir); ferr == nil && existing != nil && existing.State == "running" {
		printContainerResult(existing, true)
		return nil
	}

	image := opts.image
	if image == "" {
		image = cfg.JupyterImage
	}
	if !IsJSONOutput() {
		fmt.Printf("Pulling image %s (if needed)...\n", image)
	}
	progressOut := os.Stderr
	if err := docker.EnsureImage(ctx, cli, image, progressOut); err != nil {
		return err
	}

	hostPort, err := port.Free(opts.port)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "no free port for the notebook server", err)
	}

	run := &docker.NotebookRun{
		Assignment: manifest.Name,
		ProjectDir: projectDir,
		Notebook:   manifest.Notebook,
		Image:      image,
		HostPort:   hostPort,
		CreatedAt:  time.Now(),
	}
	id, err := docker.RunNotebook(ctx, cli, run)
	if err != nil {
		return err
	}

	info := &docker.ContainerInfo{ID: id, State: "running", Run: run}
	printContainerResult(info, false)
	return nil
}

// printContainerResult reports where the notebook server is listening.
func printContainerResult(info *docker.ContainerInfo, reused bool) {
	url := ""
	if info.Run != nil {
		url = fmt.Sprintf("http://127.0.0.1:%d", info.Run.HostPort)
		if info.Run.Notebook != "" {
			url += "/notebooks/" + info.Run.Notebook
		}
	}

	if IsJSONOutput() {
		result := &containerLaunchResult{
			ContainerID: info.ID,
			Name:        info.Name,
			URL:         url,
			Reused:      reused,
		}
		if info.Run != nil {
			result.Image = info.Run.Image
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	if reused {
		fmt.Println("Notebook container is already running.")
	} else {
		fmt.Println("Notebook container started.")
	}
	if url != "" {
		fmt.Printf("Open: %s\n", url)
	}
	fmt.Println("Stop it later with: nbsetup clean --containers")
}
