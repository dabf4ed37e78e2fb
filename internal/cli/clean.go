package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/nbsetup/internal/docker"
	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/venv"
)

// cleanOptions holds the flag values for the clean command.
type cleanOptions struct {
	containers bool // --containers: also stop and remove managed containers
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	opts := &cleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the virtual environment (and optionally containers)",
		Long: `Remove the project's virtual environment so the next setup starts
from scratch. The notebook, requirements.txt, and lock file are left
alone — clean never touches student work.

With --containers, managed notebook containers for this project are
stopped and removed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.containers, "containers", false, "Also stop and remove managed notebook containers")
	return cmd
}

// cleanResult is the JSON shape of a clean run.
type cleanResult struct {
	VenvRemoved       bool     `json:"venvRemoved"`
	VenvDir           string   `json:"venvDir,omitempty"`
	ContainersRemoved []string `json:"containersRemoved,omitempty"`
}

func runClean(ctx context.Context, opts *cleanOptions) error {
	cfg, err := LoadConfig()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	projectDir, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	result := &cleanResult{}

	venvDir := filepath.Join(projectDir, cfg.VenvDir)
	vm := venv.NewManager()
	if vm.Exists(venvDir) {
		if !Confirm(fmt.Sprintf("Remove virtual environment at %s?", venvDir)) {
			return model.NewCLIError(model.ExitUserCancelled, "clean cancelled").
				WithHint("Re-run with --yes to skip the confirmation")
		}
		// removeVenvTree rather than Remove: a broken directory (no
		// pyvenv.cfg) is exactly what clean is for.
		if err := removeVenvTree(vm, venvDir, model.ExitGeneralError); err != nil {
			return err
		}
		result.VenvRemoved = true
		result.VenvDir = venvDir
		if !IsJSONOutput() {
			fmt.Printf("Removed %s\n", venvDir)
		}
	} else if !IsJSONOutput() {
		fmt.Println("No virtual environment to remove.")
	}

	if opts.containers {
		removed, cerr := cleanContainers(ctx, projectDir)
		if cerr != nil {
			return cerr
		}
		result.ContainersRemoved = removed
		if !IsJSONOutput() {
			if len(removed) == 0 {
				fmt.Println("No managed containers for this project.")
			}
			for _, id := range removed {
				fmt.Printf("Removed container %s\n", id)
			}
		}
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	}
	return nil
}

// cleanContainers stops and removes every managed container whose
// project path matches the current project.
func cleanContainers(ctx context.Context, projectDir string) ([]string, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	defer cli.Close()
	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}

	managed, err := docker.ListManaged(ctx, cli)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, c := range managed {
		if c.Run == nil || c.Run.ProjectDir != projectDir {
			continue
		}
		VerboseLog("Stopping container %s (%s)", c.Name, c.ID)
		if err := docker.StopAndRemove(ctx, cli, c.ID); err != nil {
			return removed, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to remove container %s", c.ID), err)
		}
		removed = append(removed, c.ID)
	}
	return removed, nil
}
