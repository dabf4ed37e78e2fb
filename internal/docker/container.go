// container.go implements the notebook container lifecycle: image pull,
// create/start, label-based discovery, stop, and remove.
//
// One container serves one project directory. RunNotebook does not guard
// against duplicates itself — the CLI checks for an existing container
// first and tells the student where it is already running.
package docker

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-connections/nat"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// JupyterPort is the port the Jupyter server listens on inside the
// official notebook images.
const JupyterPort = 8888

// containerWorkDir is where the project directory is mounted. The
// jupyter/* stack images run as the "jovyan" user with this home.
const containerWorkDir = "/home/jovyan/work"

// ContainerInfo holds runtime information about a managed container,
// decoupling CLI output from the Docker SDK types.
type ContainerInfo struct {
	// ID is the Docker container identifier.
	ID string `json:"id"`

	// Name is the container name without the API's leading slash.
	Name string `json:"name"`

	// State is the short Docker state string ("running", "exited", ...).
	State string `json:"state"`

	// Run is the notebook metadata reconstructed from labels.
	Run *NotebookRun `json:"run,omitempty"`
}

// EnsureImage makes the notebook image available locally, pulling it
// when absent. The pull stream is drained to completion — the Docker API
// performs the pull lazily as the response body is read.
//
// Progress is written to progressOut when non-nil (the CLI passes
// stderr so JSON output on stdout stays clean).
func EnsureImage(ctx context.Context, cli *Client, ref string, progressOut io.Writer) error {
	// A successful inspect means the image is already local.
	if _, err := cli.Inner().ImageInspect(ctx, ref); err == nil {
		return nil
	}

	reader, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitNetworkFailure,
			fmt.Sprintf("failed to pull image %s", ref),
			err,
		).WithHint("Check your internet connection and re-run")
	}
	defer func() { _ = reader.Close() }()

	if progressOut == nil {
		progressOut = io.Discard
	}
	if _, err := io.Copy(progressOut, reader); err != nil {
		return model.WrapCLIError(
			model.ExitNetworkFailure,
			fmt.Sprintf("image pull for %s was interrupted", ref),
			err,
		)
	}
	return nil
}

// RunNotebook creates and starts a Jupyter container for the given run:
// project directory bind-mounted at the image's work directory, host
// port published to the container's Jupyter port, nbsetup labels
// attached, and token authentication disabled (a localhost-only
// classroom container gains nothing from a token the student has to
// fish out of the logs).
//
// Returns the new container's ID.
func RunNotebook(ctx context.Context, cli *Client, run *NotebookRun) (string, error) {
	containerPort, err := nat.NewPort("tcp", fmt.Sprintf("%d", JupyterPort))
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "invalid Jupyter port", err)
	}

	config := &container.Config{
		Image:  run.Image,
		Labels: BuildLabels(run),
		Cmd: []string{
			"start-notebook.py",
			"--IdentityProvider.token=",
		},
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
	}

	hostConfig := &container.HostConfig{
		Binds: []string{run.ProjectDir + ":" + containerWorkDir},
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: fmt.Sprintf("%d", run.HostPort)},
			},
		},
	}

	created, err := cli.Inner().ContainerCreate(ctx, config, hostConfig, nil, nil, containerName(run))
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to create notebook container",
			err,
		)
	}

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to start notebook container",
			err,
		)
	}

	return created.ID, nil
}

// containerName derives a stable container name from the project
// directory's base name. Docker names allow [a-zA-Z0-9_.-]; everything
// else becomes a hyphen.
func containerName(run *NotebookRun) string {
	base := run.ProjectDir
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	name := strings.Trim(b.String(), "-.")
	if name == "" {
		name = "assignment"
	}
	return "nbsetup-" + name
}

// ListManaged queries the daemon for all nbsetup-managed containers,
// including stopped ones. Filtering happens server-side via the
// managed-by label.
func ListManaged(ctx context.Context, cli *Client) ([]ContainerInfo, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// FindForProject returns the managed container serving the given project
// directory, or nil when none exists.
func FindForProject(ctx context.Context, cli *Client, projectDir string) (*ContainerInfo, error) {
	containers, err := ListManaged(ctx, cli)
	if err != nil {
		return nil, err
	}
	for i := range containers {
		if containers[i].Run != nil && containers[i].Run.ProjectDir == projectDir {
			return &containers[i], nil
		}
	}
	return nil, nil
}

// StopAndRemove stops (if running) and removes a managed container.
// Stop uses the daemon's default grace period; remove is forced so a
// container stuck in a bad state still goes away.
func StopAndRemove(ctx context.Context, cli *Client, id string) error {
	// Stopping an already-stopped container is not an error worth
	// surfacing; removal is the operation that matters.
	_ = cli.Inner().ContainerStop(ctx, id, container.StopOptions{})

	if err := cli.Inner().ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %s", shortID(id)),
			err,
		)
	}
	return nil
}

// containerToInfo converts a Docker API container to ContainerInfo.
// The API reports names with a leading "/" that is stripped for display.
// Label parse failures leave Run nil rather than failing the listing —
// a half-labeled container should still show up in clean.
func containerToInfo(c types.Container) ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	info := ContainerInfo{
		ID:    c.ID,
		Name:  name,
		State: c.State,
	}
	if run, err := ParseLabels(c.Labels); err == nil {
		info.Run = run
	}
	return info
}

// shortID trims a container ID to the 12-character form Docker shows.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
