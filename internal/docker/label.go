package docker

import (
	"fmt"
	"strconv"
	"time"
)

// Label key constants define the Docker labels applied to notebook
// containers. The labels are the only record that a container belongs to
// nbsetup — there is no external state file — so clean and status can
// rediscover containers purely through Docker API label filters.
//
// All keys share the "nbsetup." prefix to avoid collisions with labels
// set by other tools.
const (
	// LabelPrefix is the common prefix for all nbsetup labels.
	LabelPrefix = "nbsetup."

	// LabelManagedBy identifies containers managed by nbsetup.
	// Key: "nbsetup.managed-by", value: always "nbsetup".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelAssignment stores the assignment's display name.
	LabelAssignment = LabelPrefix + "assignment"

	// LabelProjectPath stores the absolute path of the bind-mounted
	// project directory.
	LabelProjectPath = LabelPrefix + "project-path"

	// LabelNotebook stores the assignment notebook filename, empty when
	// the manifest does not name one.
	LabelNotebook = LabelPrefix + "notebook"

	// LabelHostPort stores the published host port for the Jupyter
	// server, as a decimal string.
	LabelHostPort = LabelPrefix + "host-port"

	// LabelImage stores the notebook image the container was created from.
	LabelImage = LabelPrefix + "image"

	// LabelCreatedAt stores the RFC3339 UTC creation timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value of the LabelManagedBy label.
const ManagedByValue = "nbsetup"

// NotebookRun describes one containerized notebook launch. It is both
// the input to RunNotebook and the structure reconstructed from labels
// by ParseLabels.
type NotebookRun struct {
	// Assignment is the assignment's display name.
	Assignment string

	// ProjectDir is the absolute host path mounted into the container.
	ProjectDir string

	// Notebook is the notebook filename inside ProjectDir, optional.
	Notebook string

	// Image is the Jupyter image to run.
	Image string

	// HostPort is the host port published to the container's Jupyter port.
	HostPort int

	// CreatedAt is when the container was created.
	CreatedAt time.Time
}

// BuildLabels constructs the Docker label map for a notebook run. The
// labels carry enough metadata to reconstruct the NotebookRun from
// container inspection alone.
func BuildLabels(run *NotebookRun) map[string]string {
	return map[string]string{
		LabelManagedBy:   ManagedByValue,
		LabelAssignment:  run.Assignment,
		LabelProjectPath: run.ProjectDir,
		LabelNotebook:    run.Notebook,
		LabelImage:       run.Image,
		LabelHostPort:    strconv.Itoa(run.HostPort),
		LabelCreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs a NotebookRun from a container's label map.
// Returns an error if the container is not nbsetup-managed or carries a
// malformed port label.
func ParseLabels(labels map[string]string) (*NotebookRun, error) {
	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("container is not managed by nbsetup")
	}

	run := &NotebookRun{
		Assignment: labels[LabelAssignment],
		ProjectDir: labels[LabelProjectPath],
		Notebook:   labels[LabelNotebook],
		Image:      labels[LabelImage],
	}

	if portStr := labels[LabelHostPort]; portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("malformed %s label %q: %w", LabelHostPort, portStr, err)
		}
		run.HostPort = port
	}

	if ts := labels[LabelCreatedAt]; ts != "" {
		// A bad timestamp degrades to the zero time rather than failing
		// the whole reconstruction; it is display-only.
		if created, err := time.Parse(time.RFC3339, ts); err == nil {
			run.CreatedAt = created
		}
	}

	return run, nil
}
