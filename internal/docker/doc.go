// Package docker implements the containerized notebook fallback.
//
// Students whose machines have Docker but no usable Python can run the
// assignment in a Jupyter container (the jupyter/scipy-notebook stack
// ships pandas and plotly preinstalled). This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - pulling the notebook image when it is not present locally
//   - creating and starting the notebook container with the project
//     directory bind-mounted and the Jupyter port published
//   - discovering, stopping, and removing nbsetup-managed containers
//     via the nbsetup.* label schema
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
