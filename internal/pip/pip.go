// Package pip drives the package installer inside the virtual environment.
//
// All pip invocations go through the venv's own interpreter
// (`<venv>/bin/python -m pip ...`) rather than a bare `pip` executable.
// Invoking pip as a module guarantees packages land in the venv and
// sidesteps stale pip shims left on PATH by other installations.
//
// Installation output streams to the terminal so students see download
// progress; stderr is additionally captured so failures can be
// classified (connectivity vs everything else) after the fact.
package pip

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// Runner executes pip commands through a specific venv interpreter.
type Runner struct {
	// python is the path to the virtual environment's interpreter.
	python string
}

// NewRunner creates a Runner bound to the venv interpreter at pythonPath.
func NewRunner(pythonPath string) *Runner {
	return &Runner{python: pythonPath}
}

// Upgrade runs `python -m pip install --upgrade pip` inside the venv.
//
// Callers should treat a failure as a warning, not a fatal error: an old
// pip still installs the assignment's packages, it is just noisier about it.
func (r *Runner) Upgrade(ctx context.Context) error {
	_, _, err := r.run(ctx, "install", "--upgrade", "pip")
	if err != nil {
		return fmt.Errorf("failed to upgrade pip: %w", err)
	}
	return nil
}

// Install runs `python -m pip install -r <requirementsPath>` inside the venv.
//
// If indexURL is non-empty it is passed via --index-url (campus mirrors,
// proxy setups). Progress output streams to the caller's stdout/stderr.
//
// On failure the captured stderr is classified: recognizable connectivity
// signatures produce ExitNetworkFailure with the check-your-connection
// guidance; anything else produces ExitInstallFailed with a
// manual-installation hint.
func (r *Runner) Install(ctx context.Context, requirementsPath, indexURL string) error {
	args := []string{"install", "-r", requirementsPath}
	if indexURL != "" {
		args = append(args, "--index-url", indexURL)
	}

	stderr, err := r.runStreaming(ctx, args...)
	if err == nil {
		return nil
	}

	// A cancelled context kills the subprocess, which then surfaces as
	// an ordinary exit error; check the context before classifying
	// stderr or Ctrl-C would be reported as an install failure.
	if ctx.Err() != nil {
		return model.WrapCLIError(model.ExitUserCancelled, "setup cancelled", ctx.Err())
	}

	if IsNetworkError(stderr) {
		return model.WrapCLIError(
			model.ExitNetworkFailure,
			"failed to download packages",
			err,
		).WithHint("Check your internet connection and re-run setup")
	}

	return model.WrapCLIError(
		model.ExitInstallFailed,
		"failed to install packages",
		err,
	).WithHint(fmt.Sprintf("You can try installing manually: %s -m pip install -r %s", r.python, requirementsPath))
}

// Freeze runs `python -m pip freeze` and parses the output into pinned
// requirements. Editable installs and VCS lines are skipped — they cannot
// appear in a fresh assignment venv and do not round-trip as pins.
func (r *Runner) Freeze(ctx context.Context) ([]model.Requirement, error) {
	stdout, _, err := r.run(ctx, "freeze")
	if err != nil {
		return nil, fmt.Errorf("pip freeze failed: %w", err)
	}
	return ParseFreeze(stdout), nil
}

// ParseFreeze converts `pip freeze` output into Requirements, one per
// "name==version" line. Unparseable lines are dropped silently; freeze
// output is advisory, not a contract.
func ParseFreeze(output string) []model.Requirement {
	var reqs []model.Requirement
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		req, err := model.ParseRequirement(line)
		if err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// NormalizeName canonicalizes a package name the way package indexes do:
// lowercase, with runs of "-", "_", and "." collapsed to a single "-".
// Extras ("pandas[excel]") are stripped first.
func NormalizeName(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	return nameSeparators.ReplaceAllString(name, "-")
}

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// Missing returns the names from wanted that have no installed
// counterpart, comparing normalized names only. Version pins are not
// checked; pip already resolved them at install time.
func Missing(installed, wanted []model.Requirement) []string {
	have := make(map[string]struct{}, len(installed))
	for _, req := range installed {
		have[NormalizeName(req.Name)] = struct{}{}
	}

	var missing []string
	for _, req := range wanted {
		if _, ok := have[NormalizeName(req.Name)]; !ok {
			missing = append(missing, req.Name)
		}
	}
	return missing
}

// networkErrorSignatures are substrings of pip/urllib3 stderr output that
// indicate the failure was connectivity, not the packages themselves.
// Matching is case-insensitive.
var networkErrorSignatures = []string{
	"temporary failure in name resolution",
	"failed to establish a new connection",
	"newconnectionerror",
	"connection timed out",
	"readtimeouterror",
	"connecttimeouterror",
	"network is unreachable",
	"proxyerror",
	"sslerror",
	"ssl: certificate_verify_failed",
	"could not fetch url",
	"no matching distribution found", // offline pip reports resolution this way
	"connection refused",
	"connection reset by peer",
}

// IsNetworkError reports whether pip stderr output matches a known
// connectivity failure signature.
func IsNetworkError(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, sig := range networkErrorSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// run executes `python -m pip <args...>` capturing both output streams.
func (r *Runner) run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	fullArgs := append([]string{"-m", "pip"}, args...)

	// #nosec G204 — the interpreter path comes from the venv we created
	cmd := exec.CommandContext(ctx, r.python, fullArgs...)

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if runErr != nil {
		stderrStr := strings.TrimSpace(errBuf.String())
		message := fmt.Sprintf("pip %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", errBuf.String(), fmt.Errorf("%s: %w", message, runErr)
	}

	return outBuf.String(), errBuf.String(), nil
}

// runStreaming executes `python -m pip <args...>` with stdout passed
// through to the terminal (so download progress is visible) while stderr
// is both passed through and captured for failure classification.
func (r *Runner) runStreaming(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-m", "pip"}, args...)

	// #nosec G204 — the interpreter path comes from the venv we created
	cmd := exec.CommandContext(ctx, r.python, fullArgs...)

	var errBuf strings.Builder
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &errBuf)

	err := cmd.Run()
	return errBuf.String(), err
}
