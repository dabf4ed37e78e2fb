// Package python locates and interrogates the host Python interpreter.
//
// This package wraps the Python CLI (via os/exec) to discover a suitable
// interpreter on PATH, parse the version it reports, and enforce the
// assignment's minimum-version requirement. It serves as the interpreter
// integration layer for the nbsetup CLI.
//
// Design decisions:
//   - We shell out to `python --version` rather than inspecting binaries,
//     because the interpreter itself is the only authority on its version,
//     and the same probe works for CPython, pyenv shims, and the Windows
//     `py` launcher alike.
//   - On Windows the `py -3` launcher is probed first: it is installed by
//     the official python.org installer even when no `python` is on PATH.
//   - Probe failures on one candidate fall through to the next; only the
//     exhaustion of all candidates is an error.
package python

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// probeTimeout bounds a single `python --version` invocation. A healthy
// interpreter answers in milliseconds; anything slower is a broken shim
// (the Windows Store alias is the usual offender) and should not stall
// the whole discovery loop.
const probeTimeout = 10 * time.Second

// candidate is one interpreter probe target: an executable name to look
// up on PATH plus fixed launcher arguments.
type candidate struct {
	exe  string
	args []string
}

// candidatesFor returns the interpreter probe order for the given OS.
//
// Windows ordering matters: the python.org installer registers the `py`
// launcher reliably, while `python` on PATH is often the Microsoft Store
// alias — a stub that opens the Store instead of running Python.
func candidatesFor(goos string) []candidate {
	if goos == "windows" {
		return []candidate{
			{exe: "py", args: []string{"-3"}},
			{exe: "python3"},
			{exe: "python"},
		}
	}
	return []candidate{
		{exe: "python3"},
		{exe: "python"},
	}
}

// Find discovers a Python interpreter that satisfies the given minimum
// version.
//
// If override is non-empty (from user config or a flag), only that
// executable is probed — a student who configured a specific interpreter
// should never be silently switched to another one.
//
// Returns a model.CLIError with ExitPythonNotFound when no candidate is
// usable, carrying guidance on where to get Python. A found-but-too-old
// interpreter is reported distinctly from not finding one at all.
func Find(ctx context.Context, override string, min model.PythonVersion) (*model.Interpreter, error) {
	cands := candidatesFor(runtime.GOOS)
	if override != "" {
		cands = []candidate{{exe: override}}
	}

	var tooOld *model.Interpreter
	for _, c := range cands {
		interp, err := probe(ctx, c)
		if err != nil {
			continue
		}
		if !interp.Version.AtLeast(min) {
			// Remember the best near-miss so the error message can say
			// "3.7.9 is too old" instead of "not found".
			if tooOld == nil || interp.Version.Compare(tooOld.Version) > 0 {
				tooOld = interp
			}
			continue
		}
		return interp, nil
	}

	if tooOld != nil {
		return nil, model.NewCLIError(
			model.ExitPythonNotFound,
			fmt.Sprintf("Python %s is too old — this project requires Python %d.%d or higher",
				tooOld.Version, min.Major, min.Minor),
		).WithHint("Please update Python from https://www.python.org/downloads/")
	}

	return nil, model.NewCLIError(
		model.ExitPythonNotFound,
		"no Python interpreter found on PATH",
	).WithHint("Install Python from https://www.python.org/downloads/ and re-run setup")
}

// probe resolves a candidate on PATH and asks it for its version.
// Any failure (not on PATH, refuses to run, unparseable output) makes
// the candidate unusable.
func probe(ctx context.Context, c candidate) (*model.Interpreter, error) {
	path, err := exec.LookPath(c.exe)
	if err != nil {
		return nil, err
	}

	out, err := runVersion(ctx, path, c.args)
	if err != nil {
		return nil, err
	}

	version, err := parseVersionOutput(out)
	if err != nil {
		// The Microsoft Store alias and similar shims print help text or
		// nothing at all; treating that as "no version" skips them.
		return nil, err
	}

	return &model.Interpreter{Path: path, Args: c.args, Version: version}, nil
}

// runVersion executes `<path> [args...] --version` and returns the
// combined output. Python 2 printed the version to stderr, Python 3
// prints it to stdout; capturing both sides handles either.
func runVersion(ctx context.Context, path string, args []string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	fullArgs := append(append([]string{}, args...), "--version")
	// #nosec G204 — the executable path comes from exec.LookPath over a
	// fixed candidate list or explicit user configuration
	cmd := exec.CommandContext(probeCtx, path, fullArgs...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", path, err)
	}
	return string(out), nil
}

// parseVersionOutput extracts the interpreter version from `--version`
// output. Exactly one "Python X.Y.Z" line is expected; output without a
// recognizable version (Store alias banners, shim errors) is rejected.
func parseVersionOutput(out string) (model.PythonVersion, error) {
	line := strings.TrimSpace(out)
	if line == "" {
		return model.PythonVersion{}, fmt.Errorf("interpreter produced no version output")
	}
	if !strings.Contains(line, "Python") {
		return model.PythonVersion{}, fmt.Errorf("unexpected --version output: %q", firstLine(line))
	}
	return model.ParsePythonVersion(line)
}

// firstLine truncates multi-line tool output for error messages.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Run executes the interpreter with the given arguments in dir and
// returns its stdout. Stderr is folded into the returned error on
// failure, mirroring how the rest of the CLI surfaces external tool
// output.
func Run(ctx context.Context, interp *model.Interpreter, dir string, args ...string) (string, error) {
	argv := interp.Command(args...)

	// #nosec G204 — argv is constructed from a verified interpreter path
	// and internally built arguments
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A cancelled context kills the subprocess; surface the context
		// error so callers can tell an interrupt from a tool failure.
		if ctx.Err() != nil {
			return "", fmt.Errorf("python %s cancelled: %w", strings.Join(args, " "), ctx.Err())
		}
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("python %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}

	return stdout.String(), nil
}
