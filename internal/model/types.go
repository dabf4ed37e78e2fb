// Package model defines the domain types for the nbsetup CLI.
//
// The types here describe the state of a student's assignment environment:
// the Python interpreter that was found, the virtual environment on disk,
// the packages the assignment requires, and the exit-code taxonomy used
// to surface failures to scripts and graders.
//
// Key design decision: nbsetup keeps no state file of its own. Everything
// in this package is a transient representation reconstructed at runtime
// from the filesystem (venv directory, pyvenv.cfg) and from tool output
// (python --version, pip freeze).
package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EnvStatus represents the observed state of the assignment's virtual
// environment. The states form a simple lifecycle:
//
//	Missing → Ready (after setup)
//	Ready → Stale (interpreter older than the assignment requires)
//	Ready/Stale → Broken (directory exists but is not a usable venv)
//	any → Missing (after clean)
type EnvStatus string

const (
	// StatusMissing indicates no virtual environment directory exists.
	StatusMissing EnvStatus = "missing"

	// StatusReady indicates the virtual environment exists, looks like a
	// real venv (pyvenv.cfg present, interpreter executable present), and
	// its interpreter meets the assignment's minimum version.
	StatusReady EnvStatus = "ready"

	// StatusStale indicates the virtual environment is structurally intact
	// but was created with an interpreter older than the assignment
	// requires. Setup recreates stale environments.
	StatusStale EnvStatus = "stale"

	// StatusBroken indicates the directory exists but is not a usable
	// virtual environment (no pyvenv.cfg, or the interpreter inside is
	// missing). This typically means a partial or interrupted creation.
	StatusBroken EnvStatus = "broken"
)

// String returns the string representation of EnvStatus.
// Satisfies fmt.Stringer for CLI output and logging.
func (s EnvStatus) String() string {
	return string(s)
}

// IsValid checks whether the EnvStatus value is one of the predefined states.
func (s EnvStatus) IsValid() bool {
	switch s {
	case StatusMissing, StatusReady, StatusStale, StatusBroken:
		return true
	default:
		return false
	}
}

// ParseEnvStatus converts a string to an EnvStatus.
// Returns an error if the string does not match any valid status.
func ParseEnvStatus(s string) (EnvStatus, error) {
	status := EnvStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid environment status: %q (valid: missing, ready, stale, broken)", s)
	}
	return status, nil
}

// PythonVersion is a parsed CPython version number (major.minor.micro).
//
// The zero value (0.0.0) is treated as "unknown" — pyvenv.cfg files from
// some distributions omit the version field, and a cosmetic field should
// never hard-fail a status check.
type PythonVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Micro int `json:"micro"`
}

// pythonVersionRegex extracts the numeric version from strings such as
// "Python 3.11.4", "3.8", or "3.13.0rc2". Trailing pre-release tags are
// ignored — only the numeric components matter for the minimum-version gate.
var pythonVersionRegex = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParsePythonVersion extracts a PythonVersion from free-form version text.
//
// Accepted inputs include the output of `python --version` ("Python 3.11.4"),
// bare version strings ("3.8"), and pyvenv.cfg values ("3.12.1"). The micro
// component is optional and defaults to 0.
func ParsePythonVersion(s string) (PythonVersion, error) {
	m := pythonVersionRegex.FindStringSubmatch(s)
	if m == nil {
		return PythonVersion{}, fmt.Errorf("no Python version found in %q", s)
	}

	// The regex guarantees the matched groups are digit runs, so Atoi
	// cannot fail here.
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	micro := 0
	if m[3] != "" {
		micro, _ = strconv.Atoi(m[3])
	}

	return PythonVersion{Major: major, Minor: minor, Micro: micro}, nil
}

// String returns the version in "major.minor.micro" form.
func (v PythonVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// IsZero reports whether the version is the unknown/zero value.
func (v PythonVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Micro == 0
}

// Compare returns -1, 0, or +1 if v is older than, equal to, or newer
// than other. Comparison is lexicographic over (major, minor, micro).
func (v PythonVersion) Compare(other PythonVersion) int {
	pairs := [][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Micro, other.Micro},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v satisfies the given minimum version.
func (v PythonVersion) AtLeast(min PythonVersion) bool {
	return v.Compare(min) >= 0
}

// Requirement is a single Python package requirement, as written on a
// requirements.txt line: a distribution name plus an optional version
// specifier ("pandas==2.2.1", "plotly>=5.0", or just "jupyter").
type Requirement struct {
	// Name is the distribution name, including any extras
	// (e.g. "jupyter[all]"). pip treats names case-insensitively,
	// so the casing we read is preserved as-is.
	Name string `json:"name"`

	// Specifier is the raw version constraint including its operator
	// (e.g. "==2.2.1", ">=5.0"). Empty means "any version".
	Specifier string `json:"specifier,omitempty"`
}

// requirementRegex splits a requirement line into name and specifier.
// Environment markers and hash options are out of scope for an
// assignment requirements file.
var requirementRegex = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._\[\]-]*)\s*([=<>!~]=?\s*[^\s].*)?$`)

// ParseRequirement parses one requirements.txt line into a Requirement.
// Blank and comment lines are rejected; callers filter those first.
func ParseRequirement(line string) (Requirement, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Requirement{}, fmt.Errorf("not a requirement line: %q", line)
	}

	m := requirementRegex.FindStringSubmatch(line)
	if m == nil {
		return Requirement{}, fmt.Errorf("invalid requirement %q", line)
	}

	return Requirement{
		Name:      m[1],
		Specifier: strings.ReplaceAll(strings.TrimSpace(m[2]), " ", ""),
	}, nil
}

// String returns the requirement in requirements.txt line form.
func (r Requirement) String() string {
	return r.Name + r.Specifier
}

// Interpreter describes a discovered Python interpreter: where it lives
// and what version it reported.
type Interpreter struct {
	// Path is the absolute path to the interpreter executable.
	Path string `json:"path"`

	// Args are fixed arguments inserted before any command arguments.
	// The Windows `py` launcher needs "-3" to select a Python 3 runtime;
	// for directly invokable interpreters this is empty.
	Args []string `json:"args,omitempty"`

	// Version is the interpreter's reported version.
	Version PythonVersion `json:"version"`
}

// Command returns the full argv for invoking this interpreter with the
// given extra arguments.
func (i Interpreter) Command(extra ...string) []string {
	argv := make([]string, 0, 1+len(i.Args)+len(extra))
	argv = append(argv, i.Path)
	argv = append(argv, i.Args...)
	argv = append(argv, extra...)
	return argv
}

// Environment is the aggregate view of the assignment environment,
// reconstructed from disk and tool output. It backs the status report
// in both its text and JSON forms.
type Environment struct {
	// VenvDir is the absolute path to the virtual environment directory.
	VenvDir string `json:"venvDir"`

	// Status is the observed environment state.
	Status EnvStatus `json:"status"`

	// PythonVersion is the interpreter version recorded in pyvenv.cfg.
	// Zero when unknown.
	PythonVersion PythonVersion `json:"pythonVersion"`

	// Packages are the installed distributions as reported by pip freeze.
	// Empty when the environment is missing or broken.
	Packages []Requirement `json:"packages,omitempty"`

	// CheckedAt is when this snapshot was taken.
	CheckedAt time.Time `json:"checkedAt"`
}

// venvDirRegex validates venv directory names: a plain path component
// that does not start with a dash (tools would misread it as a flag).
var venvDirRegex = regexp.MustCompile(`^[A-Za-z0-9._][A-Za-z0-9._-]*$`)

// ValidateVenvDirName checks that the configured venv directory name is a
// single safe path component. The name is joined onto the project
// directory and handed to external tools, so separators and flag-like
// names are rejected.
func ValidateVenvDirName(name string) error {
	if name == "" {
		return fmt.Errorf("venv directory name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("venv directory name %q must not contain path separators", name)
	}
	if !venvDirRegex.MatchString(name) {
		return fmt.Errorf("invalid venv directory name %q", name)
	}
	return nil
}

// ExitCode defines the CLI exit codes. These codes let scripts, CI, and
// autograders distinguish the failure modes programmatically: interpreter
// discovery, environment creation, package installation (with
// connectivity split out), and the container fallback.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitPythonNotFound indicates no suitable Python interpreter was
	// found, or the one found is older than the assignment requires.
	ExitPythonNotFound ExitCode = 2

	// ExitVenvCreateFailed indicates `python -m venv` failed or an
	// existing environment could not be removed for recreation.
	ExitVenvCreateFailed ExitCode = 3

	// ExitInstallFailed indicates package installation failed for a
	// reason other than connectivity (resolver conflict, build error).
	ExitInstallFailed ExitCode = 4

	// ExitNetworkFailure indicates package installation failed with a
	// recognizable connectivity signature (DNS, timeout, proxy, TLS).
	ExitNetworkFailure ExitCode = 5

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	// Only relevant to `launch --container` and `clean --containers`.
	ExitDockerNotRunning ExitCode = 6

	// ExitUserCancelled indicates the user declined a confirmation
	// prompt or interrupted the run.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Hint is optional follow-up guidance printed after the error
	// ("Please update Python from ...", "Check your internet connection").
	Hint string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// WithHint attaches follow-up guidance to the error and returns it.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}
