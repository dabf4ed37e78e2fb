package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/nbsetup/internal/assignment"
	"github.com/mmr-tortoise/nbsetup/internal/docker"
	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/pip"
	"github.com/mmr-tortoise/nbsetup/internal/python"
	"github.com/mmr-tortoise/nbsetup/internal/venv"
)

// doctorCheck is one diagnostic result.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
	Hint   string `json:"hint,omitempty"`
}

// doctorReport aggregates all checks for JSON output.
type doctorReport struct {
	Checks  []doctorCheck `json:"checks"`
	Healthy bool          `json:"healthy"`
}

// NewDoctorCommand creates the "doctor" cobra command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local environment without changing anything",
		Long: `Check every prerequisite the setup needs and report what is
missing. Doctor never modifies anything: it probes the Python
interpreter, the virtual environment, the assignment manifest, and the
Docker daemon, then prints one line per check.

The exit code is 0 when all required checks pass and 1 otherwise.
Docker is optional (only the --container launch path needs it), so an
unreachable daemon does not fail the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	projectDir, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	report := &doctorReport{Healthy: true}

	// Manifest. A missing manifest is fine (defaults apply); a broken
	// one is not.
	manifest, manifestPath, merr := assignment.Resolve(projectDir)
	switch {
	case merr != nil:
		manifest = assignment.Default()
		report.add(doctorCheck{
			Name:   "assignment manifest",
			OK:     false,
			Detail: merr.Error(),
			Hint:   "Fix or delete the manifest file and re-run",
		})
	case manifestPath == "":
		report.addOK("assignment manifest", "not found, using built-in defaults")
	default:
		report.addOK("assignment manifest", manifestPath)
	}

	// Python interpreter.
	min := manifest.MinPythonVersion()
	override := pythonOverride
	if override == "" {
		override = cfg.Python
	}
	interp, perr := python.Find(ctx, override, min)
	if perr != nil {
		report.addFail("python interpreter", perr)
	} else {
		report.addOK("python interpreter", fmt.Sprintf("%s (%s)", interp.Version, interp.Path))
	}

	// Virtual environment.
	venvDir := filepath.Join(projectDir, cfg.VenvDir)
	status := venv.NewManager().Status(venvDir, min)
	switch status {
	case model.StatusReady:
		report.addOK("virtual environment", venvDir)
		checkRequirements(ctx, report, manifest, venvDir)
	case model.StatusMissing:
		report.add(doctorCheck{
			Name:   "virtual environment",
			OK:     false,
			Detail: "not created yet",
			Hint:   "Run: nbsetup setup",
		})
	default:
		report.add(doctorCheck{
			Name:   "virtual environment",
			OK:     false,
			Detail: fmt.Sprintf("%s (%s)", status, venvDir),
			Hint:   "Run: nbsetup setup --recreate",
		})
	}

	// Docker daemon. Optional, so never counts against the exit code.
	dockerDetail, dockerOK := probeDocker(ctx)
	check := doctorCheck{Name: "docker daemon (optional)", OK: dockerOK, Detail: dockerDetail}
	if !dockerOK {
		check.Hint = "Only needed for: nbsetup launch --container"
	}
	report.Checks = append(report.Checks, check)
	if !IsJSONOutput() {
		printCheck(check)
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Println()
		if report.Healthy {
			fmt.Println("Everything looks good.")
		} else {
			fmt.Println("Some checks failed. Fix the hints above and re-run `nbsetup doctor`.")
		}
	}

	if !report.Healthy {
		return model.NewCLIError(model.ExitGeneralError, "environment checks failed")
	}
	return nil
}

// checkRequirements compares the venv's installed packages against the
// assignment's. Only reached for a ready environment.
func checkRequirements(ctx context.Context, report *doctorReport, manifest *assignment.Manifest, venvDir string) {
	wanted, err := manifest.Requirements()
	if err != nil {
		// Resolve already validated the manifest, so this indicates a
		// raced edit; report it rather than guessing.
		report.add(doctorCheck{Name: "required packages", OK: false, Detail: err.Error()})
		return
	}

	runner := pip.NewRunner(venv.PathsFor(venvDir).Python)
	installed, err := runner.Freeze(ctx)
	if err != nil {
		report.add(doctorCheck{
			Name:   "required packages",
			OK:     false,
			Detail: "could not list installed packages",
			Hint:   "Run: nbsetup setup --recreate",
		})
		return
	}

	if missing := pip.Missing(installed, wanted); len(missing) > 0 {
		report.add(doctorCheck{
			Name:   "required packages",
			OK:     false,
			Detail: fmt.Sprintf("missing: %s", strings.Join(missing, ", ")),
			Hint:   "Run: nbsetup setup",
		})
		return
	}
	report.addOK("required packages", fmt.Sprintf("all %d installed", len(wanted)))
}

// probeDocker reports whether a Docker daemon is reachable.
func probeDocker(ctx context.Context) (string, bool) {
	cli, err := docker.NewClient()
	if err != nil {
		return "not available", false
	}
	defer cli.Close()
	if err := cli.Ping(ctx); err != nil {
		return "daemon not responding", false
	}
	return "reachable", true
}

func (r *doctorReport) add(c doctorCheck) {
	r.Checks = append(r.Checks, c)
	if !c.OK {
		r.Healthy = false
	}
	if !IsJSONOutput() {
		printCheck(c)
	}
}

func (r *doctorReport) addOK(name, detail string) {
	r.add(doctorCheck{Name: name, OK: true, Detail: detail})
}

func (r *doctorReport) addFail(name string, err error) {
	c := doctorCheck{Name: name, OK: false, Detail: err.Error()}
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		c.Detail = cliErr.Message
		c.Hint = cliErr.Hint
	}
	r.add(c)
}

// printCheck prints a single diagnostic line in text mode.
func printCheck(c doctorCheck) {
	mark := "✓"
	if !c.OK {
		mark = "✗"
	}
	fmt.Printf("%s %-28s %s\n", mark, c.Name, c.Detail)
	if !c.OK && c.Hint != "" {
		fmt.Printf("  hint: %s\n", c.Hint)
	}
}
