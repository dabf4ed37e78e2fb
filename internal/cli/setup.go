// setup.go implements the "nbsetup setup" command (and the bare
// invocation, which aliases it).
//
// Orchestration steps:
//  1. Load user config and resolve the assignment manifest
//  2. Find a Python interpreter meeting the assignment's minimum version
//  3. Create the virtual environment (reuse a healthy one, recreate a
//     stale/broken one after confirmation)
//  4. Upgrade pip (failure is a warning, not fatal)
//  5. Install the assignment's packages from requirements.txt
//  6. Scaffold the starter notebook when absent
//  7. Write the environment.lock.yaml snapshot
//  8. Print platform-appropriate next steps (text or JSON)
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/nbsetup/internal/assignment"
	"github.com/mmr-tortoise/nbsetup/internal/model"
	"github.com/mmr-tortoise/nbsetup/internal/pip"
	"github.com/mmr-tortoise/nbsetup/internal/python"
	"github.com/mmr-tortoise/nbsetup/internal/venv"
)

// setupOptions holds the flag values for the setup command.
type setupOptions struct {
	recreate   bool // --recreate: delete and rebuild an existing venv
	skipLock   bool // --no-lock: skip the environment.lock.yaml snapshot
	noNotebook bool // --no-notebook: skip starter notebook scaffolding
}

// bindSetupFlags registers setup's flags on the given flag set. Shared
// between the setup subcommand and the root command so the bare
// invocation accepts the same flags.
func bindSetupFlags(flags *pflag.FlagSet, opts *setupOptions) {
	flags.BoolVar(&opts.recreate, "recreate", false, "Delete and recreate an existing virtual environment")
	flags.BoolVar(&opts.skipLock, "no-lock", false, "Skip writing environment.lock.yaml")
	flags.BoolVar(&opts.noNotebook, "no-notebook", false, "Skip scaffolding the starter notebook")
}

// NewSetupCommand creates the "setup" cobra command.
func NewSetupCommand() *cobra.Command {
	opts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the virtual environment and install the assignment's packages",
		Long: `Set up the assignment environment in the current directory.

The command finds a suitable Python interpreter, creates a virtual
environment, installs the required packages, and prints the commands
to start working. Re-running is safe: a healthy environment is reused
and the install step simply verifies the packages.

Examples:
  nbsetup setup
  nbsetup setup --recreate
  nbsetup setup --python /usr/local/bin/python3.12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context(), opts)
		},
	}

	bindSetupFlags(cmd.Flags(), opts)
	return cmd
}

// setupResult collects what happened during a run for the final output.
type setupResult struct {
	Assignment   string   `json:"assignment"`
	Interpreter  string   `json:"interpreter"`
	Version      string   `json:"pythonVersion"`
	VenvDir      string   `json:"venvDir"`
	VenvReused   bool     `json:"venvReused"`
	Requirements string   `json:"requirements"`
	Notebook     string   `json:"notebook,omitempty"`
	LockFile     string   `json:"lockFile,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// runSetup is the main orchestration function for the setup command.
func runSetup(ctx context.Context, opts *setupOptions) error {
	cfg, err := LoadConfig()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	if err := model.ValidateVenvDirName(cfg.VenvDir); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid configuration", err)
	}

	projectDir, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	manifest, manifestPath, err := assignment.Resolve(projectDir)
	if err != nil {
		return err
	}
	if manifestPath != "" {
		VerboseLog("Assignment manifest: %s", manifestPath)
	} else {
		VerboseLog("No assignment manifest found, using built-in defaults")
	}

	result := &setupResult{Assignment: manifest.Name}

	if !IsJSONOutput() {
		printHeader(manifest.Name)
	}

	// Step 1: Interpreter check.
	min := manifest.MinPythonVersion()
	if !IsJSONOutput() {
		fmt.Println("Checking Python version...")
	}
	override := pythonOverride
	if override == "" {
		override = cfg.Python
	}
	interp, err := python.Find(ctx, override, min)
	if err != nil {
		return err
	}
	result.Interpreter = interp.Path
	result.Version = interp.Version.String()
	printStep("Python %s found (%s)", interp.Version, interp.Path)

	// Step 2: Virtual environment.
	venvDir := filepath.Join(projectDir, cfg.VenvDir)
	reused, err := ensureVenv(ctx, interp, venvDir, min, opts.recreate)
	if err != nil {
		return err
	}
	result.VenvDir = venvDir
	result.VenvReused = reused

	paths := venv.PathsFor(venvDir)
	runner := pip.NewRunner(paths.Python)

	// Step 3: Upgrade pip. Non-critical — an old pip still installs.
	if !IsJSONOutput() {
		fmt.Println("Upgrading pip...")
	}
	if upgradeErr := runner.Upgrade(ctx); upgradeErr != nil {
		warn := "failed to upgrade pip (continuing anyway)"
		result.Warnings = append(result.Warnings, warn)
		printStep("%s", warn)
		VerboseLog("pip upgrade error: %v", upgradeErr)
	} else {
		printStep("pip upgraded successfully")
	}

	// Step 4: Install packages.
	reqPath, created, err := assignment.EnsureRequirementsFile(projectDir, manifest)
	if err != nil {
		return err
	}
	if created {
		VerboseLog("Wrote %s from the assignment manifest", reqPath)
	}
	result.Requirements = reqPath

	if !IsJSONOutput() {
		fmt.Println("Installing required packages...")
		fmt.Println("This may take a few minutes...")
		fmt.Println()
	}
	if err := runner.Install(ctx, reqPath, cfg.IndexURL); err != nil {
		return err
	}
	printStep("All packages installed successfully")

	// Step 5: Starter notebook.
	if !opts.noNotebook {
		nbPath, nbCreated, nbErr := assignment.EnsureNotebook(projectDir, manifest)
		if nbErr != nil {
			return nbErr
		}
		result.Notebook = nbPath
		if nbCreated {
			printStep("Created starter notebook %s", filepath.Base(nbPath))
		}
	}

	// Step 6: Lock snapshot. Informational, so failures only warn.
	if !opts.skipLock {
		lockPath, lockErr := writeLockSnapshot(ctx, projectDir, manifest, interp, runner)
		if lockErr != nil {
			warn := fmt.Sprintf("could not write %s", assignment.LockFileName)
			result.Warnings = append(result.Warnings, warn)
			VerboseLog("lock snapshot error: %v", lockErr)
		} else {
			result.LockFile = lockPath
		}
	}

	// Step 7: Output.
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		printNextSteps(os.Stdout, paths, manifest.Notebook, runtime.GOOS)
	}
	return nil
}

// ensureVenv brings the virtual environment into existence, reusing,
// recreating, or creating as the observed state demands. Returns whether
// an existing environment was reused.
func ensureVenv(ctx context.Context, interp *model.Interpreter, venvDir string, min model.PythonVersion, recreate bool) (bool, error) {
	vm := venv.NewManager()
	status := vm.Status(venvDir, min)
	VerboseLog("Virtual environment status: %s", status)

	switch {
	case status == model.StatusMissing:
		// Nothing to reuse; fall through to creation.

	case recreate:
		printStep("Removing existing virtual environment (--recreate)...")
		if err := removeVenvTree(vm, venvDir, model.ExitVenvCreateFailed); err != nil {
			return false, err
		}

	case status == model.StatusReady:
		printStep("Using existing virtual environment")
		return true, nil

	default:
		// Stale or broken: recreation is required, so ask before
		// deleting anything the student might not expect to lose.
		prompt := fmt.Sprintf("Virtual environment at %s is %s and must be recreated. Continue?", venvDir, status)
		if !Confirm(prompt) {
			return false, model.NewCLIError(model.ExitUserCancelled, "setup cancelled").
				WithHint("Re-run with --recreate to rebuild the environment non-interactively")
		}
		if err := removeVenvTree(vm, venvDir, model.ExitVenvCreateFailed); err != nil {
			return false, err
		}
	}

	if !IsJSONOutput() {
		fmt.Println("Creating virtual environment...")
	}
	if err := vm.Create(ctx, interp, venvDir); err != nil {
		return false, err
	}
	printStep("Virtual environment created successfully")
	return false, nil
}

// removeVenvTree deletes the virtual environment directory. Remove's
// pyvenv.cfg safety check would refuse a half-created directory (an
// interrupted `python -m venv` leaves bin/ but no pyvenv.cfg), so once
// the caller has established intent, such a directory goes wholesale.
func removeVenvTree(vm *venv.Manager, dir string, code model.ExitCode) error {
	if vm.IsVenv(dir) {
		return vm.Remove(dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return model.WrapCLIError(code, "failed to remove virtual environment", err)
	}
	return nil
}

// writeLockSnapshot freezes the installed packages and writes the lock
// file next to the project.
func writeLockSnapshot(ctx context.Context, projectDir string, manifest *assignment.Manifest, interp *model.Interpreter, runner *pip.Runner) (string, error) {
	frozen, err := runner.Freeze(ctx)
	if err != nil {
		return "", err
	}

	data, err := assignment.GenerateLock(manifest, interp, frozen, time.Now())
	if err != nil {
		return "", err
	}
	return assignment.WriteLock(projectDir, data)
}

// printHeader prints the banner that opens a text-mode setup run.
func printHeader(name string) {
	rule := strings.Repeat("=", 50)
	fmt.Println(rule)
	fmt.Printf("%s - Environment Setup\n", name)
	fmt.Println(rule)
	fmt.Println()
}

// printStep prints a checkmarked progress line in text mode. JSON mode
// stays silent — progress belongs to humans, results to machines.
func printStep(format string, args ...interface{}) {
	if IsJSONOutput() {
		return
	}
	fmt.Printf("✓ "+format+"\n", args...)
}

// printNextSteps writes the closing instructions: how to activate the
// environment, start Jupyter, and deactivate afterwards, with
// platform-specific wording. Split out with an io.Writer and goos
// parameter so tests can assert both platforms' output.
func printNextSteps(w io.Writer, paths venv.Paths, notebook, goos string) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Setup Complete!")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "To start working on your project:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Activate the virtual environment:")

	if goos == "windows" {
		fmt.Fprintln(w, "     PowerShell:")
		fmt.Fprintf(w, "       %s\n", paths.ActivatePS)
		fmt.Fprintln(w, "     Command Prompt:")
		fmt.Fprintf(w, "       %s\n", paths.Activate)
	} else {
		fmt.Fprintf(w, "     source %s\n", paths.Activate)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  2. Launch Jupyter Notebook:")
	if notebook != "" {
		fmt.Fprintf(w, "     jupyter notebook %s\n", notebook)
	} else {
		fmt.Fprintln(w, "     jupyter notebook")
	}
	fmt.Fprintln(w, "     (or just run: nbsetup launch)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  3. When you're done, deactivate the environment:")
	fmt.Fprintln(w, "     deactivate")
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)

	switch goos {
	case "windows":
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Windows tips:")
		fmt.Fprintln(w, "  - If PowerShell blocks scripts, use Command Prompt instead")
		fmt.Fprintln(w, "  - Or run in PowerShell: Set-ExecutionPolicy -ExecutionPolicy RemoteSigned -Scope Process")
	case "darwin":
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Mac security note:")
		fmt.Fprintln(w, "  If you see security warnings when running scripts, go to")
		fmt.Fprintln(w, "  System Preferences > Security & Privacy and click 'Allow Anyway'")
	}
}
