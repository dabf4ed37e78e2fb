// Package cli implements the cobra-based CLI commands for nbsetup.
//
// Each subcommand (setup, doctor, status, launch, clean) is defined in
// its own file within this package. This file defines the root command,
// global flags, and the error/exit-code plumbing.
//
// Running the bare binary with no subcommand runs setup — the tool's
// original surface is "one entry point, no arguments", and students
// should not need to learn subcommands for the happy path.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/nbsetup/internal/model"
)

// Global flag variables shared across all subcommands. These are bound
// to cobra persistent flags on the root command, which makes them
// available to every subcommand automatically.
var (
	// jsonOutput switches command output to structured JSON for machine
	// consumption (autograders, CI).
	jsonOutput bool

	// verbose enables detailed progress output on stderr.
	verbose bool

	// assumeYes answers every confirmation prompt with yes, for
	// scripted runs.
	assumeYes bool

	// pythonOverride pins the interpreter instead of probing PATH.
	// Takes precedence over the config file's python setting.
	pythonOverride string
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
func NewRootCommand() *cobra.Command {
	setupFlags := &setupOptions{}

	rootCmd := &cobra.Command{
		Use:   "nbsetup",
		Short: "Classroom environment setup for notebook assignments",
		Long: `nbsetup prepares everything a data-visualization notebook assignment
needs: it finds a suitable Python interpreter, creates a project-local
virtual environment, installs the assignment's packages, and prints the
commands to start working.

Run it with no arguments inside the assignment folder. Instructors can
customize the assignment via an assignment.jsonc manifest; without one,
the built-in Visual Essay defaults (pandas, plotly, jupyter) apply.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// The bare invocation is the setup flow.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context(), setupFlags)
		},
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to all prompts")
	rootCmd.PersistentFlags().StringVar(&pythonOverride, "python", "", "Python interpreter to use (default: discover on PATH)")

	// The bare invocation accepts setup's flags too, so
	// `nbsetup --recreate` works without spelling out the subcommand.
	bindSetupFlags(rootCmd.Flags(), setupFlags)

	rootCmd.AddCommand(NewSetupCommand())
	rootCmd.AddCommand(NewDoctorCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewLaunchCommand())
	rootCmd.AddCommand(NewCleanCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into OS exit codes. CLIError values carry their own exit codes;
// other errors default to exit code 1. Ctrl-C cancels the command
// context and maps to the user-cancelled exit code.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			printError("setup cancelled", nil, "")
			os.Exit(int(model.ExitUserCancelled))
		}

		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err, cliErr.Hint)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil, "")
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error, hint string) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if errMap, ok := errObj["error"].(map[string]interface{}); ok {
			if underlying != nil {
				errMap["detail"] = underlying.Error()
			}
			if hint != "" {
				errMap["hint"] = hint
			}
		}
		// Errors go to stderr even in JSON mode — stdout is reserved
		// for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
		if hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
	}
}

// VerboseLog prints a message to stderr only when verbose mode is
// enabled. Used throughout the CLI for progress/trace output.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// Confirm asks the user a yes/no question on the terminal.
//
// Returns true without prompting when --yes is set, and false without
// prompting when stdin is not a terminal — a piped or CI run must never
// hang on a prompt, and declining is the safe default for destructive
// operations.
func Confirm(prompt string) bool {
	if assumeYes {
		return true
	}

	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return false
	}

	fmt.Printf("%s (y/n): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
