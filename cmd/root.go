/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/fulmenhq/repopolicy/internal/ops"
	"github.com/fulmenhq/repopolicy/pkg/buildinfo"
	"github.com/fulmenhq/repopolicy/pkg/exitcode"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/spf13/cobra"
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return exitcode.String(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps an Execute error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitcode.GeneralError
}

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repopolicy",
		Short: "Repository policy checks for Python projects",
		Long: `Repopolicy keeps the developer configuration of a repository in line with a
shared policy: pre-commit hooks, pyproject.toml, CI workflows, linter
configuration and VS Code settings. Every check fixes what it can and
reports what it changed.

Examples:
   repopolicy check-dev-files                       # Run all checks
   repopolicy check-dev-files --no-ruff --no-pypi   # Skip ruff, drop PyPI classifiers
   repopolicy format-cfg tox.ini setup.cfg          # Format INI files
   repopolicy list-checks                           # Show the rule set`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("no-op", false, "Mark log output as a dry run")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("repopolicy {{.Version}}\n")

	cmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		if cmd.HasParent() {
			cmd.Print(cmd.UsageString())
			return
		}
		cmd.Println(cmd.Long)
		for _, g := range ops.Groups {
			cmd.Println()
			cmd.Println(g.Title())
			for _, c := range ops.CommandsInGroup(cmd, g) {
				cmd.Printf("  %-16s %s\n", c.Name(), c.Short)
			}
		}
		cmd.Println()
		cmd.Println("Flags:")
		cmd.Print(cmd.UsageString())
	})

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
// This is called from init() for production and can be called explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	ops.Register(cmd, ops.GroupNeat, newCheckDevFilesCommand(), newFormatCfgCommand())
	ops.Register(cmd, ops.GroupSupport, newListChecksCommand(), newVersionCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if code := exitCode(err); code != exitcode.Success {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			logger.Error("Command execution failed", logger.Err(err))
		}
		os.Exit(code)
	}
}

func init() {
	registerSubcommands(rootCmd)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp, _ := cmd.Flags().GetBool("no-op")

	// Unknown levels fall back to info
	logLevel, _ := logger.ParseLevel(logLevelStr)

	config := logger.Config{
		Level:     logLevel,
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "repopolicy",
		NoOp:      noOp,
	}

	if err := logger.Initialize(config); err != nil {
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}
