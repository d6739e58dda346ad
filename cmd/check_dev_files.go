/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/repopolicy/internal/checks"
	"github.com/fulmenhq/repopolicy/pkg/config"
	"github.com/fulmenhq/repopolicy/pkg/exitcode"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newCheckDevFilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-dev-files",
		Short: "Check and fix developer configuration files",
		Long: `Run the check-dev-files rule set in the current directory.

Options are read from .repopolicy.yaml, then REPOPOLICY_* environment
variables, then the flags below. The command exits with 1 when any check
modified a file or found a violation.`,
		Args: cobra.NoArgs,
		RunE: runCheckDevFiles,
	}
	addCheckDevFilesFlags(cmd.Flags())
	cmd.Flags().StringSlice("only", nil, "Run only the named checks (see list-checks)")
	return cmd
}

func addCheckDevFilesFlags(f *pflag.FlagSet) {
	f.Bool("allow-deprecated-workflows", false, "Allow deprecated CI workflows, such as ci-docs.yml")
	f.Bool("allow-labels", false, "Do not perform the check on labels.toml")
	f.String("allowed-cell-metadata", "", "Comma-separated list of allowed metadata in Jupyter notebook cells, e.g. editable,slideshow")
	f.String("ci-skipped-tests", "", "Avoid running CI test on the following Python versions")
	f.String("ci-test-extras", "", "Comma-separated list of extras that are required for running tests on CI")
	f.String("dependabot", "", "Leave dependabot.yml untouched ('keep') or sync with the template ('update')")
	f.String("dev-python-version", "3.12", "Specify the Python version for your developer environment")
	f.String("doc-apt-packages", "", "Comma- or space-separated list of APT packages that are required to build documentation")
	f.String("environment-variables", "", "Comma- or space-separated list of environment variables, e.g. PYTHONHASHSEED=0,SKIP=pyright")
	f.String("excluded-python-versions", "", "Comma- or space-separated list of Python versions you do NOT want to support")
	f.Bool("github-pages", false, "Host documentation on GitHub Pages")
	f.Bool("gitpod", false, "Create a GitPod config file")
	f.Bool("imports-on-top", false, "Sort notebook imports on the top")
	f.Bool("keep-issue-templates", false, "Do not remove the .github/ISSUE_TEMPLATE directory")
	f.Bool("keep-pr-linting", false, "Do not overwrite the PR linting workflow")
	f.Bool("no-binder", false, "Do not update the Binder configuration")
	f.Bool("no-cd", false, "Do not add any GitHub workflows for continuous deployment")
	f.Bool("no-cspell-update", false, "Do not enforce the template sections of .cspell.json")
	f.Bool("no-github-actions", false, "Skip all checks on GitHub Actions workflows")
	f.Bool("no-macos", false, "Do not run test job on macOS")
	f.Bool("no-milestones", false, "This repository does not use milestones and therefore no close workflow")
	f.Bool("no-pypi", false, "Do not publish package to PyPI")
	f.Bool("no-python", false, "Skip checks that concern config files for Python projects")
	f.Bool("no-ruff", false, "Do not enforce Ruff as a linter")
	f.Bool("no-version-branches", false, "Do not push to matching major/minor version branches upon tagging")
	f.Bool("outsource-pixi-to-tox", false, "Run tox command through pixi")
	f.String("package-manager", "uv", "Specify which package manager to use for the project")
	f.String("policies-dir", ".repopolicy", "Directory with additional Rego policies")
	f.Bool("pytest-single-threaded", false, "Run pytest without the -n argument")
	f.String("repo-name", "", "Name of the repository, defaults to the name of the working directory")
	f.String("repo-organization", "ComPWA", "Name of the organization under which the repository lives")
	f.String("repo-title", "", "Title of the repository, defaults to the repository name")
	f.String("update-lock-files", "outsource", "How often to update lock files (no, biweekly, monthly, bimonthly, quarterly, biannually, outsource)")
}

func runCheckDevFiles(cmd *cobra.Command, _ []string) error {
	opts, err := config.Load(".", cmd.Flags())
	if err != nil {
		if errors.Is(err, config.ErrInvalidOptions) {
			return &exitError{code: exitcode.ValidationError, err: err}
		}
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	only, _ := cmd.Flags().GetStringSlice("only")
	logger.Debug("starting check-dev-files",
		logger.String("package-manager", opts.PackageManager),
		logger.String("dev-python-version", opts.DevPythonVersion),
	)

	messages, err := checks.Run(cmd.Context(), opts, checks.RunOptions{
		Only:   only,
		Output: cmd.OutOrStdout(),
	})
	if err != nil {
		return &exitError{code: exitcode.GeneralError, err: fmt.Errorf("check-dev-files: %w", err)}
	}
	if len(messages) > 0 {
		logger.Debug("checks reported changes", logger.Int("messages", len(messages)))
		return &exitError{code: exitcode.PoliciesViolated}
	}
	return nil
}
