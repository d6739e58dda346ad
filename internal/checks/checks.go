// Package checks holds the rule set of check-dev-files. Every check
// inspects a few configuration files, fixes what it can and reports each
// change as a PrecommitError.
package checks

import (
	"context"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/pkg/config"
)

// Context is the state shared by all checks of one run.
type Context struct {
	Options      *config.Options
	Precommit    *precommit.Precommit
	HasNotebooks bool
}

// Check is one registered routine.
type Check struct {
	Name        string
	Description string
	Run         func(ctx context.Context, c *Context) error
	// Enabled gates the check on options; nil means always.
	Enabled func(c *Context) bool
	// NeedsPrecommit skips the check when there is no pre-commit config.
	NeedsPrecommit bool
}

// IsEnabled reports whether the check runs for c.
func (ch Check) IsEnabled(c *Context) bool {
	if ch.NeedsPrecommit && c.Precommit == nil {
		return false
	}
	return ch.Enabled == nil || ch.Enabled(c)
}

func python(c *Context) bool { return c.Options.IsPython() }

// Registry lists the checks in execution order. toml has to run before
// precommit, and ruff after the other Python tools.
var Registry = []Check{
	{Name: "commitlint", Description: "remove outdated commitlint.config.js", Run: Commitlint},
	{Name: "conda", Description: "maintain or remove environment.yml", Run: Conda},
	{Name: "dependabot", Description: "remove or sync .github/dependabot.yml", Run: Dependabot},
	{Name: "editorconfig", Description: "editorconfig-checker hook", Run: EditorConfig, NeedsPrecommit: true},
	{Name: "labels", Description: "remove labels.toml and labels requirements", Run: GithubLabels,
		Enabled: func(c *Context) bool { return !c.Options.AllowLabels }},
	{Name: "workflows", Description: "GitHub Actions workflows", Run: GithubWorkflows,
		Enabled: func(c *Context) bool { return !c.Options.NoGithubActions }},
	{Name: "binder", Description: "Binder configuration", Run: Binder,
		Enabled: func(c *Context) bool { return c.HasNotebooks && !c.Options.NoBinder }},
	{Name: "jupyter", Description: "Jupyter developer requirements and extensions", Run: Jupyter,
		Enabled: func(c *Context) bool { return c.HasNotebooks }},
	{Name: "nbstripout", Description: "nbstripout hook", Run: Nbstripout, NeedsPrecommit: true},
	{Name: "pixi", Description: "pixi project definition", Run: Pixi},
	{Name: "tox", Description: "tox documentation jobs", Run: Tox},
	{Name: "direnv", Description: ".envrc for direnv", Run: Direnv},
	{Name: "toml", Description: "taplo and toml-sort", Run: TOML},
	{Name: "prettier", Description: "prettier config, badge and ignore file", Run: Prettier},
	{Name: "release-drafter", Description: "release drafter workflow and config", Run: ReleaseDrafter,
		Enabled: func(c *Context) bool { return python(c) && !c.Options.NoGithubActions }},
	{Name: "mypy", Description: "mypy configuration in pyproject.toml", Run: Mypy, Enabled: python},
	{Name: "pyproject", Description: "requires-python and version classifiers", Run: Pyproject, Enabled: python},
	{Name: "pyright", Description: "pyright configuration in pyproject.toml", Run: Pyright, Enabled: python},
	{Name: "pytest", Description: "pytest configuration in pyproject.toml", Run: Pytest, Enabled: python},
	{Name: "pyupgrade", Description: "pyupgrade hooks when ruff is disabled", Run: Pyupgrade, Enabled: python, NeedsPrecommit: true},
	{Name: "black", Description: "black formatter when ruff is disabled", Run: Black,
		Enabled: func(c *Context) bool { return python(c) && c.Options.NoRuff }},
	{Name: "ruff", Description: "ruff linter and formatter", Run: Ruff,
		Enabled: func(c *Context) bool { return python(c) && !c.Options.NoRuff }},
	{Name: "update-lock", Description: "lock file update workflow", Run: UpdateLock,
		Enabled: func(c *Context) bool { return c.Options.UpdateLockFiles != "no" }},
	{Name: "readthedocs", Description: "Read the Docs build", Run: ReadTheDocs},
	{Name: "deprecated", Description: "remove deprecated tools", Run: RemoveDeprecatedTools},
	{Name: "vscode", Description: "VS Code settings and extensions", Run: VSCode},
	{Name: "gitpod", Description: "GitPod configuration", Run: Gitpod},
	{Name: "precommit", Description: "pre-commit repo order and pre-commit.ci", Run: Precommit, NeedsPrecommit: true},
	{Name: "uv", Description: "uv configuration", Run: UV},
	{Name: "cspell", Description: "cSpell configuration", Run: Cspell},
	{Name: "rules", Description: "user policies in .repopolicy/*.rego", Run: Rules},
}

// Find returns the registered check called name.
func Find(name string) (Check, bool) {
	for _, ch := range Registry {
		if ch.Name == name {
			return ch, true
		}
	}
	return Check{}, false
}

// usesPixi reports whether the package manager includes pixi.
func usesPixi(c *Context) bool {
	return strings.Contains(c.Options.PackageManager, "pixi")
}

// usesUV reports whether the package manager includes uv.
func usesUV(c *Context) bool {
	return strings.Contains(c.Options.PackageManager, "uv")
}
