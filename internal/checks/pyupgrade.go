package checks

import (
	"context"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Pyupgrade installs pyupgrade hooks when ruff is disabled and removes them
// otherwise.
func Pyupgrade(_ context.Context, c *Context) error {
	if !c.Options.NoRuff {
		c.Precommit.RemoveHook("nbqa-pyupgrade", "")
		c.Precommit.RemoveHook("pyupgrade", "")
		return nil
	}
	args, err := pyupgradeVersionArgument()
	if err != nil {
		return err
	}
	if err := c.Precommit.UpdateSingleHookRepo(precommit.Repo{
		Repo:  "https://github.com/asottile/pyupgrade",
		Hooks: []precommit.Hook{{ID: "pyupgrade", Args: args}},
	}); err != nil {
		return err
	}
	return c.Precommit.UpdateHook("https://github.com/nbQA-dev/nbQA", precommit.Hook{ID: "nbqa-pyupgrade", Args: args})
}

// pyupgradeVersionArgument returns --py3X-plus for the lowest supported
// Python version.
func pyupgradeVersionArgument() ([]string, error) {
	if !safeio.Exists(project.Pyproject) {
		return nil, nil
	}
	pyp, err := pyproject.Load(project.Pyproject)
	if err != nil {
		return nil, err
	}
	versions, err := pyp.GetSupportedPythonVersions()
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return []string{"--py" + strings.ReplaceAll(versions[0], ".", "") + "-plus"}, nil
}
