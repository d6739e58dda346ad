package checks

import (
	"context"

	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const editorconfigExclude = "(?x)^(\n  .*\\.py\n)$"

// EditorConfig adds the editorconfig-checker hook when the repository has
// an .editorconfig. Python files are left to the Python formatters.
func EditorConfig(_ context.Context, c *Context) error {
	if !safeio.Exists(project.EditorConfig) {
		return nil
	}
	hook := precommit.Hook{
		ID:    "editorconfig-checker",
		Name:  "editorconfig",
		Alias: "ec",
	}
	if len(match.FilterFiles([]string{"**/*.py"}, nil)) > 0 {
		hook.Exclude = editorconfigExclude
	}
	return c.Precommit.UpdateSingleHookRepo(precommit.Repo{
		Repo:  "https://github.com/editorconfig-checker/editorconfig-checker.python",
		Hooks: []precommit.Hook{hook},
	})
}
