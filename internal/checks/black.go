package checks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const blackMirror = "https://github.com/psf/black-pre-commit-mirror"

// Black configures black as the formatter when ruff is disabled.
func Black(_ context.Context, c *Context) error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	pc := c.Precommit
	do := executor.New()
	steps := []func() error{
		func() error { removeBlackOptions(pyp); return nil },
		func() error { updateBlackSettings(pyp); return nil },
		pyp.Finalize,
	}
	if pc != nil {
		steps = append(steps,
			func() error {
				pc.RemoveHook("black", "https://github.com/psf/black")
				pc.RemoveHook("black-jupyter", "https://github.com/psf/black")
				pc.RemoveHook("nbqa-black", "")
				return nil
			},
			func() error { return pc.UpdateSingleHookRepo(blackRepo(c.HasNotebooks)) },
		)
	}
	steps = append(steps,
		func() error { return vscode.AddExtensionRecommendation("ms-python.black-formatter") },
		func() error {
			return vscode.UpdateSettings(map[string]any{"black-formatter.importStrategy": "fromEnvironment"})
		},
		func() error {
			return vscode.UpdateSettings(map[string]any{
				"[python]": map[string]any{
					"editor.defaultFormatter": "ms-python.black-formatter",
					"editor.rulers":           []any{88},
				},
			})
		},
	)
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

var forbiddenBlackOptions = []string{"line-length"}

func removeBlackOptions(pyp *pyproject.Modifiable) {
	settings, _ := pyp.GetTable("tool.black", true)
	var removed []string
	for _, option := range forbiddenBlackOptions {
		if _, ok := settings[option]; ok {
			delete(settings, option)
			removed = append(removed, option)
		}
	}
	if len(removed) > 0 {
		slices.Sort(removed)
		pyp.AppendToChangelog(fmt.Sprintf("Removed %s option from black configuration in %s",
			strings.Join(removed, ", "), project.Pyproject))
	}
}

func updateBlackSettings(pyp *pyproject.Modifiable) {
	settings, _ := pyp.GetTable("tool.black", true)
	var targets []string
	for _, v := range supportedVersions(pyp) {
		targets = append(targets, "py"+strings.ReplaceAll(v, ".", ""))
	}
	slices.Sort(targets)
	applyMinimal(pyp, settings, tomlx.Table{
		"preview":        true,
		"target-version": tomlx.ToArray(targets...),
	}, "Updated black configuration in "+project.Pyproject)
}

func blackRepo(hasNotebooks bool) precommit.Repo {
	hooks := []precommit.Hook{{ID: "black"}}
	if hasNotebooks {
		hooks = append(hooks, precommit.Hook{
			ID:      "black-jupyter",
			Args:    []string{"--line-length=85"},
			TypesOr: []string{"jupyter"},
		})
	}
	return precommit.Repo{Repo: blackMirror, Hooks: hooks}
}
