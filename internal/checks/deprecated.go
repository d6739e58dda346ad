package checks

import (
	"context"
	"path"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// RemoveDeprecatedTools cleans up tools the repositories no longer use.
// cspell:ignore davidanson markdownlint
func RemoveDeprecatedTools(_ context.Context, c *Context) error {
	do := executor.New()
	var steps []func() error
	if !c.Options.KeepIssueTemplates {
		steps = append(steps, func() error {
			return project.RemoveConfigs(".github/ISSUE_TEMPLATE", ".github/pull_request_template.md")
		})
	}
	steps = append(steps,
		func() error { return project.RemoveConfigs(".markdownlint.json", ".markdownlint.yaml") },
		func() error { return project.RemoveLines(project.GitIgnore, `\.markdownlint\.json`) },
		func() error { return vscode.RemoveExtensionRecommendation("davidanson.vscode-markdownlint", true) },
		func() error {
			if c.Precommit != nil {
				c.Precommit.RemoveHook("markdownlint", "")
			}
			return nil
		},
		func() error { return checkRelinkReferences("docs") },
		func() error { return checkRelinkReferences("doc") },
	)
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func checkRelinkReferences(dir string) error {
	p := path.Join(dir, "_relink_references.py")
	if !safeio.Exists(p) {
		return nil
	}
	return executor.Errorf("Please remove '%s' and use https://pypi.org/project/sphinx-api-relink instead.", p)
}
