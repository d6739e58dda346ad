package checks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const prettierLegacyCLI = "PRETTIER_LEGACY_CLI"

// Hooks that cannot run on pre-commit.ci.
var nonFunctionalHooks = []string{"check-jsonschema", "pyright", "taplo"}

// Precommit sorts the repos of the pre-commit config and maintains its
// pre-commit.ci section.
func Precommit(_ context.Context, c *Context) error {
	pc := c.Precommit
	do := executor.New()
	steps := []func() error{
		func() error {
			if pc.SortRepos() {
				pc.AppendToChangelog("Sorted pre-commit hooks in " + project.Precommit)
			}
			return nil
		},
		func() error { return updatePrettierLegacyCLI(pc) },
		func() error { return updateAutoupdateCommitMsg(pc) },
		func() error { return updateCISkip(pc) },
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func updateAutoupdateCommitMsg(pc *precommit.Precommit) error {
	if pc.CI() == nil {
		return nil
	}
	expected := "MAINT: autoupdate pre-commit hooks"
	if safeio.Exists(project.PipConstraints) {
		expected = "MAINT: update pip constraints and pre-commit"
	}
	const key = "autoupdate_commit_msg"
	changed, err := pc.SetCI(key, expected)
	if err != nil || !changed {
		return err
	}
	pc.AppendToChangelog(fmt.Sprintf("Updated ci.%s in %s to '%s'", key, project.Precommit, expected))
	return nil
}

func updateCISkip(pc *precommit.Precommit) error {
	ci := pc.CI()
	if ci == nil {
		return nil
	}
	expected := expectedCISkips(pc)
	if len(expected) == 0 {
		if pc.DeleteCI("skip") {
			pc.AppendToChangelog("No need for a ci.skip in " + project.Precommit)
		}
		return nil
	}
	existing := yamlrt.Strings(yamlrt.MapGet(ci, "skip"))
	if sameElements(existing, expected) && len(existing) == len(expected) {
		return nil
	}
	if _, err := pc.SetCI("skip", expected); err != nil {
		return err
	}
	pc.AppendToChangelog("Updated ci.skip section in " + project.Precommit)
	return nil
}

func expectedCISkips(pc *precommit.Precommit) []string {
	skipped := slices.Clone(nonFunctionalHooks)
	if hasPrettierV4Alpha(pc) {
		skipped = append(skipped, "prettier")
	}
	var out []string
	for _, repo := range pc.Repos() {
		for _, hook := range repo.Hooks {
			if (repo.Repo == "local" || slices.Contains(skipped, hook.ID)) && !slices.Contains(out, hook.ID) {
				out = append(out, hook.ID)
			}
		}
	}
	slices.Sort(out)
	return out
}

func hasPrettierV4Alpha(pc *precommit.Precommit) bool {
	repo, ok := pc.FindRepo(`^.*/mirrors-prettier$`)
	return ok && strings.HasPrefix(repo.Rev, "v4") && strings.Contains(repo.Rev, "alpha")
}

// updatePrettierLegacyCLI sets PRETTIER_LEGACY_CLI in the conda environment
// when the prettier v4 alpha hook is used.
func updatePrettierLegacyCLI(pc *precommit.Precommit) error {
	doc, err := loadYAMLIfExists(project.Conda)
	if err != nil || doc == nil {
		return err
	}
	root := yamlrt.Root(doc)
	variables := yamlrt.MapGet(root, "variables")
	if hasPrettierV4Alpha(pc) {
		if variables != nil && yamlrt.MapGet(variables, prettierLegacyCLI) != nil {
			return nil
		}
		if variables == nil || variables.Kind != yaml.MappingNode {
			variables = yamlrt.NewMap()
			yamlrt.MapSet(root, "variables", variables)
		}
		yamlrt.MapSet(variables, prettierLegacyCLI, yamlrt.NewQuoted("1"))
		if err := yamlrt.Write(project.Conda, doc, yamlrt.Spacing{}); err != nil {
			return err
		}
		return executor.Errorf("Set %s environment variable in %s", prettierLegacyCLI, project.Conda)
	}
	if !yamlrt.MapDelete(variables, prettierLegacyCLI) {
		return nil
	}
	if len(variables.Content) == 0 {
		yamlrt.MapDelete(root, "variables")
	}
	if err := yamlrt.Write(project.Conda, doc, yamlrt.Spacing{}); err != nil {
		return err
	}
	return executor.Errorf("Removed %s environment variable %s", prettierLegacyCLI, project.Conda)
}
