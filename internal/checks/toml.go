package checks

import (
	"bytes"
	"context"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// cspell:ignore tomlsort bungcip tamasfe

// TOML configures taplo and toml-sort for repositories with TOML files.
func TOML(_ context.Context, c *Context) error {
	triggers := []string{project.Pyproject, project.Taplo, project.PreviousTaploConfig}
	if !slices.ContainsFunc(triggers, safeio.Exists) {
		return nil
	}
	do := executor.New()
	steps := []func() error{
		func() error { return project.RenameFile(project.PreviousTaploConfig, project.Taplo) },
		updateTaploConfig,
		updateTomlSortConfig,
	}
	if c.Precommit != nil {
		steps = append(steps,
			func() error {
				return c.Precommit.UpdateSingleHookRepo(precommit.Repo{
					Repo:  "https://github.com/ComPWA/mirrors-taplo",
					Hooks: []precommit.Hook{{ID: "taplo"}},
				})
			},
			func() error { return c.Precommit.UpdateSingleHookRepo(tomlSortRepo()) },
		)
	}
	steps = append(steps,
		func() error { return vscode.AddExtensionRecommendation("tamasfe.even-better-toml") },
		func() error { return vscode.RemoveExtensionRecommendation("bungcip.better-toml", true) },
	)
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func updateTaploConfig() error {
	template, err := assets.Template(project.Taplo)
	if err != nil {
		return err
	}
	expected, err := tomlx.Parse(template)
	if err != nil {
		return err
	}
	var excludes []string
	for _, pattern := range tomlx.Strings(expected["exclude"]) {
		if len(match.Glob(pattern, nil)) > 0 {
			excludes = append(excludes, pattern)
		}
	}
	if len(excludes) > 0 {
		slices.SortFunc(excludes, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
		expected["exclude"] = tomlx.ToArray(excludes...)
	} else {
		delete(expected, "exclude")
	}
	want, err := tomlx.Patch(template, expected)
	if err != nil {
		return err
	}
	existing, ok, err := safeio.ReadIfExists(project.Taplo)
	if err != nil {
		return err
	}
	if ok && bytes.Equal(bytes.TrimSpace(existing), bytes.TrimSpace(want)) {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(project.Taplo, want); err != nil {
		return err
	}
	if !ok {
		return executor.Errorf("Added %s config for TOML formatting", project.Taplo)
	}
	return executor.Errorf("Updated %s config file", project.Taplo)
}

func updateTomlSortConfig() error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	expected := tomlx.Table{
		"all":                         false,
		"ignore_case":                 true,
		"in_place":                    true,
		"sort_first":                  tomlx.ToArray("build-system", "project", "tool.setuptools", "tool.setuptools_scm"),
		"sort_table_keys":             true,
		"spaces_indent_inline_array":  4,
		"trailing_comma_inline_array": true,
	}
	tool, _ := pyp.GetTable("tool", true)
	if existing, ok := tool["tomlsort"].(tomlx.Table); ok && len(existing) == len(expected) &&
		pyproject.CompliesWithSubset(existing, expected, true) {
		return nil
	}
	tool["tomlsort"] = expected
	pyp.AppendToChangelog("Updated toml-sort configuration")
	return pyp.Finalize()
}

func tomlSortRepo() precommit.Repo {
	hook := precommit.Hook{ID: "toml-sort", Args: []string{"--in-place"}}
	var excludes []string
	if len(match.Glob("labels/*.toml", nil)) > 0 {
		excludes = append(excludes, `labels/.*\.toml`)
	}
	if len(match.Glob("labels*.toml", nil)) > 0 {
		excludes = append(excludes, `labels.*\.toml`)
	}
	if len(match.Glob("**/Manifest.toml", nil)) > 0 || len(match.Glob("**/Project.toml", nil)) > 0 {
		excludes = append(excludes, `.*(Manifest|Project)\.toml`)
	}
	if len(excludes) > 0 {
		slices.SortFunc(excludes, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
		hook.Exclude = "(?x)^(" + strings.Join(excludes, "|") + ")$"
	}
	return precommit.Repo{Repo: "https://github.com/pappasam/toml-sort", Hooks: []precommit.Hook{hook}}
}
