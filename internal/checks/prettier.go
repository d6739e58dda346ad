package checks

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/readme"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// cspell:ignore esbenp
const (
	prettierExtension    = "esbenp.prettier-vscode"
	prettierBadge        = "[![code style: prettier](https://img.shields.io/badge/code_style-prettier-ff69b4.svg?style=flat-square)](https://github.com/prettier/prettier)"
	prettierBadgePattern = `\[\!\[[Pp]rettier.*\]\(.*prettier.*\)\]\(.*prettier.*\)`
)

// Alternative config files that .prettierrc replaces.
var prettierConfigVariants = []string{
	".prettierrc.json",
	".prettierrc.yml",
	".prettierrc.yaml",
	".prettierrc.json5",
	".prettierrc.toml",
}

// Entries that must not be ignored by prettier.
var prettierForbiddenIgnores = []string{".cspell.json", "cspell.config.yaml", "cspell.json"}

// Prettier keeps the prettier config, badge and ignore file in step with the
// presence of the mirrors-prettier hook.
func Prettier(_ context.Context, c *Context) error {
	hasHook := false
	if c.Precommit != nil {
		_, hasHook = c.Precommit.FindRepo(`.*/mirrors-prettier`)
	}
	if !hasHook {
		return removePrettierConfiguration()
	}
	do := executor.New()
	steps := []func() error{
		updatePrettierConfig,
		func() error { return readme.AddBadge(prettierBadge) },
		func() error { return vscode.AddExtensionRecommendation(prettierExtension) },
		removeForbiddenPrettierIgnores,
		insertExpectedPrettierIgnores,
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func removePrettierConfiguration() error {
	if safeio.Exists(project.PrettierConfig) {
		if err := os.Remove(project.PrettierConfig); err != nil {
			return err
		}
		return executor.Errorf(`"%s" is no longer required and has been removed`, project.PrettierConfig)
	}
	do := executor.New()
	if err := do.Do(func() error { return readme.RemoveBadge(prettierBadgePattern) }); err != nil {
		return err
	}
	if err := do.Do(func() error { return vscode.RemoveExtensionRecommendation(prettierExtension, false) }); err != nil {
		return err
	}
	return do.Finalize()
}

func updatePrettierConfig() error {
	expected, err := assets.Template(project.PrettierConfig)
	if err != nil {
		return err
	}
	existing, _, err := safeio.ReadIfExists(project.PrettierConfig)
	if err != nil {
		return err
	}
	if string(existing) != string(expected) {
		if err := safeio.WriteFilePreservePerms(project.PrettierConfig, expected); err != nil {
			return err
		}
		return executor.Errorf("Updated %s config file", project.PrettierConfig)
	}
	for _, path := range prettierConfigVariants {
		if !safeio.Exists(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		return executor.Errorf(`Removed "%s": "%s" should suffice`, path, project.PrettierConfig)
	}
	return nil
}

func readPrettierIgnore() ([]string, error) {
	data, ok, err := safeio.ReadIfExists(project.PrettierIgnore)
	if err != nil || !ok {
		return []string{""}, err
	}
	return strings.Split(string(data), "\n"), nil
}

func writePrettierIgnore(lines []string) error {
	var unique []string
	for _, line := range lines {
		if line != "" && !slices.Contains(unique, line) {
			unique = append(unique, line)
		}
	}
	slices.Sort(unique)
	return safeio.WriteFilePreservePerms(project.PrettierIgnore, []byte(strings.Join(unique, "\n")+"\n"))
}

func removeForbiddenPrettierIgnores() error {
	if !safeio.Exists(project.PrettierIgnore) {
		return nil
	}
	existing, err := readPrettierIgnore()
	if err != nil {
		return err
	}
	expected := slices.DeleteFunc(slices.Clone(existing), func(line string) bool {
		entry, _, _ := strings.Cut(line, "#")
		return slices.Contains(prettierForbiddenIgnores, strings.TrimSpace(entry))
	})
	if len(expected) == len(existing) {
		return nil
	}
	if err := writePrettierIgnore(expected); err != nil {
		return err
	}
	return executor.Errorf("Removed forbidden paths from %s", project.PrettierIgnore)
}

func insertExpectedPrettierIgnores() error {
	existing, err := readPrettierIgnore()
	if err != nil {
		return err
	}
	var expected []string
	for _, line := range existing {
		if line != "" && !slices.Contains(expected, line) {
			expected = append(expected, line)
		}
	}
	if safeio.Exists("LICENSE") && !slices.Contains(expected, "LICENSE") {
		expected = append(expected, "LICENSE")
	}
	slices.Sort(expected)
	if len(expected) == 0 {
		if !safeio.Exists(project.PrettierIgnore) {
			return nil
		}
		if err := os.Remove(project.PrettierIgnore); err != nil {
			return err
		}
		return executor.Errorf("%s is not needed", project.PrettierIgnore)
	}
	if slices.Equal(existing, append(slices.Clone(expected), "")) {
		return nil
	}
	if err := writePrettierIgnore(expected); err != nil {
		return err
	}
	return executor.Errorf("Added paths to %s", project.PrettierIgnore)
}
