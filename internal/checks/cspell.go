package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/cases"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/readme"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const (
	cspellExtension = "streetsidesoftware.code-spell-checker"
	cspellRepoURL   = "https://github.com/streetsidesoftware/cspell-cli"
	// cspell:ignore pelling
	cspellBadge        = "[![Spelling checked](https://img.shields.io/badge/cspell-checked-brightgreen.svg)](https://github.com/streetsidesoftware/cspell/tree/master/packages/cspell)"
	cspellBadgePattern = `\[\!\[[Ss]pelling.*\]\(.*cspell.*\)\]\(.*cspell.*\)`
)

var caseFold = cases.Fold()

// Cspell keeps .cspell.json in sync with the template while the cspell
// hook is active and removes every trace of cSpell otherwise.
func Cspell(_ context.Context, c *Context) error {
	do := executor.New()
	if err := do.Do(func() error { return project.RenameFile("cspell.json", project.Cspell) }); err != nil {
		return err
	}
	if err := do.Do(func() error { return updateCspellRepoURL(c.Precommit) }); err != nil {
		return err
	}
	hasHook := false
	if c.Precommit != nil && safeio.Exists(project.Cspell) {
		_, hasHook = c.Precommit.FindRepo("^" + regexp.QuoteMeta(cspellRepoURL) + "$")
	}
	var steps []func() error
	if !hasHook {
		steps = append(steps, removeCspellConfiguration)
	} else {
		steps = append(steps, func() error {
			return c.Precommit.UpdateSingleHookRepo(precommit.Repo{
				Repo:  cspellRepoURL,
				Hooks: []precommit.Hook{{ID: "cspell"}},
			})
		})
		if !c.Options.NoCspellUpdate {
			steps = append(steps, updateCspellContent)
		}
		steps = append(steps,
			sortCspellEntries,
			func() error { return readme.AddBadge(cspellBadge) },
			func() error { return vscode.AddExtensionRecommendation(cspellExtension) },
		)
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func updateCspellRepoURL(pc *precommit.Precommit) error {
	if pc == nil {
		return nil
	}
	idx, _, ok := pc.FindRepoWithIndex(`.*/mirrors-cspell(\.git)?$`)
	if !ok {
		return nil
	}
	pc.SetRepoURL(idx, cspellRepoURL)
	pc.AppendToChangelog(fmt.Sprintf("Updated cSpell pre-commit repo URL to %s", cspellRepoURL))
	return nil
}

func removeCspellConfiguration() error {
	if safeio.Exists(project.Cspell) {
		if err := os.Remove(project.Cspell); err != nil {
			return fmt.Errorf("remove %s: %w", project.Cspell, err)
		}
		return executor.Errorf("%q is no longer required and has been removed", project.Cspell)
	}
	if project.ContainsLine(project.EditorConfig, project.Cspell) {
		if err := project.RemoveLines(project.EditorConfig, "^"+regexp.QuoteMeta(project.Cspell)+"$"); err != nil && !executor.IsPrecommitError(err) {
			return err
		}
		return executor.Errorf("%q in %s is no longer required and has been removed", project.Cspell, project.EditorConfig)
	}
	do := executor.New()
	if err := do.Do(func() error { return readme.RemoveBadge(cspellBadgePattern) }); err != nil {
		return err
	}
	if err := do.Do(func() error { return vscode.RemoveExtensionRecommendation(cspellExtension, false) }); err != nil {
		return err
	}
	return do.Finalize()
}

func expectedCspellConfig() (map[string]any, error) {
	data, err := assets.Template(project.Cspell)
	if err != nil {
		return nil, err
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s template: %w", project.Cspell, err)
	}
	return config, nil
}

func loadCspellConfig() (map[string]any, error) {
	data, ok, err := safeio.ReadIfExists(project.Cspell)
	if err != nil || !ok {
		return map[string]any{}, err
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", project.Cspell, err)
	}
	if config == nil {
		config = map[string]any{}
	}
	return config, nil
}

func writeCspellConfig(config map[string]any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(config); err != nil {
		return err
	}
	return safeio.WriteFilePreservePerms(project.Cspell, buf.Bytes())
}

// updateCspellContent overwrites template sections with the expected
// content. Project-specific words and ignoreWords are only created.
func updateCspellContent() error {
	expected, err := expectedCspellConfig()
	if err != nil {
		return err
	}
	config, err := loadCspellConfig()
	if err != nil {
		return err
	}
	var fixed []string
	for _, section := range sortedSections(expected) {
		if section == "words" || section == "ignoreWords" {
			if _, ok := config[section]; !ok {
				config[section] = []any{}
				fixed = append(fixed, `"`+section+`"`)
			}
			continue
		}
		want, err := expectedCspellSection(config, expected, section)
		if err != nil {
			return err
		}
		if cmp.Equal(config[section], want) {
			continue
		}
		config[section] = want
		fixed = append(fixed, `"`+section+`"`)
	}
	if len(fixed) == 0 {
		return nil
	}
	if err := writeCspellConfig(config); err != nil {
		return err
	}
	return executor.Errorf("%s in %s has been updated.", listSections(fixed), project.Cspell)
}

func expectedCspellSection(config, expected map[string]any, section string) (any, error) {
	want := expected[section]
	current, ok := config[section]
	if !ok {
		return want, nil
	}
	switch x := want.(type) {
	case nil:
		return current, nil
	case string:
		return x, nil
	case []any:
		if section == "ignorePaths" {
			x = existingPaths(x)
		}
		return sortCspellSection(x, section), nil
	default:
		return nil, fmt.Errorf("cannot update section %q of type %T", section, want)
	}
}

// existingPaths keeps the patterns that match anything on disk.
func existingPaths(patterns []any) []any {
	fsys := os.DirFS(".")
	out := []any{}
	for _, p := range patterns {
		s, ok := p.(string)
		if !ok {
			continue
		}
		if matches, err := doublestar.Glob(fsys, s); err == nil && len(matches) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func sortCspellEntries() error {
	config, err := loadCspellConfig()
	if err != nil {
		return err
	}
	var fixed []string
	for _, section := range sortedSections(config) {
		items, ok := config[section].([]any)
		if !ok {
			continue
		}
		sorted := sortCspellSection(items, section)
		if cmp.Equal(items, sorted) {
			continue
		}
		config[section] = sorted
		fixed = append(fixed, `"`+section+`"`)
	}
	if len(fixed) == 0 {
		return nil
	}
	if err := writeCspellConfig(config); err != nil {
		return err
	}
	return executor.Errorf("%s in %s has been sorted alphabetically.", listSections(fixed), project.Cspell)
}

// sortCspellSection orders dictionaryDefinitions by name, ignoreWords
// case-sensitively and every other list case-insensitively.
func sortCspellSection(items []any, section string) []any {
	out := slices.Clone(items)
	var key func(v any) string
	switch section {
	case "dictionaryDefinitions":
		key = func(v any) string {
			m, _ := v.(map[string]any)
			name, _ := m["name"].(string)
			return strings.ToLower(name)
		}
	case "ignoreWords":
		key = func(v any) string { return fmt.Sprint(v) }
	default:
		key = func(v any) string { return caseFold.String(fmt.Sprint(v)) }
	}
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

func sortedSections(config map[string]any) []string {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// listSections renders `Section "a"`, `Sections "a" and "b"` or
// `Sections "a", "b", and "c"`.
func listSections(sections []string) string {
	switch len(sections) {
	case 0:
		return ""
	case 1:
		return "Section " + sections[0]
	case 2:
		return "Sections " + sections[0] + " and " + sections[1]
	}
	last := len(sections) - 1
	return "Sections " + strings.Join(sections[:last], ", ") + ", and " + sections[last]
}
