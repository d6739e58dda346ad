package checks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/readme"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// cspell:ignore autoflake charliermarsh pylintrc nbqa

const ruffBadge = "[![Ruff](https://img.shields.io/endpoint?url=https://raw.githubusercontent.com/charliermarsh/ruff/main/assets/badge/v2.json)](https://github.com/astral-sh/ruff)"

var ruffIgnoredRules = []string{
	"ANN401",  // allow typing.Any
	"COM812",  // missing trailing comma
	"CPY001",  // copyright notice
	"D101",    // class docstring
	"D102",    // method docstring
	"D103",    // function docstring
	"D105",    // magic method docstring
	"D107",    // init docstring
	"D203",    // conflicts with D211
	"D213",    // multi-line docstring starts on the second line
	"D407",    // dashed underline after section
	"D416",    // section name ending with a colon
	"E501",    // line width
	"FURB101", // Path.read_text()
	"FURB103", // Path.write_text()
	"FURB140", // itertools.starmap
	"G004",    // f-string in logging
	"ISC001",  // conflicts with the formatter
	"PLW1514", // open() without encoding
	"PT001",   // pytest.fixture without parentheses
	"PTH",     // pathlib
	"SIM108",  // if-else blocks
}

var ruffNotebookIgnores = []string{
	"B018", "C90", "D", "E703", "N806", "N816", "PLR09", "PLR2004",
	"PLW0602", "PLW0603", "S101", "T20", "TCH00",
}

var ruffTestIgnores = []string{
	"ANN", "D", "FBT001", "INP001", "PGH001", "PLC2701", "PLR2004",
	"PLR6301", "S101", "SLF001", "T20",
}

// Ruff replaces the legacy linters with ruff and enforces its settings.
func Ruff(_ context.Context, c *Context) error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	pc := c.Precommit
	removeHooks := func(ids ...string) func() error {
		return func() error {
			if pc != nil {
				for _, id := range ids {
					pc.RemoveHook(id, "")
				}
			}
			return nil
		}
	}
	do := executor.New()
	steps := []func() error{
		func() error { return readme.AddBadge(ruffBadge) },
		func() error { pyp.RemoveDependency("radon"); return nil },
		// black
		func() error { return vscode.RemoveExtensionRecommendation("ms-python.black-formatter", true) },
		func() error { removeToolTable(pyp, "black"); return nil },
		func() error { pyp.RemoveDependency("black", "doc", "jupyter", "test"); return nil },
		func() error { return readme.RemoveBadge(`.*https://github\.com/psf.*/black.*`) },
		removeHooks("black-jupyter", "black", "blacken-docs"),
		func() error { return vscode.RemoveSettings([]string{"black-formatter.importStrategy"}) },
		// flake8
		func() error { return project.RemoveConfigs(".flake8") },
		func() error { removeNbqaOption(pyp, "flake8"); return nil },
		func() error { pyp.RemoveDependency("flake8"); pyp.RemoveDependency("pep8-naming"); return nil },
		func() error { return vscode.RemoveExtensionRecommendation("ms-python.flake8", true) },
		removeHooks("autoflake", "flake8", "nbqa-flake8"),
		func() error { return vscode.RemoveSettings([]string{"flake8.importStrategy"}) },
		// isort
		func() error { removeNbqaOption(pyp, "black"); removeNbqaOption(pyp, "isort"); return nil },
		func() error { removeToolTable(pyp, "isort"); return nil },
		func() error { return vscode.RemoveExtensionRecommendation("ms-python.isort", true) },
		removeHooks("isort", "nbqa-isort"),
		func() error { return vscode.RemoveSettings([]string{"isort.check", "isort.importStrategy"}) },
		func() error { return readme.RemoveBadge(`.*https://img\.shields\.io/badge/%20imports\-isort`) },
		// pydocstyle
		func() error { return project.RemoveConfigs(".pydocstyle", "docs/.pydocstyle", "tests/.pydocstyle") },
		func() error { pyp.RemoveDependency("pydocstyle"); return nil },
		removeHooks("pydocstyle"),
		// pylint
		func() error { return project.RemoveConfigs(".pylintrc") },
		func() error { pyp.RemoveDependency("pylint"); return nil },
		func() error { return vscode.RemoveExtensionRecommendation("ms-python.pylint", true) },
		removeHooks("pylint", "nbqa-pylint"),
		func() error { return vscode.RemoveSettings([]string{"pylint.importStrategy"}) },
		// ruff itself
		func() error { moveRuffLintConfig(pyp); return nil },
		func() error { updateRuffSettings(pyp, c.HasNotebooks, c.Options.ImportsOnTop); return nil },
		removeHooks("nbqa-ruff"),
	}
	if pc != nil {
		steps = append(steps, func() error { return pc.UpdateSingleHookRepo(ruffRepo(c.HasNotebooks)) })
	}
	steps = append(steps,
		func() error { return updateRuffDependencies(pyp) },
		updateRuffVSCodeSettings,
		pyp.Finalize,
	)
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func removeToolTable(pyp *pyproject.Modifiable, name string) {
	tool, ok := pyp.Document()["tool"].(tomlx.Table)
	if !ok {
		return
	}
	if _, ok := tool[name]; !ok {
		return
	}
	delete(tool, name)
	pyp.AppendToChangelog(fmt.Sprintf("Removed [tool.%s] table", name))
}

func removeNbqaOption(pyp *pyproject.Modifiable, option string) {
	const key = "tool.nbqa.addopts"
	if !pyp.HasTable(key) {
		return
	}
	table, _ := pyp.GetTable(key, false)
	if _, ok := table[option]; !ok {
		return
	}
	delete(table, option)
	pyp.AppendToChangelog(fmt.Sprintf("Removed '%s' nbQA options from [%s]", option, key))
}

var ruffLintKeys = []string{
	"extend-select", "ignore", "isort", "pep8-naming",
	"per-file-ignores", "pydocstyle", "select", "task-tags",
}

// moveRuffLintConfig migrates linter keys from tool.ruff to tool.ruff.lint.
func moveRuffLintConfig(pyp *pyproject.Modifiable) {
	global, _ := pyp.GetTable("tool.ruff", true)
	moved := false
	for _, key := range ruffLintKeys {
		value, ok := global[key]
		if !ok {
			continue
		}
		if table, isTable := value.(tomlx.Table); isTable {
			lint, _ := pyp.GetTable("tool.ruff.lint."+key, true)
			for k, v := range table {
				lint[k] = v
			}
		} else {
			lint, _ := pyp.GetTable("tool.ruff.lint", true)
			lint[key] = value
		}
		delete(global, key)
		moved = true
	}
	if moved {
		pyp.AppendToChangelog("Moved linting configuration to [tool.ruff.lint]")
	}
}

func supportedVersions(pyp *pyproject.Modifiable) []pyproject.PythonVersion {
	versions, err := pyp.GetSupportedPythonVersions()
	if err != nil {
		return nil
	}
	return versions
}

func ruffTargetVersion(pyp *pyproject.Modifiable) string {
	allowed := []string{"py37", "py38", "py39", "py310", "py311", "py312"}
	var versions []string
	for _, v := range supportedVersions(pyp) {
		if tag := "py" + strings.ReplaceAll(v, ".", ""); slices.Contains(allowed, tag) {
			versions = append(versions, tag)
		}
	}
	if len(versions) == 0 {
		return "py37"
	}
	slices.SortFunc(versions, func(a, b string) int {
		if project.NaturalLess(a, b) {
			return -1
		}
		if project.NaturalLess(b, a) {
			return 1
		}
		return 0
	})
	return versions[0]
}

// mergeSorted returns the sorted union of the lists.
func mergeSorted(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, item := range list {
			if !slices.Contains(out, item) {
				out = append(out, item)
			}
		}
	}
	slices.Sort(out)
	return out
}

// mergeRules merges rule sets and drops rules covered by a shorter prefix.
func mergeRules(sets ...[]string) []string {
	merged := mergeSorted(sets...)
	return slices.DeleteFunc(slices.Clone(merged), func(rule string) bool {
		for _, r := range merged {
			if rule != r && strings.HasPrefix(rule, r) {
				return true
			}
		}
		return false
	})
}

func banRules(rules, banned []string) []string {
	return slices.DeleteFunc(slices.Clone(rules), func(rule string) bool {
		for _, b := range banned {
			if strings.HasPrefix(rule, b) {
				return true
			}
		}
		return false
	})
}

func applyMinimal(pyp *pyproject.Modifiable, table tomlx.Table, minimal tomlx.Table, msg string) {
	if pyproject.CompliesWithSubset(table, minimal, false) {
		return
	}
	for k, v := range minimal {
		table[k] = v
	}
	pyp.AppendToChangelog(msg)
}

func updateRuffSettings(pyp *pyproject.Modifiable, hasNotebooks, importsOnTop bool) {
	global, _ := pyp.GetTable("tool.ruff", true)
	minimal := tomlx.Table{
		"preview":        true,
		"show-fixes":     true,
		"target-version": ruffTargetVersion(pyp),
	}
	if hasNotebooks {
		minimal["extend-include"] = tomlx.ToArray(mergeSorted([]string{"*.ipynb"}, tomlx.Strings(global["extend-include"]))...)
	}
	var src []string
	for _, dir := range []string{"src", "tests"} {
		if safeio.IsDir(dir) {
			src = append(src, dir)
		}
	}
	if len(src) > 0 {
		minimal["src"] = tomlx.ToArray(src...)
	}
	if len(match.FilterFiles([]string{"typings"}, nil)) > 0 {
		minimal["extend-exclude"] = tomlx.ToArray(mergeSorted([]string{"typings"}, tomlx.Strings(global["extend-exclude"]))...)
	}
	applyMinimal(pyp, global, minimal, "Updated Ruff configuration")

	format, _ := pyp.GetTable("tool.ruff.format", true)
	applyMinimal(pyp, format, tomlx.Table{"docstring-code-format": true, "line-ending": "lf"},
		"Updated Ruff formatter configuration")

	lint, _ := pyp.GetTable("tool.ruff.lint", true)
	ignored := slices.Clone(ruffIgnoredRules)
	if slices.Contains(supportedVersions(pyp), "3.6") {
		ignored = append(ignored, "UP036")
	}
	applyMinimal(pyp, lint, tomlx.Table{
		"select":    tomlx.ToArray("ALL"),
		"ignore":    tomlx.ToArray(mergeSorted(tomlx.Strings(lint["ignore"]), ignored)...),
		"task-tags": tomlx.ToArray(mergeSorted(tomlx.Strings(lint["task-tags"]), []string{"cspell"})...),
	}, "Updated Ruff linting configuration")
	if _, ok := lint["extend-select"]; ok {
		delete(lint, "extend-select")
		pyp.AppendToChangelog("Removed [tool.ruff.lint.extend-select] configuration")
	}

	updatePerFileIgnores(pyp, hasNotebooks, importsOnTop)

	isort, _ := pyp.GetTable("tool.ruff.lint.isort", true)
	applyMinimal(pyp, isort, tomlx.Table{"split-on-trailing-comma": false}, "Updated Ruff isort settings")
	pydocstyle, _ := pyp.GetTable("tool.ruff.lint.pydocstyle", true)
	applyMinimal(pyp, pydocstyle, tomlx.Table{"convention": "google"}, "Updated Ruff configuration")

	removeNbqaRuffSettings(pyp)
}

// updatePerFileIgnores relaxes the rules for notebooks, docs and tests.
// Notebooks may import halfway through unless importsOnTop is set.
func updatePerFileIgnores(pyp *pyproject.Modifiable, hasNotebooks, importsOnTop bool) {
	settings, _ := pyp.GetTable("tool.ruff.lint.per-file-ignores", true)
	minimal := tomlx.Table{}
	if hasNotebooks {
		key := "*.ipynb"
		rules := mergeRules(ruffNotebookIgnores, existingNbqaIgnores(pyp), tomlx.Strings(settings[key]))
		banned := []string{"F821", "ISC003"}
		if importsOnTop {
			banned = append(banned, "E402")
		} else {
			rules = mergeRules(rules, []string{"E402"})
		}
		minimal[key] = tomlx.ToArray(banRules(rules, banned)...)
	}
	if safeio.IsDir("docs") {
		key := "docs/*"
		minimal[key] = tomlx.ToArray(mergeRules([]string{"INP001", "S101", "S113"}, tomlx.Strings(settings[key]))...)
	}
	if safeio.Exists("docs/conf.py") {
		key := "docs/conf.py"
		minimal[key] = tomlx.ToArray(mergeRules([]string{"D100"}, tomlx.Strings(settings[key]))...)
	}
	if safeio.Exists("setup.py") {
		minimal["setup.py"] = tomlx.ToArray("D100")
	}
	if safeio.IsDir("tests") {
		key := "tests/*"
		minimal[key] = tomlx.ToArray(mergeRules(ruffTestIgnores, tomlx.Strings(settings[key]))...)
	}
	applyMinimal(pyp, settings, minimal, "Updated Ruff configuration")
}

func existingNbqaIgnores(pyp *pyproject.Modifiable) []string {
	if !pyp.HasTable("tool.nbqa.addopts") {
		return nil
	}
	table, _ := pyp.GetTable("tool.nbqa.addopts", false)
	var out []string
	for _, rule := range tomlx.Strings(table["ruff"]) {
		if r, ok := strings.CutPrefix(rule, "--extend-ignore="); ok {
			out = append(out, r)
		}
	}
	return out
}

func removeNbqaRuffSettings(pyp *pyproject.Modifiable) {
	if !pyp.HasTable("tool.nbqa.addopts") {
		return
	}
	addopts, _ := pyp.GetTable("tool.nbqa.addopts", false)
	if _, ok := addopts["ruff"]; !ok {
		return
	}
	delete(addopts, "ruff")
	if len(addopts) == 0 {
		tomlx.DeleteSubTable(pyp.Document(), "tool.nbqa")
	}
	pyp.AppendToChangelog("Removed Ruff configuration for nbQA")
}

func ruffRepo(hasNotebooks bool) precommit.Repo {
	lint := precommit.Hook{ID: "ruff", Args: []string{"--fix"}}
	format := precommit.Hook{ID: "ruff-format"}
	if hasNotebooks {
		lint.TypesOr = []string{"python", "pyi", "jupyter"}
		format.TypesOr = []string{"python", "pyi", "jupyter"}
	}
	return precommit.Repo{
		Repo:  "https://github.com/astral-sh/ruff-pre-commit",
		Hooks: []precommit.Hook{lint, format},
	}
}

func updateRuffDependencies(pyp *pyproject.Modifiable) error {
	if !pyp.HasTable("build-system") {
		return nil
	}
	ruff := "ruff"
	if slices.Contains(supportedVersions(pyp), "3.6") {
		ruff = `ruff; python_version >="3.7.0"`
	}
	if pyp.HasTable("dependency-groups") {
		pyp.AddToDependencyGroup(ruff, "style", "dev")
		return nil
	}
	return pyp.AddDependency(ruff, "sty", "dev")
}

func updateRuffVSCodeSettings() error {
	do := executor.New()
	if err := do.Do(func() error { return vscode.AddExtensionRecommendation("charliermarsh.ruff") }); err != nil {
		return err
	}
	settings := map[string]any{
		"notebook.codeActionsOnSave":    map[string]any{"notebook.source.organizeImports": "explicit"},
		"notebook.formatOnSave.enabled": true,
		"[python]": map[string]any{
			"editor.codeActionsOnSave": map[string]any{"source.organizeImports": "explicit"},
			"editor.defaultFormatter":  "charliermarsh.ruff",
		},
		"ruff.enable":          true,
		"ruff.importStrategy":  "fromEnvironment",
		"ruff.organizeImports": true,
	}
	if err := do.Do(func() error { return vscode.UpdateSettings(settings) }); err != nil {
		return err
	}
	return do.Finalize()
}
