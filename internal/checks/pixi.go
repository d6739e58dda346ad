package checks

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/cfg"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/readme"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const pixiBadge = "[![Pixi Badge](https://img.shields.io/endpoint?url=https://raw.githubusercontent.com/prefix-dev/pixi/main/assets/badge/v0.json)](https://pixi.sh)"

var posargsRe = regexp.MustCompile(` {posargs[^}]*}`) // cspell:ignore posargs

// pixiConfig addresses pixi tables either in pixi.toml or under tool.pixi
// of pyproject.toml.
type pixiConfig struct {
	*pyproject.Modifiable
	prefix string
}

func (p pixiConfig) key(k string) string { return p.prefix + k }

func (p pixiConfig) has(k string) bool { return p.HasTable(p.key(k)) }

func (p pixiConfig) table(k string) tomlx.Table {
	t, _ := p.GetTable(p.key(k), true)
	return t
}

// Pixi configures the pixi developer environment when the package manager
// includes pixi and removes it otherwise.
func Pixi(_ context.Context, c *Context) error {
	if usesPixi(c) {
		return updatePixiConfiguration(c)
	}
	return removePixiConfiguration()
}

func loadPixiConfig(packageManager string) (pixiConfig, error) {
	if packageManager == "pixi" {
		m, err := pyproject.LoadModifiable(project.Pyproject)
		return pixiConfig{Modifiable: m, prefix: "tool.pixi."}, err
	}
	if !safeio.Exists(project.PixiToml) {
		if err := safeio.WriteFilePreservePerms(project.PixiToml, nil); err != nil {
			return pixiConfig{}, err
		}
	}
	m, err := pyproject.LoadModifiable(project.PixiToml)
	return pixiConfig{Modifiable: m}, err
}

func updatePixiConfiguration(c *Context) error {
	if c.Options.PackageManager == "pixi" && !safeio.Exists(project.Pyproject) {
		return nil
	}
	config, err := loadPixiConfig(c.Options.PackageManager)
	if err != nil {
		return err
	}
	do := executor.New()
	steps := []func() error{}
	if safeio.Exists(project.Readme) {
		steps = append(steps, func() error { return readme.AddBadge(pixiBadge) })
	}
	steps = append(steps,
		func() error { configureSetuptoolsSCM(config); return nil },
		func() error { defineMinimalPixiProject(config); return nil },
		func() error { return importCondaDependencies(config) },
		func() error { return importCondaEnvironment(config) },
	)
	if c.Options.PackageManager == "pixi" {
		if c.Options.IsPython() {
			steps = append(steps, func() error { return installPackageEditable(config) })
		}
		steps = append(steps,
			func() error { return importToxTasks(config, c.Options.OutsourcePixiToTox) },
			func() error { setPixiPythonVersion(config, c.Options.DevPythonVersion); return nil },
			func() error { updatePixiDevEnvironment(config); return nil },
			func() error { outsourceDocTasks(config, "tasks"); return nil },
			func() error { outsourceDocTasks(config, "feature.dev.tasks"); return nil },
		)
	}
	steps = append(steps,
		func() error { defineCombinedCITask(config); return nil },
		func() error { cleanUpTaskEnv(config); return nil },
		func() error {
			return vscode.UpdateSettings(map[string]any{"files.associations": map[string]any{"**/pixi.lock": "yaml"}})
		},
	)
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	if hasPixiConfig(config) {
		if err := do.Do(updatePixiGitattributes); err != nil {
			return err
		}
		if err := do.Do(updatePixiGitignore); err != nil {
			return err
		}
	}
	if err := do.Do(config.Finalize); err != nil {
		return err
	}
	return do.Finalize()
}

func hasPixiConfig(config pixiConfig) bool {
	if len(match.FilterFiles([]string{project.PixiLock, project.PixiToml}, nil)) > 0 {
		return true
	}
	return config.prefix == "" || config.HasTable("tool.pixi")
}

func configureSetuptoolsSCM(config pixiConfig) {
	if config.prefix == "" || !config.HasTable("tool.setuptools_scm") {
		return
	}
	scm, _ := config.GetTable("tool.setuptools_scm", false)
	expected := map[string]any{
		"local_scheme":   "no-local-version",
		"version_scheme": "post-release",
	}
	if pyproject.CompliesWithSubset(scm, expected, true) {
		return
	}
	for k, v := range expected {
		scm[k] = v
	}
	config.AppendToChangelog("Configured setuptools_scm to not include git info in package version for pixi")
}

func defineMinimalPixiProject(config pixiConfig) {
	settings := config.table("project")
	minimal := map[string]any{
		"channels":  tomlx.ToArray("conda-forge"),
		"platforms": tomlx.ToArray("linux-64"),
	}
	if config.prefix == "" && safeio.Exists(project.Pyproject) {
		if pyp, err := pyproject.Load(project.Pyproject); err == nil {
			if name, _ := pyp.GetPackageName(false); name != "" {
				minimal["name"] = name
			}
		}
	}
	if pyproject.CompliesWithSubset(settings, minimal, false) {
		return
	}
	for k, v := range minimal {
		settings[k] = v
	}
	config.AppendToChangelog("Defined minimal Pixi project settings")
}

func loadCondaEnvironment() (map[string]any, error) {
	data, ok, err := safeio.ReadIfExists(project.Conda)
	if err != nil || !ok {
		return nil, err
	}
	var env map[string]any
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse %s: %w", project.Conda, err)
	}
	return env, nil
}

func importCondaDependencies(config pixiConfig) error {
	env, err := loadCondaEnvironment()
	if err != nil || env == nil {
		return err
	}
	deps, _ := env["dependencies"].([]any)
	expected := map[string]any{}
	for _, dep := range deps {
		s, ok := dep.(string)
		if !ok {
			continue
		}
		name, version, err := toPixiDependency(s)
		if err != nil {
			return err
		}
		if name == "pip" {
			continue
		}
		expected[name] = version
	}
	if len(expected) == 0 {
		return nil
	}
	table := config.table("dependencies")
	if pyproject.CompliesWithSubset(table, expected, true) {
		return nil
	}
	for k, v := range expected {
		table[k] = v
	}
	config.AppendToChangelog("Imported conda dependencies into Pixi")
	return nil
}

// toPixiDependency converts "python==3.9.*" into ("python", "3.9.*").
func toPixiDependency(definition string) (string, string, error) {
	name, operator, version, err := pyproject.SplitDependencyDefinition(definition)
	if err != nil {
		return "", "", err
	}
	if version == "" {
		version = "*"
	}
	if operator == "=" || operator == "==" {
		operator = ""
	}
	return name, operator + version, nil
}

func importCondaEnvironment(config pixiConfig) error {
	env, err := loadCondaEnvironment()
	if err != nil || env == nil {
		return err
	}
	variables, _ := env["variables"].(map[string]any)
	if len(variables) == 0 {
		return nil
	}
	expected := make(map[string]any, len(variables))
	for k, v := range variables {
		expected[k] = fmt.Sprint(v)
	}
	table := config.table("activation.env")
	if pyproject.CompliesWithSubset(table, expected, true) {
		return nil
	}
	for k, v := range expected {
		table[k] = v
	}
	config.AppendToChangelog("Imported conda environment variables for Pixi")
	return nil
}

func installPackageEditable(config pixiConfig) error {
	name, err := config.GetPackageName(true)
	if err != nil {
		return err
	}
	expected := map[string]any{"path": ".", "editable": true}
	deps := config.table("pypi-dependencies")
	if existing, ok := deps[name].(tomlx.Table); ok && pyproject.CompliesWithSubset(existing, expected, true) && len(existing) == len(expected) {
		return nil
	}
	deps[name] = tomlx.Table{"path": ".", "editable": true}
	config.AppendToChangelog("Installed Python package in editable mode in Pixi")
	return nil
}

func importToxTasks(config pixiConfig, outsource bool) error {
	if !safeio.Exists(project.Tox) {
		return nil
	}
	tox, err := cfg.Open(project.Tox)
	if err != nil {
		return err
	}
	var imported []string
	for _, section := range cfg.Sections(tox) {
		job, ok := strings.CutPrefix(section, "testenv")
		if !ok {
			continue
		}
		job = strings.TrimPrefix(job, ":")
		task := job
		if task == "" {
			task = "tests"
		}
		key := "feature.dev.tasks." + task
		if config.has(key) {
			continue
		}
		values := cfg.SectionMap(tox, section)
		commands, ok := values["commands"]
		if !ok {
			continue
		}
		table := config.table(key)
		if outsource {
			table["cmd"] = toxCommand(job)
		} else {
			table["cmd"] = toPixiCommand(commands)
			if setenv, ok := values["setenv"]; ok { // cspell:ignore setenv
				if env := toEnvironmentVariables(setenv); len(env) > 0 {
					table["env"] = env
				}
			}
		}
		imported = append(imported, task)
	}
	if len(imported) > 0 {
		slices.Sort(imported)
		config.AppendToChangelog("Imported the following tox jobs: " + strings.Join(imported, ", "))
	}
	return nil
}

func toxCommand(job string) string {
	if job == "" {
		return "tox"
	}
	return "tox -e " + job
}

func toPixiCommand(toxCommand string) string {
	command := posargsRe.ReplaceAllString(toxCommand, "")
	lines := strings.Split(command, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	command = strings.TrimSpace(strings.Join(lines, "\n"))
	if strings.Contains(command, "\n") {
		command = "\n" + command + "\n"
		command = strings.ReplaceAll(command, "\\\n", "\\\n    ")
	}
	return command
}

func toEnvironmentVariables(setenv string) tomlx.Table {
	env := tomlx.Table{}
	for _, line := range strings.Split(setenv, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		env[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return env
}

func setPixiPythonVersion(config pixiConfig, version string) {
	deps := config.table("dependencies")
	expected := version + ".*"
	if deps["python"] == expected {
		return
	}
	deps["python"] = expected
	config.AppendToChangelog(fmt.Sprintf("Set Python version for Pixi developer environment to %s", expected))
}

func updatePixiDevEnvironment(config pixiConfig) {
	if !config.HasTable("project.optional-dependencies") {
		return
	}
	optional, _ := config.GetTable("project.optional-dependencies", false)
	expected := tomlx.Table{"features": tomlx.ToArray(tomlx.SortedKeys(optional)...)}
	environments := config.table("environments")
	if existing, ok := environments["default"].(tomlx.Table); ok && pyproject.CompliesWithSubset(existing, expected, true) {
		return
	}
	environments["default"] = expected
	config.AppendToChangelog("Updated Pixi developer environment")
}

func outsourceDocTasks(config pixiConfig, key string) {
	if !config.has(key) {
		return
	}
	tasks := config.table(key)
	targets := []struct{ template, task string }{
		{"doc", "docnb"}, {"doc", "docnb-force"}, {"doclive", "docnblive"},
	}
	var updated []string
	for _, t := range targets {
		task, ok := tasks[t.task].(tomlx.Table)
		if !ok {
			continue
		}
		expected := "pixi run " + t.template
		if task["cmd"] == expected {
			continue
		}
		task["cmd"] = expected
		updated = append(updated, t.task)
	}
	if len(updated) > 0 {
		config.AppendToChangelog("Updated `cmd` of Pixi tasks " + strings.Join(updated, ", "))
	}
}

// defineCombinedCITask makes the ci task depend on the style, test and
// documentation tasks.
func defineCombinedCITask(config pixiConfig) {
	if !config.has("feature.dev.tasks") {
		return
	}
	tasks := tomlx.SortedKeys(config.table("feature.dev.tasks"))
	var expected []string
	for _, name := range []string{"linkcheck", "sty"} {
		if slices.Contains(tasks, name) {
			expected = append(expected, name)
		}
	}
	switch {
	case slices.Contains(tasks, "cov") || slices.Contains(tasks, "coverage"):
		expected = append(expected, "cov")
	case slices.Contains(tasks, "tests"):
		expected = append(expected, "tests")
	}
	switch {
	case slices.Contains(tasks, "docnb"): // cspell:ignore docnb
		expected = append(expected, "docnb")
	case slices.Contains(tasks, "doc"):
		expected = append(expected, "doc")
	}
	ci := config.table("feature.dev.tasks.ci")
	existing := tomlx.Strings(ci["depends_on"])
	missing := false
	for _, e := range expected {
		if !slices.Contains(existing, e) {
			missing = true
			break
		}
	}
	if !missing {
		return
	}
	dependsOn := slices.Clone(expected)
	for _, e := range existing {
		if slices.Contains(tasks, e) && !slices.Contains(dependsOn, e) {
			dependsOn = append(dependsOn, e)
		}
	}
	slices.Sort(dependsOn)
	ci["depends_on"] = tomlx.ToArray(dependsOn...)
	config.AppendToChangelog("Updated combined CI job for Pixi")
}

func cleanUpTaskEnv(config pixiConfig) {
	if !config.has("feature.dev.tasks") {
		return
	}
	var global tomlx.Table
	if config.has("activation") {
		global, _ = config.table("activation")["env"].(tomlx.Table)
	}
	tasks := config.table("feature.dev.tasks")
	var updated []string
	for _, name := range tomlx.SortedKeys(tasks) {
		task, ok := tasks[name].(tomlx.Table)
		if !ok {
			continue
		}
		local, ok := task["env"].(tomlx.Table)
		if !ok || len(local) == 0 {
			continue
		}
		changed := false
		for k, v := range local {
			if g, ok := global[k]; ok && g == v {
				delete(local, k)
				changed = true
			}
		}
		if !changed {
			continue
		}
		if len(local) == 0 {
			delete(task, "env")
		}
		updated = append(updated, name)
	}
	if len(updated) > 0 {
		config.AppendToChangelog("Removed redundant environment variables from Pixi tasks " + strings.Join(updated, ", "))
	}
}

func updatePixiGitattributes() error {
	line := "pixi.lock linguist-language=YAML linguist-generated=true"
	added, err := project.AppendSafe(line, project.GitAttributes)
	if err != nil || !added {
		return err
	}
	return executor.Errorf("Added linguist definition for pixi.lock under %s", project.GitAttributes)
}

func updatePixiGitignore() error {
	added, err := project.AppendSafe(".pixi/", project.GitIgnore)
	if err != nil || !added {
		return err
	}
	return executor.Errorf("Added .pixi/ under %s", project.GitIgnore)
}

func removePixiConfiguration() error {
	do := executor.New()
	steps := []func() error{
		func() error { return project.RemoveLines(project.GitAttributes, "pixi") },
		func() error { return removeRedundantFile(project.PixiLock) },
		func() error { return removeRedundantFile(project.PixiToml) },
		func() error {
			return vscode.RemoveSettings(map[string][]string{"files.associations": {"**/pixi.lock", "pixi.lock"}})
		},
		removePixiTable,
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func removePixiTable() error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	if tomlx.DeleteSubTable(pyp.Document(), "tool.pixi") {
		pyp.AppendToChangelog("Removed Pixi configuration table")
	}
	return pyp.Finalize()
}

func removeRedundantFile(path string) error {
	if !safeio.Exists(path) {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	return executor.Errorf("Removed redundant file %s", path)
}
