package checks

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/cfg"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const (
	mypyINI       = ".mypy.ini"
	mypyExtension = "ms-python.mypy-type-checker"
)

// mypy options that take a list of values.
var mypyListOptions = map[string]bool{
	"always_false":       true,
	"always_true":        true,
	"disable_error_code": true,
	"enable_error_code":  true,
	"exclude":            true,
	"files":              true,
	"modules":            true,
	"mypy_path":          true,
	"packages":           true,
	"plugins":            true,
}

var listSplitRe = regexp.MustCompile(`[,\n]`)

// Mypy moves .mypy.ini into pyproject.toml and keeps the VS Code mypy
// extension in step with tool.mypy.
func Mypy(_ context.Context, _ *Context) error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	do := executor.New()
	if err := do.Do(func() error { return mergeMypyIntoPyproject(pyp) }); err != nil {
		return err
	}
	if err := do.Do(func() error { return updateMypyVSCodeSettings(pyp) }); err != nil {
		return err
	}
	if err := do.Do(pyp.Finalize); err != nil {
		return err
	}
	return do.Finalize()
}

func mergeMypyIntoPyproject(pyp *pyproject.Modifiable) error {
	if !safeio.Exists(mypyINI) {
		return nil
	}
	f, err := cfg.Open(mypyINI)
	if err != nil {
		return err
	}
	tool, _ := pyp.GetTable("tool", true)
	mypy, _ := tool["mypy"].(tomlx.Table)
	if mypy == nil {
		mypy = tomlx.Table{}
	}
	var overrides []any
	for _, section := range cfg.Sections(f) {
		values := mypyTable(cfg.SectionMap(f, section))
		if section == "mypy" {
			for k, v := range values {
				mypy[k] = v
			}
			continue
		}
		modules, ok := strings.CutPrefix(section, "mypy-")
		if !ok {
			continue
		}
		names := listSplitRe.Split(modules, -1)
		var module []string
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				module = append(module, name)
			}
		}
		if len(module) == 1 {
			values["module"] = module[0]
		} else {
			values["module"] = tomlx.ToArray(module...)
		}
		overrides = append(overrides, values)
	}
	if len(overrides) > 0 {
		mypy["overrides"] = append(toAnySlice(mypy["overrides"]), overrides...)
	}
	tool["mypy"] = mypy
	if err := os.Remove(mypyINI); err != nil {
		return err
	}
	pyp.AppendToChangelog("Imported mypy configuration from " + mypyINI)
	return nil
}

func toAnySlice(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = item
		}
		return out
	}
	return nil
}

func mypyTable(raw map[string]string) tomlx.Table {
	out := tomlx.Table{}
	for key, value := range raw {
		out[key] = iniToTOML(key, value)
	}
	return out
}

// iniToTOML converts a raw INI value into the TOML type mypy expects.
func iniToTOML(key, raw string) any {
	value := strings.TrimSpace(raw)
	if mypyListOptions[key] {
		var items []string
		for _, item := range listSplitRe.Split(value, -1) {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return tomlx.ToArray(items...)
	}
	switch strings.ToLower(value) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	return value
}

func updateMypyVSCodeSettings(pyp *pyproject.Modifiable) error {
	do := executor.New()
	if !pyp.HasTable("tool.mypy") {
		if err := do.Do(func() error { return vscode.RemoveExtensionRecommendation(mypyExtension, true) }); err != nil {
			return err
		}
		if err := do.Do(func() error { return vscode.RemoveSettings([]string{"mypy-type-checker.importStrategy"}) }); err != nil {
			return err
		}
		return do.Finalize()
	}
	if err := do.Do(func() error { return vscode.AddExtensionRecommendation(mypyExtension) }); err != nil {
		return err
	}
	settings := map[string]any{
		"mypy-type-checker.args":           []string{"--config-file=${workspaceFolder}/" + project.Pyproject},
		"mypy-type-checker.importStrategy": "fromEnvironment",
	}
	if err := do.Do(func() error { return vscode.UpdateSettings(settings) }); err != nil {
		return err
	}
	return do.Finalize()
}
