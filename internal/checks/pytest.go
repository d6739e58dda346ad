package checks

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/cfg"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const coverageSection = "coverage:run"

// Pytest moves pytest.ini into pyproject.toml and normalises addopts.
func Pytest(_ context.Context, _ *Context) error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	do := executor.New()
	if err := do.Do(func() error { return mergePytestINI(pyp) }); err != nil {
		return err
	}
	if err := do.Do(func() error { updatePytestAddopts(pyp); return nil }); err != nil {
		return err
	}
	if err := do.Do(pyp.Finalize); err != nil {
		return err
	}
	return do.Finalize()
}

func mergePytestINI(pyp *pyproject.Modifiable) error {
	if !safeio.Exists(project.PytestIni) {
		return nil
	}
	f, err := cfg.Open(project.PytestIni)
	if err != nil {
		return err
	}
	sections := cfg.Sections(f)
	if slices.Contains(sections, coverageSection) {
		coverage, _ := pyp.GetTable("tool.coverage.run", true)
		for key, raw := range cfg.SectionMap(f, coverageSection) {
			coverage[key] = coverageValue(key, raw)
		}
		pyp.AppendToChangelog("Merged Coverage.py configuration into " + project.Pyproject)
	}
	for _, section := range sections {
		if section != "pytest" && section != "tool:pytest" {
			continue
		}
		options, _ := pyp.GetTable("tool.pytest.ini_options", true)
		for key, raw := range cfg.SectionMap(f, section) {
			options[key] = pytestValue(raw)
		}
	}
	if err := os.Remove(project.PytestIni); err != nil {
		return err
	}
	pyp.AppendToChangelog("Moved pytest configuration to " + project.Pyproject)
	return nil
}

func coverageValue(key, raw string) any {
	value := strings.TrimSpace(raw)
	switch value {
	case "True":
		return true
	case "False":
		return false
	}
	if key == "source" {
		return tomlx.ToArray(cfg.Values(value)...)
	}
	return value
}

// pytestValue turns multi-line INI values into arrays.
func pytestValue(raw string) any {
	value := strings.TrimSpace(raw)
	if !strings.Contains(value, "\n") {
		return value
	}
	var items []string
	for _, line := range strings.Split(value, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return tomlx.ToArray(items...)
}

func updatePytestAddopts(pyp *pyproject.Modifiable) {
	if !pyp.HasTable("tool.pytest.ini_options") {
		return
	}
	config, _ := pyp.GetTable("tool.pytest.ini_options", false)
	existing := config["addopts"]
	expected := expectedAddopts(existing)
	if _, isString := existing.(string); !isString && existing != nil {
		current := tomlx.Strings(existing)
		slices.Sort(current)
		if slices.Equal(current, expected) {
			return
		}
	}
	config["addopts"] = tomlx.ToArray(expected...)
	pyp.AppendToChangelog("Updated tool.pytest.ini_options.addopts under " + project.Pyproject)
}

func expectedAddopts(existing any) []string {
	var options []string
	if s, ok := existing.(string); ok {
		options = splitOptions(s)
	} else {
		options = tomlx.Strings(existing)
	}
	var out []string
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" || strings.HasPrefix(opt, "--color=") || slices.Contains(out, opt) {
			continue
		}
		out = append(out, opt)
	}
	out = append(out, "--color=yes")
	slices.Sort(out)
	return out
}

// splitOptions groups '-abc def -ghi "j k l"' into '-abc def' and
// '-ghi "j k l"'.
func splitOptions(arg string) []string {
	var options []string
	for i, element := range strings.Fields(arg) {
		if i > 0 && !strings.HasPrefix(element, "-") {
			options[len(options)-1] += " " + element
			continue
		}
		options = append(options, element)
	}
	return options
}
