package checks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const readTheDocsOS = "ubuntu-24.04"

// ReadTheDocs keeps the build image, Python version and install steps of
// .readthedocs.yml up to date.
func ReadTheDocs(_ context.Context, c *Context) error {
	if !safeio.Exists(project.ReadTheDocs) {
		return nil
	}
	doc, err := yamlrt.Load(project.ReadTheDocs)
	if err != nil {
		return err
	}
	changelog := updateReadTheDocs(yamlrt.Root(doc), c.Options.DevPythonVersion)
	if len(changelog) == 0 {
		return nil
	}
	if err := yamlrt.Write(project.ReadTheDocs, doc, yamlrt.Spacing{}); err != nil {
		return err
	}
	return executor.Errorf("Updated %s:\n  - %s", project.ReadTheDocs, strings.Join(changelog, "\n  - "))
}

func updateReadTheDocs(root *yaml.Node, python string) []string {
	build := yamlrt.MapGet(root, "build")
	if build == nil || build.Kind != yaml.MappingNode {
		return nil
	}
	var changelog []string
	if current := yamlrt.MapGet(build, "os"); current == nil || current.Value != readTheDocsOS {
		yamlrt.MapSet(build, "os", yamlrt.NewString(readTheDocsOS))
		changelog = append(changelog, "Set build.os to "+readTheDocsOS)
	}
	if tools := yamlrt.MapGet(build, "tools"); tools != nil {
		if existing := yamlrt.MapGet(tools, "python"); existing != nil && existing.Value != python {
			yamlrt.MapSet(tools, "python", yamlrt.NewQuoted(python))
			changelog = append(changelog, fmt.Sprintf("Set build.tools.python to '%s'", python))
		}
	}
	if steps := yamlrt.Lookup(build, "jobs", "post_install"); steps != nil && steps.Kind == yaml.SequenceNode {
		if updated, ok := uvInstallSteps(yamlrt.Strings(steps), python); ok {
			steps.Content = yamlrt.NewStrings(updated...).Content
			changelog = append(changelog, "Updated pip install steps")
		}
	}
	return changelog
}

// uvInstallSteps replaces the pip install step, and the uv set-up lines in
// front of it, with the uv install sequence.
func uvInstallSteps(steps []string, python string) ([]string, bool) {
	idx := slices.IndexFunc(steps, func(s string) bool { return strings.Contains(s, "pip install") })
	if idx < 0 {
		return nil, false
	}
	expected := readTheDocsInstallSteps(python)
	start := idx
	for start > 0 && slices.Contains(expected[:2], steps[start-1]) {
		start--
	}
	if slices.Equal(steps[start:idx+1], expected) {
		return nil, false
	}
	updated := slices.Concat(steps[:start], expected, steps[idx+1:])
	return updated, true
}

func readTheDocsInstallSteps(python string) []string {
	install := "uv pip install --system"
	if constraints := pyproject.GetConstraintsFile(python); constraints != "" {
		install += " -c " + constraints
	}
	install += " -e .[doc]"
	return []string{
		"curl -LsSf https://astral.sh/uv/install.sh | sh",
		"source $HOME/.cargo/env",
		install,
	}
}
