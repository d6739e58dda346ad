package checks

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Conda keeps environment.yml in line with the dev Python version, or
// removes it when conda is not the package manager.
func Conda(_ context.Context, c *Context) error {
	if c.Options.PackageManager == "conda" {
		return updateCondaEnvironment(c.Options.DevPythonVersion)
	}
	return removeCondaConfiguration()
}

func updateCondaEnvironment(version string) error {
	if !safeio.Exists(project.Pyproject) {
		logger.Debug("no pyproject.toml, skipping conda environment")
		return nil
	}
	updated := false
	var doc, env *yaml.Node
	if safeio.Exists(project.Conda) {
		loaded, err := yamlrt.Load(project.Conda)
		if err != nil {
			return err
		}
		doc, env = loaded, yamlrt.Root(loaded)
	} else {
		created, err := newCondaEnvironment(version)
		if err != nil {
			return err
		}
		doc, env = created, created
		updated = true
	}
	deps := yamlrt.MapGet(env, "dependencies")
	if deps == nil || deps.Kind != yaml.SequenceNode {
		deps = yamlrt.NewSeq()
		yamlrt.MapSet(env, "dependencies", deps)
	}
	if updateCondaPython(version, deps) {
		updated = true
	}
	if updateCondaPip(version, deps) {
		updated = true
	}
	if !updated {
		return nil
	}
	if err := yamlrt.Write(project.Conda, doc, yamlrt.Spacing{}); err != nil {
		return err
	}
	return executor.Errorf("Updated Conda environment for Python %s", version)
}

func newCondaEnvironment(version string) (*yaml.Node, error) {
	pyp, err := pyproject.Load(project.Pyproject)
	if err != nil {
		return nil, err
	}
	name, err := pyp.GetPackageName(true)
	if err != nil {
		return nil, err
	}
	env := yamlrt.NewMap()
	yamlrt.MapSet(env, "name", yamlrt.NewString(name))
	yamlrt.MapSet(env, "channels", yamlrt.NewStrings("defaults"))
	pip := yamlrt.NewMap()
	yamlrt.MapSet(pip, "pip", yamlrt.NewStrings("-e .[dev]"))
	yamlrt.MapSet(env, "dependencies", yamlrt.NewSeq(
		yamlrt.NewString(fmt.Sprintf("python==%s.*", version)),
		yamlrt.NewString("pip"),
		pip,
	))
	return env, nil
}

func updateCondaPython(version string, deps *yaml.Node) bool {
	expected := fmt.Sprintf("python==%s.*", version)
	for _, dep := range deps.Content {
		if dep.Kind != yaml.ScalarNode || !strings.HasPrefix(strings.TrimSpace(dep.Value), "python") {
			continue
		}
		if dep.Value == expected {
			return false
		}
		dep.Value = expected
		return true
	}
	return false
}

func updateCondaPip(version string, deps *yaml.Node) bool {
	var pip *yaml.Node
	for _, dep := range deps.Content {
		if dep.Kind != yaml.MappingNode {
			continue
		}
		if n := yamlrt.MapGet(dep, "pip"); n != nil && n.Kind == yaml.SequenceNode {
			pip = n
			break
		}
	}
	if pip == nil || len(pip.Content) == 0 {
		return false
	}
	expected := "-e .[dev]"
	if constraints := pyproject.GetConstraintsFile(version); constraints != "" {
		expected = fmt.Sprintf("-c %s -e .[dev]", constraints)
	}
	if pip.Content[0].Value == expected {
		return false
	}
	pip.Content[0] = yamlrt.NewString(expected)
	return true
}

func removeCondaConfiguration() error {
	do := executor.New()
	if err := do.Do(removeEnvironmentYML); err != nil {
		return err
	}
	// cspell:ignore condaenv
	for _, pattern := range []string{`.*condaenv.*`, `.*environment\.yml.*`} {
		if err := do.Do(func() error { return project.RemoveLines(project.GitIgnore, pattern) }); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func removeEnvironmentYML() error {
	if !safeio.Exists(project.Conda) {
		return nil
	}
	if err := os.Remove(project.Conda); err != nil {
		return err
	}
	return executor.NewPrecommitError("Removed Conda configuration, because conda was not selected as package manager")
}
