package checks

import (
	"context"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/readme"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const gitpodBadgePattern = `\[!\[GitPod\]\(https://img.shields.io/badge/gitpod`

// Gitpod generates .gitpod.yml when --gitpod is set and removes it
// otherwise.
func Gitpod(_ context.Context, c *Context) error {
	if !c.Options.Gitpod {
		if safeio.Exists(project.Gitpod) {
			if err := os.Remove(project.Gitpod); err != nil {
				return err
			}
			return executor.Errorf("Removed %s as requested by --no-gitpod", project.Gitpod)
		}
		return readme.RemoveBadge(gitpodBadgePattern)
	}
	expected, err := gitpodConfig(c.Options.DevPythonVersion)
	if err != nil {
		return err
	}
	var problem string
	data, ok, err := safeio.ReadIfExists(project.Gitpod)
	if err != nil {
		return err
	}
	if ok {
		var existing map[string]any
		if err := yaml.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parse %s: %w", project.Gitpod, err)
		}
		if !cmp.Equal(existing, expected) {
			problem = "GitPod config does not have expected content"
		}
	} else {
		problem = fmt.Sprintf("GitPod config %s does not exist", project.Gitpod)
	}
	if problem != "" {
		node, err := yamlrt.FromValue(expected)
		if err != nil {
			return err
		}
		if err := yamlrt.Write(project.Gitpod, node, yamlrt.Spacing{TopLevel: true}); err != nil {
			return err
		}
		return executor.NewPrecommitError(problem + ". Problem has been fixed.")
	}
	return addGitpodBadge()
}

func addGitpodBadge() error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.Load(project.Pyproject)
	if err != nil {
		return err
	}
	url, err := pyp.GetRepoURL()
	if err != nil {
		return nil
	}
	return readme.AddBadge(fmt.Sprintf("[![GitPod](https://img.shields.io/badge/gitpod-open-blue?logo=gitpod)](https://gitpod.io/#%s)", url))
}

func gitpodConfig(python string) (map[string]any, error) {
	data, err := assets.Template(project.Gitpod)
	if err != nil {
		return nil, err
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	tasks, _ := config["tasks"].([]any)
	if len(tasks) < 2 {
		return nil, fmt.Errorf("template %s defines fewer than two tasks", project.Gitpod)
	}
	install := "pip install -e .[dev]"
	if constraints := pyproject.GetConstraintsFile(python); constraints != "" {
		install = fmt.Sprintf("pip install -c %s -e .[dev]", constraints)
	}
	tasks[0] = map[string]any{"init": "pyenv local " + python}
	tasks[1] = map[string]any{"init": install}
	extensions, err := vscode.GetRecommendations()
	if err != nil {
		return nil, err
	}
	if len(extensions) > 0 {
		items := make([]any, len(extensions))
		for i, e := range extensions {
			items[i] = e
		}
		config["vscode"] = map[string]any{"extensions": items}
	}
	return config, nil
}
