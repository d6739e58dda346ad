package checks

import (
	"context"
	"os"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// ReleaseDrafter syncs the Release Drafter workflow and its configuration.
func ReleaseDrafter(_ context.Context, c *Context) error {
	do := executor.New()
	if c.Options.NoCD {
		for _, path := range []string{project.ReleaseDrafterFlow, project.ReleaseDrafter} {
			if err := do.Do(func() error { return removeReleaseDrafterFile(path) }); err != nil {
				return err
			}
		}
		return do.Finalize()
	}
	if err := do.Do(updateReleaseDrafterWorkflow); err != nil {
		return err
	}
	if err := do.Do(func() error { return updateReleaseDraft(c) }); err != nil {
		return err
	}
	return do.Finalize()
}

func updateReleaseDrafterWorkflow() error {
	expected, err := assets.Template(project.ReleaseDrafterFlow)
	if err != nil {
		return err
	}
	return project.UpdateFile(project.ReleaseDrafterFlow, expected)
}

func updateReleaseDraft(c *Context) error {
	rendered, err := renderTemplate(project.ReleaseDrafter+".hbs", c)
	if err != nil {
		return err
	}
	expected, err := yamlrt.Parse(rendered)
	if err != nil {
		return err
	}
	if template := yamlrt.MapGet(yamlrt.Root(expected), "template"); template != nil {
		if !safeio.Exists(project.ReadTheDocs) || c.Options.GithubPages {
			lines := strings.Split(template.Value, "\n")
			if len(lines) > 2 {
				template.Value = strings.Join(lines[2:], "\n")
			}
		}
	}
	existing, err := loadYAMLIfExists(project.ReleaseDrafter)
	if err != nil {
		return err
	}
	if existing != nil && yamlrt.Equal(yamlrt.Root(existing), yamlrt.Root(expected)) {
		return nil
	}
	if err := yamlrt.Write(project.ReleaseDrafter, expected, yamlrt.Spacing{}); err != nil {
		return err
	}
	if existing == nil {
		return executor.Errorf("Created %s", project.ReleaseDrafter)
	}
	return executor.Errorf("Updated %s", project.ReleaseDrafter)
}

func removeReleaseDrafterFile(path string) error {
	if !safeio.Exists(path) {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	return executor.Errorf("Removed %s, because CD was disabled", path)
}
