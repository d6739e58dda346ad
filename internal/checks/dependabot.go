package checks

import (
	"bytes"
	"context"
	"os"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Dependabot removes .github/dependabot.yml, syncs it with the template
// for "update" or leaves it alone for "keep".
func Dependabot(_ context.Context, c *Context) error {
	switch c.Options.Dependabot {
	case "":
		return removeDependabot()
	case "update":
		return updateDependabot()
	default:
		return nil
	}
}

func removeDependabot() error {
	if !safeio.Exists(project.DependabotConfig) {
		return nil
	}
	if err := os.Remove(project.DependabotConfig); err != nil {
		return err
	}
	return executor.Errorf("Removed %s, because GitHub workflows have been outsourced to https://github.com/ComPWA/actions", project.DependabotConfig)
}

func updateDependabot() error {
	template := assets.MustTemplate(project.DependabotConfig)
	existing, _, err := safeio.ReadIfExists(project.DependabotConfig)
	if err != nil {
		return err
	}
	if bytes.Equal(existing, template) {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(project.DependabotConfig, template); err != nil {
		return err
	}
	return executor.Errorf("Updated %s", project.DependabotConfig)
}
