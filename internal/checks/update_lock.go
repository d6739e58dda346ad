package checks

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Cron schedules per lock file update frequency.
var cronSchedules = map[string]string{
	"biweekly":   "0 2 * * 1",
	"monthly":    "0 3 7 */1 *",
	"bimonthly":  "0 3 7 */2 *",
	"quarterly":  "0 3 7 */3 *",
	"biannually": "0 3 7 */6 *",
}

// UpdateLock syncs the workflow that refreshes lock files on a schedule.
func UpdateLock(_ context.Context, c *Context) error {
	frequency := c.Options.UpdateLockFiles
	do := executor.New()
	var steps []func() error
	if frequency == "outsource" {
		steps = append(steps, func() error { return checkPrecommitSchedule(c) })
	}
	steps = append(steps,
		func() error { return removeConstraintsScript("pin_requirements.py") },
		func() error { return removeConstraintsScript("upgrade.sh") },
		func() error { return updateLockWorkflow(frequency) },
		func() error { return removeWorkflow("requirements.yml") },
		func() error { return removeWorkflow("requirements-cron.yml") },
		func() error { return removeWorkflow("requirements-pr.yml") },
	)
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func removeConstraintsScript(name string) error {
	script := path.Join(project.PipConstraints, name)
	if !safeio.Exists(script) {
		return nil
	}
	if err := os.Remove(script); err != nil {
		return err
	}
	return executor.Errorf(`Removed deprecated "%s" script`, script)
}

func updateLockWorkflow(frequency string) error {
	const name = "lock.yml"
	rel := path.Join(project.GithubWorkflowDir, name)
	expected, err := templateYAML(rel)
	if err != nil {
		return err
	}
	on := yamlrt.Lookup(yamlrt.Root(expected), "on")
	paths := yamlrt.Lookup(on, "pull_request", "paths")
	original := yamlrt.Strings(paths)
	existingPaths := match.FilterPatterns(original, nil)
	if len(existingPaths) == 0 {
		return fmt.Errorf("no paths defined for pull_request trigger, expecting any of %s", strings.Join(original, ", "))
	}
	yamlrt.MapSet(yamlrt.Lookup(on, "pull_request"), "paths", yamlrt.NewStrings(existingPaths...))
	if frequency == "outsource" {
		yamlrt.MapDelete(on, "schedule")
	} else {
		cron, ok := cronSchedules[frequency]
		if !ok {
			return executor.Errorf(`No cron schedule defined for frequency "%s"`, frequency)
		}
		if schedule := yamlrt.MapGet(on, "schedule"); schedule != nil && len(schedule.Content) > 0 {
			yamlrt.MapSet(schedule.Content[0], "cron", yamlrt.NewQuoted(cron))
		}
	}
	existing, err := loadYAMLIfExists(rel)
	if err != nil {
		return err
	}
	if existing != nil && yamlrt.Equal(yamlrt.Root(existing), yamlrt.Root(expected)) {
		return nil
	}
	return writeWorkflow(rel, expected)
}

func checkPrecommitSchedule(c *Context) error {
	if c.Precommit != nil && yamlrt.MapGet(c.Precommit.CI(), "autoupdate_schedule") != nil {
		return nil
	}
	return executor.Errorf("Cannot outsource pip constraints updates, because autoupdate_schedule has not been set under the ci key in %s. See https://pre-commit.ci/#configuration-autoupdate_schedule.", project.Precommit)
}
