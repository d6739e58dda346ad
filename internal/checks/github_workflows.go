package checks

import (
	"context"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

var (
	cdWorkflow          = path.Join(project.GithubWorkflowDir, "cd.yml")
	ciWorkflow          = path.Join(project.GithubWorkflowDir, "ci.yml")
	deprecatedWorkflows = []string{"ci-docs.yml", "ci-style.yml", "ci-tests.yml", "linkcheck.yml"}
	constraintFlagRe    = regexp.MustCompile(`-c \.constraints/py3\.\d+\.txt\s*`)
)

// GithubWorkflows keeps the CI and CD workflows in step with the shared
// ComPWA/actions workflows.
func GithubWorkflows(_ context.Context, c *Context) error {
	do := executor.New()
	steps := []func() error{
		func() error { return updateCDWorkflow(c) },
		func() error { return updateCIWorkflow(c) },
		func() error { return copyWorkflowFile("clean-caches.yml") },
		func() error { return removeWorkflow("clean-cache.yml") },
	}
	if !c.Options.AllowDeprecatedWorkflows {
		for _, name := range deprecatedWorkflows {
			steps = append(steps, func() error { return removeWorkflow(name) })
		}
	}
	if !c.Options.KeepPRLinting {
		steps = append(steps, updatePRLinting)
	}
	if c.Options.NoMilestones {
		steps = append(steps, func() error { return removeWorkflow("milestone.yml") })
	}
	steps = append(steps, recommendActionsExtension)
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func updateCDWorkflow(c *Context) error {
	if c.Options.NoCD {
		if !safeio.Exists(cdWorkflow) {
			return nil
		}
		if err := os.Remove(cdWorkflow); err != nil {
			return err
		}
		return executor.Errorf(`Removed "%s" workflow, because CD was disabled`, cdWorkflow)
	}
	expected, err := templateYAML(cdWorkflow)
	if err != nil {
		return err
	}
	jobs := yamlrt.Lookup(yamlrt.Root(expected), "jobs")
	known := yamlrt.MapKeys(jobs)
	if c.Options.NoPypi || !pyproject.HasPackageName() {
		yamlrt.MapDelete(jobs, "pypi")
		yamlrt.MapDelete(jobs, "package-name")
	}
	if c.Options.NoVersionBranches {
		yamlrt.MapDelete(jobs, "push")
	}
	if c.Options.NoMilestones {
		yamlrt.MapDelete(jobs, "milestone")
	}
	existing, err := loadYAMLIfExists(cdWorkflow)
	if err != nil {
		return err
	}
	keepCustomJobs(expected, existing, known)
	return syncWorkflow(cdWorkflow, expected, existing)
}

// keepCustomJobs copies the jobs of existing that the template does not
// define into expected.
func keepCustomJobs(expected, existing *yaml.Node, known []string) {
	if existing == nil {
		return
	}
	jobs := yamlrt.MapEnsure(yamlrt.Root(expected), "jobs")
	existingJobs := yamlrt.Lookup(yamlrt.Root(existing), "jobs")
	for _, name := range yamlrt.MapKeys(existingJobs) {
		if slices.Contains(known, name) {
			continue
		}
		yamlrt.MapSet(jobs, name, yamlrt.MapGet(existingJobs, name))
	}
}

// syncWorkflow writes expected when it differs from existing.
func syncWorkflow(p string, expected, existing *yaml.Node) error {
	if existing != nil && yamlrt.Equal(yamlrt.Root(existing), yamlrt.Root(expected)) {
		return nil
	}
	return writeWorkflow(p, expected)
}

func updateCIWorkflow(c *Context) error {
	expected, known, err := expectedCIWorkflow(c)
	if err != nil {
		return err
	}
	existing, err := loadYAMLIfExists(ciWorkflow)
	if err != nil {
		return err
	}
	keepCustomJobs(expected, existing, known)
	if len(yamlrt.MapKeys(yamlrt.Lookup(yamlrt.Root(expected), "jobs"))) == 0 {
		if existing == nil {
			return nil
		}
		if err := os.Remove(ciWorkflow); err != nil {
			return err
		}
		return executor.NewPrecommitError("Removed redundant CI workflows")
	}
	return syncWorkflow(ciWorkflow, expected, existing)
}

// expectedCIWorkflow builds ci.yml from the template and also returns the
// job names the template defines.
func expectedCIWorkflow(c *Context) (*yaml.Node, []string, error) {
	doc, err := templateYAML(ciWorkflow)
	if err != nil {
		return nil, nil, err
	}
	jobs := yamlrt.Lookup(yamlrt.Root(doc), "jobs")
	known := yamlrt.MapKeys(jobs)
	updateDocJob(c, jobs)
	if err := updatePytestJob(c, jobs); err != nil {
		return nil, nil, err
	}
	updateStyleJob(c, jobs)
	return doc, known, nil
}

func updateDocJob(c *Context, jobs *yaml.Node) {
	if !safeio.IsDir("docs") {
		yamlrt.MapDelete(jobs, "doc")
		return
	}
	job := yamlrt.MapGet(jobs, "doc")
	with := yamlrt.MapEnsure(job, "with")
	yamlrt.MapSet(with, "python-version", yamlrt.NewQuoted(c.Options.DevPythonVersion))
	if len(c.Options.DocAptPackages) > 0 {
		yamlrt.MapSet(with, "apt-packages", yamlrt.NewString(strings.Join(c.Options.DocAptPackages, " ")))
	}
	if c.Options.GithubPages || !safeio.Exists(project.ReadTheDocs) {
		yamlrt.MapSet(with, "gh-pages", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	} else {
		yamlrt.MapDelete(job, "permissions")
	}
	finishWithSection(job)
}

func updatePytestJob(c *Context, jobs *yaml.Node) error {
	if !safeio.IsDir("tests") {
		yamlrt.MapDelete(jobs, "pytest")
		return nil
	}
	job := yamlrt.MapGet(jobs, "pytest")
	with := yamlrt.MapEnsure(job, "with")
	opts := c.Options
	if len(opts.CITestExtras) > 0 {
		yamlrt.MapSet(with, "additional-extras", yamlrt.NewString(strings.Join(opts.CITestExtras, ",")))
	}
	if safeio.Exists(project.Codecov) {
		name, err := importName()
		if err != nil {
			return err
		}
		yamlrt.MapSet(with, "coverage-target", yamlrt.NewString(name))
	}
	if !opts.NoMacos {
		yamlrt.MapSet(with, "macos-python-version", yamlrt.NewQuoted("3.9"))
	}
	if len(opts.CISkippedTests) > 0 {
		yamlrt.MapSet(with, "skipped-python-versions", yamlrt.NewString(strings.Join(opts.CISkippedTests, " ")))
	}
	if opts.PytestSingleThreaded {
		yamlrt.MapSet(with, "multithreaded", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "false"})
	}
	if safeio.IsDir("tests/output") {
		yamlrt.MapSet(with, "test-output-path", yamlrt.NewString("tests/output/"))
	}
	finishWithSection(job)
	return nil
}

func updateStyleJob(c *Context, jobs *yaml.Node) {
	if c.Precommit == nil {
		yamlrt.MapDelete(jobs, "style")
		return
	}
	if ci := c.Precommit.CI(); ci != nil && yamlrt.MapGet(ci, "skip") == nil {
		yamlrt.MapDelete(jobs, "style")
		return
	}
	job := yamlrt.MapGet(jobs, "style")
	with := yamlrt.NewMap()
	yamlrt.MapSet(with, "python-version", yamlrt.NewQuoted(c.Options.DevPythonVersion))
	yamlrt.MapSet(job, "with", with)
}

// finishWithSection sorts the with inputs of a job, or drops an empty one.
func finishWithSection(job *yaml.Node) {
	with := yamlrt.MapGet(job, "with")
	if with == nil || len(with.Content) == 0 {
		yamlrt.MapDelete(job, "with")
		return
	}
	sortMapping(with)
}

// copyWorkflowFile syncs a workflow verbatim, minus pip constraint flags
// when the repository has no .constraints directory.
func copyWorkflowFile(filename string) error {
	rel := path.Join(project.GithubWorkflowDir, filename)
	data, err := assets.Template(rel)
	if err != nil {
		return err
	}
	expected := string(data)
	if !safeio.IsDir(project.PipConstraints) {
		expected = constraintFlagRe.ReplaceAllString(expected, "")
	}
	existing, ok, err := safeio.ReadIfExists(rel)
	if err != nil {
		return err
	}
	if ok && string(existing) == expected {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(rel, []byte(expected)); err != nil {
		return err
	}
	if !ok {
		return executor.Errorf(`Created "%s" workflow`, rel)
	}
	return executor.Errorf(`Updated "%s" workflow`, rel)
}

func updatePRLinting() error {
	rel := path.Join(project.GithubWorkflowDir, "pr-linting.yml")
	template := assets.MustTemplate(rel)
	if safeio.Exists(rel) {
		existing, err := project.HashFile(rel)
		if err != nil {
			return err
		}
		if existing == project.HashBytes(template) {
			return nil
		}
	}
	if err := safeio.WriteFilePreservePerms(rel, template); err != nil {
		return err
	}
	return executor.Errorf(`Updated "%s" workflow`, rel)
}

func recommendActionsExtension() error {
	if !safeio.IsDir(project.GithubWorkflowDir) {
		return nil
	}
	// cspell:ignore cschleiden
	do := executor.New()
	steps := []func() error{
		func() error { return vscode.RemoveExtensionRecommendation("cschleiden.vscode-github-actions", false) },
		func() error { return vscode.AddExtensionRecommendation("github.vscode-github-actions") },
	}
	if safeio.Exists(ciWorkflow) {
		steps = append(steps, func() error {
			return vscode.UpdateSettings(map[string]any{
				"github-actions.workflows.pinned.workflows": []any{ciWorkflow},
			})
		})
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}
