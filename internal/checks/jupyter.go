package checks

import (
	"context"
	"slices"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/vscode"
)

// Jupyter adds the JupyterLab developer requirements and the notebook
// extensions for VS Code.
func Jupyter(_ context.Context, c *Context) error {
	do := executor.New()
	// cspell:ignore toolsai
	steps := []func() error{
		func() error { return updateJupyterRequirements(c.Options.NoRuff) },
		func() error { return vscode.AddExtensionRecommendation("ms-toolsai.jupyter") },
		func() error { return vscode.AddExtensionRecommendation("ms-toolsai.vscode-jupyter-cell-tags") },
		func() error { return vscode.RemoveExtensionRecommendation("ms-toolsai.vscode-jupyter-slideshow", true) },
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func updateJupyterRequirements(noRuff bool) error {
	if !pyproject.HasPackageName() {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	versions, _ := pyp.GetSupportedPythonVersions()
	if slices.Contains(versions, "3.6") {
		return nil
	}
	disallowed := []string{"jupyterlab-code-formatter"}
	required := []string{
		"jupyterlab",
		"jupyterlab-git",
		"jupyterlab-lsp",
		"jupyterlab-myst",
		"python-lsp-server[rope]",
	}
	if !noRuff {
		pyp.RemoveDependency("black", "doc", "notebooks", "test")
		disallowed = append(disallowed, "isort")
		required = append(required, "jupyter-ruff", "python-lsp-ruff")
	}
	slices.Sort(required)
	useGroups := pyp.HasTable("dependency-groups")
	for _, pkg := range required {
		if useGroups {
			pyp.AddToDependencyGroup(pkg, "jupyter", "dev")
			continue
		}
		if err := pyp.AddDependency(pkg, "jupyter", "dev"); err != nil {
			return err
		}
	}
	for _, pkg := range disallowed {
		pyp.RemoveDependency(pkg)
	}
	return pyp.Finalize()
}
