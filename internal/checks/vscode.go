package checks

import (
	"context"
	"slices"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// cspell:ignore eamodio mhutchie soulcode stkb garaio garaioag travisillig tyriar executablebookproject

var (
	recommendedExtensions = []string{
		"eamodio.gitlens",
		"mhutchie.git-graph",
		"soulcode.vscode-unwanted-extensions",
		"stkb.rewrap",
	}
	unwantedExtensions = []string{
		"garaioag.garaio-vscode-unwanted-recommendations",
		"travisillig.vscode-json-stable-stringify",
		"tyriar.sort-lines",
	}
	outdatedSettings = []string{
		"editor.rulers",
		"githubPullRequests.telemetry.enabled",
		"gitlens.advanced.telemetry.enabled",
		"python.analysis.diagnosticMode",
		"python.analysis.typeCheckingMode",
		"python.formatting.provider",
		"python.linting.banditEnabled",
		"python.linting.enabled",
		"python.linting.flake8Enabled",
		"python.linting.mypyEnabled",
		"python.linting.pydocstyleEnabled",
		"python.linting.pylamaEnabled",
		"python.linting.pylintEnabled",
		"telemetry.enableCrashReporter",
		"telemetry.enableTelemetry",
	}
)

const mystExtension = "executablebookproject.myst-highlight"

// VSCode sets the shared VS Code extensions and workspace settings.
func VSCode(_ context.Context, c *Context) error {
	do := executor.New()
	var steps []func() error
	for _, name := range recommendedExtensions {
		steps = append(steps, func() error { return vscode.AddExtensionRecommendation(name) })
	}
	for _, name := range unwantedExtensions {
		steps = append(steps, func() error { return vscode.RemoveExtensionRecommendation(name, true) })
	}
	steps = append(steps,
		updateSettings(map[string]any{
			"diffEditor.experimental.showMoves":    true,
			"editor.formatOnSave":                  true,
			"gitlens.telemetry.enabled":            false,
			"multiDiffEditor.experimental.enabled": true,
			"redhat.telemetry.enabled":             false,
			"telemetry.telemetryLevel":             "off",
		}),
		updateSettings(map[string]any{
			"[git-commit]": map[string]any{
				"editor.rulers":         []any{72},
				"rewrap.wrappingColumn": 72,
			},
			"[json]": map[string]any{"editor.wordWrap": "on"},
		}),
		func() error { return vscode.RemoveSettings(outdatedSettings) },
		updateDocSettings,
	)
	if c.HasNotebooks && safeio.IsDir("docs") {
		steps = append(steps, updateSettings(map[string]any{"notebook.gotoSymbols.showAllSymbols": true}))
	}
	if safeio.IsDir("tests") {
		steps = append(steps, updateSettings(map[string]any{
			"python.analysis.inlayHints.pytestParameters": true,
			"python.testing.pytestEnabled":                true,
			"python.testing.unittestEnabled":              false,
		}))
	}
	if hasConstraintFiles() {
		steps = append(steps, updateSettings(map[string]any{
			"files.associations": map[string]any{"**/.constraints/py*.txt": "pip-requirements"},
		}))
	}
	if c.Options.IsPython() {
		interpreter := ".venv/bin/python"
		if c.Options.PackageManager == "pixi" {
			interpreter = ".pixi/envs/default/bin/python"
		}
		steps = append(steps, updateSettings(map[string]any{
			"python.defaultInterpreterPath": interpreter,
			"rewrap.wrappingColumn":         88,
		}))
		if safeio.Exists(project.Envrc) {
			steps = append(steps, updateSettings(map[string]any{"python.terminal.activateEnvironment": false}))
		}
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func updateSettings(settings map[string]any) func() error {
	return func() error { return vscode.UpdateSettings(settings) }
}

func updateDocSettings() error {
	if !safeio.IsDir("docs") {
		return nil
	}
	do := executor.New()
	steps := []func() error{
		updateSettings(map[string]any{"livePreview.defaultPreviewPath": "docs/_build/html"}),
		func() error { return vscode.AddExtensionRecommendation("ms-vscode.live-server") },
	}
	unwanted, err := vscode.GetUnwantedExtensions()
	if err != nil {
		return err
	}
	if !slices.Contains(unwanted, mystExtension) {
		steps = append(steps, func() error { return vscode.AddExtensionRecommendation(mystExtension) })
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func hasConstraintFiles() bool {
	return len(match.Glob(project.PipConstraints+"/py*.txt", nil)) > 0
}
