package checks

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/readme"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/internal/vscode"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const (
	uvBadge        = "[![uv](https://img.shields.io/endpoint?url=https://raw.githubusercontent.com/astral-sh/uv/main/assets/badge/v0.json)](https://github.com/astral-sh/uv)"
	uvBadgePattern = `\[\!\[[^\[]+\]\(https://img\.shields\.io/[^\)]+/uv/main/assets/badge/[^\)]+\)\]\(https://github\.com/astral-sh/uv\)`
	uvPrecommitURL = "https://github.com/astral-sh/uv-pre-commit"
	uvPrecommitRev = "0.4.20"
)

// UV keeps uv files in line with the package manager: configured when uv
// is used, removed otherwise.
func UV(_ context.Context, c *Context) error {
	do := executor.New()
	var steps []func() error
	if usesUV(c) {
		steps = []func() error{
			func() error { return readme.AddBadge(uvBadge) },
			hideUVLockFromSearch,
			updateEditorConfigForUVLock,
			func() error { return updatePythonVersionFile(c.Options.DevPythonVersion) },
			func() error { return updateUVLockHook(c.Precommit) },
			func() error { return updateContributingFile(c) },
			removePipConstraintFiles,
			func() error {
				return vscode.RemoveSettings(map[string][]string{
					"files.associations": {"**/.constraints/py*.txt"},
					"search.exclude":     {"**/.constraints/py*.txt", ".constraints/*.txt"},
				})
			},
		}
	} else {
		steps = []func() error{
			removeUVConfiguration,
			removeUVLock,
			func() error {
				if c.Precommit != nil {
					c.Precommit.RemoveHook("uv-lock", "")
				}
				return nil
			},
			func() error { return readme.RemoveBadge(uvBadgePattern) },
			func() error {
				return vscode.RemoveSettings(map[string][]string{
					"search.exclude": {"uv.lock", "**/uv.lock"},
				})
			},
		}
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func hasUVLockFile() bool {
	return len(match.FilterFiles([]string{project.UVLock}, nil)) > 0
}

func hideUVLockFromSearch() error {
	if !hasUVLockFile() {
		return nil
	}
	return vscode.UpdateSettings(map[string]any{
		"search.exclude": map[string]any{"**/uv.lock": true},
	})
}

func updateEditorConfigForUVLock() error {
	if !safeio.Exists(project.EditorConfig) {
		return nil
	}
	const section = "[uv.lock]"
	if project.ContainsLine(project.EditorConfig, section) {
		return nil
	}
	data, _, err := safeio.ReadIfExists(project.EditorConfig)
	if err != nil {
		return err
	}
	content := strings.TrimRight(string(data), "\n") + "\n\n" + section + "\nindent_size = 4\n"
	if err := safeio.WriteFilePreservePerms(project.EditorConfig, []byte(content)); err != nil {
		return err
	}
	return executor.Errorf("Updated %s for %s", project.EditorConfig, project.UVLock)
}

func updatePythonVersionFile(version string) error {
	existing, _, err := safeio.ReadIfExists(project.PythonVersionFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(existing)) == version {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(project.PythonVersionFile, []byte(version+"\n")); err != nil {
		return err
	}
	return executor.Errorf("Updated %s to %s", project.PythonVersionFile, version)
}

func updateUVLockHook(pc *precommit.Precommit) error {
	if pc == nil {
		return nil
	}
	if !hasUVLockFile() {
		pc.RemoveHook("uv-lock", "")
		return nil
	}
	return pc.UpdateSingleHookRepo(precommit.Repo{
		Repo:  uvPrecommitURL,
		Rev:   uvPrecommitRev,
		Hooks: []precommit.Hook{{ID: "uv-lock"}},
	})
}

// updateContributingFile refreshes an existing CONTRIBUTING.md; it never
// creates one.
func updateContributingFile(c *Context) error {
	if !safeio.Exists(project.ContributingFile) {
		return nil
	}
	rendered, err := renderTemplate("CONTRIBUTING.md.hbs", c)
	if err != nil {
		return err
	}
	expected := strings.TrimRight(string(rendered), "\n") + "\n"
	existing, _, err := safeio.ReadIfExists(project.ContributingFile)
	if err != nil {
		return err
	}
	if string(existing) == expected {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(project.ContributingFile, []byte(expected)); err != nil {
		return err
	}
	return executor.Errorf("Updated %s to latest template", project.ContributingFile)
}

func removePipConstraintFiles() error {
	if !safeio.Exists(project.PipConstraints) {
		return nil
	}
	if err := os.RemoveAll(project.PipConstraints); err != nil {
		return fmt.Errorf("remove %s: %w", project.PipConstraints, err)
	}
	return executor.Errorf("Removed deprecated %s. Use %s instead.", project.PipConstraints, project.UVLock)
}

func removeUVConfiguration() error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	if tomlx.DeleteSubTable(pyp.Document(), "tool.uv") {
		pyp.AppendToChangelog("Removed uv configuration")
	}
	return pyp.Finalize()
}

func removeUVLock() error {
	if !safeio.Exists(project.UVLock) {
		return nil
	}
	if err := os.Remove(project.UVLock); err != nil {
		return fmt.Errorf("remove %s: %w", project.UVLock, err)
	}
	return executor.Errorf("Removed %s file.", project.UVLock)
}
