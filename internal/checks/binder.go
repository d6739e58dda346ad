package checks

import (
	"context"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

var binderPostBuild = path.Join(project.Binder, "postBuild")

// Binder maintains the .binder directory for notebook repositories.
func Binder(_ context.Context, c *Context) error {
	do := executor.New()
	steps := []func() error{
		func() error { return updateAptTxt(c.Options.DocAptPackages) },
		func() error { return updatePostBuild(c.Options.PackageManager) },
		makeExecutable,
		func() error {
			return updateBinderFile(path.Join(project.Binder, "runtime.txt"), fmt.Sprintf("python-%s\n", c.Options.DevPythonVersion))
		},
	}
	for _, step := range steps {
		if err := do.Do(step); err != nil {
			return err
		}
	}
	return do.Finalize()
}

func updateAptTxt(packages []string) error {
	aptTxt := path.Join(project.Binder, "apt.txt")
	if len(packages) == 0 {
		if !safeio.Exists(aptTxt) {
			return nil
		}
		if err := os.Remove(aptTxt); err != nil {
			return err
		}
		return executor.Errorf("Removed %s, because --doc-apt-packages does not specify any packages.", aptTxt)
	}
	sorted := slices.Compact(slices.Sorted(slices.Values(packages)))
	return updateBinderFile(aptTxt, strings.Join(sorted, "\n")+"\n")
}

func updatePostBuild(packageManager string) error {
	var content string
	switch packageManager {
	case "pixi+uv":
		content = pixiUVPostBuild()
	case "uv":
		content = uvPostBuild()
	default:
		logger.Debug("no Binder postBuild for package manager", logger.String("package-manager", packageManager))
		return nil
	}
	return updateBinderFile(binderPostBuild, strings.TrimSpace(content)+"\n")
}

func pixiUVPostBuild() string {
	var b strings.Builder
	b.WriteString(`#!/bin/bash
set -ex
curl -LsSf https://pixi.sh/install.sh | bash
export PATH="$HOME/.pixi/bin:$PATH"

pixi_packages="$(NO_COLOR= pixi list --explicit --no-install | awk 'NR > 1 {print $1}')"
if [[ -n "$pixi_packages" ]]; then
  pixi global install $pixi_packages
fi`)
	env, scripts := pixiActivation()
	for _, key := range tomlx.SortedKeys(env) {
		fmt.Fprintf(&b, "\nexport %s=\"%v\"", key, env[key])
	}
	for _, script := range scripts {
		b.WriteString("\nbash " + script)
	}
	b.WriteString("\npixi clean cache --yes\n")
	writeUVExport(&b)
	b.WriteString("uv cache clean\n")
	return b.String()
}

func uvPostBuild() string {
	var b strings.Builder
	b.WriteString(`#!/bin/bash
set -ex
curl -LsSf https://astral.sh/uv/install.sh | sh
source $HOME/.cargo/env`)
	writeUVExport(&b)
	b.WriteString("rm requirements.txt\nuv cache clean\n")
	return b.String()
}

func writeUVExport(b *strings.Builder) {
	b.WriteString("\nuv export \\")
	for _, group := range notebookGroups() {
		fmt.Fprintf(b, "\n  --group %s \\", group)
	}
	b.WriteString("\n  > requirements.txt\nuv pip install \\\n  --requirement requirements.txt \\\n  --system\n")
}

func pixiActivation() (tomlx.Table, []string) {
	if !safeio.Exists(project.PixiToml) {
		return nil, nil
	}
	pixi, err := pyproject.Load(project.PixiToml)
	if err != nil || !pixi.HasTable("activation") {
		return nil, nil
	}
	activation, _ := pixi.GetTable("activation")
	env, _ := activation["env"].(tomlx.Table)
	return env, tomlx.Strings(activation["scripts"])
}

func notebookGroups() []string {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.Load(project.Pyproject)
	if err != nil {
		return nil
	}
	groups, err := pyp.GetTable("dependency-groups")
	if err != nil {
		return nil
	}
	var out []string
	for _, name := range []string{"jupyter", "notebooks"} {
		if _, ok := groups[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func makeExecutable() error {
	info, err := os.Stat(binderPostBuild)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode().Perm()&0o111 != 0 {
		return nil
	}
	if err := os.Chmod(binderPostBuild, 0o755); err != nil { // #nosec G302 -- Binder requires an executable postBuild
		return err
	}
	return executor.Errorf("%s has been made executable", binderPostBuild)
}

func updateBinderFile(p, expected string) error {
	existing, ok, err := safeio.ReadIfExists(p)
	if err != nil {
		return err
	}
	if ok && string(existing) == expected {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(p, []byte(expected)); err != nil {
		return err
	}
	return executor.Errorf("Updated %s", p)
}
