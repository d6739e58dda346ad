package checks

import (
	"context"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const (
	pixiEnvrc  = "watch_file pixi.lock\neval \"$(pixi shell-hook)\"\n"
	condaEnvrc = "layout anaconda\n"
)

// Direnv writes .envrc so that direnv activates the pixi or conda
// environment.
func Direnv(_ context.Context, _ *Context) error {
	switch {
	case hasPixiFiles():
		return updateEnvrc(pixiEnvrc)
	case safeio.Exists(project.Conda):
		return updateEnvrc(condaEnvrc)
	}
	return nil
}

func hasPixiFiles() bool {
	if safeio.Exists(project.PixiLock) || safeio.Exists(project.PixiToml) {
		return true
	}
	if !safeio.Exists(project.Pyproject) {
		return false
	}
	pyp, err := pyproject.Load(project.Pyproject)
	return err == nil && pyp.HasTable("tool.pixi")
}

func updateEnvrc(expected string) error {
	existing, _, err := safeio.ReadIfExists(project.Envrc)
	if err != nil {
		return err
	}
	if string(existing) == expected {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(project.Envrc, []byte(expected)); err != nil {
		return err
	}
	return executor.NewPrecommitError("Updated .envrc for direnv")
}
