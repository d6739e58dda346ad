package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const pyrightConfig = "pyrightconfig.json" // cspell:ignore pyrightconfig

// Pyright moves pyrightconfig.json into tool.pyright and enforces strict
// type checking there.
func Pyright(_ context.Context, _ *Context) error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	do := executor.New()
	if err := do.Do(func() error { return mergePyrightConfig(pyp) }); err != nil {
		return err
	}
	if err := do.Do(func() error { updatePyrightSettings(pyp); return nil }); err != nil {
		return err
	}
	if err := do.Do(pyp.Finalize); err != nil {
		return err
	}
	return do.Finalize()
}

func mergePyrightConfig(pyp *pyproject.Modifiable) error {
	data, ok, err := safeio.ReadIfExists(pyrightConfig)
	if err != nil || !ok {
		return err
	}
	var existing map[string]any
	if err := json.Unmarshal(data, &existing); err != nil {
		return fmt.Errorf("parse %s: %w", pyrightConfig, err)
	}
	table, _ := pyp.GetTable("tool.pyright", true)
	for key, value := range existing {
		if list, ok := value.([]any); ok {
			sorted := slices.Clone(list)
			slices.SortFunc(sorted, func(a, b any) int {
				return compareStrings(fmt.Sprint(a), fmt.Sprint(b))
			})
			value = sorted
		}
		if f, ok := value.(float64); ok && f == float64(int64(f)) {
			value = int64(f)
		}
		table[key] = tomlx.Normalize(value)
	}
	if err := os.Remove(pyrightConfig); err != nil {
		return err
	}
	pyp.AppendToChangelog("Moved pyright configuration to " + project.Pyproject)
	return nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func updatePyrightSettings(pyp *pyproject.Modifiable) {
	if !pyp.HasTable("tool.pyright") {
		return
	}
	settings, _ := pyp.GetTable("tool.pyright", false)
	minimal := map[string]any{"typeCheckingMode": "strict"}
	if pyproject.CompliesWithSubset(settings, minimal, false) {
		return
	}
	for k, v := range minimal {
		settings[k] = v
	}
	pyp.AppendToChangelog("Updated pyright configuration in " + project.Pyproject)
}
