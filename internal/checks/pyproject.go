package checks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const pythonClassifierPrefix = "Programming Language :: Python :: "

// Pyproject sets requires-python and keeps the Python version classifiers
// in line with it.
func Pyproject(_ context.Context, c *Context) error {
	if !safeio.Exists(project.Pyproject) {
		return nil
	}
	pyp, err := pyproject.LoadModifiable(project.Pyproject)
	if err != nil {
		return err
	}
	if !pyp.HasTable("project") {
		return nil
	}
	proj, _ := pyp.GetTable("project", false)
	if err := updateRequiresPython(pyp, proj); err != nil {
		return err
	}
	if err := updateVersionClassifiers(pyp, proj, c.Options.ExcludedPythonVersions, c.Options.NoPypi); err != nil {
		return err
	}
	return pyp.Finalize()
}

func updateRequiresPython(pyp *pyproject.Modifiable, proj tomlx.Table) error {
	if _, ok := proj["requires-python"]; ok {
		return nil
	}
	specifier := pyproject.RequiresPython(proj)
	if specifier == "" {
		return nil
	}
	allowed, err := pyproject.AllowedVersions(specifier)
	if err != nil {
		return err
	}
	if len(allowed) == 0 {
		return nil
	}
	requires := ">=" + allowed[0]
	proj["requires-python"] = requires
	pyp.AppendToChangelog(fmt.Sprintf(`Set requires-python = "%s" field`, requires))
	return nil
}

func updateVersionClassifiers(pyp *pyproject.Modifiable, proj tomlx.Table, excluded []string, noPypi bool) error {
	if noPypi {
		if _, ok := proj["classifiers"]; ok {
			delete(proj, "classifiers")
			pyp.AppendToChangelog("Removed Python version classifiers because of --no-pypi")
		}
		return nil
	}
	specifier := pyproject.RequiresPython(proj)
	if specifier == "" {
		return nil
	}
	allowed, err := pyproject.AllowedVersions(specifier, excluded...)
	if err != nil {
		return err
	}
	existing := tomlx.Strings(proj["classifiers"])
	var merged []string
	for _, classifier := range existing {
		if !strings.HasPrefix(classifier, pythonClassifierPrefix+"3.") && !slices.Contains(merged, classifier) {
			merged = append(merged, classifier)
		}
	}
	for _, v := range allowed {
		if classifier := pyproject.VersionClassifier(v); !slices.Contains(merged, classifier) {
			merged = append(merged, classifier)
		}
	}
	if sameElements(existing, merged) {
		return nil
	}
	slices.Sort(merged)
	proj["classifiers"] = tomlx.ToArray(merged...)
	pyp.AppendToChangelog("Updated Python version classifiers")
	return nil
}

// sameElements compares two lists as sets.
func sameElements(a, b []string) bool {
	for _, s := range a {
		if !slices.Contains(b, s) {
			return false
		}
	}
	for _, s := range b {
		if !slices.Contains(a, s) {
			return false
		}
	}
	return true
}
