package checks

import (
	"context"
	"os"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

var labelsConfigFiles = []string{"labels.toml", ".labels.toml"}

var requirementPatterns = []string{"**/requirements*.in", "**/requirements*.txt", "setup.cfg"}

// GithubLabels removes the configuration of the labels package, which is
// superseded by the organisation wide label sync.
func GithubLabels(_ context.Context, _ *Context) error {
	for _, path := range labelsConfigFiles {
		if !safeio.Exists(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		return executor.Errorf(`Repository contains a file "%s" for the labels package (see https://pypi.org/project/labels). This file should not be there, because labels are maintained through https://github.com/ComPWA/policy. It has been removed.`, path)
	}
	fixed := false
	for _, file := range match.FilterFiles(requirementPatterns, nil) {
		changed, err := removeLabelsRequirement(file)
		if err != nil {
			return err
		}
		fixed = fixed || changed
	}
	if fixed {
		return executor.NewPrecommitError("Repository lists the labels package (https://pypi.org/project/labels) as a developer requirement. Problems have been fixed, please re-stage files.")
	}
	return nil
}

func removeLabelsRequirement(path string) (bool, error) {
	data, ok, err := safeio.ReadIfExists(path)
	if err != nil || !ok {
		return false, err
	}
	lines := strings.SplitAfter(string(data), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if requirementName(line) == "labels" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == len(lines) {
		return false, nil
	}
	return true, safeio.WriteFilePreservePerms(path, []byte(strings.Join(kept, "")))
}

// requirementName strips comments and version specifiers from a
// requirement line.
func requirementName(line string) string {
	name, _, _ := strings.Cut(line, "#")
	if i := strings.IndexAny(name, "<>=!"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
