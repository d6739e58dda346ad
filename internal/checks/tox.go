package checks

import (
	"context"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/cfg"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Tox makes sure tox.ini defines the documentation jobs. cspell:ignore doclive docnb docnblive testenv
func Tox(_ context.Context, c *Context) error {
	if !safeio.Exists(project.Tox) {
		return nil
	}
	tox, err := cfg.Open(project.Tox)
	if err != nil {
		return err
	}
	var expected []string
	if safeio.IsDir("docs") {
		expected = append(expected, "testenv:doc", "testenv:doclive")
		if c.HasNotebooks {
			expected = append(expected, "testenv:docnb", "testenv:docnblive", "testenv:nb")
		}
	}
	sections := cfg.Sections(tox)
	var missing []string
	for _, name := range expected {
		if !slices.Contains(sections, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return executor.Errorf("%s is missing job definitions: %s", project.Tox, strings.Join(missing, ", "))
}
