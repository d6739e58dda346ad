package checks

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshot maps every file below the working directory to its content.
func snapshot(t *testing.T) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(path)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestRunIsIdempotent(t *testing.T) {
	inTempRepo(t, "README.md", "pyproject.toml")
	writeFile(t, "README.md", "# AmpForm\n\nSymbolic amplitude models.\n")
	writeFile(t, "pyproject.toml", `[project]
name = "ampform" # PyPI name
requires-python = ">=3.10"
dependencies = ["numpy"]
`)
	opts := testOptions()
	opts.NoGithubActions = true
	opts.UpdateLockFiles = "no"

	first, err := Run(context.Background(), opts, RunOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Contains(t, readFile(t, "pyproject.toml"), `name = "ampform" # PyPI name`)
	after := snapshot(t)
	assert.Contains(t, after, ".taplo.toml")
	assert.Contains(t, after, ".vscode/settings.json")

	second, err := Run(context.Background(), opts, RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, after, snapshot(t))
}

func TestRunOnlySelectedChecks(t *testing.T) {
	inTempRepo(t)
	writeFile(t, "commitlint.config.js", "module.exports = {};\n")
	writeFile(t, ".github/dependabot.yml", "version: 2\n")

	messages, err := Run(context.Background(), testOptions(), RunOptions{Only: []string{"commitlint"}})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Remove outdated commitlint.config.js")
	assert.FileExists(t, ".github/dependabot.yml")
}
