package checks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/match"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/pkg/config"
)

// inTempRepo runs the test inside an empty directory with a fixed file list.
func inTempRepo(t *testing.T, files ...string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(precommit.NoAutoupdateEnv, "1")
	orig := match.RepoFiles
	match.RepoFiles = func() []string { return files }
	t.Cleanup(func() { match.RepoFiles = orig })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if dir := filepath.Dir(path); dir != "." {
		require.NoError(t, os.MkdirAll(dir, 0o750))
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func testOptions() *config.Options {
	return &config.Options{
		DevPythonVersion: "3.12",
		PackageManager:   "uv",
		PoliciesDir:      ".repopolicy",
		RepoName:         "ampform",
		RepoOrganization: "ComPWA",
		RepoTitle:        "AmpForm",
		UpdateLockFiles:  "outsource",
	}
}

func TestRegistryNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, ch := range Registry {
		assert.False(t, seen[ch.Name], "duplicate check %s", ch.Name)
		seen[ch.Name] = true
		assert.NotNil(t, ch.Run, ch.Name)
		assert.NotEmpty(t, ch.Description, ch.Name)
	}
	_, ok := Find("cspell")
	assert.True(t, ok)
	_, ok = Find("flake8")
	assert.False(t, ok)
}

func TestIsEnabled(t *testing.T) {
	c := &Context{Options: testOptions()}
	pc, ok := Find("precommit")
	require.True(t, ok)
	assert.False(t, pc.IsEnabled(c), "needs a pre-commit config")

	ruff, _ := Find("ruff")
	assert.True(t, ruff.IsEnabled(c))
	black, _ := Find("black")
	assert.False(t, black.IsEnabled(c))
	c.Options.NoRuff = true
	assert.False(t, ruff.IsEnabled(c))
	assert.True(t, black.IsEnabled(c))

	binder, _ := Find("binder")
	assert.False(t, binder.IsEnabled(c))
	c.HasNotebooks = true
	assert.True(t, binder.IsEnabled(c))
}

func TestListSections(t *testing.T) {
	assert.Equal(t, "", listSections(nil))
	assert.Equal(t, "Section one", listSections([]string{"one"}))
	assert.Equal(t, "Sections one and two", listSections([]string{"one", "two"}))
	assert.Equal(t, "Sections one, two, and three", listSections([]string{"one", "two", "three"}))
}

func TestSortCspellSection(t *testing.T) {
	words := []any{"one", "Two", "apple"}
	assert.Equal(t, []any{"apple", "one", "Two"}, sortCspellSection(words, "words"))
	assert.Equal(t, []any{"Two", "apple", "one"}, sortCspellSection(words, "ignoreWords"))
	assert.Equal(t, []any{"one", "Two", "apple"}, words, "input must not be modified")

	dicts := []any{
		map[string]any{"name": "zeta"},
		map[string]any{"name": "Alpha"},
	}
	sorted := sortCspellSection(dicts, "dictionaryDefinitions")
	assert.Equal(t, "Alpha", sorted[0].(map[string]any)["name"])
}

func TestCspellRemovesConfigWithoutHook(t *testing.T) {
	inTempRepo(t)
	writeFile(t, ".cspell.json", "{}\n")

	err := Cspell(context.Background(), &Context{Options: testOptions()})
	require.True(t, executor.IsPrecommitError(err), "got %v", err)
	assert.Equal(t, `".cspell.json" is no longer required and has been removed`, err.Error())
	assert.NoFileExists(t, ".cspell.json")
}

func TestCspellRenamesLegacyConfig(t *testing.T) {
	inTempRepo(t)
	writeFile(t, "cspell.json", "{}\n")

	err := Cspell(context.Background(), &Context{Options: testOptions()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File cspell.json has been renamed to .cspell.json")
	assert.NoFileExists(t, "cspell.json")
}

func TestUpdateCspellContent(t *testing.T) {
	inTempRepo(t)
	writeFile(t, ".cspell.json", `{"words": ["b", "A"], "ignorePaths": ["custom"]}`)

	err := updateCspellContent()
	require.True(t, executor.IsPrecommitError(err), "got %v", err)
	assert.Equal(t, `Sections "enableFiletypes", "flagWords", "ignorePaths", "ignoreWords", "language", and "version" in .cspell.json has been updated.`, err.Error())

	config, err := loadCspellConfig()
	require.NoError(t, err)
	assert.Equal(t, []any{"**/.cspell.json"}, config["ignorePaths"])
	assert.Equal(t, []any{"b", "A"}, config["words"])
	assert.Equal(t, []any{}, config["ignoreWords"])
	assert.True(t, strings.HasSuffix(readFile(t, ".cspell.json"), "}\n"))

	assert.NoError(t, updateCspellContent())

	err = sortCspellEntries()
	require.Error(t, err)
	assert.Equal(t, `Section "words" in .cspell.json has been sorted alphabetically.`, err.Error())
	assert.NoError(t, sortCspellEntries())
}

const ciSample = `ci:
  autoupdate_schedule: quarterly

repos:
  - repo: local
    hooks:
      - id: pylint
        name: pylint
        entry: pylint
        language: system

  - repo: https://github.com/ComPWA/mirrors-pyright
    rev: v1.1.380
    hooks:
      - id: pyright
`

func TestPrecommitCISection(t *testing.T) {
	inTempRepo(t)
	pc, err := precommit.LoadBytes([]byte(ciSample))
	require.NoError(t, err)

	assert.Equal(t, []string{"pylint", "pyright"}, expectedCISkips(pc))
	require.NoError(t, updateCISkip(pc))
	require.NoError(t, updateAutoupdateCommitMsg(pc))
	assert.Equal(t, []string{
		"Updated ci.skip section in .pre-commit-config.yaml",
		"Updated ci.autoupdate_commit_msg in .pre-commit-config.yaml to 'MAINT: autoupdate pre-commit hooks'",
	}, pc.Changelog())

	require.NoError(t, updateCISkip(pc))
	require.NoError(t, updateAutoupdateCommitMsg(pc))
	assert.Len(t, pc.Changelog(), 2, "second pass must not change anything")

	out, err := pc.Dumps()
	require.NoError(t, err)
	assert.Contains(t, string(out), `autoupdate_commit_msg: "MAINT: autoupdate pre-commit hooks"`)
}

func TestPrecommitCISkipRemoved(t *testing.T) {
	inTempRepo(t)
	pc, err := precommit.LoadBytes([]byte(`ci:
  skip: [pylint]

repos:
  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.5.0
    hooks:
      - id: check-yaml
`))
	require.NoError(t, err)
	require.NoError(t, updateCISkip(pc))
	assert.Equal(t, []string{"No need for a ci.skip in .pre-commit-config.yaml"}, pc.Changelog())
}

func TestUpdatePythonVersionFile(t *testing.T) {
	inTempRepo(t)
	err := updatePythonVersionFile("3.12")
	require.Error(t, err)
	assert.Equal(t, "Updated .python-version to 3.12", err.Error())
	assert.Equal(t, "3.12\n", readFile(t, ".python-version"))
	assert.NoError(t, updatePythonVersionFile("3.12"))
}

func TestUpdateEditorConfigForUVLock(t *testing.T) {
	inTempRepo(t)
	assert.NoError(t, updateEditorConfigForUVLock(), "no .editorconfig, nothing to do")

	writeFile(t, ".editorconfig", "root = true\n")
	err := updateEditorConfigForUVLock()
	require.True(t, executor.IsPrecommitError(err))
	assert.Equal(t, "root = true\n\n[uv.lock]\nindent_size = 4\n", readFile(t, ".editorconfig"))
	assert.NoError(t, updateEditorConfigForUVLock())
}

func TestRemoveUVLock(t *testing.T) {
	inTempRepo(t)
	assert.NoError(t, removeUVLock())
	writeFile(t, "uv.lock", "version = 1\n")
	err := removeUVLock()
	require.Error(t, err)
	assert.Equal(t, "Removed uv.lock file.", err.Error())
	assert.NoFileExists(t, "uv.lock")
}

const denyPolicy = `package repopolicy

deny contains msg if {
	input.pyproject == null
	msg := "pyproject.toml is missing"
}

deny contains msg if {
	some file in input.files
	endswith(file, ".bak")
	msg := sprintf("remove backup file %s", [file])
}
`

func TestRules(t *testing.T) {
	inTempRepo(t, "README.md", "setup.py.bak")
	c := &Context{Options: testOptions()}
	assert.NoError(t, Rules(context.Background(), c), "no policies, nothing to report")

	writeFile(t, ".repopolicy/deny.rego", denyPolicy)
	err := Rules(context.Background(), c)
	require.True(t, executor.IsPrecommitError(err), "got %v", err)
	assert.Equal(t, "pyproject.toml is missing"+executor.Separator+"remove backup file setup.py.bak", err.Error())
}

func TestRun(t *testing.T) {
	inTempRepo(t, "README.md")
	opts := testOptions()

	_, err := Run(context.Background(), opts, RunOptions{Only: []string{"flake8"}})
	assert.EqualError(t, err, `unknown check "flake8"`)

	messages, err := Run(context.Background(), opts, RunOptions{Only: []string{"precommit"}})
	require.NoError(t, err)
	assert.Empty(t, messages, "precommit check is skipped without a config")

	writeFile(t, ".repopolicy/deny.rego", denyPolicy)
	var out strings.Builder
	messages, err = Run(context.Background(), opts, RunOptions{Only: []string{"rules"}, Output: &out})
	require.NoError(t, err)
	assert.Equal(t, []string{"pyproject.toml is missing"}, messages)
	assert.Equal(t, "pyproject.toml is missing\n", out.String())
}
