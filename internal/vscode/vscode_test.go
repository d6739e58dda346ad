package vscode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/repopolicy/internal/executor"
)

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestMergeMaps(t *testing.T) {
	old := map[string]any{
		"k1": "old",
		"k2": map[string]any{"s1": "old", "s2": "old"},
		"k5": []any{"b", "a"},
	}
	got := mergeMaps(old, map[string]any{
		"k1": "new",
		"k2": map[string]any{"s2": "new"},
		"k3": map[string]any{"s": "a"},
		"k5": []any{"a", "c"},
	})
	assert.Equal(t, map[string]any{
		"k1": "new",
		"k2": map[string]any{"s1": "old", "s2": "new"},
		"k3": map[string]any{"s": "a"},
		"k5": []any{"a", "b", "c"},
	}, got)
	assert.Equal(t, "old", old["k1"], "input must stay untouched")
}

func TestRemoveKeys(t *testing.T) {
	obj := map[string]any{"a": 1.0, "b": 2.0, "sub": map[string]any{"d": 6.0, "e": 7.0}}
	assert.Equal(t, map[string]any{"b": 2.0, "sub": map[string]any{"d": 6.0, "e": 7.0}}, removeKeys(obj, []string{"a"}))
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0, "sub": map[string]any{"e": 7.0}}, removeKeys(obj, map[string][]string{"sub": {"d"}}))
}

func TestUpdateSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	err := UpdateSettings(map[string]any{
		"editor.formatOnSave": true,
		"cSpell.enabled":      true,
		"coverage-gutters":    []string{"test", "coverage.xml"},
		"[git-commit]":        map[string]any{"rewrap.wrappingColumn": 72},
	})
	require.Error(t, err)
	assert.Equal(t, "Updated VS Code settings", err.Error())
	assert.Equal(t, `{
  "[git-commit]": {
    "rewrap.wrappingColumn": 72
  },
  "coverage-gutters": [
    "coverage.xml",
    "test"
  ],
  "cSpell.enabled": true,
  "editor.formatOnSave": true
}
`, read(t, ".vscode/settings.json"))

	assert.NoError(t, UpdateSettings(map[string]any{"cSpell.enabled": true}))
}

func TestRemoveSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, RemoveSettings([]string{"a"}), "missing file is a no-op")

	write(t, ".vscode/settings.json", `{"a": 1, "search.exclude": {"uv.lock": true, "**/uv.lock": true, "x": true}}`)
	err := RemoveSettings(map[string]any{"search.exclude": []string{"uv.lock", "**/uv.lock"}})
	require.Error(t, err)
	assert.Equal(t, "{\n  \"a\": 1,\n  \"search.exclude\": {\n    \"x\": true\n  }\n}\n", read(t, ".vscode/settings.json"))
	assert.NoError(t, RemoveSettings([]string{"missing"}))
}

func TestExtensions(t *testing.T) {
	t.Chdir(t.TempDir())
	err := AddExtensionRecommendation("Stkb.Rewrap")
	require.Error(t, err)
	assert.Equal(t, `Added VS Code extension recommendation "stkb.rewrap"`, err.Error())
	assert.NoError(t, AddExtensionRecommendation("stkb.rewrap"))
	require.Error(t, AddExtensionRecommendation("eamodio.gitlens"))

	recs, err := GetRecommendations()
	require.NoError(t, err)
	assert.Equal(t, []string{"eamodio.gitlens", "stkb.rewrap"}, recs)

	err = RemoveExtensionRecommendation("stkb.rewrap", true)
	require.Error(t, err)
	assert.Equal(t, `Removed VS Code extension recommendation "stkb.rewrap"`+executor.Separator+
		`Added VS Code extension recommendation "stkb.rewrap"`, err.Error())
	unwanted, err := GetUnwantedExtensions()
	require.NoError(t, err)
	assert.Equal(t, []string{"stkb.rewrap"}, unwanted)

	assert.NoError(t, RemoveExtensionRecommendation("stkb.rewrap", true))
	assert.Equal(t, `{
  "recommendations": [
    "eamodio.gitlens"
  ],
  "unwantedRecommendations": [
    "stkb.rewrap"
  ]
}
`, read(t, ".vscode/extensions.json"))
}

func TestRemoveExtensionWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, RemoveExtensionRecommendation("tyriar.sort-lines", false))
	_, err := os.Stat(".vscode")
	assert.True(t, os.IsNotExist(err))
}

func TestMarshalSortsCaseInsensitively(t *testing.T) {
	out, err := Marshal(map[string]any{"b": []string{"B", "a"}, "A": "<x>"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"A\": \"<x>\",\n  \"b\": [\n    \"a\",\n    \"B\"\n  ]\n}\n", string(out))
}
