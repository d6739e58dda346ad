package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesPatterns(t *testing.T) {
	tests := []struct {
		file     string
		patterns []string
		want     bool
	}{
		{".cspell.json", []string{"**/*.json"}, true},
		{"some/random/path/.cspell.json", []string{"**/*.json"}, true},
		{"some/random/path/.cspell.json", []string{"*/*.json"}, false},
		{"docs/conf.py", []string{"*.py", "!docs/conf.py"}, false},
		{"file.yaml", []string{"", "# comment"}, false},
	}
	for _, tt := range tests {
		if got := MatchesPatterns(tt.file, tt.patterns); got != tt.want {
			t.Errorf("MatchesPatterns(%q, %v) = %v, want %v", tt.file, tt.patterns, got, tt.want)
		}
	}
}

func TestFilterFiles(t *testing.T) {
	got := FilterFiles([]string{"**/*.json", "**/*.txt"}, []string{"a/b/file.json", "file.yaml"})
	assert.Equal(t, []string{"a/b/file.json"}, got)
}

func TestFilterPatterns(t *testing.T) {
	got := FilterPatterns([]string{"**/*.json", "**/*.txt"}, []string{"file.json", "file.yaml"})
	assert.Equal(t, []string{"**/*.json"}, got)
}

func TestNilFilesUsesRepoFiles(t *testing.T) {
	orig := RepoFiles
	t.Cleanup(func() { RepoFiles = orig })
	RepoFiles = func() []string { return []string{"docs/index.ipynb", "src/a.py"} }

	assert.True(t, MatchesFiles("*.ipynb", nil))
	assert.Equal(t, []string{"src/a.py"}, FilterFiles([]string{"*.py"}, nil))
	assert.Equal(t, []string{"docs/index.ipynb"}, Glob("docs/**/*.ipynb", nil))
	assert.Empty(t, FilterFiles([]string{"*.py"}, []string{}))
}

func TestGlob(t *testing.T) {
	files := []string{"labels.toml", "labels/a.toml", "x/Manifest.toml", "pyproject.toml"}
	assert.Equal(t, []string{"x/Manifest.toml"}, Glob("**/Manifest.toml", files))
	assert.Equal(t, []string{"labels/a.toml"}, Glob("labels/*.toml", files))
}
