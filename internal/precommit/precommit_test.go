package precommit

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/repopolicy/internal/executor"
)

const sample = `ci:
  autoupdate_schedule: quarterly

# hooks are sorted by id
repos:
  - repo: meta
    hooks:
      - id: check-hooks-apply

  - repo: https://github.com/pre-commit/mirrors-prettier
    rev: v3.1.0
    hooks:
      - id: prettier

  - repo: https://github.com/pre-commit/pre-commit-hooks
    rev: v4.5.0
    hooks:
      - id: check-yaml
      - id: trailing-whitespace
`

func load(t *testing.T, src string) *Precommit {
	t.Helper()
	p, err := LoadBytes([]byte(src))
	require.NoError(t, err)
	p.Autoupdater = nil
	return p
}

func TestLoadValidates(t *testing.T) {
	_, err := LoadBytes([]byte("ci:\n  autoupdate_schedule: weekly\n"))
	assert.EqualError(t, err, "Missing required keys: ['repos']")

	_, err = LoadBytes([]byte("repos:\n  - rev: v1\n"))
	assert.Error(t, err)

	_, err = Load("missing.yaml")
	assert.Error(t, err)
}

func TestDumpsRoundTrip(t *testing.T) {
	p := load(t, sample)
	out, err := p.Dumps()
	require.NoError(t, err)
	assert.Equal(t, sample, string(out))
}

func TestFindRepo(t *testing.T) {
	p := load(t, sample)
	idx, repo, ok := p.FindRepoWithIndex(`^.*/mirrors-prettier$`)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "v3.1.0", repo.Rev)
	assert.Equal(t, "mirrors-prettier", repo.RepoName())

	_, ok = p.FindRepo("nbstripout")
	assert.False(t, ok)
}

func TestRemoveHook(t *testing.T) {
	p := load(t, sample)
	p.RemoveHook("check-yaml", "")
	p.RemoveHook("prettier", "https://github.com/pre-commit/mirrors-prettier")
	p.RemoveHook("unknown", "")

	repos := p.Repos()
	require.Len(t, repos, 2)
	assert.Equal(t, []string{"trailing-whitespace"}, repos[1].HookIDs())
	assert.Equal(t, []string{"Removed 'check-yaml' hook", "Removed 'prettier' hook"}, p.Changelog())
}

func TestUpdateSingleHookRepoInsert(t *testing.T) {
	p := load(t, sample)
	expected := Repo{
		Repo:  "https://github.com/kynan/nbstripout",
		Hooks: []Hook{{ID: "nbstripout", Args: []string{"--drop-empty-cells"}}},
	}
	require.NoError(t, p.UpdateSingleHookRepo(expected))
	require.NoError(t, p.UpdateSingleHookRepo(expected))

	repos := p.Repos()
	require.Len(t, repos, 4)
	assert.Equal(t, "https://github.com/kynan/nbstripout", repos[1].Repo)
	assert.Equal(t, "PLEASE-UPDATE", repos[1].Rev)
	assert.Equal(t, []string{"Added nbstripout hook to .pre-commit-config.yaml."}, p.Changelog())
	assert.Equal(t, []string{"https://github.com/kynan/nbstripout"}, p.autoupdate)

	out, err := p.Dumps()
	require.NoError(t, err)
	assert.Contains(t, string(out), `
  - repo: https://github.com/kynan/nbstripout
    rev: PLEASE-UPDATE
    hooks:
      - id: nbstripout
        args:
          - --drop-empty-cells

  - repo: https://github.com/pre-commit/mirrors-prettier
`)
}

func TestUpdateSingleHookRepoReplaceKeepsRev(t *testing.T) {
	p := load(t, sample)
	expected := Repo{
		Repo:  "https://github.com/pre-commit/mirrors-prettier",
		Rev:   "v9",
		Hooks: []Hook{{ID: "prettier", Args: []string{"--write"}}},
	}
	require.NoError(t, p.UpdateSingleHookRepo(expected))
	repo, ok := p.FindRepo("mirrors-prettier")
	require.True(t, ok)
	assert.Equal(t, "v3.1.0", repo.Rev)
	assert.Equal(t, []string{"--write"}, repo.Hooks[0].Args)
	assert.Equal(t, []string{"Updated prettier hook"}, p.Changelog())

	require.NoError(t, p.UpdateSingleHookRepo(expected))
	assert.Len(t, p.Changelog(), 1, "equivalent repo ignores rev")
	assert.Error(t, p.UpdateSingleHookRepo(Repo{Repo: "x"}))
}

func TestUpdateHook(t *testing.T) {
	p := load(t, sample)
	url := "https://github.com/pre-commit/pre-commit-hooks"
	require.NoError(t, p.UpdateHook(url, Hook{ID: "end-of-file-fixer"}))
	require.NoError(t, p.UpdateHook(url, Hook{ID: "check-yaml", Args: []string{"--unsafe"}}))
	require.NoError(t, p.UpdateHook(url, Hook{ID: "check-yaml", Args: []string{"--unsafe"}}))
	require.NoError(t, p.UpdateHook("https://example.com/none", Hook{ID: "x"}))

	repo, _ := p.FindRepo("pre-commit-hooks")
	assert.Equal(t, []string{"check-yaml", "end-of-file-fixer", "trailing-whitespace"}, repo.HookIDs())
	assert.Equal(t, []string{
		"Added 'end-of-file-fixer' to pre-commit-hooks pre-commit config",
		"Updated args of 'check-yaml' pre-commit-hooks pre-commit hook",
	}, p.Changelog())
}

func TestSortRepos(t *testing.T) {
	p := load(t, `repos:
  - repo: https://github.com/z/single
    hooks:
      - id: alpha
  - repo: https://github.com/b/multi
    hooks:
      - id: one
      - id: two
  - repo: meta
    hooks:
      - id: identity
`)
	assert.True(t, p.SortRepos())
	var urls []string
	for _, r := range p.Repos() {
		urls = append(urls, r.Repo)
	}
	assert.Equal(t, []string{"meta", "https://github.com/b/multi", "https://github.com/z/single"}, urls)
	assert.False(t, p.SortRepos())
}

func TestCISection(t *testing.T) {
	p := load(t, "repos: []\n")
	changed, err := p.SetCI("autoupdate_commit_msg", "MAINT: autoupdate pre-commit hooks")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = p.SetCI("autoupdate_commit_msg", "MAINT: autoupdate pre-commit hooks")
	require.NoError(t, err)
	assert.False(t, changed)
	_, err = p.SetCI("skip", []string{"pyright", "taplo"})
	require.NoError(t, err)

	cfg, err := p.Document()
	require.NoError(t, err)
	require.NotNil(t, cfg.CI)
	assert.Equal(t, []string{"pyright", "taplo"}, cfg.CI.Skip)

	assert.True(t, p.DeleteCI("skip"))
	assert.False(t, p.DeleteCI("skip"))

	out, err := p.Dumps()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "ci:\n  autoupdate_commit_msg: "), string(out))
}

func TestFinalize(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".pre-commit-config.yaml", []byte(sample), 0o600))
	p, err := Load(".pre-commit-config.yaml")
	require.NoError(t, err)
	var updated []string
	p.Autoupdater = func(_ context.Context, url string) error {
		updated = append(updated, url)
		return nil
	}
	require.NoError(t, p.Finalize(context.Background()))

	require.NoError(t, p.UpdateSingleHookRepo(Repo{
		Repo:  "https://github.com/editorconfig-checker/editorconfig-checker.python",
		Rev:   "3.0.3",
		Hooks: []Hook{{ID: "editorconfig-checker", Name: "editorconfig"}},
	}))
	err = p.Finalize(context.Background())
	require.Error(t, err)
	assert.True(t, executor.IsPrecommitError(err))
	assert.Equal(t, "The following modifications were made to .pre-commit-config.yaml:\n  - Added editorconfig-checker hook to .pre-commit-config.yaml.", err.Error())
	assert.Equal(t, []string{"https://github.com/editorconfig-checker/editorconfig-checker.python"}, updated)

	reloaded, err := Load(".pre-commit-config.yaml")
	require.NoError(t, err)
	repo, ok := reloaded.FindRepo("editorconfig-checker")
	require.True(t, ok)
	assert.Equal(t, "3.0.3", repo.Rev)
}
