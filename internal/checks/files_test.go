package checks

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/precommit"
	"github.com/fulmenhq/repopolicy/pkg/config"
)

// runTwice runs check and expects a report on the first pass only.
func runTwice(t *testing.T, check func(context.Context, *Context) error, c *Context, want ...string) {
	t.Helper()
	err := check(context.Background(), c)
	require.True(t, executor.IsPrecommitError(err), "got %v", err)
	for _, w := range want {
		assert.Contains(t, err.Error(), w)
	}
	assert.NoError(t, check(context.Background(), c), "second pass must not change anything")
}

func TestFileRemovingChecks(t *testing.T) {
	tests := []struct {
		name    string
		check   func(context.Context, *Context) error
		options func(*config.Options)
		file    string
		want    string
	}{
		{"commitlint", Commitlint, nil, "commitlint.config.js", "Remove outdated commitlint.config.js"},
		{"dependabot", Dependabot, nil, ".github/dependabot.yml", "Removed .github/dependabot.yml"},
		{"labels", GithubLabels, nil, "labels.toml", `file "labels.toml" for the labels package`},
		{"conda", Conda, nil, "environment.yml", "conda was not selected as package manager"},
		{"gitpod", Gitpod, nil, ".gitpod.yml", "Removed .gitpod.yml as requested by --no-gitpod"},
		{"pixi", Pixi, nil, "pixi.lock", "Removed redundant file pixi.lock"},
		{"uv", UV, func(o *config.Options) { o.PackageManager = "conda" }, "uv.lock", "Removed uv.lock file."},
		{"issue templates", RemoveDeprecatedTools, nil, ".github/pull_request_template.md", ".github/pull_request_template.md"},
		{"markdownlint", RemoveDeprecatedTools, nil, ".markdownlint.json", ".markdownlint.json"},
		{"release drafter", ReleaseDrafter, func(o *config.Options) { o.NoCD = true }, ".github/release-drafter.yml", "because CD was disabled"},
		{"prettier", Prettier, nil, ".prettierrc", `".prettierrc" is no longer required`},
		{"cd workflow", GithubWorkflows, func(o *config.Options) { o.NoCD = true }, ".github/workflows/cd.yml", "because CD was disabled"},
		{"lock scripts", UpdateLock, func(o *config.Options) { o.UpdateLockFiles = "monthly" }, ".constraints/upgrade.sh", `Removed deprecated ".constraints/upgrade.sh" script`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempRepo(t, "pyproject.toml")
			writeFile(t, tt.file, "x: 1\n")
			opts := testOptions()
			if tt.options != nil {
				tt.options(opts)
			}
			err := tt.check(context.Background(), &Context{Options: opts})
			require.True(t, executor.IsPrecommitError(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NoFileExists(t, tt.file)
		})
	}
}

func TestDependabotUpdate(t *testing.T) {
	inTempRepo(t)
	opts := testOptions()
	opts.Dependabot = "update"
	runTwice(t, Dependabot, &Context{Options: opts}, "Updated .github/dependabot.yml")
	assert.Equal(t, string(assets.MustTemplate(".github/dependabot.yml")), readFile(t, ".github/dependabot.yml"))

	opts.Dependabot = "keep"
	writeFile(t, ".github/dependabot.yml", "version: 2\n")
	assert.NoError(t, Dependabot(context.Background(), &Context{Options: opts}))
	assert.Equal(t, "version: 2\n", readFile(t, ".github/dependabot.yml"))
}

func TestGithubLabelsRequirement(t *testing.T) {
	inTempRepo(t, "requirements-dev.txt")
	writeFile(t, "requirements-dev.txt", "labels>=1.0 # sync\npre-commit\n")
	runTwice(t, GithubLabels, &Context{Options: testOptions()}, "lists the labels package")
	assert.Equal(t, "pre-commit\n", readFile(t, "requirements-dev.txt"))
}

func TestToxMissingJobs(t *testing.T) {
	inTempRepo(t)
	require.NoError(t, os.Mkdir("docs", 0o750))
	writeFile(t, "tox.ini", "[testenv]\ncommands = pytest\n\n[testenv:doc]\ncommands = sphinx-build docs docs/_build\n")
	c := &Context{Options: testOptions(), HasNotebooks: true}

	err := Tox(context.Background(), c)
	require.True(t, executor.IsPrecommitError(err), "got %v", err)
	assert.Equal(t, "tox.ini is missing job definitions: testenv:doclive, testenv:docnb, testenv:docnblive, testenv:nb", err.Error())

	c.HasNotebooks = false
	err = Tox(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, "tox.ini is missing job definitions: testenv:doclive", err.Error())
}

func TestDirenv(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"pixi lock", map[string]string{"pixi.lock": ""}, pixiEnvrc},
		{"pixi table", map[string]string{"pyproject.toml": "[tool.pixi.project]\nchannels = []\n"}, pixiEnvrc},
		{"conda", map[string]string{"environment.yml": "name: ampform\n"}, condaEnvrc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempRepo(t)
			for path, content := range tt.files {
				writeFile(t, path, content)
			}
			runTwice(t, Direnv, &Context{Options: testOptions()}, "Updated .envrc for direnv")
			assert.Equal(t, tt.want, readFile(t, ".envrc"))
		})
	}

	t.Run("none", func(t *testing.T) {
		inTempRepo(t)
		assert.NoError(t, Direnv(context.Background(), &Context{Options: testOptions()}))
		assert.NoFileExists(t, ".envrc")
	})
}

func TestDeprecatedRelinkScript(t *testing.T) {
	inTempRepo(t)
	writeFile(t, "docs/_relink_references.py", "")
	err := RemoveDeprecatedTools(context.Background(), &Context{Options: testOptions()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please remove 'docs/_relink_references.py'")
	assert.FileExists(t, "docs/_relink_references.py")
}

func TestCondaEnvironment(t *testing.T) {
	inTempRepo(t)
	writeFile(t, "pyproject.toml", "[project]\nname = \"ampform\"\n")
	opts := testOptions()
	opts.PackageManager = "conda"
	runTwice(t, Conda, &Context{Options: opts}, "Updated Conda environment for Python 3.12")
	env := readFile(t, "environment.yml")
	assert.Contains(t, env, "name: ampform\n")
	assert.Contains(t, env, "python==3.12.*")
	assert.Contains(t, env, "-e .[dev]")

	opts.DevPythonVersion = "3.11"
	runTwice(t, Conda, &Context{Options: opts}, "Python 3.11")
	assert.Contains(t, readFile(t, "environment.yml"), "python==3.11.*")
}

func TestGitpodConfig(t *testing.T) {
	inTempRepo(t)
	writeFile(t, "README.md", "# AmpForm\n\nSymbolic amplitude models.\n")
	writeFile(t, "pyproject.toml", "[project]\nname = \"ampform\"\n\n[project.urls]\nSource = \"https://github.com/ComPWA/ampform\"\n")
	opts := testOptions()
	opts.Gitpod = true
	c := &Context{Options: opts}

	err := Gitpod(context.Background(), c)
	require.True(t, executor.IsPrecommitError(err), "got %v", err)
	assert.Equal(t, "GitPod config .gitpod.yml does not exist. Problem has been fixed.", err.Error())
	content := readFile(t, ".gitpod.yml")
	assert.Contains(t, content, "pyenv local 3.12")
	assert.Contains(t, content, "pip install -e .[dev]")

	err = Gitpod(context.Background(), c)
	require.Error(t, err, "the badge is added on the next pass")
	assert.Contains(t, readFile(t, "README.md"), "https://gitpod.io/#https://github.com/ComPWA/ampform")
	assert.NoError(t, Gitpod(context.Background(), c))
}

func TestBinder(t *testing.T) {
	inTempRepo(t, "pyproject.toml")
	writeFile(t, "pyproject.toml", "[dependency-groups]\njupyter = [\"jupyterlab\"]\n")
	opts := testOptions()
	opts.DocAptPackages = []string{"graphviz", "cm-super", "graphviz"}
	runTwice(t, Binder, &Context{Options: opts, HasNotebooks: true},
		"Updated .binder/apt.txt", "Updated .binder/postBuild", ".binder/postBuild has been made executable", "Updated .binder/runtime.txt")

	assert.Equal(t, "cm-super\ngraphviz\n", readFile(t, ".binder/apt.txt"))
	assert.Equal(t, "python-3.12\n", readFile(t, ".binder/runtime.txt"))
	postBuild := readFile(t, ".binder/postBuild")
	assert.Contains(t, postBuild, "curl -LsSf https://astral.sh/uv/install.sh | sh")
	assert.Contains(t, postBuild, "  --group jupyter \\\n")
	info, err := os.Stat(".binder/postBuild")
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)

	opts.DocAptPackages = nil
	err = Binder(context.Background(), &Context{Options: opts, HasNotebooks: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Removed .binder/apt.txt")
}

func TestUpdateLockWorkflow(t *testing.T) {
	inTempRepo(t, "pyproject.toml", "uv.lock")
	opts := testOptions()
	opts.UpdateLockFiles = "quarterly"
	runTwice(t, UpdateLock, &Context{Options: opts}, `Created ".github/workflows/lock.yml" workflow`)
	content := readFile(t, ".github/workflows/lock.yml")
	assert.Contains(t, content, `cron: "0 3 7 */3 *"`)
	assert.Contains(t, content, "      - pyproject.toml\n      - uv.lock\n")
	assert.NotContains(t, content, "pixi.lock")

	t.Run("outsource needs an autoupdate schedule", func(t *testing.T) {
		opts.UpdateLockFiles = "outsource"
		err := UpdateLock(context.Background(), &Context{Options: opts})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "autoupdate_schedule has not been set")
		assert.NotContains(t, readFile(t, ".github/workflows/lock.yml"), "schedule")

		pc, err := precommit.LoadBytes([]byte("ci:\n  autoupdate_schedule: monthly\nrepos: []\n"))
		require.NoError(t, err)
		assert.NoError(t, UpdateLock(context.Background(), &Context{Options: opts, Precommit: pc}))
	})
}

func TestReadTheDocs(t *testing.T) {
	inTempRepo(t)
	writeFile(t, ".readthedocs.yml", `version: 2
build:
  os: ubuntu-22.04
  tools:
    python: "3.10"
  jobs:
    post_install:
      - echo start
      - pip install -e .[doc]
`)
	runTwice(t, ReadTheDocs, &Context{Options: testOptions()},
		"Set build.os to ubuntu-24.04", "Set build.tools.python to '3.12'", "Updated pip install steps")
	content := readFile(t, ".readthedocs.yml")
	assert.Contains(t, content, "os: ubuntu-24.04")
	assert.Contains(t, content, `python: "3.12"`)
	assert.Contains(t, content, "- echo start\n")
	assert.Contains(t, content, "- uv pip install --system -e .[doc]\n")
	assert.NotContains(t, content, "- pip install")
}

func TestPrettierWithHook(t *testing.T) {
	inTempRepo(t)
	writeFile(t, "README.md", "# AmpForm\n\nSymbolic amplitude models.\n")
	writeFile(t, "LICENSE", "MIT\n")
	writeFile(t, ".prettierignore", ".cspell.json\nbuild/\n")
	pc, err := precommit.LoadBytes([]byte(`repos:
  - repo: https://github.com/ComPWA/mirrors-prettier
    rev: v3.3.3
    hooks:
      - id: prettier
`))
	require.NoError(t, err)
	runTwice(t, Prettier, &Context{Options: testOptions(), Precommit: pc},
		"Updated .prettierrc config file", "Removed forbidden paths from .prettierignore", "Added paths to .prettierignore")
	assert.Equal(t, string(assets.MustTemplate(".prettierrc")), readFile(t, ".prettierrc"))
	assert.Equal(t, "LICENSE\nbuild/\n", readFile(t, ".prettierignore"))
	assert.Contains(t, readFile(t, "README.md"), "code_style-prettier")
	assert.Contains(t, readFile(t, ".vscode/extensions.json"), "esbenp.prettier-vscode")
}

func TestCustomWorkflowJobsSurvive(t *testing.T) {
	inTempRepo(t, "pyproject.toml")
	require.NoError(t, os.Mkdir("docs", 0o750))
	writeFile(t, ".github/workflows/ci.yml", `name: CI
jobs:
  benchmark:
    runs-on: ubuntu-24.04
    steps:
      - run: echo bench
`)
	opts := testOptions()
	opts.NoCD = true
	opts.GithubPages = true
	runTwice(t, GithubWorkflows, &Context{Options: opts},
		`Updated ".github/workflows/ci.yml" workflow`, `Created ".github/workflows/clean-caches.yml" workflow`)

	ci := readFile(t, ".github/workflows/ci.yml")
	assert.Contains(t, ci, "  benchmark:\n    runs-on: ubuntu-24.04\n")
	assert.Contains(t, ci, "gh-pages: true")
	assert.Contains(t, ci, "pages: write")
	assert.NotContains(t, ci, "pytest:", "no tests directory")
	assert.NotContains(t, ci, "style:", "no pre-commit config")
	assert.NotContains(t, readFile(t, ".github/workflows/clean-caches.yml"), "-c .constraints/")
	assert.FileExists(t, ".github/workflows/pr-linting.yml")
	assert.Contains(t, readFile(t, ".vscode/extensions.json"), "github.vscode-github-actions")
}
