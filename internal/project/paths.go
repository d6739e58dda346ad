// Package project knows where a Python repository keeps its developer
// configuration and provides the file operations checks share.
package project

// Well-known configuration paths, relative to the repository root.
const (
	Binder              = ".binder"
	Citation            = "CITATION.cff"
	Codecov             = "codecov.yml"
	Conda               = "environment.yml"
	Cspell              = ".cspell.json"
	EditorConfig        = ".editorconfig"
	Envrc               = ".envrc"
	GitAttributes       = ".gitattributes"
	GithubWorkflowDir   = ".github/workflows"
	GitIgnore           = ".gitignore"
	Gitpod              = ".gitpod.yml"
	PipConstraints      = ".constraints"
	PixiLock            = "pixi.lock"
	PixiToml            = "pixi.toml"
	Precommit           = ".pre-commit-config.yaml"
	PrettierIgnore      = ".prettierignore"
	Pyproject           = "pyproject.toml"
	PytestIni           = "pytest.ini"
	Readme              = "README.md"
	ReadTheDocs         = ".readthedocs.yml"
	ReleaseDrafter      = ".github/release-drafter.yml"
	ReleaseDrafterFlow  = ".github/workflows/release-drafter.yml"
	Taplo               = ".taplo.toml"
	Tox                 = "tox.ini"
	VSCodeExtensions    = ".vscode/extensions.json"
	VSCodeSettings      = ".vscode/settings.json"
	Zenodo              = ".zenodo.json"
	PythonVersionFile   = ".python-version"
	UVLock              = "uv.lock"
	ContributingFile    = "CONTRIBUTING.md"
	DependabotConfig    = ".github/dependabot.yml"
	PrettierConfig      = ".prettierrc"
	PreviousCspellFile  = "cspell.json"
	PreviousTaploConfig = "taplo.toml"
)

// WellKnown lists the paths above in a stable order.
var WellKnown = []string{
	Binder, Citation, Codecov, Conda, Cspell, EditorConfig, Envrc, GitAttributes,
	GithubWorkflowDir, GitIgnore, Gitpod, PipConstraints, PixiLock, PixiToml,
	Precommit, PrettierIgnore, Pyproject, PytestIni, Readme, ReadTheDocs,
	ReleaseDrafter, ReleaseDrafterFlow, Taplo, VSCodeExtensions, VSCodeSettings, Zenodo,
}
