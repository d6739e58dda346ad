package assets

// Registry lists embedded templates available at runtime.
// Update this when adding/removing curated assets.

type AssetInfo struct {
	Family string // template | schema
	Path   string // path relative to the family root
	Source string // provenance URL
}

var Registry = []AssetInfo{
	{Family: "template", Path: ".cspell.json", Source: "https://cspell.org/configuration"},
	{Family: "template", Path: ".prettierrc", Source: "https://prettier.io/docs/en/configuration.html"},
	{Family: "template", Path: ".taplo.toml", Source: "https://taplo.tamasfe.dev/configuration/file.html"},
	{Family: "template", Path: ".gitpod.yml", Source: "https://www.gitpod.io/docs/references/gitpod-yml"},
	{Family: "template", Path: ".github/dependabot.yml", Source: "https://docs.github.com/code-security/dependabot"},
	{Family: "template", Path: ".github/release-drafter.yml.hbs", Source: "https://github.com/release-drafter/release-drafter"},
	{Family: "template", Path: ".github/workflows/cd.yml", Source: "https://github.com/ComPWA/actions"},
	{Family: "template", Path: ".github/workflows/ci.yml", Source: "https://github.com/ComPWA/actions"},
	{Family: "template", Path: ".github/workflows/clean-caches.yml", Source: "https://github.com/ComPWA/actions"},
	{Family: "template", Path: ".github/workflows/lock.yml", Source: "https://github.com/ComPWA/actions"},
	{Family: "template", Path: ".github/workflows/pr-linting.yml", Source: "https://github.com/ComPWA/actions"},
	{Family: "template", Path: ".github/workflows/release-drafter.yml", Source: "https://github.com/release-drafter/release-drafter"},
	{Family: "template", Path: "CONTRIBUTING.md.hbs", Source: "https://docs.astral.sh/uv"},
	{Family: "schema", Path: "pre-commit-config.json", Source: "https://pre-commit.com/#pre-commit-configyaml---top-level"},
	{Family: "schema", Path: "repopolicy-config.json", Source: "https://github.com/fulmenhq/repopolicy"},
}
