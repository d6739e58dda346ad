package pyproject

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
)

func TestAllowedVersions(t *testing.T) {
	tests := []struct {
		spec    string
		exclude []string
		want    []string
	}{
		{">=3.9,<3.13", nil, []string{"3.9", "3.10", "3.11", "3.12"}},
		{">=3.9", []string{"3.9"}, []string{"3.10", "3.11", "3.12", "3.13"}},
		{"~=3.12", nil, []string{"3.12", "3.13"}},
		{"~=3.12.0", nil, []string{"3.12"}},
		{"", nil, KnownPythonVersions},
		{"==3.*", nil, KnownPythonVersions},
		{"==3.10.*", nil, []string{"3.10"}},
		{">3.10, !=3.12", nil, []string{"3.11", "3.13"}},
		{"<=3.7", nil, []string{"3.6", "3.7"}},
	}
	for _, tt := range tests {
		got, err := AllowedVersions(tt.spec, tt.exclude...)
		require.NoError(t, err, tt.spec)
		assert.Equal(t, tt.want, got, tt.spec)
	}

	_, err := AllowedVersions(">=three")
	assert.Error(t, err)
}

func TestSortVersions(t *testing.T) {
	v := []string{"3.10", "3.9", "3.13", "3.6"}
	SortVersions(v)
	assert.Equal(t, []string{"3.6", "3.9", "3.10", "3.13"}, v)
}

func TestGetSupportedPythonVersions(t *testing.T) {
	t.Chdir(t.TempDir())
	p, err := LoadBytes([]byte(`
[project]
classifiers = [
    "License :: OSI Approved :: MIT License",
    "Programming Language :: Python :: 3.10",
    "Programming Language :: Python :: 3.9",
    "Programming Language :: Python :: 3.11",
]
`))
	require.NoError(t, err)
	got, err := p.GetSupportedPythonVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{"3.9", "3.10", "3.11"}, got)

	p, err = LoadBytes([]byte("[project]\nrequires-python = \">=3.11\"\n"))
	require.NoError(t, err)
	got, err = p.GetSupportedPythonVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{"3.11", "3.12", "3.13"}, got)

	require.NoError(t, os.WriteFile(".python-version", []byte("3.12\n"), 0o600))
	p, err = LoadBytes([]byte("[project]\nname = \"x\"\n"))
	require.NoError(t, err)
	got, err = p.GetSupportedPythonVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{"3.12", "3.13"}, got)

	p, err = LoadBytes([]byte("[project]\nrequires-python = \">=3.14\"\n"))
	require.NoError(t, err)
	_, err = p.GetSupportedPythonVersions()
	assert.True(t, executor.IsPrecommitError(err))
}

func TestPackageNameAndRepoURL(t *testing.T) {
	p, err := LoadBytes([]byte("[tool.ruff]\n"))
	require.NoError(t, err)
	name, err := p.GetPackageName(false)
	require.NoError(t, err)
	assert.Empty(t, name)
	_, err = p.GetPackageName(true)
	assert.EqualError(t, err, "Please provide a name for the package under the [project] table in pyproject.toml")
	_, err = p.GetRepoURL()
	assert.Contains(t, err.Error(), "[project.urls]")

	p, err = LoadBytes([]byte("[project]\nname = \"ampform\"\n[project.urls]\nDocumentation = \"x\"\n"))
	require.NoError(t, err)
	_, err = p.GetRepoURL()
	assert.EqualError(t, err, `[project.urls] in pyproject.toml does not contain a "Source" URL`)
}

func TestAddDependency(t *testing.T) {
	m, err := ModifiableFromBytes([]byte("[project]\nname = \"ampform\"\ndependencies = [\"sympy\"]\n"))
	require.NoError(t, err)

	require.NoError(t, m.AddDependency("attrs"))
	require.NoError(t, m.AddDependency("attrs"))
	require.NoError(t, m.AddDependency(`pytest; python_version<"3.8"`, "test"))
	require.NoError(t, m.AddDependency("jupyterlab", "jupyter", "dev"))

	proj, err := m.GetTable("project", false)
	require.NoError(t, err)
	assert.Equal(t, []any{"attrs", "sympy"}, proj["dependencies"])
	optional, err := m.GetTable("project.optional-dependencies", false)
	require.NoError(t, err)
	assert.Equal(t, []any{"jupyterlab"}, optional["jupyter"])
	assert.Equal(t, []any{"ampform[jupyter]"}, optional["dev"])
	assert.Equal(t, []string{
		"Listed attrs as a dependency",
		`Listed pytest; python_version<"3.8" as a dependency`,
		"Listed jupyterlab as a dependency",
	}, m.Changelog())
}

func TestSortTaplo(t *testing.T) {
	items := []string{`b; python_version<"3.8"`, "c", "a"}
	sortTaplo(items)
	assert.Equal(t, []string{"a", "c", `b; python_version<"3.8"`}, items)
}

func TestAddToDependencyGroup(t *testing.T) {
	m, err := ModifiableFromBytes([]byte("[project]\nname = \"x\"\n"))
	require.NoError(t, err)
	m.AddToDependencyGroup("jupyterlab", "jupyter", "dev")
	m.AddToDependencyGroup("jupyterlab", "jupyter", "dev")
	groups, err := m.GetTable("dependency-groups", false)
	require.NoError(t, err)
	assert.Equal(t, []any{"jupyterlab"}, groups["jupyter"])
	assert.Equal(t, []any{tomlx.Table{"include-group": "jupyter"}}, groups["dev"])
	assert.Len(t, m.Changelog(), 1)
}

func TestRemoveDependency(t *testing.T) {
	m, err := ModifiableFromBytes([]byte(`
[project]
dependencies = ["black", "numpy"]

[project.optional-dependencies]
doc = ["black"]
lint = ["black>=22"]
sty = ["black"]
test = ["black", "pytest"]
`))
	require.NoError(t, err)
	m.RemoveDependency("black", "doc")
	optional, err := m.GetTable("project.optional-dependencies", false)
	require.NoError(t, err)
	assert.Equal(t, tomlx.Table{
		"doc":  []any{"black"},
		"lint": []any{"black>=22"},
		"test": []any{"pytest"},
	}, optional)
	assert.Equal(t, []string{"Removed black from dependencies"}, m.Changelog())

	m.RemoveDependency("isort")
	assert.Len(t, m.Changelog(), 1)
}

func TestFinalize(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("pyproject.toml", []byte("[project]\nname = \"x\"\n"), 0o600))
	m, err := LoadModifiable("pyproject.toml")
	require.NoError(t, err)
	require.NoError(t, m.Finalize())

	require.NoError(t, m.AddDependency("attrs"))
	m.AppendToChangelog("Something else")
	err = m.Finalize()
	require.Error(t, err)
	assert.Equal(t, "The following modifications were made to pyproject.toml:\n  - Listed attrs as a dependency\n  - Something else", err.Error())

	reloaded, err := Load("pyproject.toml")
	require.NoError(t, err)
	assert.True(t, HasDependency(reloaded, "attrs"))
	assert.True(t, HasPackageName())
}

func TestFinalizeKeepsLayout(t *testing.T) {
	t.Chdir(t.TempDir())
	src := `[project]
name = "ampform" # the package
dependencies = ["numpy"]

[tool.ruff]
line-length = 88
`
	require.NoError(t, os.WriteFile("pyproject.toml", []byte(src), 0o600))
	m, err := LoadModifiable("pyproject.toml")
	require.NoError(t, err)
	require.NoError(t, m.AddDependency("sympy"))
	require.Error(t, m.Finalize())

	data, err := os.ReadFile("pyproject.toml")
	require.NoError(t, err)
	assert.Equal(t, `[project]
name = "ampform" # the package
dependencies = ["numpy", "sympy"]

[tool.ruff]
line-length = 88
`, string(data))
}

func TestCompliesWithSubset(t *testing.T) {
	assert.False(t, CompliesWithSubset(
		map[string]any{"channels": []any{"conda-forge"}},
		map[string]any{"channels": []string{"conda-forge"}, "platforms": []string{"linux-64"}},
		true,
	))
	assert.True(t, CompliesWithSubset(
		map[string]any{"channels": []any{"conda-forge"}, "platforms": []any{"linux-64"}},
		map[string]any{"channels": []string{"conda-forge"}},
		true,
	))
	assert.True(t, CompliesWithSubset(
		map[string]any{"channels": []any{"conda-forge", "default"}},
		map[string]any{"channels": []string{"conda-forge"}},
		false,
	))
	assert.False(t, CompliesWithSubset(
		map[string]any{"a": map[string]any{"b": "x"}},
		map[string]any{"a": map[string]any{"b": "y"}},
		false,
	))
}

func TestSplitDependencyDefinition(t *testing.T) {
	tests := []struct{ in, name, op, version string }{
		{"julia", "julia", "", ""},
		{"python==3.9.*", "python", "==", "3.9.*"},
		{"graphviz  # for binder", "graphviz", "", ""},
		{"pip > 19  # needed", "pip", ">", "19"},
		{"compwa-policy!= 3.14", "compwa-policy", "!=", "3.14"},
		{"my_package~=1.2", "my_package", "~=", "1.2"},
	}
	for _, tt := range tests {
		name, op, version, err := SplitDependencyDefinition(tt.in)
		require.NoError(t, err)
		assert.Equal(t, []string{tt.name, tt.op, tt.version}, []string{name, op, version}, tt.in)
	}
	_, _, _, err := SplitDependencyDefinition("[invalid")
	assert.Error(t, err)
}

func TestHasDependencyGroups(t *testing.T) {
	p, err := LoadBytes([]byte(`
[dependency-groups]
dev = ["Ruff>=0.5", {include-group = "test"}]
`))
	require.NoError(t, err)
	assert.True(t, HasDependency(p, "ruff"))
	assert.False(t, HasDependency(p, "black"))
}

func TestGetConstraintsFile(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Empty(t, GetConstraintsFile("3.12"))
	require.NoError(t, os.MkdirAll(".constraints", 0o750))
	require.NoError(t, os.WriteFile(".constraints/py3.12.txt", nil, 0o600))
	assert.Equal(t, ".constraints/py3.12.txt", GetConstraintsFile("3.12"))
}
