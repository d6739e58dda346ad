// Package pyproject reads and edits pyproject.toml.
package pyproject

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/tomlx"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

const versionClassifierPrefix = "Programming Language :: Python :: "

// Pyproject is a read-only view of a pyproject.toml document.
type Pyproject struct {
	doc    tomlx.Table
	src    []byte
	source string
}

// Load parses the pyproject.toml at path.
func Load(path string) (*Pyproject, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- repository config location
	if err != nil {
		return nil, err
	}
	p, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p.source = path
	return p, nil
}

// LoadBytes parses TOML source that is not backed by a file.
func LoadBytes(src []byte) (*Pyproject, error) {
	doc, err := tomlx.Parse(src)
	if err != nil {
		return nil, err
	}
	return &Pyproject{doc: doc, src: src}, nil
}

// Document exposes the decoded table.
func (p *Pyproject) Document() tomlx.Table { return p.doc }

// Source is the file the document was loaded from, if any.
func (p *Pyproject) Source() string { return p.source }

// Dumps renders the document on top of the text it was loaded from.
func (p *Pyproject) Dumps() ([]byte, error) { return tomlx.Patch(p.src, p.doc) }

// GetTable returns the table under a dotted header.
func (p *Pyproject) GetTable(dotted string) (tomlx.Table, error) {
	return tomlx.GetSubTable(p.doc, dotted)
}

// HasTable reports whether a dotted header exists.
func (p *Pyproject) HasTable(dotted string) bool {
	return tomlx.HasSubTable(p.doc, dotted)
}

// GetPackageName returns project.name. With raiseOnMissing, a missing
// [project] table yields a PrecommitError.
func (p *Pyproject) GetPackageName(raiseOnMissing bool) (string, error) {
	proj, err := p.GetTable("project")
	if err != nil {
		if raiseOnMissing {
			return "", executor.NewPrecommitError("Please provide a name for the package under the [project] table in pyproject.toml")
		}
		return "", nil
	}
	name, _ := proj["name"].(string)
	return name, nil
}

const missingURLs = `
pyproject.toml does not contain project URLs. Should be something like:

    [project.urls]
    Documentation = "https://ampform.rtfd.io"
    Source = "https://github.com/ComPWA/ampform"
    Tracker = "https://github.com/ComPWA/ampform/issues"
`

// GetRepoURL returns project.urls.Source.
func (p *Pyproject) GetRepoURL() (string, error) {
	urls, err := p.GetTable("project.urls")
	if err != nil {
		return "", executor.NewPrecommitError(missingURLs)
	}
	source, ok := urls["Source"].(string)
	if !ok {
		return "", executor.NewPrecommitError(`[project.urls] in pyproject.toml does not contain a "Source" URL`)
	}
	return source, nil
}

// GetSupportedPythonVersions derives the supported versions from the
// classifiers, or from requires-python (falling back to .python-version).
func (p *Pyproject) GetSupportedPythonVersions() ([]PythonVersion, error) {
	proj, err := p.GetTable("project")
	if err != nil {
		return nil, nil
	}
	var versions []PythonVersion
	if classifiers := tomlx.Strings(proj["classifiers"]); len(classifiers) > 0 {
		versions = extractPythonVersions(classifiers)
	} else {
		versions, err = AllowedVersions(RequiresPython(proj))
		if err != nil {
			return nil, err
		}
	}
	if len(versions) == 0 {
		return nil, executor.NewPrecommitError("Could not determine Python version classifiers of this package")
	}
	SortVersions(versions)
	return versions, nil
}

func extractPythonVersions(classifiers []string) []PythonVersion {
	var out []PythonVersion
	for _, c := range classifiers {
		if strings.HasPrefix(c, versionClassifierPrefix+"3.") {
			out = append(out, strings.TrimPrefix(c, versionClassifierPrefix))
		}
	}
	return out
}

// RequiresPython returns requires-python, falling back to the pin in
// .python-version.
func RequiresPython(proj tomlx.Table) string {
	if rp, ok := proj["requires-python"].(string); ok {
		return rp
	}
	if data, ok, _ := safeio.ReadIfExists(project.PythonVersionFile); ok {
		return "~=" + strings.TrimSpace(string(data))
	}
	return ""
}

// VersionClassifier formats the trove classifier for a Python version.
func VersionClassifier(v PythonVersion) string {
	return versionClassifierPrefix + v
}

// Modifiable collects edits to a pyproject document and writes them once.
type Modifiable struct {
	*Pyproject
	changelog []string
}

// LoadModifiable opens path for editing.
func LoadModifiable(path string) (*Modifiable, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Modifiable{Pyproject: p}, nil
}

// ModifiableFromBytes is LoadModifiable for in-memory source.
func ModifiableFromBytes(src []byte) (*Modifiable, error) {
	p, err := LoadBytes(src)
	if err != nil {
		return nil, err
	}
	return &Modifiable{Pyproject: p}, nil
}

// GetTable returns the table under dotted, creating it when create is set.
func (m *Modifiable) GetTable(dotted string, create bool) (tomlx.Table, error) {
	if create {
		return tomlx.CreateSubTable(m.doc, dotted), nil
	}
	return m.Pyproject.GetTable(dotted)
}

// AppendToChangelog records a modification.
func (m *Modifiable) AppendToChangelog(msg string) {
	m.changelog = append(m.changelog, msg)
}

// Changelog returns the recorded modifications.
func (m *Modifiable) Changelog() []string {
	return append([]string(nil), m.changelog...)
}

// Finalize writes the document back to its source when anything changed and
// reports the changelog as a PrecommitError.
func (m *Modifiable) Finalize() error {
	if len(m.changelog) == 0 {
		return nil
	}
	msg := "The following modifications were made"
	if m.source != "" {
		data, err := m.Dumps()
		if err != nil {
			return fmt.Errorf("render %s: %w", m.source, err)
		}
		if err := safeio.WriteFilePreservePerms(m.source, data); err != nil {
			return fmt.Errorf("write %s: %w", m.source, err)
		}
		m.src = data
		msg += " to " + filepath.ToSlash(m.source)
	}
	msg += ":\n  - " + strings.Join(m.changelog, "\n  - ")
	return executor.NewPrecommitError(msg)
}

// AddDependency lists pkg under project.dependencies, or under
// project.optional-dependencies.<key>. With several keys, pkg goes into the
// first and each following key receives "<name>[<previous key>]".
func (m *Modifiable) AddDependency(pkg string, optionalKey ...string) error {
	updated, err := m.addDependency(pkg, optionalKey)
	if err != nil {
		return err
	}
	if updated {
		m.AppendToChangelog(fmt.Sprintf("Listed %s as a dependency", pkg))
	}
	return nil
}

func (m *Modifiable) addDependency(pkg string, keys []string) (bool, error) {
	switch len(keys) {
	case 0:
		proj := tomlx.CreateSubTable(m.doc, "project")
		return addToArray(proj, "dependencies", pkg), nil
	case 1:
		optional := tomlx.CreateSubTable(m.doc, "project.optional-dependencies")
		return addToArray(optional, keys[0], pkg), nil
	}
	name, err := m.GetPackageName(true)
	if err != nil {
		return false, err
	}
	updated := false
	for i, key := range keys {
		entry := pkg
		if i > 0 {
			entry = fmt.Sprintf("%s[%s]", name, keys[i-1])
		}
		ok, err := m.addDependency(entry, []string{key})
		if err != nil {
			return false, err
		}
		updated = updated || ok
	}
	return updated, nil
}

// AddToDependencyGroup lists pkg in dependency-groups.<group>. Further
// groups include the previous one through {include-group = ...}.
func (m *Modifiable) AddToDependencyGroup(pkg string, groups ...string) {
	if len(groups) == 0 {
		return
	}
	table := tomlx.CreateSubTable(m.doc, "dependency-groups")
	updated := addToArray(table, groups[0], pkg)
	for i := 1; i < len(groups); i++ {
		include := tomlx.Table{"include-group": groups[i-1]}
		arr, _ := table[groups[i]].([]any)
		found := false
		for _, item := range arr {
			if cmp.Equal(item, any(include)) {
				found = true
				break
			}
		}
		if !found {
			table[groups[i]] = append(arr, include)
			updated = true
		}
	}
	if updated {
		m.AppendToChangelog(fmt.Sprintf("Listed %s as a dependency", pkg))
	}
}

func addToArray(table tomlx.Table, key, pkg string) bool {
	existing := tomlx.Strings(table[key])
	for _, e := range existing {
		if e == pkg {
			return false
		}
	}
	existing = append(existing, pkg)
	sortTaplo(existing)
	table[key] = tomlx.ToArray(existing...)
	return true
}

// sortTaplo orders entries the way taplo does: entries without a quote first.
func sortTaplo(items []string) {
	sort.SliceStable(items, func(i, j int) bool {
		qi, qj := strings.Contains(items[i], `"`), strings.Contains(items[j], `"`)
		if qi != qj {
			return !qi
		}
		return items[i] < items[j]
	})
}

// RemoveDependency drops entries equal to pkg from the dependencies and from
// every optional section not listed in ignored. Pinned variants such as
// "black>=22" are left alone. Emptied optional sections are removed.
func (m *Modifiable) RemoveDependency(pkg string, ignored ...string) {
	proj, err := m.Pyproject.GetTable("project")
	if err != nil {
		return
	}
	updated := false
	if deps, ok := proj["dependencies"].([]any); ok {
		if out, removed := without(deps, pkg); removed {
			proj["dependencies"] = out
			updated = true
		}
	}
	if optional, ok := proj["optional-dependencies"].(tomlx.Table); ok {
		skip := make(map[string]bool, len(ignored))
		for _, s := range ignored {
			skip[s] = true
		}
		for section, values := range optional {
			arr, ok := values.([]any)
			if skip[section] || !ok {
				continue
			}
			if out, removed := without(arr, pkg); removed {
				optional[section] = out
				updated = true
			}
		}
		if updated {
			for section, values := range optional {
				if arr, ok := values.([]any); ok && len(arr) == 0 {
					delete(optional, section)
				}
			}
		}
	}
	if updated {
		m.AppendToChangelog(fmt.Sprintf("Removed %s from dependencies", pkg))
	}
}

func without(items []any, pkg string) ([]any, bool) {
	out := make([]any, 0, len(items))
	removed := false
	for _, item := range items {
		if s, ok := item.(string); ok && s == pkg {
			removed = true
			continue
		}
		out = append(out, item)
	}
	return out, removed
}

// CompliesWithSubset reports whether settings contains every key of
// minimal. In exact mode values must be equal; otherwise nested tables
// recurse and arrays only need to contain the minimal items.
func CompliesWithSubset(settings, minimal map[string]any, exactValueMatch bool) bool {
	for key, expected := range minimal {
		actual := settings[key]
		if exactValueMatch {
			if !cmp.Equal(tomlx.Normalize(actual), tomlx.Normalize(expected)) {
				return false
			}
			continue
		}
		if !compliesMinimally(tomlx.Normalize(actual), tomlx.Normalize(expected)) {
			return false
		}
	}
	return true
}

func compliesMinimally(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		return CompliesWithSubset(act, exp, false)
	case string:
		return actual == exp
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return false
		}
		for _, e := range exp {
			found := false
			for _, a := range act {
				if cmp.Equal(a, e) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return cmp.Equal(actual, expected)
	}
}

var dependencyRe = regexp.MustCompile(`^([a-zA-Z0-9_-]+)([\!<=>~\s]*)([^ ^#]*)`)

// SplitDependencyDefinition splits "numpy>=1.16 # pinned" into name,
// operator and version.
func SplitDependencyDefinition(definition string) (name, operator, version string, err error) {
	m := dependencyRe.FindStringSubmatch(definition)
	if m == nil {
		return "", "", "", fmt.Errorf("could not extract package name and version from %s", definition)
	}
	return m[1], strings.TrimSpace(m[2]), strings.TrimSpace(m[3]), nil
}

// HasDependency reports whether any of names appears in project.dependencies
// or in a dependency group.
func HasDependency(p *Pyproject, names ...string) bool {
	var deps []string
	if proj, err := p.GetTable("project"); err == nil {
		deps = append(deps, tomlx.Strings(proj["dependencies"])...)
	}
	if groups, err := p.GetTable("dependency-groups"); err == nil {
		for _, g := range groups {
			deps = append(deps, tomlx.Strings(g)...)
		}
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, d := range deps {
		name, _, _, err := SplitDependencyDefinition(d)
		if err == nil && want[strings.ToLower(name)] {
			return true
		}
	}
	return false
}

// GetConstraintsFile returns the pip constraints file for v, or "".
func GetConstraintsFile(v PythonVersion) string {
	path := filepath.ToSlash(filepath.Join(project.PipConstraints, "py"+v+".txt"))
	if safeio.Exists(path) {
		return path
	}
	return ""
}

// HasPackageName reports whether ./pyproject.toml defines project.name.
func HasPackageName() bool {
	if !safeio.Exists(project.Pyproject) {
		return false
	}
	p, err := Load(project.Pyproject)
	if err != nil {
		return false
	}
	name, _ := p.GetPackageName(false)
	return name != ""
}
