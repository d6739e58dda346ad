package checks

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/pyproject"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// workflowSpacing separates top-level keys and jobs by a blank line.
var workflowSpacing = yamlrt.Spacing{TopLevel: true, MappingKeys: []string{"jobs"}}

// templateYAML parses an embedded template into a document node.
func templateYAML(rel string) (*yaml.Node, error) {
	data, err := assets.Template(rel)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", rel, err)
	}
	return yamlrt.Parse(data)
}

// loadYAMLIfExists returns the document at path, or nil when it is missing.
func loadYAMLIfExists(path string) (*yaml.Node, error) {
	if !safeio.Exists(path) {
		return nil, nil
	}
	return yamlrt.Load(path)
}

// writeWorkflow dumps doc to path and reports it.
func writeWorkflow(path string, doc *yaml.Node) error {
	verb := "Updated"
	if !safeio.Exists(path) {
		verb = "Created"
	}
	if err := yamlrt.Write(path, doc, workflowSpacing); err != nil {
		return err
	}
	return executor.Errorf(`%s "%s" workflow`, verb, path)
}

// removeWorkflow deletes a deprecated workflow file.
func removeWorkflow(filename string) error {
	p := path.Join(project.GithubWorkflowDir, filename)
	if !safeio.Exists(p) {
		return nil
	}
	if err := os.Remove(p); err != nil {
		return err
	}
	return executor.Errorf(`Removed deprecated "%s" workflow`, filename)
}

// sortMapping orders the keys of a mapping node alphabetically.
func sortMapping(m *yaml.Node) {
	if m == nil || m.Kind != yaml.MappingNode {
		return
	}
	type pair struct{ k, v *yaml.Node }
	pairs := make([]pair, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		pairs = append(pairs, pair{m.Content[i], m.Content[i+1]})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].k.Value < pairs[j].k.Value })
	m.Content = m.Content[:0]
	for _, p := range pairs {
		m.Content = append(m.Content, p.k, p.v)
	}
}

// renderTemplate fills an embedded handlebars template with the repository
// identity.
func renderTemplate(rel string, c *Context) ([]byte, error) {
	src, err := assets.Template(rel)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", rel, err)
	}
	out, err := raymond.Render(string(src), repoTemplateContext(c))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rel, err)
	}
	return []byte(out), nil
}

func repoTemplateContext(c *Context) map[string]string {
	return map[string]string{
		"ORGANIZATION": c.Options.RepoOrganization,
		"REPO_NAME":    c.Options.RepoName,
		"REPO_TITLE":   c.Options.RepoTitle,
	}
}

// importName resolves the import name of the package in src/.
func importName() (string, error) {
	pyp, err := pyproject.Load(project.Pyproject)
	if err != nil {
		return "", err
	}
	pypiName, err := pyp.GetPackageName(true)
	if err != nil {
		return "", err
	}
	name := strings.ToLower(strings.ReplaceAll(pypiName, "-", "_"))
	if safeio.IsDir(path.Join("src", name)) {
		return name, nil
	}
	entries, err := os.ReadDir("src")
	if err != nil || len(entries) == 0 {
		return name, nil
	}
	var all, candidates []string
	for _, e := range entries {
		all = append(all, e.Name())
		if strings.HasPrefix(e.Name(), strings.ToLower(pypiName[:1])) && !strings.HasSuffix(e.Name(), ".egg-info") {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) > 0 {
		sort.Strings(candidates)
		return candidates[0], nil
	}
	sort.Strings(all)
	return all[0], nil
}
