package precommit

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/internal/assets"
	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/internal/yamlrt"
	"github.com/fulmenhq/repopolicy/pkg/logger"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
	"github.com/fulmenhq/repopolicy/pkg/schema"
)

// NoAutoupdateEnv disables the post-write `pre-commit autoupdate` call.
const NoAutoupdateEnv = "REPOPOLICY_NO_AUTOUPDATE"

// Spacing is the prettier layout of a pre-commit config.
var Spacing = yamlrt.Spacing{TopLevel: true, SequenceKeys: []string{"repos"}}

// Autoupdater refreshes the rev of a newly added repo.
type Autoupdater func(ctx context.Context, repoURL string) error

// Precommit is a modifiable pre-commit configuration.
type Precommit struct {
	source     string
	doc        *yaml.Node
	changelog  []string
	autoupdate []string

	// Autoupdater runs after Finalize writes for every added repo.
	Autoupdater Autoupdater
}

// Load reads and validates the config at path.
func Load(path string) (*Precommit, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- repository config location
	if err != nil {
		return nil, err
	}
	p, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.source = path
	return p, nil
}

// LoadBytes parses config source that is not backed by a file.
func LoadBytes(src []byte) (*Precommit, error) {
	doc, err := yamlrt.Parse(src)
	if err != nil {
		return nil, err
	}
	root := yamlrt.Root(doc)
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("pre-commit config must be a mapping")
	}
	if yamlrt.MapGet(root, "repos") == nil {
		return nil, fmt.Errorf("Missing required keys: ['repos']")
	}
	res, err := schema.Validate(yamlrt.Decode(root), assets.PrecommitSchema)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, fmt.Errorf("invalid pre-commit config: %s", strings.Join(res.Messages(), "; "))
	}
	return &Precommit{doc: doc, Autoupdater: DefaultAutoupdate}, nil
}

func (p *Precommit) root() *yaml.Node { return yamlrt.Root(p.doc) }

func (p *Precommit) repoNodes() *yaml.Node {
	repos := yamlrt.MapGet(p.root(), "repos")
	if repos == nil || repos.Kind != yaml.SequenceNode {
		repos = yamlrt.NewSeq()
		yamlrt.MapSet(p.root(), "repos", repos)
	}
	return repos
}

// Document decodes the typed view of the current state.
func (p *Precommit) Document() (Config, error) {
	var cfg Config
	if err := p.root().Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode pre-commit config: %w", err)
	}
	return cfg, nil
}

// Repos decodes the repos list.
func (p *Precommit) Repos() []Repo {
	nodes := p.repoNodes().Content
	out := make([]Repo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, decodeRepo(n))
	}
	return out
}

func decodeRepo(n *yaml.Node) Repo {
	var r Repo
	_ = n.Decode(&r)
	return r
}

// FindRepo returns the first repo whose URL matches pattern.
func (p *Precommit) FindRepo(pattern string) (Repo, bool) {
	_, r, ok := p.FindRepoWithIndex(pattern)
	return r, ok
}

// FindRepoWithIndex is FindRepo that also returns the position in repos.
func (p *Precommit) FindRepoWithIndex(pattern string) (int, Repo, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return -1, Repo{}, false
	}
	for i, n := range p.repoNodes().Content {
		if url := yamlrt.MapGet(n, "repo"); url != nil && re.MatchString(url.Value) {
			return i, decodeRepo(n), true
		}
	}
	return -1, Repo{}, false
}

// RemoveHook drops a hook, or its whole repo when it is the only hook. An
// empty repoURL searches every repo.
func (p *Precommit) RemoveHook(hookID, repoURL string) {
	repos := p.repoNodes()
	for ri, rn := range repos.Content {
		if repoURL != "" && scalar(rn, "repo") != repoURL {
			continue
		}
		hooks := yamlrt.MapGet(rn, "hooks")
		if hooks == nil {
			continue
		}
		for hi, hn := range hooks.Content {
			if scalar(hn, "id") != hookID {
				continue
			}
			if len(hooks.Content) <= 1 {
				repos.Content = slices.Delete(repos.Content, ri, ri+1)
			} else {
				hooks.Content = slices.Delete(hooks.Content, hi, hi+1)
			}
			p.AppendToChangelog(fmt.Sprintf("Removed '%s' hook", hookID))
			return
		}
	}
}

func scalar(n *yaml.Node, key string) string {
	if v := yamlrt.MapGet(n, key); v != nil {
		return v.Value
	}
	return ""
}

var equivalentRepo = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmpopts.IgnoreFields(Repo{}, "Rev"),
}

// UpdateSingleHookRepo inserts or replaces the repo that defines the single
// hook of expected. An existing rev is kept.
func (p *Precommit) UpdateSingleHookRepo(expected Repo) error {
	if len(expected.Hooks) == 0 {
		return fmt.Errorf("repo %s defines no hooks", expected.Repo)
	}
	hookID := expected.Hooks[0].ID
	repos := p.repoNodes()
	idx, existing, found := p.FindRepoWithIndex(regexp.QuoteMeta(expected.Repo))
	if !found {
		if expected.Rev == "" {
			expected.Rev = "PLEASE-UPDATE"
		}
		node, err := yamlrt.FromValue(expected)
		if err != nil {
			return err
		}
		pos := p.expectedRepoIndex(hookID)
		repos.Content = slices.Insert(repos.Content, pos, node)
		p.AppendToChangelog(fmt.Sprintf("Added %s hook to %s.", hookID, project.Precommit))
		p.autoupdate = append(p.autoupdate, expected.Repo)
		return nil
	}
	if cmp.Equal(existing, expected, equivalentRepo...) {
		return nil
	}
	expected.Rev = existing.Rev
	node, err := yamlrt.FromValue(expected)
	if err != nil {
		return err
	}
	node.HeadComment = repos.Content[idx].HeadComment
	repos.Content[idx] = node
	p.AppendToChangelog(fmt.Sprintf("Updated %s hook", hookID))
	return nil
}

func (p *Precommit) expectedRepoIndex(hookID string) int {
	repos := p.Repos()
	for i, r := range repos {
		if len(r.Hooks) != 1 {
			continue
		}
		if strings.ToLower(hookID) <= strings.ToLower(r.Hooks[0].ID) {
			return i
		}
	}
	return len(repos)
}

// UpdateHook upserts one hook inside the existing repo matching repoURL.
func (p *Precommit) UpdateHook(repoURL string, expected Hook) error {
	idx, repo, found := p.FindRepoWithIndex(repoURL)
	if !found {
		return nil
	}
	repoNode := p.repoNodes().Content[idx]
	hooks := yamlrt.MapGet(repoNode, "hooks")
	if hooks == nil {
		hooks = yamlrt.NewSeq()
		yamlrt.MapSet(repoNode, "hooks", hooks)
	}
	node, err := yamlrt.FromValue(expected)
	if err != nil {
		return err
	}
	hookIdx := slices.IndexFunc(repo.Hooks, func(h Hook) bool { return h.ID == expected.ID })
	if hookIdx < 0 {
		pos := len(repo.Hooks)
		for i, h := range repo.Hooks {
			if h.ID > expected.ID {
				pos = i
				break
			}
		}
		hooks.Content = slices.Insert(hooks.Content, pos, node)
		p.AppendToChangelog(fmt.Sprintf("Added '%s' to %s pre-commit config", expected.ID, repo.RepoName()))
		return nil
	}
	if cmp.Equal(repo.Hooks[hookIdx], expected, cmpopts.EquateEmpty()) {
		return nil
	}
	hooks.Content[hookIdx] = node
	p.AppendToChangelog(fmt.Sprintf("Updated args of '%s' %s pre-commit hook", expected.ID, repo.RepoName()))
	return nil
}

// SortRepos orders meta first, then multi-hook repos by URL, then
// single-hook repos by hook id. It reports whether the order changed.
func (p *Precommit) SortRepos() bool {
	repos := p.repoNodes()
	before := slices.Clone(repos.Content)
	sort.SliceStable(repos.Content, func(i, j int) bool {
		ri, ki := sortKey(decodeRepo(repos.Content[i]))
		rj, kj := sortKey(decodeRepo(repos.Content[j]))
		if ri != rj {
			return ri < rj
		}
		return ki < kj
	})
	return !slices.Equal(before, repos.Content)
}

func sortKey(r Repo) (int, string) {
	switch {
	case r.Repo == "meta":
		return 0, "meta"
	case len(r.Hooks) > 1:
		return 1, r.Repo
	case len(r.Hooks) == 1:
		return 2, r.Hooks[0].ID
	default:
		return 2, ""
	}
}

// CI returns the ci mapping node, or nil.
func (p *Precommit) CI() *yaml.Node {
	return yamlrt.MapGet(p.root(), "ci")
}

// SetCI sets ci.<key>, creating the ci section as the first key when
// missing. It reports whether the value changed.
func (p *Precommit) SetCI(key string, value any) (bool, error) {
	node, err := toNode(value)
	if err != nil {
		return false, err
	}
	ci := p.CI()
	if ci == nil {
		ci = yamlrt.NewMap()
		root := p.root()
		root.Content = append([]*yaml.Node{yamlrt.NewString("ci"), ci}, root.Content...)
	}
	if existing := yamlrt.MapGet(ci, key); existing != nil && yamlrt.Equal(existing, node) {
		return false, nil
	}
	yamlrt.MapSet(ci, key, node)
	return true, nil
}

// DeleteCI removes ci.<key> and reports whether it existed.
func (p *Precommit) DeleteCI(key string) bool {
	return yamlrt.MapDelete(p.CI(), key)
}

func toNode(value any) (*yaml.Node, error) {
	if n, ok := value.(*yaml.Node); ok {
		return n, nil
	}
	return yamlrt.FromValue(value)
}

// SetRepoURL rewrites the URL of the repo at idx.
func (p *Precommit) SetRepoURL(idx int, url string) {
	repos := p.repoNodes()
	if idx < 0 || idx >= len(repos.Content) {
		return
	}
	yamlrt.MapSet(repos.Content[idx], "repo", yamlrt.NewString(url))
}

// AppendToChangelog records a modification.
func (p *Precommit) AppendToChangelog(msg string) {
	p.changelog = append(p.changelog, msg)
}

// Changelog returns the recorded modifications.
func (p *Precommit) Changelog() []string {
	return slices.Clone(p.changelog)
}

// Dumps renders the config in prettier layout.
func (p *Precommit) Dumps() ([]byte, error) {
	return yamlrt.Dump(p.doc, Spacing)
}

// Finalize writes the config when anything changed, runs autoupdate for
// added repos and reports the changelog.
func (p *Precommit) Finalize(ctx context.Context) error {
	if len(p.changelog) == 0 {
		return nil
	}
	msg := "The following modifications were made"
	if p.source != "" {
		data, err := p.Dumps()
		if err != nil {
			return fmt.Errorf("render %s: %w", p.source, err)
		}
		if err := safeio.WriteFilePreservePerms(p.source, data); err != nil {
			return fmt.Errorf("write %s: %w", p.source, err)
		}
		msg += " to " + p.source
		if p.Autoupdater != nil {
			for _, url := range p.autoupdate {
				if err := p.Autoupdater(ctx, url); err != nil {
					logger.Warn("pre-commit autoupdate failed", logger.String("repo", url), logger.Err(err))
				}
			}
		}
	}
	msg += ":\n  - " + strings.Join(p.changelog, "\n  - ")
	return executor.NewPrecommitError(msg)
}

// DefaultAutoupdate runs `pre-commit autoupdate --repo URL` when pre-commit
// is installed and the machine is online.
func DefaultAutoupdate(ctx context.Context, repoURL string) error {
	if os.Getenv(NoAutoupdateEnv) != "" {
		return nil
	}
	if _, err := exec.LookPath("pre-commit"); err != nil {
		logger.Debug("pre-commit not installed, skipping autoupdate")
		return nil
	}
	if !online(ctx) {
		logger.Debug("offline, skipping autoupdate", logger.String("repo", repoURL))
		return nil
	}
	cmd := exec.CommandContext(ctx, "pre-commit", "autoupdate", "--repo", repoURL) // #nosec G204 -- fixed binary, URL from config
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pre-commit autoupdate --repo %s: %w: %s", repoURL, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func online(ctx context.Context) bool {
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", "8.8.8.8:53")
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
