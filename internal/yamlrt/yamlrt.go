// Package yamlrt reads and writes YAML documents through the yaml.v3 node
// tree so comments and key order survive a load/dump cycle. Output follows
// prettier conventions: two-space indentation with indented sequences.
package yamlrt

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Spacing describes where Dump inserts blank lines.
type Spacing struct {
	// TopLevel separates top-level keys by one blank line.
	TopLevel bool
	// SequenceKeys names top-level keys whose sequence items are separated,
	// such as "repos" in a pre-commit config.
	SequenceKeys []string
	// MappingKeys names top-level keys whose child keys are separated, such
	// as "jobs" in a workflow.
	MappingKeys []string
}

// Parse decodes src into a document node. Empty input yields a document
// holding an empty mapping.
func Parse(src []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{NewMap()}}
	}
	return &doc, nil
}

// Load parses the YAML file at path.
func Load(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- repository config location
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Root returns the top-level content node of a document.
func Root(doc *yaml.Node) *yaml.Node {
	if doc != nil && doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

// Dump encodes a node with two-space indentation and the given spacing.
func Dump(node *yaml.Node, sp Spacing) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return applySpacing(buf.Bytes(), sp), nil
}

// Write dumps node to path.
func Write(path string, node *yaml.Node, sp Spacing) error {
	data, err := Dump(node, sp)
	if err != nil {
		return err
	}
	return safeio.WriteFilePreservePerms(path, data)
}

func applySpacing(out []byte, sp Spacing) []byte {
	if !sp.TopLevel && len(sp.SequenceKeys) == 0 && len(sp.MappingKeys) == 0 {
		return out
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	res := make([]string, 0, len(lines)+8)
	section := ""
	seenTop, seenChild := false, false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			res = append(res, line)
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " "))
		separate := false
		switch {
		case indent == 0 && !strings.HasPrefix(trimmed, "-"):
			separate = sp.TopLevel && seenTop
			seenTop, seenChild = true, false
			section, _, _ = strings.Cut(trimmed, ":")
		case indent == 2:
			isItem := trimmed == "-" || strings.HasPrefix(trimmed, "- ")
			if (isItem && slices.Contains(sp.SequenceKeys, section)) ||
				(!isItem && slices.Contains(sp.MappingKeys, section)) {
				separate = seenChild
				seenChild = true
			}
		}
		if separate {
			res = insertBlank(res)
		}
		res = append(res, line)
	}
	return []byte(strings.Join(res, "\n") + "\n")
}

// insertBlank adds an empty line above the trailing comment block of res.
func insertBlank(res []string) []string {
	i := len(res)
	for i > 0 && strings.HasPrefix(strings.TrimSpace(res[i-1]), "#") {
		i--
	}
	if i == 0 || strings.TrimSpace(res[i-1]) == "" {
		return res
	}
	return slices.Insert(res, i, "")
}

// NewMap returns an empty block mapping node.
func NewMap() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// NewSeq returns a block sequence of the given nodes.
func NewSeq(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

// NewString returns a plain string scalar. Values that cannot be written
// plain are double-quoted.
func NewString(s string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	preferDoubleQuotes(n)
	return n
}

// NewQuoted returns a double-quoted string scalar.
func NewQuoted(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s, Style: yaml.DoubleQuotedStyle}
}

// NewLiteral returns a literal block scalar.
func NewLiteral(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s, Style: yaml.LiteralStyle}
}

// NewStrings returns a sequence of plain strings.
func NewStrings(items ...string) *yaml.Node {
	seq := NewSeq()
	for _, s := range items {
		seq.Content = append(seq.Content, NewString(s))
	}
	return seq
}

// FromValue encodes an arbitrary Go value into a node. Strings that need
// quoting are double-quoted, the way prettier writes them.
func FromValue(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	preferDoubleQuotes(&n)
	return &n, nil
}

func preferDoubleQuotes(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		switch n.Style {
		case yaml.SingleQuotedStyle:
			n.Style = yaml.DoubleQuotedStyle
		case 0:
			if out, err := yaml.Marshal(n.Value); err == nil && len(out) > 0 && out[0] == '\'' {
				n.Style = yaml.DoubleQuotedStyle
			}
		}
	}
	for _, c := range n.Content {
		preferDoubleQuotes(c)
	}
}

// MustFromValue is FromValue for values known to encode.
func MustFromValue(v any) *yaml.Node {
	n, err := FromValue(v)
	if err != nil {
		panic(err)
	}
	return n
}

// Decode converts a node to plain Go values.
func Decode(n *yaml.Node) any {
	if n == nil {
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil
	}
	return v
}

// Equal compares two nodes by their decoded values, ignoring style and comments.
func Equal(a, b *yaml.Node) bool {
	return cmp.Equal(Decode(a), Decode(b))
}

// Clone deep-copies a node tree.
func Clone(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = Clone(child)
		}
	}
	return &c
}

// MapIndex returns the position of key's value in m.Content, or -1.
func MapIndex(m *yaml.Node, key string) int {
	if m == nil || m.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i + 1
		}
	}
	return -1
}

// MapGet returns the value node of key, or nil.
func MapGet(m *yaml.Node, key string) *yaml.Node {
	if i := MapIndex(m, key); i >= 0 {
		return m.Content[i]
	}
	return nil
}

// Lookup descends nested mappings along keys.
func Lookup(m *yaml.Node, keys ...string) *yaml.Node {
	cur := m
	for _, k := range keys {
		cur = MapGet(cur, k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// MapSet replaces the value of key, or appends the pair when absent.
func MapSet(m *yaml.Node, key string, value *yaml.Node) {
	if i := MapIndex(m, key); i >= 0 {
		m.Content[i] = value
		return
	}
	m.Content = append(m.Content, NewString(key), value)
}

// MapEnsure returns the mapping under key, creating it when needed.
func MapEnsure(m *yaml.Node, key string) *yaml.Node {
	if v := MapGet(m, key); v != nil && v.Kind == yaml.MappingNode {
		return v
	}
	v := NewMap()
	MapSet(m, key, v)
	return v
}

// MapDelete removes key and reports whether it was present.
func MapDelete(m *yaml.Node, key string) bool {
	i := MapIndex(m, key)
	if i < 0 {
		return false
	}
	m.Content = slices.Delete(m.Content, i-1, i+1)
	return true
}

// MapKeys lists the keys of a mapping in document order.
func MapKeys(m *yaml.Node) []string {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	return keys
}

// Strings returns the scalar values of a sequence node.
func Strings(seq *yaml.Node) []string {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(seq.Content))
	for _, n := range seq.Content {
		out = append(out, n.Value)
	}
	return out
}
