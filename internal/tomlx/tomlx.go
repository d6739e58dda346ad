// Package tomlx navigates and edits decoded TOML documents addressed by
// dotted table headers such as "tool.ruff.lint".
package tomlx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Table is a decoded TOML table.
type Table = map[string]any

// Parse decodes TOML source. Empty input yields an empty table.
func Parse(src []byte) (Table, error) {
	doc := Table{}
	if err := toml.Unmarshal(src, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Marshal renders a document that has no source text yet.
func Marshal(doc Table) ([]byte, error) { return Patch(nil, doc) }

// GetSubTable descends dotted headers.
func GetSubTable(doc Table, dotted string) (Table, error) {
	cur := doc
	for _, header := range strings.Split(dotted, ".") {
		next, ok := cur[header].(Table)
		if !ok {
			return nil, fmt.Errorf("TOML data does not contain '%s'", dotted)
		}
		cur = next
	}
	return cur, nil
}

// HasSubTable reports whether every header of dotted exists.
func HasSubTable(doc Table, dotted string) bool {
	var cur any = doc
	for _, header := range strings.Split(dotted, ".") {
		t, ok := cur.(Table)
		if !ok {
			return false
		}
		if cur, ok = t[header]; !ok {
			return false
		}
	}
	return true
}

// CreateSubTable returns the table at dotted, creating missing headers.
func CreateSubTable(doc Table, dotted string) Table {
	cur := doc
	for _, header := range strings.Split(dotted, ".") {
		next, ok := cur[header].(Table)
		if !ok {
			next = Table{}
			cur[header] = next
		}
		cur = next
	}
	return cur
}

// DeleteSubTable removes the last header of dotted from its parent and
// reports whether it existed.
func DeleteSubTable(doc Table, dotted string) bool {
	parent := doc
	headers := strings.Split(dotted, ".")
	if len(headers) > 1 {
		p, err := GetSubTable(doc, strings.Join(headers[:len(headers)-1], "."))
		if err != nil {
			return false
		}
		parent = p
	}
	last := headers[len(headers)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// ToArray builds a TOML array value.
func ToArray[T any](items ...T) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, Normalize(item))
	}
	return out
}

// Strings converts an array value into strings, skipping other types.
func Strings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return append([]string(nil), ss...)
		}
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SortedKeys lists the keys of a table alphabetically.
func SortedKeys(t Table) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize converts Go literals into the shapes go-toml decodes, so a value
// built in code compares equal to the same value read from a file.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Normalize(item)
		}
		return out
	case map[string]string:
		out := make(Table, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	case Table:
		out := make(Table, len(x))
		for k, item := range x {
			out[k] = Normalize(item)
		}
		return out
	default:
		return v
	}
}
