// Package vscode edits .vscode/settings.json and .vscode/extensions.json.
// Files are written with keys sorted case-insensitively, the order VS Code
// itself uses when sorting a JSON document.
package vscode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/cases"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

var fold = cases.Fold()

// UpdateSettings merges settings into settings.json. Nested objects merge,
// arrays become the sorted union and other values are replaced.
func UpdateSettings(settings map[string]any) error {
	old, err := load(project.VSCodeSettings)
	if err != nil {
		return err
	}
	return writeIfChanged(old, mergeMaps(old, normalize(settings).(map[string]any)))
}

// RemoveSettings drops keys from settings.json. keys is a []string of
// top-level keys, or a map from a key to the keys to remove beneath it.
func RemoveSettings(keys any) error {
	if !safeio.Exists(project.VSCodeSettings) {
		return nil
	}
	old, err := load(project.VSCodeSettings)
	if err != nil {
		return err
	}
	updated, ok := removeKeys(old, keys).(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected settings structure")
	}
	return writeIfChanged(old, updated)
}

func writeIfChanged(old, updated map[string]any) error {
	if cmp.Equal(old, updated) {
		return nil
	}
	if err := dump(updated, project.VSCodeSettings); err != nil {
		return err
	}
	return executor.NewPrecommitError("Updated VS Code settings")
}

func mergeMaps(old, new map[string]any) map[string]any {
	merged := make(map[string]any, len(old)+len(new))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range new {
		if existing, ok := merged[k]; ok {
			merged[k] = mergeValue(existing, v)
		} else {
			merged[k] = v
		}
	}
	return merged
}

func mergeValue(old, new any) any {
	switch n := new.(type) {
	case map[string]any:
		if o, ok := old.(map[string]any); ok {
			return mergeMaps(o, n)
		}
	case []any:
		if o, ok := old.([]any); ok {
			return union(o, n)
		}
	}
	return new
}

func union(a, b []any) []any {
	seen := map[string]bool{}
	var out []any
	for _, item := range append(append([]any{}, a...), b...) {
		key := fmt.Sprint(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return fmt.Sprint(out[i]) < fmt.Sprint(out[j]) })
	return out
}

func removeKeys(obj any, keys any) any {
	m, ok := obj.(map[string]any)
	if !ok || keys == nil {
		return obj
	}
	switch k := keys.(type) {
	case []string:
		drop := make(map[string]bool, len(k))
		for _, key := range k {
			drop[key] = true
		}
		out := make(map[string]any, len(m))
		for key, v := range m {
			if !drop[key] {
				out[key] = v
			}
		}
		return out
	case map[string][]string:
		nested := make(map[string]any, len(k))
		for key, sub := range k {
			nested[key] = sub
		}
		return removeKeys(obj, nested)
	case map[string]any:
		out := make(map[string]any, len(m))
		for key, v := range m {
			out[key] = removeKeys(v, k[key])
		}
		return out
	}
	return obj
}

// AddExtensionRecommendation lists name under recommendations.
func AddExtensionRecommendation(name string) error {
	return addExtension(name, "recommendations")
}

// AddUnwantedExtension lists name under unwantedRecommendations.
func AddUnwantedExtension(name string) error {
	return addExtension(name, "unwantedRecommendations")
}

func addExtension(name, key string) error {
	config, err := load(project.VSCodeExtensions)
	if err != nil {
		return err
	}
	name = strings.ToLower(name)
	existing := lower(config[key])
	for _, e := range existing {
		if e == name {
			return nil
		}
	}
	existing = append(existing, name)
	sort.Strings(existing)
	config[key] = toAny(existing)
	if err := dump(config, project.VSCodeExtensions); err != nil {
		return err
	}
	return executor.Errorf(`Added VS Code extension recommendation "%s"`, name)
}

// RemoveExtensionRecommendation drops name from recommendations and, when
// unwanted is set, lists it as unwanted.
func RemoveExtensionRecommendation(name string, unwanted bool) error {
	ex := executor.New()
	if err := ex.Do(func() error { return removeRecommendation(name) }); err != nil {
		return err
	}
	if unwanted {
		if err := ex.Do(func() error { return AddUnwantedExtension(name) }); err != nil {
			return err
		}
	}
	return ex.Finalize()
}

func removeRecommendation(name string) error {
	if !safeio.Exists(project.VSCodeExtensions) {
		return nil
	}
	config, err := load(project.VSCodeExtensions)
	if err != nil {
		return err
	}
	name = strings.ToLower(name)
	existing := lower(config["recommendations"])
	kept := existing[:0:0]
	for _, e := range existing {
		if e != name {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(existing) {
		return nil
	}
	sort.Strings(kept)
	config["recommendations"] = toAny(kept)
	if err := dump(config, project.VSCodeExtensions); err != nil {
		return err
	}
	return executor.Errorf(`Removed VS Code extension recommendation "%s"`, name)
}

// GetUnwantedExtensions lists the lower-cased unwanted recommendations.
func GetUnwantedExtensions() ([]string, error) {
	return listExtensions("unwantedRecommendations")
}

// GetRecommendations lists the lower-cased recommendations.
func GetRecommendations() ([]string, error) {
	return listExtensions("recommendations")
}

func listExtensions(key string) ([]string, error) {
	if !safeio.Exists(project.VSCodeExtensions) {
		return nil, nil
	}
	config, err := load(project.VSCodeExtensions)
	if err != nil {
		return nil, err
	}
	return lower(config[key]), nil
}

// LoadSettings returns the decoded settings.json, or an empty map.
func LoadSettings() (map[string]any, error) {
	return load(project.VSCodeSettings)
}

func load(path string) (map[string]any, error) {
	data, ok, err := safeio.ReadIfExists(path)
	if err != nil {
		return nil, err
	}
	if !ok || len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if config == nil {
		config = map[string]any{}
	}
	return config, nil
}

func dump(config map[string]any, path string) error {
	var buf bytes.Buffer
	if err := writeSorted(&buf, config, ""); err != nil {
		return err
	}
	buf.WriteByte('\n')
	return safeio.WriteFilePreservePerms(path, buf.Bytes())
}

// Marshal renders v with two-space indentation, object keys and arrays
// sorted case-insensitively.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeSorted(&buf, normalize(v), ""); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeSorted(buf *bytes.Buffer, v any, indent string) error {
	inner := indent + "  "
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 0 {
			buf.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sortFolded(keys, func(i int) string { return keys[i] })
		buf.WriteString("{\n")
		for i, k := range keys {
			buf.WriteString(inner)
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := writeSorted(buf, x[k], inner); err != nil {
				return err
			}
			if i < len(keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent + "}")
	case []any:
		if len(x) == 0 {
			buf.WriteString("[]")
			return nil
		}
		items := append([]any(nil), x...)
		sortFolded(items, func(i int) string { return fmt.Sprint(items[i]) })
		buf.WriteString("[\n")
		for i, item := range items {
			buf.WriteString(inner)
			if err := writeSorted(buf, item, inner); err != nil {
				return err
			}
			if i < len(items)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent + "]")
	default:
		return writeScalar(buf, v)
	}
	return nil
}

func sortFolded[T any](items []T, key func(int) string) {
	folded := make([]string, len(items))
	raw := make([]string, len(items))
	for i := range items {
		raw[i] = key(i)
		folded[i] = fold.String(raw[i])
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if folded[idx[a]] != folded[idx[b]] {
			return folded[idx[a]] < folded[idx[b]]
		}
		return raw[idx[a]] < raw[idx[b]]
	})
	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func writeScalar(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// normalize turns Go literals into the shapes encoding/json decodes.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalize(item)
		}
		return out
	case []string:
		return toAny(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalize(item)
		}
		return out
	case int:
		return float64(x)
	default:
		return v
	}
}

func lower(v any) []string {
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
