// Package cfg loads and formats INI style configuration files such as
// tox.ini, pytest.ini and .mypy.ini.
package cfg

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-ini/ini"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/pkg/format/finalizer"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// Rule is an additional text transformation applied after the base formatting.
type Rule func(string) string

var (
	inlineCommentRe   = regexp.MustCompile(`([^\s^\n])[^\S\r\n]+#\s*([^\s])`)
	constraintSpaceRe = regexp.MustCompile(`(>=?|<=?|==)\s+`)
	constraintGlueRe  = regexp.MustCompile(`([^\s])(>=?|<=?)`)
	constraintWideRe  = regexp.MustCompile(`([^\s])\s\s+(>=?|<=?)`)
)

// Format normalises whitespace: tabs become four spaces, inline comments get
// two spaces in front, trailing whitespace and runs of blank lines are
// dropped and the content ends with a single newline.
func Format(content string, rules ...Rule) string {
	data, _ := finalizer.ExpandTabs([]byte(content), 4)
	data = inlineCommentRe.ReplaceAll(data, []byte("${1}  # ${2}"))
	data, _, _ = finalizer.NormalizeEOF(data, true, false, true, "\n")
	data, _ = finalizer.CollapseBlankLines(data, 1)
	content = strings.TrimLeft(string(data), "\n")
	if strings.TrimSpace(content) == "" {
		content = "\n"
	}
	for _, rule := range rules {
		content = rule(content)
	}
	return content
}

// FormatVersionConstraints tightens "pkg >= 1.0" style requirement lines to
// "pkg >=1.0".
func FormatVersionConstraints(content string) string {
	content = constraintSpaceRe.ReplaceAllString(content, "$1")
	content = constraintGlueRe.ReplaceAllString(content, "$1 $2")
	return constraintWideRe.ReplaceAllString(content, "$1 $2")
}

// FormatFile rewrites path in place and reports whether it changed.
func FormatFile(path string, rules ...Rule) (bool, error) {
	data, ok, err := safeio.ReadIfExists(path)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("config file %q does not exist", path)
	}
	formatted := Format(string(data), rules...)
	if formatted == string(data) {
		return false, nil
	}
	return true, safeio.WriteFilePreservePerms(path, []byte(formatted))
}

var loadOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	SpaceBeforeInlineComment:   true,
	IgnoreInlineComment:        false,
	KeyValueDelimiters:         "=:",
}

// Open parses an INI file. A missing file is reported as a PrecommitError.
func Open(path string) (*ini.File, error) {
	data, ok, err := safeio.ReadIfExists(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, executor.Errorf("Config file %q does not exist", path)
	}
	return Parse(data)
}

// Parse reads INI content.
func Parse(data []byte) (*ini.File, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("parse ini: %w", err)
	}
	return f, nil
}

// Sections returns the named sections of f, skipping the implicit default
// section when it holds no keys.
func Sections(f *ini.File) []string {
	var names []string
	for _, s := range f.Sections() {
		if s.Name() == ini.DefaultSection && len(s.Keys()) == 0 {
			continue
		}
		names = append(names, s.Name())
	}
	return names
}

// SectionMap returns the keys of a section as a map of raw string values.
func SectionMap(f *ini.File, name string) map[string]string {
	out := map[string]string{}
	s, err := f.GetSection(name)
	if err != nil {
		return out
	}
	for _, k := range s.Keys() {
		out[k.Name()] = k.Value()
	}
	return out
}

// Write serialises f to path and formats the result.
func Write(f *ini.File, path string) error {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("write ini: %w", err)
	}
	return safeio.WriteFilePreservePerms(path, []byte(Format(buf.String())))
}

// Values splits a multi-line or whitespace separated value into its items.
func Values(raw string) []string {
	return strings.Fields(raw)
}
