package pyproject

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// PythonVersion is a minor Python release such as "3.12".
type PythonVersion = string

// KnownPythonVersions lists the releases version specifiers are evaluated over.
var KnownPythonVersions = []PythonVersion{"3.6", "3.7", "3.8", "3.9", "3.10", "3.11", "3.12", "3.13"}

var specifierRe = regexp.MustCompile(`^(===|~=|==|!=|<=|>=|<|>)\s*(\S+)$`)

// AllowedVersions evaluates a PEP 440 specifier set such as ">=3.9,<3.13"
// over KnownPythonVersions and drops the excluded versions.
func AllowedVersions(specifier string, exclude ...string) ([]PythonVersion, error) {
	clauses, err := parseSpecifier(specifier)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(exclude))
	for _, v := range exclude {
		excluded[v] = true
	}
	var out []PythonVersion
	for _, v := range KnownPythonVersions {
		if excluded[v] {
			continue
		}
		ok := true
		for _, c := range clauses {
			if !c.allows(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type clause struct {
	op      string
	version string
}

func parseSpecifier(specifier string) ([]clause, error) {
	var clauses []clause
	for _, part := range strings.Split(specifier, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := specifierRe.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("invalid version specifier %q", part)
		}
		c := clause{op: m[1], version: m[2]}
		if strings.HasSuffix(c.version, ".*") && c.op != "==" && c.op != "!=" {
			return nil, fmt.Errorf("wildcard not allowed with %s in %q", c.op, part)
		}
		if !strings.HasSuffix(c.version, ".*") && c.op != "===" && !semver.IsValid(toSemver(c.version)) {
			return nil, fmt.Errorf("invalid version in specifier %q", part)
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func (c clause) allows(v PythonVersion) bool {
	cmp := func() int { return semver.Compare(toSemver(v), toSemver(c.version)) }
	switch c.op {
	case "===":
		return v == c.version
	case "==":
		if prefix, ok := strings.CutSuffix(c.version, ".*"); ok {
			return prefixMatch(v, prefix)
		}
		return cmp() == 0
	case "!=":
		if prefix, ok := strings.CutSuffix(c.version, ".*"); ok {
			return !prefixMatch(v, prefix)
		}
		return cmp() != 0
	case ">=":
		return cmp() >= 0
	case ">":
		return cmp() > 0
	case "<=":
		return cmp() <= 0
	case "<":
		return cmp() < 0
	case "~=":
		segments := strings.Split(c.version, ".")
		if len(segments) < 2 {
			return false
		}
		return cmp() >= 0 && prefixMatch(v, strings.Join(segments[:len(segments)-1], "."))
	}
	return false
}

// prefixMatch compares v against prefix segment by segment, padding v with
// zeros as PEP 440 does for "==3.12.*".
func prefixMatch(v, prefix string) bool {
	vs := strings.Split(v, ".")
	ps := strings.Split(prefix, ".")
	for i, p := range ps {
		seg := "0"
		if i < len(vs) {
			seg = vs[i]
		}
		if strings.TrimLeft(seg, "0") != strings.TrimLeft(p, "0") {
			return false
		}
	}
	return true
}

func toSemver(v string) string {
	return "v" + strings.TrimPrefix(v, "v")
}

// SortVersions orders versions numerically in place.
func SortVersions(versions []PythonVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		return semver.Compare(toSemver(versions[i]), toSemver(versions[j])) < 0
	})
}
