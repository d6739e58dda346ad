// Package match filters repository files with git wild-match patterns.
package match

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/fulmenhq/repopolicy/internal/gitctx"
	"github.com/fulmenhq/repopolicy/pkg/logger"
)

// RepoFiles lists the tracked and untracked, non-ignored files of the
// working directory. Overridable in tests.
var RepoFiles = func() []string {
	files, err := gitctx.ListFiles(context.Background(), ".", true)
	if err != nil {
		logger.Debug("could not list repository files", logger.Err(err))
		return nil
	}
	return files
}

func resolve(files []string) []string {
	if files == nil {
		return RepoFiles()
	}
	return files
}

// FilterFiles returns the files that match any of patterns. A nil files
// slice means all repository files.
func FilterFiles(patterns, files []string) []string {
	m := newMatcher(patterns)
	var out []string
	for _, f := range resolve(files) {
		if m.Match(split(f), false) {
			out = append(out, f)
		}
	}
	return out
}

// FilterPatterns returns the patterns that match at least one file.
func FilterPatterns(patterns, files []string) []string {
	files = resolve(files)
	var out []string
	for _, p := range patterns {
		if MatchesFiles(p, files) {
			out = append(out, p)
		}
	}
	return out
}

// MatchesFiles reports whether pattern matches any of files.
func MatchesFiles(pattern string, files []string) bool {
	m := newMatcher([]string{pattern})
	for _, f := range resolve(files) {
		if m.Match(split(f), false) {
			return true
		}
	}
	return false
}

// MatchesPatterns reports whether file matches the pattern list, with later
// negated patterns taking precedence as in .gitignore.
func MatchesPatterns(file string, patterns []string) bool {
	return newMatcher(patterns).Match(split(file), false)
}

// Glob returns the files matching a doublestar glob such as "docs/**/*.ipynb".
func Glob(pattern string, files []string) []string {
	var out []string
	for _, f := range resolve(files) {
		if ok, err := doublestar.Match(pattern, f); err == nil && ok {
			out = append(out, f)
		}
	}
	return out
}

func newMatcher(patterns []string) gitignore.Matcher {
	ps := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(ps)
}

func split(file string) []string {
	return strings.Split(strings.TrimPrefix(file, "./"), "/")
}
