// Package readme adds and removes badges in README.md.
package readme

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/internal/project"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// AddBadge inserts badge below the first Markdown heading unless a line
// with the same badge, ignoring <br> tags, already exists.
func AddBadge(badge string) error {
	data, ok, err := safeio.ReadIfExists(project.Readme)
	if err != nil {
		return err
	}
	if !ok {
		return executor.Errorf("This repository contains no %s, so cannot add badge", project.Readme)
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if stripBreaks(line) == badge {
			return nil
		}
	}
	msg := fmt.Sprintf("%s is missing a badge:\n  %s\n", project.Readme, badge)
	heading := slices.IndexFunc(lines, func(l string) bool { return strings.HasPrefix(l, "#") })
	if heading < 0 || heading >= contentEnd(lines)-1 {
		return executor.NewPrecommitError(msg + project.Readme + " contains no title, so cannot add badge")
	}
	insert := []string{"", badge}
	next := heading + 1
	if strings.TrimSpace(lines[next]) == "" {
		next++
	}
	lines = slices.Concat(lines[:heading+1], insert, lines[next:])
	if err := safeio.WriteFilePreservePerms(project.Readme, []byte(strings.Join(lines, "\n"))); err != nil {
		return err
	}
	return executor.NewPrecommitError(msg + "Problem has been fixed.")
}

// contentEnd is the number of lines ignoring the empty string after a
// trailing newline.
func contentEnd(lines []string) int {
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		return len(lines) - 1
	}
	return len(lines)
}

func stripBreaks(line string) string {
	s := strings.TrimSpace(line)
	for _, tag := range []string{"<br />", "<br/>", "<br>"} {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, tag), tag))
	}
	return s
}

// RemoveBadge deletes the first line that matches pattern from its start.
func RemoveBadge(pattern string) error {
	data, ok, err := safeio.ReadIfExists(project.Readme)
	if err != nil || !ok {
		return err
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return fmt.Errorf("invalid badge pattern: %w", err)
	}
	lines := strings.Split(string(data), "\n")
	idx := slices.IndexFunc(lines, re.MatchString)
	if idx < 0 {
		return nil
	}
	removed := lines[idx]
	lines = slices.Delete(lines, idx, idx+1)
	if err := safeio.WriteFilePreservePerms(project.Readme, []byte(strings.Join(lines, "\n"))); err != nil {
		return err
	}
	return executor.Errorf("A badge has been removed from %s:\n\n  %s", project.Readme, removed)
}
