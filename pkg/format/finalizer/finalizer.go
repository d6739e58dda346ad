/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package finalizer

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// NormalizeEOF normalizes trailing whitespace and the end-of-file newline of
// the given content. Binary input is returned untouched.
func NormalizeEOF(input []byte, ensure bool, collapse bool, trimTrailingSpaces bool, lineEnding string) (out []byte, changed bool, err error) {
	if len(input) == 0 || !IsTextFile(input) {
		return input, false, nil
	}

	content := string(input)
	if lineEnding == "" {
		lineEnding = detectLineEnding(content)
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if trimTrailingSpaces {
		for i, line := range lines {
			lines[i] = strings.TrimRight(line, " \t")
		}
	}
	result := strings.Join(lines, lineEnding)

	if ensure {
		result = ensureSingleTrailingNewline(result, lineEnding)
	} else if collapse {
		result = collapseTrailingNewlines(result, lineEnding)
	}

	return []byte(result), result != content, nil
}

// CollapseBlankLines limits runs of empty lines to maxBlank.
func CollapseBlankLines(input []byte, maxBlank int) (out []byte, changed bool) {
	lines := strings.Split(string(input), "\n")
	kept := make([]string, 0, len(lines))
	blank := 0
	for i, line := range lines {
		if line == "" && i != len(lines)-1 {
			blank++
			if blank > maxBlank {
				continue
			}
		} else {
			blank = 0
		}
		kept = append(kept, line)
	}
	result := strings.Join(kept, "\n")
	return []byte(result), result != string(input)
}

// ExpandTabs replaces every tab with width spaces.
func ExpandTabs(input []byte, width int) (out []byte, changed bool) {
	if !bytes.Contains(input, []byte{'\t'}) {
		return input, false
	}
	return bytes.ReplaceAll(input, []byte{'\t'}, bytes.Repeat([]byte{' '}, width)), true
}

// RemoveUTF8BOM removes UTF-8 Byte Order Mark if present
func RemoveUTF8BOM(input []byte) (out []byte, changed bool) {
	if bytes.HasPrefix(input, []byte{0xEF, 0xBB, 0xBF}) {
		return input[3:], true
	}
	return input, false
}

func detectLineEnding(content string) string {
	lfCount := strings.Count(content, "\n") - strings.Count(content, "\r\n")
	crlfCount := strings.Count(content, "\r\n")
	if crlfCount > lfCount {
		return "\r\n"
	}
	return "\n"
}

func ensureSingleTrailingNewline(content, lineEnding string) string {
	return strings.TrimRight(content, " \t\r\n") + lineEnding
}

func collapseTrailingNewlines(content, lineEnding string) string {
	trimmed := strings.TrimRight(content, "\r\n")
	if len(trimmed) < len(content) {
		return trimmed + lineEnding
	}
	return content
}

// IsTextFile performs a heuristic check to determine if content is likely text
func IsTextFile(content []byte) bool {
	if len(content) == 0 {
		return true
	}
	if bytes.Contains(content, []byte{0}) {
		return false
	}
	rest, _ := RemoveUTF8BOM(content)
	return utf8.Valid(rest)
}
