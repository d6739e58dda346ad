package project

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/fulmenhq/repopolicy/internal/executor"
	"github.com/fulmenhq/repopolicy/pkg/safeio"
)

// RemoveConfigs deletes every existing path, files or directories alike,
// and reports one message per removal.
func RemoveConfigs(paths ...string) error {
	ex := executor.New()
	for _, path := range paths {
		path := path
		if err := ex.Do(func() error { return removeConfig(path) }); err != nil {
			return err
		}
	}
	return ex.Finalize()
}

func removeConfig(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return executor.Errorf("Removed %s", path)
}

// RenameFile moves old to new when old exists.
func RenameFile(oldPath, newPath string) error {
	if !safeio.Exists(oldPath) {
		return nil
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	return executor.Errorf("File %s has been renamed to %s", oldPath, newPath)
}

// RemoveLines drops every line of file whose stripped content matches
// pattern from its start, case-insensitively. A file left without
// non-blank lines is deleted.
func RemoveLines(file, pattern string) error {
	data, ok, err := safeio.ReadIfExists(file)
	if err != nil || !ok {
		return err
	}
	re, err := regexp.Compile(`(?i)^(?:` + pattern + `)`)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if re.MatchString(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == len(nonEmpty(lines)) {
		return nil
	}
	if strings.TrimSpace(strings.Join(kept, "")) == "" {
		if err := os.Remove(file); err != nil {
			return err
		}
		return executor.Errorf("Removed '%s' from %s and removed file because it was empty.", pattern, file)
	}
	if err := safeio.WriteFilePreservePerms(file, []byte(strings.Join(kept, ""))); err != nil {
		return err
	}
	return executor.Errorf("Removed '%s' from %s", pattern, file)
}

func nonEmpty(items []string) []string {
	out := items[:0:0]
	for _, s := range items {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// UpdateFile makes rel hold exactly expected.
func UpdateFile(rel string, expected []byte) error {
	existing, ok, err := safeio.ReadIfExists(rel)
	if err != nil {
		return err
	}
	if ok && bytes.Equal(existing, expected) {
		return nil
	}
	if err := safeio.WriteFilePreservePerms(rel, expected); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if !ok {
		return executor.Errorf("%s is missing, so created a new one. Please commit it.", rel)
	}
	return executor.Errorf("%s has been updated.", rel)
}

// AppendSafe appends line to path unless an identical stripped line is
// already present. It reports whether the file changed.
func AppendSafe(line, path string) (bool, error) {
	if ContainsLine(path, line) {
		return false, nil
	}
	existing, _, err := safeio.ReadIfExists(path)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		existing = append(existing, '\n')
	}
	existing = append(existing, []byte(line+"\n")...)
	if err := safeio.WriteFilePreservePerms(path, existing); err != nil {
		return false, err
	}
	return true, nil
}

// ContainsLine reports whether path has a line equal to line after stripping.
func ContainsLine(path, line string) bool {
	data, ok, err := safeio.ReadIfExists(path)
	if err != nil || !ok {
		return false
	}
	want := strings.TrimSpace(line)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == want {
			return true
		}
	}
	return false
}

// HashFile returns the hex sha256 of a file.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- repository-relative config path
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes returns the hex sha256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NaturalLess orders strings with embedded numbers numerically, so "py39"
// sorts before "py310".
func NaturalLess(a, b string) bool {
	ca, cb := naturalChunks(a), naturalChunks(b)
	for i := 0; i < len(ca) && i < len(cb); i++ {
		x, y := ca[i], cb[i]
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil:
			if xn != yn {
				return xn < yn
			}
		case x != y:
			return x < y
		}
	}
	return len(ca) < len(cb)
}

func naturalChunks(s string) []string {
	var chunks []string
	var cur strings.Builder
	digit := false
	for i, r := range s {
		isDigit := unicode.IsDigit(r)
		if i > 0 && isDigit != digit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		digit = isDigit
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// NestedMap descends m along keys, creating empty maps where needed.
func NestedMap(m map[string]any, keys ...string) map[string]any {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	return cur
}
