package safeio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanUserPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		hasError bool
	}{
		{"simple path", "pyproject.toml", "pyproject.toml", false},
		{"relative path", "./.vscode/settings.json", ".vscode/settings.json", false},
		{"traversal", "../../etc/passwd", "", true},
		{"traversal in middle", "docs/../../etc/passwd", "", true},
		{"empty", "", ".", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanUserPath(tt.input)
			if (err != nil) != tt.hasError {
				t.Fatalf("CleanUserPath(%q) error = %v, expected error %v", tt.input, err, tt.hasError)
			}
			if got != tt.expected {
				t.Errorf("CleanUserPath(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestReadFileContained(t *testing.T) {
	base := t.TempDir()
	inside := filepath.Join(base, "setup.cfg")
	if err := os.WriteFile(inside, []byte("[metadata]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if data, err := ReadFileContained(base, inside); err != nil || string(data) != "[metadata]\n" {
		t.Fatalf("ReadFileContained inside = (%q, %v)", data, err)
	}
	outside := filepath.Join(t.TempDir(), "other.cfg")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFileContained(base, outside); err == nil {
		t.Error("expected error for file outside base directory")
	}
}

func TestReadIfExists(t *testing.T) {
	dir := t.TempDir()
	data, ok, err := ReadIfExists(filepath.Join(dir, "missing.txt"))
	if err != nil || ok || data != nil {
		t.Fatalf("missing file: (%q, %v, %v)", data, ok, err)
	}
	path := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, ok, err = ReadIfExists(path)
	if err != nil || !ok || string(data) != "x" {
		t.Fatalf("present file: (%q, %v, %v)", data, ok, err)
	}
}

func TestWriteFilePreservePerms(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, ".binder", "postBuild")
	if err := WriteFileMode(script, []byte("#!/bin/bash\n"), 0o755); err != nil {
		t.Fatalf("WriteFileMode: %v", err)
	}
	if err := WriteFilePreservePerms(script, []byte("#!/bin/bash\nset -ex\n")); err != nil {
		t.Fatalf("WriteFilePreservePerms: %v", err)
	}
	st, err := os.Stat(script)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, expected 0755", st.Mode().Perm())
	}

	fresh := filepath.Join(dir, "new", "file.txt")
	if err := WriteFilePreservePerms(fresh, []byte("x")); err != nil {
		t.Fatalf("WriteFilePreservePerms new: %v", err)
	}
	if !Exists(fresh) || IsDir(fresh) || !IsDir(filepath.Dir(fresh)) {
		t.Error("expected file and parent directory to exist")
	}
}
