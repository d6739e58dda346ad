package gitctx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestParseLsFiles(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "README.md\x00", []string{"README.md"}},
		{"nested", "docs/conf.py\x00src/pkg/__init__.py\x00", []string{"docs/conf.py", "src/pkg/__init__.py"}},
		{"spaces", "my file.txt\x00", []string{"my file.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLsFiles([]byte(tt.input)); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseLsFiles() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestListFilesOutsideRepository(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\nbuild/\n")
	writeFile(t, root, "pyproject.toml", "")
	writeFile(t, root, "docs/index.ipynb", "{}")
	writeFile(t, root, "debug.log", "")
	writeFile(t, root, "build/lib/x.py", "")

	files, err := ListFiles(context.Background(), root, true)
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	expected := []string{".gitignore", "docs/index.ipynb", "pyproject.toml"}
	if !reflect.DeepEqual(files, expected) {
		t.Errorf("ListFiles() = %v, expected %v", files, expected)
	}
}

func TestListFilesCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ListFiles(ctx, root, true); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestRunGitBytesOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(t.TempDir()))
	if _, err := runGitBytes(context.Background(), t.TempDir(), "rev-parse", "HEAD"); err == nil {
		t.Error("expected git to fail outside a repository")
	}
}

// Integration test that requires git setup
func TestListFilesIntegration(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available, skipping integration test")
	}
	root := t.TempDir()
	gitCmd := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	gitCmd("init", "--quiet")
	writeFile(t, root, ".gitignore", "*.log\n")
	writeFile(t, root, "tracked.py", "")
	writeFile(t, root, "new.ipynb", "{}")
	writeFile(t, root, "ignored.log", "")
	gitCmd("add", ".gitignore", "tracked.py")

	ctx := context.Background()
	tracked, err := ListFiles(ctx, root, false)
	if err != nil {
		t.Fatalf("ListFiles(untracked=false) failed: %v", err)
	}
	if !reflect.DeepEqual(tracked, []string{".gitignore", "tracked.py"}) {
		t.Errorf("unexpected tracked files %v", tracked)
	}

	all, err := ListFiles(ctx, root, true)
	if err != nil {
		t.Fatalf("ListFiles(untracked=true) failed: %v", err)
	}
	if !reflect.DeepEqual(all, []string{".gitignore", "new.ipynb", "tracked.py"}) {
		t.Errorf("unexpected files %v", all)
	}

	cli, err := listCLI(ctx, root, true)
	if err != nil {
		t.Fatalf("listCLI() failed: %v", err)
	}
	if !reflect.DeepEqual(cli, all) {
		t.Errorf("CLI listing %v differs from go-git listing %v", cli, all)
	}
}

func TestListFilesFromSubdirectory(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available, skipping integration test")
	}
	root := t.TempDir()
	cmd := exec.Command("git", "init", "--quiet")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init failed: %v\n%s", err, out)
	}
	writeFile(t, root, "pyproject.toml", "")
	writeFile(t, root, "docs/conf.py", "")
	writeFile(t, root, "docs/api/index.md", "")

	files, err := ListFiles(context.Background(), filepath.Join(root, "docs"), true)
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	expected := []string{"api/index.md", "conf.py"}
	if !reflect.DeepEqual(files, expected) {
		t.Errorf("ListFiles() = %v, expected %v", files, expected)
	}
}

func TestWorktreePrefix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/api/x", "")
	for dir, expected := range map[string]string{
		root:                               "",
		filepath.Join(root, "docs"):        "docs/",
		filepath.Join(root, "docs", "api"): "docs/api/",
	} {
		got, err := worktreePrefix(root, dir)
		if err != nil {
			t.Fatalf("worktreePrefix(%s) failed: %v", dir, err)
		}
		if got != expected {
			t.Errorf("worktreePrefix(%s) = %q, expected %q", dir, got, expected)
		}
	}
}
