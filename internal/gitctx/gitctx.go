// Package gitctx lists the files of a repository the way `git ls-files`
// does, with a .gitignore-aware walk outside git.
package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"golang.org/x/sync/errgroup"
)

// ListFiles returns the slash-separated paths of files tracked in the
// repository rooted at dir. With untracked set, files that are not tracked
// but also not ignored are included. Outside a git repository every file
// that no .gitignore excludes is returned.
func ListFiles(ctx context.Context, dir string, untracked bool) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return walkFiles(ctx, dir)
	}
	if err == nil {
		var files []string
		if files, err = listGoGit(repo, dir, untracked); err == nil {
			return files, nil
		}
	}
	// go-git cannot read every repository layout (worktrees, sparse index);
	// the git CLI can.
	if _, lookErr := exec.LookPath("git"); lookErr != nil {
		return nil, fmt.Errorf("list files in %s: %w", dir, err)
	}
	return listCLI(ctx, dir, untracked)
}

// listGoGit returns the paths relative to dir, keeping only the files
// below it, as `git ls-files` does from a subdirectory.
func listGoGit(repo *git.Repository, dir string, untracked bool) ([]string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	prefix, err := worktreePrefix(wt.Filesystem.Root(), dir)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	add := func(path string) {
		path = filepath.ToSlash(path)
		if rel, ok := strings.CutPrefix(path, prefix); ok {
			set[rel] = struct{}{}
		}
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, err
	}
	for _, e := range idx.Entries {
		add(e.Name)
	}
	if untracked {
		status, err := wt.Status()
		if err != nil {
			return nil, err
		}
		for path, s := range status {
			if s.Worktree == git.Untracked {
				add(path)
			}
		}
	}
	return sortedKeys(set), nil
}

// worktreePrefix returns dir relative to the worktree root as a
// slash-terminated path, or "" at the root.
func worktreePrefix(root, dir string) (string, error) {
	resolve := func(p string) (string, error) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			return real, nil
		}
		return abs, nil
	}
	root, err := resolve(root)
	if err != nil {
		return "", err
	}
	dir, err = resolve(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel) + "/", nil
}

func listCLI(ctx context.Context, dir string, untracked bool) ([]string, error) {
	var tracked, others []byte
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tracked, err = runGitBytes(ctx, dir, "ls-files", "-z")
		return err
	})
	if untracked {
		g.Go(func() (err error) {
			others, err = runGitBytes(ctx, dir, "ls-files", "-z", "--others", "--exclude-standard")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, f := range parseLsFiles(tracked) {
		set[f] = struct{}{}
	}
	for _, f := range parseLsFiles(others) {
		set[f] = struct{}{}
	}
	return sortedKeys(set), nil
}

func walkFiles(ctx context.Context, dir string) ([]string, error) {
	patterns, err := gitignore.ReadPatterns(osfs.New(dir), nil)
	if err != nil {
		return nil, fmt.Errorf("read .gitignore patterns: %w", err)
	}
	matcher := gitignore.NewMatcher(patterns)
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if d.IsDir() {
			if d.Name() == ".git" || matcher.Match(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matcher.Match(parts, false) {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// parseLsFiles splits NUL-terminated `git ls-files -z` output.
func parseLsFiles(data []byte) []string {
	var files []string
	for _, item := range bytes.Split(data, []byte{0}) {
		if len(item) == 0 {
			continue
		}
		files = append(files, filepath.ToSlash(string(item)))
	}
	return files
}

func runGitBytes(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
