package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// WriteFile writes content to a file in the real filesystem.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// ReadFile reads content from a file.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error: %v", path, err)
	}
	return string(data)
}

// Lines returns n newline-terminated lines of filler text.
func Lines(n int) string {
	b := make([]byte, 0, n*5)
	for i := 0; i < n; i++ {
		b = append(b, "line\n"...)
	}
	return string(b)
}

// GitRepo is a throwaway repository for history tests.
type GitRepo struct {
	t    *testing.T
	Path string
	repo *git.Repository
	// Clock is the committer time of the next commit; each commit advances it
	// by one hour unless the caller sets it explicitly.
	Clock time.Time
}

// NewGitRepo initializes an empty repository in a temp dir.
func NewGitRepo(t *testing.T) *GitRepo {
	t.Helper()
	path := t.TempDir()
	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatalf("PlainInit error: %v", err)
	}
	return &GitRepo{
		t:     t,
		Path:  path,
		repo:  repo,
		Clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Commit writes files (a nil value deletes the path) and commits them as author.
// It returns the new commit hash.
func (r *GitRepo) Commit(author, message string, files map[string]*string) string {
	r.t.Helper()
	w, err := r.repo.Worktree()
	if err != nil {
		r.t.Fatalf("Worktree error: %v", err)
	}
	for name, content := range files {
		if content == nil {
			if _, err := w.Remove(name); err != nil {
				r.t.Fatalf("Remove(%s) error: %v", name, err)
			}
			continue
		}
		WriteFile(r.t, filepath.Join(r.Path, name), *content)
		if _, err := w.Add(name); err != nil {
			r.t.Fatalf("Add(%s) error: %v", name, err)
		}
	}

	sig := &object.Signature{
		Name:  author,
		Email: author + "@example.com",
		When:  r.Clock,
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		r.t.Fatalf("Commit error: %v", err)
	}
	r.Clock = r.Clock.Add(time.Hour)
	return hash.String()
}

// Write is shorthand for Commit with only additions or modifications.
func (r *GitRepo) Write(author, message string, files map[string]string) string {
	r.t.Helper()
	m := make(map[string]*string, len(files))
	for k, v := range files {
		v := v
		m[k] = &v
	}
	return r.Commit(author, message, m)
}
