// Package history builds a per-path index of every commit in a repository.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/refmine/internal/vcs"
)

// ErrMissingHistory is returned when the repository history cannot be read.
var ErrMissingHistory = errors.New("repository history unavailable")

// UnknownAuthor is the identity used for commits with no author name.
const UnknownAuthor = "unknown"

// FileChange is one file modified by a commit.
type FileChange struct {
	// Path is the new path, or the old path for deletions.
	Path    string
	Added   int
	Removed int
	// Diff is the raw patch text; empty unless diffs were requested.
	Diff string
}

// Commit is an indexed commit. Values are immutable after Build returns.
type Commit struct {
	Hash   string
	Author string
	Email  string
	// Timestamp is the committer time and drives all time arithmetic.
	Timestamp  time.Time
	AuthoredAt time.Time
	Message    string
	Files      []FileChange
	// Ordinal is the position in oldest-to-newest order.
	Ordinal int
	Parents int
}

// Change returns the commit's FileChange for path.
func (c *Commit) Change(path string) (FileChange, bool) {
	for _, fc := range c.Files {
		if fc.Path == path {
			return fc, true
		}
	}
	return FileChange{}, false
}

// Options configures Build.
type Options struct {
	IncludeMerges bool
	IncludeDiffs  bool
}

// Index maps every path to the commits that touched it.
type Index struct {
	commits     []*Commit
	byHash      map[string]*Commit
	files       map[string]*roaring.Bitmap
	authorAdded map[string]int
}

// Build walks the full history reachable from HEAD and indexes it.
// Any read error aborts the build; a partial index is never returned.
func Build(ctx context.Context, repo vcs.Repository, opts Options) (*Index, error) {
	iter, err := repo.Log()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHistory, err)
	}
	defer iter.Close()

	var newestFirst []*Commit
	err = iter.ForEach(func(c vcs.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if c.NumParents() > 1 && !opts.IncludeMerges {
			return nil
		}
		commit, err := readCommit(c, opts.IncludeDiffs)
		if err != nil {
			return fmt.Errorf("commit %s: %w", c.Hash(), err)
		}
		newestFirst = append(newestFirst, commit)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMissingHistory, err)
	}

	idx := &Index{
		commits:     make([]*Commit, 0, len(newestFirst)),
		byHash:      make(map[string]*Commit, len(newestFirst)),
		files:       make(map[string]*roaring.Bitmap),
		authorAdded: make(map[string]int),
	}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		idx.add(newestFirst[i])
	}
	return idx, nil
}

// NewIndex indexes commits given oldest first. Ordinals are reassigned.
func NewIndex(commits []*Commit) *Index {
	idx := &Index{
		byHash:      make(map[string]*Commit, len(commits)),
		files:       make(map[string]*roaring.Bitmap),
		authorAdded: make(map[string]int),
	}
	for _, c := range commits {
		idx.add(c)
	}
	return idx
}

func (idx *Index) add(c *Commit) {
	c.Ordinal = len(idx.commits)
	idx.commits = append(idx.commits, c)
	idx.byHash[c.Hash] = c
	for _, fc := range c.Files {
		bm, ok := idx.files[fc.Path]
		if !ok {
			bm = roaring.New()
			idx.files[fc.Path] = bm
		}
		bm.Add(uint32(c.Ordinal))
		idx.authorAdded[c.Author] += fc.Added
	}
}

func readCommit(c vcs.Commit, withDiffs bool) (*Commit, error) {
	author := c.Author()
	name := strings.TrimSpace(author.Name)
	if name == "" {
		name = UnknownAuthor
	}

	changes, err := c.Changes()
	if err != nil {
		return nil, err
	}

	commit := &Commit{
		Hash:       c.Hash().String(),
		Author:     name,
		Email:      author.Email,
		Timestamp:  c.Committer().When,
		AuthoredAt: author.When,
		Message:    c.Message(),
		Parents:    c.NumParents(),
		Files:      make([]FileChange, 0, len(changes)),
	}

	for _, change := range changes {
		path := change.ToName()
		if path == "" {
			path = change.FromName()
		}
		patch, err := change.Patch()
		if err != nil {
			return nil, err
		}
		fc := FileChange{Path: path}
		fc.Added, fc.Removed = countLines(patch)
		if withDiffs {
			fc.Diff = patch.String()
		}
		commit.Files = append(commit.Files, fc)
	}
	sort.Slice(commit.Files, func(i, j int) bool {
		return commit.Files[i].Path < commit.Files[j].Path
	})
	return commit, nil
}

func countLines(patch vcs.Patch) (added, removed int) {
	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			continue
		}
		for _, chunk := range fp.Chunks() {
			switch chunk.Type() {
			case vcs.ChunkAdd:
				added += chunkLines(chunk.Content())
			case vcs.ChunkDelete:
				removed += chunkLines(chunk.Content())
			}
		}
	}
	return added, removed
}

func chunkLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// Lookup returns the commit with the given full hash.
func (idx *Index) Lookup(hash string) (*Commit, bool) {
	c, ok := idx.byHash[hash]
	return c, ok
}

// Touches returns every commit that modified path, oldest first.
func (idx *Index) Touches(path string) []*Commit {
	bm, ok := idx.files[path]
	if !ok {
		return nil
	}
	out := make([]*Commit, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, idx.commits[it.Next()])
	}
	return out
}

// CommitCount returns the number of commits that modified path.
func (idx *Index) CommitCount(path string) int {
	bm, ok := idx.files[path]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// AuthorAdded returns the lines author added across the whole project.
func (idx *Index) AuthorAdded(author string) int {
	return idx.authorAdded[author]
}

// Paths returns every indexed path in lexical order.
func (idx *Index) Paths() []string {
	paths := make([]string, 0, len(idx.files))
	for p := range idx.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Commits returns all indexed commits, oldest first.
func (idx *Index) Commits() []*Commit {
	return idx.commits
}

// Len returns the number of indexed commits.
func (idx *Index) Len() int {
	return len(idx.commits)
}

// Summary describes an index at a glance.
type Summary struct {
	Commits int       `json:"commits" toon:"commits"`
	Files   int       `json:"files" toon:"files"`
	Authors int       `json:"authors" toon:"authors"`
	Added   int       `json:"added" toon:"added"`
	First   time.Time `json:"first,omitempty" toon:"first,omitempty"`
	Last    time.Time `json:"last,omitempty" toon:"last,omitempty"`
}

// Summarize returns aggregate counts for the index.
func (idx *Index) Summarize() Summary {
	s := Summary{
		Commits: len(idx.commits),
		Files:   len(idx.files),
		Authors: len(idx.authorAdded),
	}
	for _, added := range idx.authorAdded {
		s.Added += added
	}
	if len(idx.commits) > 0 {
		s.First = idx.commits[0].Timestamp
		s.Last = idx.commits[len(idx.commits)-1].Timestamp
	}
	return s
}
