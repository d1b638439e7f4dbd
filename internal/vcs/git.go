package vcs

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitOpener opens git repositories using go-git.
type GitOpener struct{}

// NewGitOpener creates a new GitOpener.
func NewGitOpener() *GitOpener {
	return &GitOpener{}
}

// PlainOpen opens an existing git repository.
func (o *GitOpener) PlainOpen(path string) (Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	return &gitRepository{repo: repo}, nil
}

// gitRepository wraps go-git Repository.
type gitRepository struct {
	repo *git.Repository
}

func (r *gitRepository) Head() (Reference, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, err
	}
	return &gitReference{ref: ref}, nil
}

func (r *gitRepository) Log() (CommitIterator, error) {
	iter, err := r.repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, err
	}
	return &gitCommitIterator{iter: iter}, nil
}

func (r *gitRepository) ResolveCommit(rev string) (Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}
	return &gitCommit{commit: commit}, nil
}

// gitReference wraps go-git Reference.
type gitReference struct {
	ref *plumbing.Reference
}

func (r *gitReference) Hash() plumbing.Hash {
	return r.ref.Hash()
}

// gitCommitIterator wraps go-git CommitIter.
type gitCommitIterator struct {
	iter object.CommitIter
}

func (i *gitCommitIterator) ForEach(fn func(Commit) error) error {
	return i.iter.ForEach(func(c *object.Commit) error {
		return fn(&gitCommit{commit: c})
	})
}

func (i *gitCommitIterator) Close() {
	i.iter.Close()
}

// gitCommit wraps go-git Commit.
type gitCommit struct {
	commit *object.Commit
}

func (c *gitCommit) Hash() plumbing.Hash {
	return c.commit.Hash
}

func (c *gitCommit) NumParents() int {
	return c.commit.NumParents()
}

func (c *gitCommit) Tree() (Tree, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, err
	}
	return &gitTree{tree: tree}, nil
}

func (c *gitCommit) Changes() (Changes, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, err
	}

	// Root commits are compared against the empty tree, as go-git's own Stats does.
	parentTree := &object.Tree{}
	if c.commit.NumParents() > 0 {
		parent, err := c.commit.Parent(0)
		if err != nil {
			return nil, err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	objChanges, err := parentTree.Diff(tree)
	if err != nil {
		return nil, err
	}
	changes := make(Changes, len(objChanges))
	for i, ch := range objChanges {
		changes[i] = &gitChange{change: ch}
	}
	return changes, nil
}

func (c *gitCommit) Author() object.Signature {
	return c.commit.Author
}

func (c *gitCommit) Committer() object.Signature {
	return c.commit.Committer
}

func (c *gitCommit) Message() string {
	return c.commit.Message
}

// gitTree wraps go-git Tree.
type gitTree struct {
	tree *object.Tree
}

func (t *gitTree) Entries() ([]TreeEntry, error) {
	var entries []TreeEntry
	err := t.tree.Files().ForEach(func(f *object.File) error {
		entries = append(entries, TreeEntry{Path: f.Name, Size: f.Size})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (t *gitTree) File(path string) ([]byte, error) {
	f, err := t.tree.File(path)
	if err != nil {
		return nil, err
	}
	binary, err := f.IsBinary()
	if err != nil {
		return nil, err
	}
	if binary {
		return nil, ErrBinaryFile
	}
	content, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// gitChange wraps go-git Change.
type gitChange struct {
	change *object.Change
}

func (c *gitChange) FromName() string {
	return c.change.From.Name
}

func (c *gitChange) ToName() string {
	return c.change.To.Name
}

func (c *gitChange) Patch() (Patch, error) {
	patch, err := c.change.Patch()
	if err != nil {
		return nil, err
	}
	return &gitPatch{patch: patch}, nil
}

// gitPatch wraps go-git Patch.
type gitPatch struct {
	patch *object.Patch
}

func (p *gitPatch) FilePatches() []FilePatch {
	filePatches := p.patch.FilePatches()
	result := make([]FilePatch, len(filePatches))
	for i, fp := range filePatches {
		result[i] = &gitFilePatch{filePatch: fp}
	}
	return result
}

func (p *gitPatch) String() string {
	return p.patch.String()
}

// gitFilePatch wraps go-git FilePatch.
type gitFilePatch struct {
	filePatch diff.FilePatch
}

func (fp *gitFilePatch) IsBinary() bool {
	return fp.filePatch.IsBinary()
}

func (fp *gitFilePatch) Chunks() []Chunk {
	chunks := fp.filePatch.Chunks()
	result := make([]Chunk, len(chunks))
	for i, c := range chunks {
		result[i] = &gitChunk{chunk: c}
	}
	return result
}

// gitChunk wraps go-git Chunk.
type gitChunk struct {
	chunk diff.Chunk
}

func (c *gitChunk) Type() ChunkType {
	switch c.chunk.Type() {
	case diff.Add:
		return ChunkAdd
	case diff.Delete:
		return ChunkDelete
	default:
		return ChunkEqual
	}
}

func (c *gitChunk) Content() string {
	return c.chunk.Content()
}

// Default opener singleton
var defaultOpener Opener = NewGitOpener()

// DefaultOpener returns the default git opener.
func DefaultOpener() Opener {
	return defaultOpener
}
