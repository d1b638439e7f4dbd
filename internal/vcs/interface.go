// Package vcs provides version control system abstractions.
package vcs

import (
	"errors"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrBinaryFile is returned when file text is requested for a binary blob.
var ErrBinaryFile = errors.New("binary file")

// ErrFileNotFound is returned when a tree has no file at the requested path.
var ErrFileNotFound = object.ErrFileNotFound

// Repository provides access to git repository operations.
type Repository interface {
	// Head returns a reference to the HEAD commit.
	Head() (Reference, error)
	// Log returns the commits reachable from HEAD, newest first by committer time.
	Log() (CommitIterator, error)
	// ResolveCommit resolves a revision (full or abbreviated hash, branch, tag).
	ResolveCommit(rev string) (Commit, error)
}

// Reference represents a git reference (branch, tag, HEAD).
type Reference interface {
	Hash() plumbing.Hash
}

// CommitIterator iterates over commits.
type CommitIterator interface {
	ForEach(fn func(Commit) error) error
	Close()
}

// Commit represents a git commit.
type Commit interface {
	// Hash returns the commit hash.
	Hash() plumbing.Hash
	// NumParents returns the number of parent commits.
	NumParents() int
	// Tree returns the tree object for this commit.
	Tree() (Tree, error)
	// Changes returns the file changes against the first parent, or against the
	// empty tree for a root commit.
	Changes() (Changes, error)
	// Author returns commit author information.
	Author() object.Signature
	// Committer returns commit committer information.
	Committer() object.Signature
	// Message returns the commit message.
	Message() string
}

// TreeEntry represents a file in a git tree.
type TreeEntry struct {
	Path string
	Size int64
}

// Tree represents a git tree object.
type Tree interface {
	// Entries returns all files in the tree (recursively).
	Entries() ([]TreeEntry, error)
	// File returns the contents of the file at path.
	File(path string) ([]byte, error)
}

// Changes represents a collection of file changes between trees.
type Changes []Change

// Change represents a single file change.
type Change interface {
	// FromName returns the source file name (empty for new files).
	FromName() string
	// ToName returns the destination file name (empty for deleted files).
	ToName() string
	// Patch computes the patch for this change.
	Patch() (Patch, error)
}

// Patch represents a diff patch.
type Patch interface {
	FilePatches() []FilePatch
	// String returns the unified diff text.
	String() string
}

// FilePatch represents changes to a single file.
type FilePatch interface {
	IsBinary() bool
	Chunks() []Chunk
}

// Chunk represents a chunk of changes within a file patch.
type Chunk interface {
	Type() ChunkType
	Content() string
}

// ChunkType represents the type of change in a chunk.
type ChunkType int

const (
	ChunkEqual ChunkType = iota
	ChunkAdd
	ChunkDelete
)

// Opener opens git repositories.
type Opener interface {
	// PlainOpen opens an existing git repository.
	PlainOpen(path string) (Repository, error)
}
