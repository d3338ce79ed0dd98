// Package gitrepo is the git plumbing used by bibsync: ref resolution,
// ancestry, blob reads, commit writes and branch updates, backed by go-git.
package gitrepo

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrReferenceNotFound is returned when a ref does not exist
	ErrReferenceNotFound = errors.New("reference not found")
	// ErrDetachedHead is returned when HEAD does not point at a branch
	ErrDetachedHead = errors.New("HEAD is detached")
	// ErrTreeConflict is returned when both sides of a merge changed the same path
	ErrTreeConflict = errors.New("both sides changed the same path")
	// ErrWorktreeDirty is returned when moving a checked-out branch would
	// overwrite uncommitted changes
	ErrWorktreeDirty = errors.New("uncommitted changes would be overwritten")
)

// CommitOptions describes a commit that replaces one file on top of an existing tree
type CommitOptions struct {
	Parents  []plumbing.Hash
	TreeFrom plumbing.Hash // commit whose tree is the starting point; zero = empty tree
	Path     string        // repo-relative, slash separated
	Content  []byte
	Message  string
	Author   object.Signature

	// When MergeWith is set, the starting tree is the three-way merge of the
	// trees of MergeBase, TreeFrom and MergeWith. Path is taken from TreeFrom.
	MergeBase plumbing.Hash
	MergeWith plumbing.Hash
}

// Repository defines the git operations the sync core relies on.
// This interface enables substituting the plumbing in tests.
type Repository interface {
	// Root returns the working tree root
	Root() string
	// CurrentBranch returns the branch HEAD points at and its commit
	CurrentBranch() (plumbing.ReferenceName, plumbing.Hash, error)
	ResolveRef(name plumbing.ReferenceName) (plumbing.Hash, error)
	// IsAncestor reports whether ancestor is reachable from descendant
	IsAncestor(ancestor, descendant plumbing.Hash) (bool, error)
	// MergeBase returns the best common ancestor; false if histories are unrelated
	MergeBase(a, b plumbing.Hash) (plumbing.Hash, bool, error)
	// ReadFile returns the file content at a commit; false if the path is absent
	ReadFile(commit plumbing.Hash, path string) ([]byte, bool, error)
	WriteCommit(opts CommitOptions) (plumbing.Hash, error)
	// UpdateBranch moves a branch from oldHash to newHash atomically. A
	// checked-out branch also brings the working tree and index along.
	UpdateBranch(branch plumbing.ReferenceName, newHash, oldHash plumbing.Hash) error
	Fetch(ctx context.Context, remote string) error
}

// Verify that *Repo implements Repository at compile time
var _ Repository = (*Repo)(nil)
