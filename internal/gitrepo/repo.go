package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Repo is a Repository backed by a go-git working tree
type Repo struct {
	repo  *git.Repository
	root  string
	auth  transport.AuthMethod
	retry *RetryConfig
}

// Option configures a Repo
type Option func(*Repo)

// WithBasicAuth authenticates fetches over HTTP(S)
func WithBasicAuth(username, password string) Option {
	return func(r *Repo) {
		if password == "" {
			return
		}
		r.auth = &githttp.BasicAuth{Username: username, Password: password}
	}
}

// Open opens the repository containing path
func Open(path string, opts ...Option) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}

	r := &Repo{repo: repo, root: wt.Filesystem.Root(), retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Unwrap exposes the underlying go-git repository
func (r *Repo) Unwrap() *git.Repository {
	return r.repo
}

// Root returns the working tree root
func (r *Repo) Root() string {
	return r.root
}

// RelPath converts a filesystem path into a repo-relative slash path
func (r *Repo) RelPath(file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("'%s' is outside the repository", file)
	}
	return filepath.ToSlash(rel), nil
}

// Identity returns the user name and email from git configuration,
// preferring the repository's own settings over the global ones
func (r *Repo) Identity() (name, email string) {
	for _, scope := range []gitconfig.Scope{gitconfig.LocalScope, gitconfig.GlobalScope} {
		cfg, err := r.repo.ConfigScoped(scope)
		if err != nil {
			continue
		}
		if name == "" {
			name = cfg.User.Name
		}
		if email == "" {
			email = cfg.User.Email
		}
	}
	return name, email
}

// CurrentBranch returns the branch HEAD points at and its commit
func (r *Repo) CurrentBranch() (plumbing.ReferenceName, plumbing.Hash, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", plumbing.ZeroHash, fmt.Errorf("HEAD: %w", ErrReferenceNotFound)
		}
		return "", plumbing.ZeroHash, fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", plumbing.ZeroHash, ErrDetachedHead
	}
	return head.Name(), head.Hash(), nil
}

// ResolveRef resolves a reference, following symbolic refs
func (r *Repo) ResolveRef(name plumbing.ReferenceName) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(name, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, fmt.Errorf("%s: %w", name, ErrReferenceNotFound)
		}
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", name, err)
	}
	return ref.Hash(), nil
}

// IsAncestor reports whether ancestor is reachable from descendant
func (r *Repo) IsAncestor(ancestor, descendant plumbing.Hash) (bool, error) {
	a, err := r.repo.CommitObject(ancestor)
	if err != nil {
		return false, fmt.Errorf("load commit %s: %w", ancestor, err)
	}
	d, err := r.repo.CommitObject(descendant)
	if err != nil {
		return false, fmt.Errorf("load commit %s: %w", descendant, err)
	}
	return a.IsAncestor(d)
}

// MergeBase returns the best common ancestor of two commits
func (r *Repo) MergeBase(a, b plumbing.Hash) (plumbing.Hash, bool, error) {
	ca, err := r.repo.CommitObject(a)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("load commit %s: %w", a, err)
	}
	cb, err := r.repo.CommitObject(b)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("load commit %s: %w", b, err)
	}

	bases, err := ca.MergeBase(cb)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("find merge base: %w", err)
	}
	if len(bases) == 0 {
		return plumbing.ZeroHash, false, nil
	}
	return bases[0].Hash, true, nil
}

// ReadFile returns the content of path at a commit
func (r *Repo) ReadFile(commit plumbing.Hash, file string) ([]byte, bool, error) {
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		return nil, false, fmt.Errorf("load commit %s: %w", commit, err)
	}

	f, err := c.File(file)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s at %s: %w", file, commit, err)
	}

	content, err := f.Contents()
	if err != nil {
		return nil, false, fmt.Errorf("read %s at %s: %w", file, commit, err)
	}
	return []byte(content), true, nil
}

// WriteCommit stores a blob for the new content, a tree replacing Path in the
// tree of TreeFrom (or in the merged tree, see CommitOptions), and a commit
// with the given parents. Refs are not moved.
func (r *Repo) WriteCommit(opts CommitOptions) (plumbing.Hash, error) {
	blobHash, err := r.writeBlob(opts.Content)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	p := path.Clean(opts.Path)
	var baseTree *object.Tree
	if opts.MergeWith.IsZero() {
		baseTree, err = r.commitTree(opts.TreeFrom)
	} else {
		baseTree, err = r.mergeTrees(opts.MergeBase, opts.TreeFrom, opts.MergeWith, p)
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}

	parts := strings.Split(p, "/")
	treeHash, err := r.replaceInTree(baseTree, parts, blobHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	commit := &object.Commit{
		Author:       opts.Author,
		Committer:    opts.Author,
		Message:      opts.Message,
		TreeHash:     treeHash,
		ParentHashes: opts.Parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode commit: %w", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store commit: %w", err)
	}
	return hash, nil
}

// UpdateBranch moves branch to newHash if it still points at oldHash (zero =
// unborn). When the branch is checked out, the paths that differ between the
// two commits are written to the working tree first checking that none of
// them hold uncommitted changes, and the index is reset to the new commit.
func (r *Repo) UpdateBranch(branch plumbing.ReferenceName, newHash, oldHash plumbing.Hash) error {
	checkedOut := r.isCheckedOut(branch)

	var updates []pathUpdate
	if checkedOut {
		var err error
		if updates, err = r.worktreeUpdates(oldHash, newHash); err != nil {
			return err
		}
		if err := r.checkWorktree(updates); err != nil {
			return err
		}
	}

	var old *plumbing.Reference
	if !oldHash.IsZero() {
		old = plumbing.NewHashReference(branch, oldHash)
	}
	if err := r.repo.Storer.CheckAndSetReference(plumbing.NewHashReference(branch, newHash), old); err != nil {
		return fmt.Errorf("update %s: %w", branch, err)
	}
	if !checkedOut {
		return nil
	}

	if err := r.applyWorktree(updates); err != nil {
		return err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: newHash, Mode: git.MixedReset}); err != nil {
		return fmt.Errorf("refresh index: %w", err)
	}
	return nil
}

func (r *Repo) isCheckedOut(branch plumbing.ReferenceName) bool {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	return err == nil && head.Type() == plumbing.SymbolicReference && head.Target() == branch
}

// Fetch updates the remote-tracking refs of remote
func (r *Repo) Fetch(ctx context.Context, remote string) error {
	err := r.retry.do(ctx, "fetch "+remote, func() error {
		err := r.repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: remote,
			Auth:       r.auth,
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", remote, err)
	}
	return nil
}

func (r *Repo) writeBlob(content []byte) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open blob writer: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store blob: %w", err)
	}
	return hash, nil
}

// replaceInTree writes a copy of tree (nil = empty) with the blob at parts,
// creating intermediate directories, and returns the new tree hash
func (r *Repo) replaceInTree(tree *object.Tree, parts []string, blob plumbing.Hash) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	if tree != nil {
		entries = slices.Clone(tree.Entries)
	}

	name := parts[0]
	idx := slices.IndexFunc(entries, func(e object.TreeEntry) bool { return e.Name == name })

	var entry object.TreeEntry
	if len(parts) == 1 {
		mode := filemode.Regular
		if idx >= 0 && entries[idx].Mode == filemode.Executable {
			mode = filemode.Executable
		}
		entry = object.TreeEntry{Name: name, Mode: mode, Hash: blob}
	} else {
		var sub *object.Tree
		if idx >= 0 && entries[idx].Mode == filemode.Dir {
			var err error
			if sub, err = object.GetTree(r.repo.Storer, entries[idx].Hash); err != nil {
				return plumbing.ZeroHash, fmt.Errorf("load tree %s: %w", name, err)
			}
		}
		subHash, err := r.replaceInTree(sub, parts[1:], blob)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entry = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: subHash}
	}

	if idx >= 0 {
		entries[idx] = entry
	} else {
		entries = append(entries, entry)
	}

	return r.storeTree(entries)
}
