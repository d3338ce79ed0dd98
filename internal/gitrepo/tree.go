package gitrepo

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// commitTree loads the root tree of a commit; nil for the zero hash
func (r *Repo) commitTree(commit plumbing.Hash) (*object.Tree, error) {
	if commit.IsZero() {
		return nil, nil
	}
	c, err := r.repo.CommitObject(commit)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", commit, err)
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", commit, err)
	}
	return t, nil
}

// flattenTree maps every non-directory entry of t by its slash path
func flattenTree(t *object.Tree) (map[string]object.TreeEntry, error) {
	out := make(map[string]object.TreeEntry)
	if t == nil {
		return out, nil
	}

	w := object.NewTreeWalker(t, true, nil)
	defer w.Close()
	for {
		name, entry, err := w.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("walk tree: %w", err)
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		out[name] = entry
	}
}

func (r *Repo) flattenCommit(commit plumbing.Hash) (map[string]object.TreeEntry, error) {
	t, err := r.commitTree(commit)
	if err != nil {
		return nil, err
	}
	return flattenTree(t)
}

func sameEntry(a object.TreeEntry, inA bool, b object.TreeEntry, inB bool) bool {
	if inA != inB {
		return false
	}
	return !inA || (a.Mode == b.Mode && a.Hash == b.Hash)
}

func unionPaths(trees ...map[string]object.TreeEntry) []string {
	set := make(map[string]bool)
	for _, t := range trees {
		for p := range t {
			set[p] = true
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// mergeTrees merges the trees of three commits path by path: a side that kept
// the base version takes the other side's. keep is always taken from ours.
func (r *Repo) mergeTrees(base, ours, theirs plumbing.Hash, keep string) (*object.Tree, error) {
	b, err := r.flattenCommit(base)
	if err != nil {
		return nil, err
	}
	o, err := r.flattenCommit(ours)
	if err != nil {
		return nil, err
	}
	t, err := r.flattenCommit(theirs)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]object.TreeEntry)
	var conflicts []string
	for _, p := range unionPaths(b, o, t) {
		be, inB := b[p]
		oe, inO := o[p]
		te, inT := t[p]

		switch {
		case p == keep, sameEntry(oe, inO, te, inT), sameEntry(te, inT, be, inB):
			if inO {
				merged[p] = oe
			}
		case sameEntry(oe, inO, be, inB):
			if inT {
				merged[p] = te
			}
		default:
			conflicts = append(conflicts, p)
		}
	}
	if len(conflicts) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrTreeConflict, strings.Join(conflicts, ", "))
	}

	hash, err := r.buildTree(merged)
	if err != nil {
		return nil, err
	}
	tree, err := object.GetTree(r.repo.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("load merged tree: %w", err)
	}
	return tree, nil
}

// buildTree writes the tree objects for a flat path map and returns the root hash
func (r *Repo) buildTree(files map[string]object.TreeEntry) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	dirs := make(map[string]map[string]object.TreeEntry)
	for p, e := range files {
		name, rest, nested := strings.Cut(p, "/")
		if !nested {
			e.Name = name
			entries = append(entries, e)
			continue
		}
		if dirs[name] == nil {
			dirs[name] = make(map[string]object.TreeEntry)
		}
		dirs[name][rest] = e
	}

	for _, name := range slices.Sorted(maps.Keys(dirs)) {
		if slices.ContainsFunc(entries, func(e object.TreeEntry) bool { return e.Name == name }) {
			return plumbing.ZeroHash, fmt.Errorf("%w: %s is both a file and a directory", ErrTreeConflict, name)
		}
		hash, err := r.buildTree(dirs[name])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}
	return r.storeTree(entries)
}

// storeTree sorts entries in git order and writes the tree object
func (r *Repo) storeTree(entries []object.TreeEntry) (plumbing.Hash, error) {
	// git orders directories as if their name ended in '/'
	slices.SortFunc(entries, func(a, b object.TreeEntry) int {
		return strings.Compare(treeSortKey(a), treeSortKey(b))
	})

	t := &object.Tree{Entries: entries}
	obj := r.repo.Storer.NewEncodedObject()
	if err := t.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store tree: %w", err)
	}
	return hash, nil
}

func treeSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}
