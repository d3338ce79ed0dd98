package gitrepo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// pathUpdate is one path that differs between two commits
type pathUpdate struct {
	Path     string
	From, To object.TreeEntry
	InFrom   bool
	InTo     bool
}

// worktreeUpdates lists the paths that change from oldHash to newHash,
// deletions first so a file can give way to a directory
func (r *Repo) worktreeUpdates(oldHash, newHash plumbing.Hash) ([]pathUpdate, error) {
	from, err := r.flattenCommit(oldHash)
	if err != nil {
		return nil, err
	}
	to, err := r.flattenCommit(newHash)
	if err != nil {
		return nil, err
	}

	var deletes, writes []pathUpdate
	for _, p := range unionPaths(from, to) {
		fe, inFrom := from[p]
		te, inTo := to[p]
		if sameEntry(fe, inFrom, te, inTo) {
			continue
		}
		if fe.Mode == filemode.Submodule || te.Mode == filemode.Submodule {
			continue
		}
		u := pathUpdate{Path: p, From: fe, To: te, InFrom: inFrom, InTo: inTo}
		if inTo {
			writes = append(writes, u)
		} else {
			deletes = append(deletes, u)
		}
	}
	return append(deletes, writes...), nil
}

// checkWorktree refuses updates whose path on disk matches neither side
func (r *Repo) checkWorktree(updates []pathUpdate) error {
	var dirty []string
	for _, u := range updates {
		ok, err := r.onDisk(u.Path, u.From, u.InFrom)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if ok, err = r.onDisk(u.Path, u.To, u.InTo); err != nil {
			return err
		}
		if !ok {
			dirty = append(dirty, u.Path)
		}
	}
	if len(dirty) > 0 {
		return fmt.Errorf("%w: %s", ErrWorktreeDirty, strings.Join(dirty, ", "))
	}
	return nil
}

// onDisk reports whether the working tree holds entry at p (or nothing, when absent)
func (r *Repo) onDisk(p string, entry object.TreeEntry, present bool) (bool, error) {
	full := r.fullPath(p)
	info, err := os.Lstat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return !present, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	if !present {
		return false, nil
	}

	var data []byte
	if entry.Mode == filemode.Symlink {
		if info.Mode()&fs.ModeSymlink == 0 {
			return false, nil
		}
		target, err := os.Readlink(full)
		if err != nil {
			return false, fmt.Errorf("read link %s: %w", p, err)
		}
		data = []byte(filepath.ToSlash(target))
	} else {
		if !info.Mode().IsRegular() {
			return false, nil
		}
		if data, err = os.ReadFile(full); err != nil {
			return false, fmt.Errorf("read %s: %w", p, err)
		}
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data) == entry.Hash, nil
}

// applyWorktree writes the new side of every update to the working tree
func (r *Repo) applyWorktree(updates []pathUpdate) error {
	for _, u := range updates {
		full := r.fullPath(u.Path)
		if !u.InTo {
			if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", u.Path, err)
			}
			r.pruneEmptyDirs(filepath.Dir(full))
			continue
		}

		if ok, err := r.onDisk(u.Path, u.To, true); err != nil {
			return err
		} else if ok {
			continue
		}

		content, err := r.blobContent(u.To.Hash)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return fmt.Errorf("create directory for %s: %w", u.Path, err)
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("replace %s: %w", u.Path, err)
		}

		if u.To.Mode == filemode.Symlink {
			if err := os.Symlink(filepath.FromSlash(string(content)), full); err != nil {
				return fmt.Errorf("link %s: %w", u.Path, err)
			}
			continue
		}
		perm := os.FileMode(0644)
		if u.To.Mode == filemode.Executable {
			perm = 0755
		}
		if err := os.WriteFile(full, content, perm); err != nil {
			return fmt.Errorf("write %s: %w", u.Path, err)
		}
	}
	return nil
}

// pruneEmptyDirs removes empty directories from dir up to the root
func (r *Repo) pruneEmptyDirs(dir string) {
	for dir != r.root && strings.HasPrefix(dir, r.root) {
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (r *Repo) fullPath(p string) string {
	return filepath.Join(r.root, filepath.FromSlash(p))
}

func (r *Repo) blobContent(hash plumbing.Hash) ([]byte, error) {
	blob, err := r.repo.BlobObject(hash)
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", hash, err)
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	return data, nil
}
