package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/kilupskalvis/bibsync/internal/bibtex"
	"github.com/kilupskalvis/bibsync/internal/gitrepo"
	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/stretchr/testify/require"
)

const testBibPath = "refs.bib"

var (
	testBranch    = plumbing.NewBranchReferenceName("main")
	testRemoteRef = plumbing.NewRemoteReferenceName("origin", "main")
)

// testRepo is a real repository in a temp dir whose history is written
// directly as objects, so no network or worktree commits are needed
type testRepo struct {
	t    *testing.T
	repo *gitrepo.Repo
	tick int64
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: testBranch},
	})
	require.NoError(t, err)

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)
	return &testRepo{t: t, repo: repo}
}

// commit writes content at path on top of the first parent's tree
func (r *testRepo) commitAt(path, content string, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()
	r.tick++
	var treeFrom plumbing.Hash
	if len(parents) > 0 {
		treeFrom = parents[0]
	}
	h, err := r.repo.WriteCommit(gitrepo.CommitOptions{
		Parents:  parents,
		TreeFrom: treeFrom,
		Path:     path,
		Content:  []byte(content),
		Message:  "edit " + path,
		Author: object.Signature{
			Name:  "Fixture",
			Email: "fixture@example.com",
			When:  time.Unix(1700000000+r.tick, 0),
		},
	})
	require.NoError(r.t, err)
	return h
}

func (r *testRepo) commit(content string, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()
	return r.commitAt(testBibPath, content, parents...)
}

func (r *testRepo) setRef(name plumbing.ReferenceName, h plumbing.Hash) {
	r.t.Helper()
	require.NoError(r.t, r.repo.Unwrap().Storer.SetReference(plumbing.NewHashReference(name, h)))
}

func (r *testRepo) setLocal(h plumbing.Hash)  { r.setRef(testBranch, h) }
func (r *testRepo) setRemote(h plumbing.Hash) { r.setRef(testRemoteRef, h) }

func (r *testRepo) head() plumbing.Hash {
	r.t.Helper()
	h, err := r.repo.ResolveRef(testBranch)
	require.NoError(r.t, err)
	return h
}

func (r *testRepo) writeFile(content string) {
	r.t.Helper()
	require.NoError(r.t, os.WriteFile(filepath.Join(r.repo.Root(), testBibPath), []byte(content), 0o644))
}

func (r *testRepo) readBlob(commit plumbing.Hash, path string) string {
	r.t.Helper()
	content, ok, err := r.repo.ReadFile(commit, path)
	require.NoError(r.t, err)
	require.True(r.t, ok, "%s missing at %s", path, commit)
	return string(content)
}

func (r *testRepo) parents(commit plumbing.Hash) []plumbing.Hash {
	r.t.Helper()
	c, err := r.repo.Unwrap().CommitObject(commit)
	require.NoError(r.t, err)
	return c.ParentHashes
}

func (r *testRepo) service() *SyncService {
	return NewSyncService(r.repo, "origin", "", nil)
}

func bib(entries ...*models.Entry) string {
	return bibtex.Serialize(db(entries...))
}
