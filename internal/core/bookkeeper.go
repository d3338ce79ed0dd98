package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/kilupskalvis/bibsync/internal/gitrepo"
	"github.com/kilupskalvis/bibsync/internal/models"
)

// ErrNothingToRecord is returned when the plan is neither behind nor diverged
var ErrNothingToRecord = errors.New("nothing to record")

// BookkeepingResult describes how the merged file was recorded
type BookkeepingResult struct {
	Kind    models.BookkeepingKind
	Commit  plumbing.Hash
	Parents []plumbing.Hash // empty for a fast-forward
}

// Bookkeeper commits merged content with the parentage the sync status requires
type Bookkeeper struct {
	repo   gitrepo.Repository
	name   string
	email  string
	now    func() time.Time
	logger *log.Logger
}

// NewBookkeeper creates a Bookkeeper that signs commits with the given identity.
// A nil logger discards output.
func NewBookkeeper(repo gitrepo.Repository, name, email string, logger *log.Logger) *Bookkeeper {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bookkeeper{repo: repo, name: name, email: email, now: time.Now, logger: logger}
}

// ResultRecord reads the merged file from the working tree and records it:
// a fast-forward when behind and the content equals the remote's, a commit
// on top of the remote tip when behind with different content, and a merge
// commit with parents [local, remote] when diverged.
func (b *Bookkeeper) ResultRecord(ctx context.Context, filePath string, plan *PullPlan) (*BookkeepingResult, error) {
	if plan == nil {
		return nil, ErrNothingToRecord
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	onDisk, err := os.ReadFile(filepath.Join(b.repo.Root(), filepath.FromSlash(filePath)))
	if err != nil {
		return nil, fmt.Errorf("read merged file: %w", err)
	}

	switch plan.Status {
	case models.SyncBehind:
		if bytes.Equal(onDisk, plan.RemoteContent) {
			return b.fastForward(plan)
		}
		return b.commit(plan, gitrepo.CommitOptions{
			Parents:  []plumbing.Hash{plan.Remote},
			TreeFrom: plan.Remote,
			Path:     filePath,
			Content:  onDisk,
			Message:  fmt.Sprintf("Update %s on top of %s", filePath, plan.RemoteRef.Short()),
		})

	case models.SyncDiverged:
		// Other paths are merged at tree level so remote work outside the
		// tracked file survives the merge commit.
		return b.commit(plan, gitrepo.CommitOptions{
			Parents:   []plumbing.Hash{plan.Local, plan.Remote},
			TreeFrom:  plan.Local,
			MergeBase: plan.Base,
			MergeWith: plan.Remote,
			Path:      filePath,
			Content:   onDisk,
			Message:   fmt.Sprintf("Merge remote-tracking branch '%s' into %s", plan.RemoteRef.Short(), plan.Branch.Short()),
		})

	default:
		return nil, fmt.Errorf("status %s: %w", plan.Status, ErrNothingToRecord)
	}
}

func (b *Bookkeeper) fastForward(plan *PullPlan) (*BookkeepingResult, error) {
	if err := b.repo.UpdateBranch(plan.Branch, plan.Remote, plan.Local); err != nil {
		return nil, fmt.Errorf("fast-forward: %w", err)
	}

	b.logger.Info("fast-forwarded", "branch", plan.Branch.Short(), "commit", plan.Remote.String()[:7])
	return &BookkeepingResult{Kind: models.FastForward, Commit: plan.Remote}, nil
}

func (b *Bookkeeper) commit(plan *PullPlan, opts gitrepo.CommitOptions) (*BookkeepingResult, error) {
	opts.Author = object.Signature{
		Name:  b.name,
		Email: b.email,
		When:  b.now(),
	}
	hash, err := b.repo.WriteCommit(opts)
	if err != nil {
		return nil, fmt.Errorf("write commit: %w", err)
	}

	if err := b.repo.UpdateBranch(plan.Branch, hash, plan.Local); err != nil {
		return nil, fmt.Errorf("update branch: %w", err)
	}

	b.logger.Info("recorded merge", "branch", plan.Branch.Short(), "commit", hash.String()[:7], "parents", len(opts.Parents))
	return &BookkeepingResult{Kind: models.NewCommit, Commit: hash, Parents: opts.Parents}, nil
}
