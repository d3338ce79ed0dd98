package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/kilupskalvis/bibsync/internal/bibtex"
	"github.com/kilupskalvis/bibsync/internal/gitrepo"
	"github.com/kilupskalvis/bibsync/internal/models"
)

var (
	// ErrRemoteRefNotFound is returned when the remote-tracking branch does not exist
	ErrRemoteRefNotFound = errors.New("remote-tracking branch not found")
	// ErrDetachedHead is returned when HEAD is not on a branch
	ErrDetachedHead = gitrepo.ErrDetachedHead
	// ErrStalePlan is returned when a saved merge no longer matches the branch tips
	ErrStalePlan = errors.New("branch tips moved since the merge was prepared")
)

// SyncState describes the local branch and its remote-tracking branch
type SyncState struct {
	Status    models.SyncStatus
	Branch    plumbing.ReferenceName
	RemoteRef plumbing.ReferenceName
	Local     plumbing.Hash
	Remote    plumbing.Hash
}

// PullPlan holds everything needed to merge the tracked file and record the result.
// It is produced by PrepareMerge and consumed once by the Bookkeeper.
type PullPlan struct {
	Status    models.SyncStatus
	Branch    plumbing.ReferenceName
	RemoteRef plumbing.ReferenceName
	Path      string

	Base   plumbing.Hash
	Local  plumbing.Hash
	Remote plumbing.Hash

	BaseContent   []byte
	LocalContent  []byte
	RemoteContent []byte

	BaseDB   *models.Database
	LocalDB  *models.Database
	RemoteDB *models.Database
}

// Analyze runs the three-way analysis over the plan's snapshots
func (p *PullPlan) Analyze() *models.MergeAnalysis {
	return Analyze(p.BaseDB, p.LocalDB, p.RemoteDB)
}

// Merge builds the merged database from the analysis and the given resolutions
func (p *PullPlan) Merge(analysis *models.MergeAnalysis, resolutions []models.Resolution) (*models.Database, error) {
	return BuildMergedDatabase(p.BaseDB, p.LocalDB, p.RemoteDB, analysis, resolutions)
}

// LocalUnchanged reports whether the local side never touched the tracked file
// since the merge base
func (p *PullPlan) LocalUnchanged() bool {
	return string(p.BaseContent) == string(p.LocalContent)
}

// Pending converts the plan into a persistable pending merge
func (p *PullPlan) Pending(conflicts []*models.ThreeWayEntryConflict) *models.PendingMerge {
	keys := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		keys = append(keys, c.Key)
	}
	return &models.PendingMerge{
		Path:      p.Path,
		Status:    p.Status,
		Branch:    p.Branch.Short(),
		RemoteRef: p.RemoteRef.String(),
		Base:      p.Base.String(),
		Local:     p.Local.String(),
		Remote:    p.Remote.String(),
		Conflicts: keys,
	}
}

// SyncService classifies the relationship between the local branch and its
// remote-tracking branch and loads the snapshots needed for a merge
type SyncService struct {
	repo   gitrepo.Repository
	remote string
	branch string // upstream branch name; empty = same as the checked-out branch
	logger *log.Logger
}

// NewSyncService creates a SyncService. A nil logger discards output.
func NewSyncService(repo gitrepo.Repository, remote, branch string, logger *log.Logger) *SyncService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if remote == "" {
		remote = "origin"
	}
	return &SyncService{repo: repo, remote: remote, branch: branch, logger: logger}
}

// Fetch updates the remote-tracking refs
func (s *SyncService) Fetch(ctx context.Context) error {
	s.logger.Debug("fetching", "remote", s.remote)
	if err := s.repo.Fetch(ctx, s.remote); err != nil {
		return err
	}
	return nil
}

// Status resolves both tips and classifies them
func (s *SyncService) Status(ctx context.Context) (*SyncState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	branch, local, err := s.repo.CurrentBranch()
	if err != nil {
		return nil, err
	}

	upstream := s.branch
	if upstream == "" {
		upstream = branch.Short()
	}
	remoteRef := plumbing.NewRemoteReferenceName(s.remote, upstream)

	remote, err := s.repo.ResolveRef(remoteRef)
	if err != nil {
		if errors.Is(err, gitrepo.ErrReferenceNotFound) {
			return nil, fmt.Errorf("%s: %w", remoteRef.Short(), ErrRemoteRefNotFound)
		}
		return nil, err
	}

	state := &SyncState{
		Branch:    branch,
		RemoteRef: remoteRef,
		Local:     local,
		Remote:    remote,
	}

	if local == remote {
		state.Status = models.SyncUpToDate
		return state, nil
	}

	behind, err := s.repo.IsAncestor(local, remote)
	if err != nil {
		return nil, fmt.Errorf("check ancestry: %w", err)
	}
	if behind {
		state.Status = models.SyncBehind
		return state, nil
	}

	ahead, err := s.repo.IsAncestor(remote, local)
	if err != nil {
		return nil, fmt.Errorf("check ancestry: %w", err)
	}
	if ahead {
		state.Status = models.SyncAhead
	} else {
		state.Status = models.SyncDiverged
	}
	return state, nil
}

// PrepareMerge classifies the branches and, when there is something to merge,
// loads the tracked file at the merge base, the local tip and the remote tip.
// It returns nil without error when up to date, ahead, or when the histories
// share no merge base.
func (s *SyncService) PrepareMerge(ctx context.Context, filePath string) (*PullPlan, error) {
	state, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("sync status", "status", state.Status, "local", state.Local.String()[:7], "remote", state.Remote.String()[:7])

	switch state.Status {
	case models.SyncUpToDate, models.SyncAhead:
		return nil, nil
	}

	base, found, err := s.repo.MergeBase(state.Local, state.Remote)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Warn("no merge base between local and remote", "branch", state.Branch.Short(), "remote", state.RemoteRef.Short())
		return nil, nil
	}

	return s.loadPlan(ctx, state, base, filePath)
}

// LoadPlan rebuilds the plan of a saved pending merge. It fails with
// ErrStalePlan if either tip moved since the merge was prepared.
func (s *SyncService) LoadPlan(ctx context.Context, pending *models.PendingMerge) (*PullPlan, error) {
	state, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}

	if state.Local.String() != pending.Local || state.Remote.String() != pending.Remote {
		s.logger.Debug("stale pending merge", "id", pending.ID, "local", state.Local.String(), "remote", state.Remote.String())
		return nil, ErrStalePlan
	}
	state.Status = pending.Status

	return s.loadPlan(ctx, state, plumbing.NewHash(pending.Base), pending.Path)
}

func (s *SyncService) loadPlan(ctx context.Context, state *SyncState, base plumbing.Hash, filePath string) (*PullPlan, error) {
	plan := &PullPlan{
		Status:    state.Status,
		Branch:    state.Branch,
		RemoteRef: state.RemoteRef,
		Path:      filePath,
		Base:      base,
		Local:     state.Local,
		Remote:    state.Remote,
	}

	var err error
	if plan.BaseContent, plan.BaseDB, err = s.loadSnapshot(ctx, base, filePath); err != nil {
		return nil, fmt.Errorf("load base: %w", err)
	}
	if plan.LocalContent, plan.LocalDB, err = s.loadSnapshot(ctx, state.Local, filePath); err != nil {
		return nil, fmt.Errorf("load local: %w", err)
	}
	if plan.RemoteContent, plan.RemoteDB, err = s.loadSnapshot(ctx, state.Remote, filePath); err != nil {
		return nil, fmt.Errorf("load remote: %w", err)
	}

	s.logger.Info("prepared merge",
		"status", plan.Status,
		"file", filePath,
		"base", base.String()[:7],
		"entries", len(plan.BaseDB.Entries))
	return plan, nil
}

// loadSnapshot reads and parses the tracked file at a commit. A missing file
// is an empty database.
func (s *SyncService) loadSnapshot(ctx context.Context, commit plumbing.Hash, filePath string) ([]byte, *models.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	content, found, err := s.repo.ReadFile(commit, filePath)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		s.logger.Debug("file absent at commit", "file", filePath, "commit", commit.String()[:7])
		return nil, models.NewDatabase(), nil
	}

	db, err := bibtex.Parse(string(content))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s at %s: %w", filePath, commit.String()[:7], err)
	}
	return content, db, nil
}
