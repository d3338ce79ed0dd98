package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/kilupskalvis/bibsync/internal/bibtex"
	"github.com/kilupskalvis/bibsync/internal/core"
	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/kilupskalvis/bibsync/internal/store"
	"github.com/spf13/cobra"
)

var (
	errMergeInProgress = errors.New("a merge is in progress; run 'bibsync continue' or 'bibsync abort'")
	errDirtyFile       = errors.New("uncommitted changes to the tracked file; commit or stash them first")
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch and merge the remote version of the BibTeX file",
	Long: `Fetch the remote, merge the remote version of the tracked BibTeX file
into the local one and record the result in git.

When only the remote changed, the branch is fast-forwarded. Otherwise the
merged file is committed on top of the remote tip or, if both sides have new
commits, as a merge commit with both tips as parents.

Entries changed on both sides in the same field are conflicts. Without
--ours, --theirs or -i the merge stops and waits for 'bibsync continue'.

Examples:
  bibsync pull              Merge, stop on conflicts
  bibsync pull -i           Resolve conflicts interactively
  bibsync pull --theirs     On conflict, take the remote entry
  bibsync pull --no-fetch   Merge against the last fetched remote state`,
	Args: cobra.NoArgs,
	Run:  runPull,
}

var (
	pullOurs        bool
	pullTheirs      bool
	pullInteractive bool
	pullNoFetch     bool
)

func init() {
	pullCmd.Flags().BoolVar(&pullOurs, "ours", false, "On conflict, keep the local entry")
	pullCmd.Flags().BoolVar(&pullTheirs, "theirs", false, "On conflict, take the remote entry")
	pullCmd.Flags().BoolVarP(&pullInteractive, "interactive", "i", false, "Resolve conflicts interactively")
	pullCmd.Flags().BoolVar(&pullNoFetch, "no-fetch", false, "Do not fetch before merging")
}

func runPull(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	resolver, err := resolverFromFlags(pullOurs, pullTheirs, pullInteractive)
	if err != nil {
		exitError("%v", err)
	}

	if !pullNoFetch {
		fmt.Printf("Fetching from %s...\n", c.Config.Remote)
		if err := c.fetch(ctx); err != nil {
			exitError("%v", err)
		}
	}

	outcome, err := c.pull(ctx, resolver)
	if err != nil {
		exitError("%v", err)
	}
	printPullOutcome(outcome)
	if outcome.Pending != nil {
		os.Exit(1)
	}
}

// pullOutcome is what a pull did
type pullOutcome struct {
	State     *core.SyncState // set when there was nothing to merge
	Plan      *core.PullPlan
	Conflicts []*models.ThreeWayEntryConflict
	Result    *core.BookkeepingResult
	Pending   *models.PendingMerge // set when the merge stopped on conflicts
}

// pull merges the remote version of the tracked file. With a nil resolver,
// conflicts are saved as a pending merge instead of being resolved.
func (c *cmdContext) pull(ctx context.Context, resolver core.ConflictResolver) (*pullOutcome, error) {
	file := c.Config.File

	has, err := c.Store.HasPendingMerge(file)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, errMergeInProgress
	}

	if err := c.checkClean(); err != nil {
		return nil, err
	}

	svc := c.SyncService()
	plan, err := svc.PrepareMerge(ctx, file)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		state, err := svc.Status(ctx)
		if err != nil {
			return nil, err
		}
		return &pullOutcome{State: state}, nil
	}

	analysis := plan.Analyze()
	outcome := &pullOutcome{Plan: plan, Conflicts: analysis.Conflicts}

	if analysis.HasConflicts() && resolver == nil {
		pending := plan.Pending(analysis.Conflicts)
		if err := c.Store.SavePendingMerge(pending); err != nil {
			return nil, fmt.Errorf("save pending merge: %w", err)
		}
		c.Logger.Info("merge paused", "conflicts", len(analysis.Conflicts), "id", pending.ID)
		outcome.Pending = pending
		return outcome, nil
	}

	result, err := c.finishMerge(ctx, plan, analysis, resolver)
	if err != nil {
		return nil, err
	}
	outcome.Result = result
	return outcome, nil
}

// finishMerge resolves conflicts, writes the merged file and records it in git
func (c *cmdContext) finishMerge(ctx context.Context, plan *core.PullPlan, analysis *models.MergeAnalysis, resolver core.ConflictResolver) (*core.BookkeepingResult, error) {
	var resolutions []models.Resolution
	if analysis.HasConflicts() {
		var err error
		if resolutions, err = resolver.Resolve(analysis.Conflicts); err != nil {
			return nil, fmt.Errorf("resolve conflicts: %w", err)
		}
	}

	var content []byte
	if plan.Status == models.SyncBehind && plan.LocalUnchanged() {
		// Keep the remote bytes so the branch can simply fast-forward
		content = plan.RemoteContent
	} else {
		merged, err := plan.Merge(analysis, resolutions)
		if err != nil {
			return nil, err
		}
		content = []byte(bibtex.Serialize(merged))
	}

	if err := os.WriteFile(c.Config.FilePath(), content, 0644); err != nil {
		return nil, fmt.Errorf("write merged file: %w", err)
	}

	result, err := c.Bookkeeper().ResultRecord(ctx, plan.Path, plan)
	if err != nil {
		return nil, err
	}

	rec := &models.SyncRecord{
		Path:      plan.Path,
		Status:    plan.Status,
		Result:    result.Kind,
		Commit:    result.Commit.String(),
		Parents:   hashStrings(result.Parents),
		Conflicts: len(analysis.Conflicts),
	}
	if err := c.Store.RecordSync(rec); err != nil {
		c.Logger.Warn("could not record sync history", "err", err)
	}

	if err := c.Store.DeletePendingMerge(plan.Path); err != nil && !errors.Is(err, store.ErrNoPendingMerge) {
		return nil, err
	}
	return result, nil
}

// checkClean refuses to merge over uncommitted edits of the tracked file
func (c *cmdContext) checkClean() error {
	_, head, err := c.Repo.CurrentBranch()
	if err != nil {
		return err
	}

	committed, found, err := c.Repo.ReadFile(head, c.Config.File)
	if err != nil {
		return err
	}

	onDisk, err := os.ReadFile(c.Config.FilePath())
	if os.IsNotExist(err) && !found {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Config.File, err)
	}
	if !found || !bytes.Equal(committed, onDisk) {
		return errDirtyFile
	}
	return nil
}

// resolverFromFlags picks a conflict resolver; nil means stop on conflicts
func resolverFromFlags(ours, theirs, interactive bool) (core.ConflictResolver, error) {
	n := 0
	for _, set := range []bool{ours, theirs, interactive} {
		if set {
			n++
		}
	}
	if n > 1 {
		return nil, fmt.Errorf("--ours, --theirs and --interactive are mutually exclusive")
	}

	switch {
	case ours:
		return core.StrategyResolver{Strategy: models.ConflictOurs}, nil
	case theirs:
		return core.StrategyResolver{Strategy: models.ConflictTheirs}, nil
	case interactive:
		return newPromptResolver(), nil
	}
	return nil, nil
}

func printPullOutcome(o *pullOutcome) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	if o.State != nil {
		switch o.State.Status {
		case models.SyncUpToDate:
			fmt.Println("Already up to date.")
		case models.SyncAhead:
			fmt.Printf("Your branch is ahead of '%s'; nothing to merge.\n", o.State.RemoteRef.Short())
		default:
			yellow.Printf("'%s' and '%s' share no history; nothing was merged.\n",
				o.State.Branch.Short(), o.State.RemoteRef.Short())
		}
		return
	}

	if o.Pending != nil {
		red.Printf("CONFLICTS in %s:\n", o.Pending.Path)
		fmt.Print(renderConflicts(o.Conflicts))
		fmt.Println("\nResolve with 'bibsync continue --ours|--theirs|-i' or give up with 'bibsync abort'.")
		return
	}

	switch o.Result.Kind {
	case models.FastForward:
		green.Printf("Fast-forward to %s\n", shortID(o.Result.Commit.String()))
	case models.NewCommit:
		if len(o.Result.Parents) > 1 {
			fmt.Printf("Merge commit %s\n", shortID(o.Result.Commit.String()))
		} else {
			fmt.Printf("Committed %s on top of %s\n", shortID(o.Result.Commit.String()), o.Plan.RemoteRef.Short())
		}
	}
	if n := len(o.Conflicts); n > 0 {
		yellow.Printf("Resolved %d conflict(s)\n", n)
	}
}

func hashStrings(hashes []plumbing.Hash) []string {
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, h.String())
	}
	return out
}
