package cli

import (
	"context"
	"errors"

	"github.com/fatih/color"
	"github.com/kilupskalvis/bibsync/internal/core"
	"github.com/spf13/cobra"
)

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Resolve the conflicts of a stopped pull and record the merge",
	Long: `Finish a pull that stopped on conflicts. A resolution strategy is required.

Examples:
  bibsync continue --ours     Keep the local version of every conflicting entry
  bibsync continue --theirs   Take the remote version of every conflicting entry
  bibsync continue -i         Choose per entry`,
	Args: cobra.NoArgs,
	Run:  runContinue,
}

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Forget a pull that stopped on conflicts",
	Long:  `Discard the pending merge. The working tree and the branch are left untouched.`,
	Args:  cobra.NoArgs,
	Run:   runAbort,
}

var (
	continueOurs        bool
	continueTheirs      bool
	continueInteractive bool
)

func init() {
	continueCmd.Flags().BoolVar(&continueOurs, "ours", false, "Keep the local entry")
	continueCmd.Flags().BoolVar(&continueTheirs, "theirs", false, "Take the remote entry")
	continueCmd.Flags().BoolVarP(&continueInteractive, "interactive", "i", false, "Resolve conflicts interactively")
}

func runContinue(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	resolver, err := resolverFromFlags(continueOurs, continueTheirs, continueInteractive)
	if err != nil {
		exitError("%v", err)
	}
	if resolver == nil {
		exitError("choose how to resolve: --ours, --theirs or --interactive")
	}

	outcome, err := c.continueMerge(ctx, resolver)
	if errors.Is(err, core.ErrStalePlan) {
		exitError("%v; run 'bibsync abort' and pull again", err)
	}
	if err != nil {
		exitError("%v", err)
	}
	printPullOutcome(outcome)
}

// continueMerge resumes the pending merge of the tracked file
func (c *cmdContext) continueMerge(ctx context.Context, resolver core.ConflictResolver) (*pullOutcome, error) {
	pending, err := c.Store.GetPendingMerge(c.Config.File)
	if err != nil {
		return nil, err
	}

	if err := c.checkClean(); err != nil {
		return nil, err
	}

	plan, err := c.SyncService().LoadPlan(ctx, pending)
	if err != nil {
		return nil, err
	}

	analysis := plan.Analyze()
	result, err := c.finishMerge(ctx, plan, analysis, resolver)
	if err != nil {
		return nil, err
	}
	return &pullOutcome{Plan: plan, Conflicts: analysis.Conflicts, Result: result}, nil
}

func runAbort(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.Store.DeletePendingMerge(c.Config.File); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgYellow).Printf("Aborted the pending merge of %s\n", c.Config.File)
}
