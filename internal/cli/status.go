package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/bibsync/internal/core"
	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how the local branch relates to the remote",
	Long: `Show the tracked file, the relationship between the local branch and
its remote-tracking branch as of the last fetch, and any pending merge.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	fmt.Printf("Tracking %s\n", c.Config.File)
	if t := c.lastFetch(); !t.IsZero() {
		fmt.Printf("Last fetched from %s at %s\n", c.Config.Remote, t.Local().Format("2006-01-02 15:04"))
	}

	state, err := c.SyncService().Status(ctx)
	switch {
	case errors.Is(err, core.ErrRemoteRefNotFound):
		yellow.Printf("No remote-tracking branch yet (%v)\n", err)
		cyan.Println("  (use \"bibsync fetch\" to download it)")
	case err != nil:
		exitError("%v", err)
	default:
		fmt.Printf("On branch %s\n", state.Branch.Short())
		switch state.Status {
		case models.SyncUpToDate:
			green.Printf("Up to date with '%s'\n", state.RemoteRef.Short())
		case models.SyncAhead:
			fmt.Printf("Ahead of '%s'\n", state.RemoteRef.Short())
		case models.SyncBehind:
			yellow.Printf("Behind '%s'\n", state.RemoteRef.Short())
			cyan.Println("  (use \"bibsync pull\" to update)")
		case models.SyncDiverged:
			yellow.Printf("Diverged from '%s'\n", state.RemoteRef.Short())
			cyan.Println("  (use \"bibsync pull\" to merge)")
		}
	}

	if err := c.checkClean(); errors.Is(err, errDirtyFile) {
		red.Printf("\n%s has uncommitted changes\n", c.Config.File)
	}

	pending, err := c.Store.GetPendingMerge(c.Config.File)
	if err == nil {
		red.Printf("\nMerge in progress (%d conflict(s), prepared %s)\n",
			len(pending.Conflicts), pending.CreatedAt.Format("2006-01-02 15:04"))
		for _, key := range pending.Conflicts {
			fmt.Printf("        %s\n", key)
		}
		cyan.Println("  (use \"bibsync continue\" or \"bibsync abort\")")
	}
}
