package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download refs from the remote",
	Long: `Update the remote-tracking branch without touching the local branch
or the tracked file, then report how the two branches relate.`,
	Args: cobra.NoArgs,
	Run:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	svc := c.SyncService()

	fmt.Printf("Fetching from %s...\n", c.Config.Remote)
	if err := c.fetch(ctx); err != nil {
		exitError("%v", err)
	}

	state, err := svc.Status(ctx)
	if err != nil {
		exitError("%v", err)
	}

	if state.Status == models.SyncUpToDate {
		fmt.Println("Already up to date.")
		return
	}
	color.New(color.FgYellow).Printf("%s is %s '%s'\n", state.Branch.Short(), state.Status, state.RemoteRef.Short())
	if state.Status == models.SyncBehind || state.Status == models.SyncDiverged {
		fmt.Println("Run 'bibsync pull' to merge.")
	}
}
