package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show sync history",
	Long:  `Display the pulls recorded by bibsync, newest first.`,
	Args:  cobra.NoArgs,
	Run:   runLog,
}

var (
	logOneline bool
	logLimit   int
)

func init() {
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "Show each sync on a single line")
	logCmd.Flags().IntVarP(&logLimit, "n", "n", 0, "Limit the number of records to show")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	records, err := c.Store.ListSyncHistory(logLimit)
	if err != nil {
		exitError("failed to read sync history: %v", err)
	}

	if len(records) == 0 {
		fmt.Println("No syncs yet")
		return
	}

	yellow := color.New(color.FgYellow)
	magenta := color.New(color.FgMagenta)

	for _, rec := range records {
		if logOneline {
			yellow.Printf("%s ", rec.ShortCommit())
			fmt.Printf("%s %s", rec.Result, rec.Path)
			if rec.IsMergeCommit() {
				magenta.Print(" [merge]")
			}
			fmt.Println()
			continue
		}

		yellow.Printf("commit %s", rec.Commit)
		if rec.IsMergeCommit() {
			magenta.Print(" [merge]")
		}
		fmt.Println()
		fmt.Printf("Date:      %s\n", rec.Timestamp.Format("Mon Jan 2 15:04:05 2006"))
		fmt.Printf("File:      %s (%s)\n", rec.Path, rec.Status)
		fmt.Printf("Result:    %s\n", describeResult(rec))
		if rec.Conflicts > 0 {
			fmt.Printf("Conflicts: %d resolved\n", rec.Conflicts)
		}
		fmt.Println()
	}
}

func describeResult(rec *models.SyncRecord) string {
	switch {
	case rec.Result == models.FastForward:
		return "fast-forward"
	case rec.IsMergeCommit():
		return fmt.Sprintf("merge of %s and %s", shortID(rec.Parents[0]), shortID(rec.Parents[1]))
	case len(rec.Parents) == 1:
		return fmt.Sprintf("commit on top of %s", shortID(rec.Parents[0]))
	}
	return string(rec.Result)
}
