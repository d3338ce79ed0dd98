package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/kilupskalvis/bibsync/internal/bibtex"
	"github.com/kilupskalvis/bibsync/internal/core"
	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show entry-level changes of the tracked file",
	Long: `Show the differences between the committed BibTeX file and the working
copy, or with --remote between the committed file and the remote-tracking
branch.

With --remote, --apply copies the remote version of the named entries into
the working copy without merging anything else.

Examples:
  bibsync diff                        Uncommitted changes
  bibsync diff --remote --stat        Summary of what a pull would bring in
  bibsync diff --remote --apply sicp  Take the remote version of entry sicp`,
	Args: cobra.NoArgs,
	Run:  runDiff,
}

var (
	diffStat   bool
	diffRemote bool
	diffApply  []string
)

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "Show a summary instead of every change")
	diffCmd.Flags().BoolVar(&diffRemote, "remote", false, "Compare against the remote-tracking branch")
	diffCmd.Flags().StringSliceVar(&diffApply, "apply", nil, "Copy the remote version of these entry keys into the working copy")
}

func runDiff(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if len(diffApply) > 0 {
		if !diffRemote {
			exitError("--apply requires --remote")
		}
		applied, err := c.applyRemote(diffApply)
		if err != nil {
			exitError("%v", err)
		}
		for _, ch := range applied {
			printChange(ch)
		}
		color.New(color.FgGreen).Printf("Applied %d change(s) to %s\n", len(applied), c.Config.File)
		return
	}

	changes, err := c.diff(diffRemote)
	if err != nil {
		exitError("%v", err)
	}

	if len(changes) == 0 {
		fmt.Println("No changes")
		return
	}

	if diffStat {
		counts := make(map[models.ChangeKind]int)
		for _, ch := range changes {
			counts[ch.Kind()]++
		}
		added := counts[models.ChangeEntryAdded]
		changed := counts[models.ChangeEntryChanged]
		deleted := counts[models.ChangeEntryDeleted]
		if added > 0 {
			color.New(color.FgGreen).Printf(" %d entries added(+)\n", added)
		}
		if changed > 0 {
			color.New(color.FgYellow).Printf(" %d entries modified(~)\n", changed)
		}
		if deleted > 0 {
			color.New(color.FgRed).Printf(" %d entries deleted(-)\n", deleted)
		}
		if other := len(changes) - added - changed - deleted; other > 0 {
			fmt.Printf(" %d header change(s)\n", other)
		}
		return
	}

	for _, ch := range changes {
		printChange(ch)
	}
}

// diff lists the changes from the committed file to the working copy or the remote tip
func (c *cmdContext) diff(remote bool) ([]models.DatabaseChange, error) {
	_, head, err := c.Repo.CurrentBranch()
	if err != nil {
		return nil, err
	}

	oldDB, err := c.databaseAt(head)
	if err != nil {
		return nil, err
	}

	var newDB *models.Database
	if remote {
		state, err := c.SyncService().Status(context.Background())
		if err != nil {
			return nil, err
		}
		if newDB, err = c.databaseAt(state.Remote); err != nil {
			return nil, err
		}
	} else {
		if newDB, err = c.workingDatabase(); err != nil {
			return nil, err
		}
	}

	return core.DiffDatabases(oldDB, newDB), nil
}

// applyRemote replays the remote-side changes of the given entry keys onto
// the working copy. Every key must have a remote change.
func (c *cmdContext) applyRemote(keys []string) ([]models.DatabaseChange, error) {
	changes, err := c.diff(true)
	if err != nil {
		return nil, err
	}
	working, err := c.workingDatabase()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	var applied []models.DatabaseChange
	for _, ch := range changes {
		key := changeKey(ch)
		if !wanted[key] {
			continue
		}
		if err := core.ApplyChange(working, ch); err != nil {
			return nil, fmt.Errorf("apply %s: %w", key, err)
		}
		applied = append(applied, ch)
		delete(wanted, key)
	}
	if len(wanted) > 0 {
		return nil, fmt.Errorf("no remote change for %s", strings.Join(slices.Sorted(maps.Keys(wanted)), ", "))
	}

	if err := os.WriteFile(c.Config.FilePath(), []byte(bibtex.Serialize(working)), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", c.Config.File, err)
	}
	return applied, nil
}

// changeKey returns the citation key an entry change touches, "" otherwise
func changeKey(change models.DatabaseChange) string {
	switch c := change.(type) {
	case models.EntryAdded:
		return c.Entry.Key
	case models.EntryChanged:
		return c.New.Key
	case models.EntryDeleted:
		return c.Entry.Key
	}
	return ""
}

// workingDatabase parses the tracked file on disk; a missing file is empty
func (c *cmdContext) workingDatabase() (*models.Database, error) {
	content, err := os.ReadFile(c.Config.FilePath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	db, err := bibtex.Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Config.File, err)
	}
	return db, nil
}

func (c *cmdContext) databaseAt(commit plumbing.Hash) (*models.Database, error) {
	content, found, err := c.Repo.ReadFile(commit, c.Config.File)
	if err != nil {
		return nil, err
	}
	if !found {
		return models.NewDatabase(), nil
	}
	db, err := bibtex.Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s at %s: %w", c.Config.File, shortID(commit.String()), err)
	}
	return db, nil
}
