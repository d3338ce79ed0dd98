// Package cli implements the command-line interface for bibsync.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/kilupskalvis/bibsync/internal/config"
	"github.com/kilupskalvis/bibsync/internal/core"
	"github.com/kilupskalvis/bibsync/internal/gitrepo"
	"github.com/kilupskalvis/bibsync/internal/store"
	"github.com/spf13/cobra"
)

var verbose bool

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config *config.Config
	Store  *store.Store
	Repo   *gitrepo.Repo
	Logger *log.Logger
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// SyncService builds the sync service for the configured remote and branch
func (c *cmdContext) SyncService() *core.SyncService {
	return core.NewSyncService(c.Repo, c.Config.Remote, c.Config.Branch, c.Logger)
}

// Bookkeeper builds a bookkeeper signing with the configured identity
func (c *cmdContext) Bookkeeper() *core.Bookkeeper {
	name, email := c.Config.AuthorName, c.Config.AuthorEmail
	if name == "" || email == "" {
		gitName, gitEmail := c.Repo.Identity()
		if name == "" {
			name = gitName
		}
		if email == "" {
			email = gitEmail
		}
	}
	return core.NewBookkeeper(c.Repo, name, email, c.Logger)
}

// initContext loads config, opens the store and the git repository
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	logger := newLogger(cfg.LogLevel)

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to open store: %v", err)
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		exitError("failed to initialize store: %v", err)
	}

	retry := gitrepo.DefaultRetryConfig()
	retry.MaxRetries = cfg.Retries()
	repo, err := gitrepo.Open(cfg.Root(),
		gitrepo.WithBasicAuth(cfg.AuthUser, cfg.AuthToken()),
		gitrepo.WithRetry(retry),
	)
	if err != nil {
		st.Close()
		exitError("%v", err)
	}

	return &cmdContext{Config: cfg, Store: st, Repo: repo, Logger: logger}
}

// newLogger creates the stderr logger; --verbose forces debug level
func newLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.WarnLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:  lvl,
		Prefix: "bibsync",
	})
}

var rootCmd = &cobra.Command{
	Use:   "bibsync",
	Short: "Semantic git sync for BibTeX databases",
	Long: `bibsync keeps a BibTeX database in a git repository in sync with its
remote. Concurrent edits are merged entry by entry and field by field, so two
people fixing different fields of the same reference never conflict.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(logCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 7 characters of a commit hash
func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
