package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilupskalvis/bibsync/internal/bibtex"
	"github.com/kilupskalvis/bibsync/internal/config"
	"github.com/kilupskalvis/bibsync/internal/gitrepo"
	"github.com/kilupskalvis/bibsync/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <file.bib>",
	Short: "Start tracking a BibTeX file",
	Long: `Initialize bibsync for a BibTeX file inside a git repository.
This creates a .bibsync directory at the repository root holding the
configuration and the sync state.

Examples:
  bibsync init refs.bib
  bibsync init --remote upstream --branch main lit/refs.bib`,
	Args: cobra.ExactArgs(1),
	Run:  runInit,
}

var (
	initRemote      string
	initBranch      string
	initAuthorName  string
	initAuthorEmail string
)

func init() {
	initCmd.Flags().StringVar(&initRemote, "remote", config.DefaultRemote, "Remote to sync with")
	initCmd.Flags().StringVar(&initBranch, "branch", "", "Upstream branch (default: current branch)")
	initCmd.Flags().StringVar(&initAuthorName, "author-name", "", "Name for merge commits (default: git config)")
	initCmd.Flags().StringVar(&initAuthorEmail, "author-email", "", "Email for merge commits (default: git config)")
}

func runInit(cmd *cobra.Command, args []string) {
	// Check if already initialized
	if _, err := config.FindRoot(); err == nil {
		exitError("bibsync repository already exists")
	}

	repo, err := gitrepo.Open(".")
	if err != nil {
		exitError("%v", err)
	}

	rel, err := repo.RelPath(args[0])
	if err != nil {
		exitError("%v", err)
	}

	// The file must parse so the first pull does not fail on it
	if content, err := os.ReadFile(filepath.Join(repo.Root(), filepath.FromSlash(rel))); err == nil {
		if _, err := bibtex.Parse(string(content)); err != nil {
			exitError("%s: %v", rel, err)
		}
	} else if !os.IsNotExist(err) {
		exitError("%v", err)
	}

	cfg, err := config.Initialize(repo.Root(), rel)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	cfg.Remote = initRemote
	cfg.Branch = initBranch
	cfg.AuthorName = initAuthorName
	cfg.AuthorEmail = initAuthorEmail
	if err := cfg.Save(); err != nil {
		exitError("failed to save config: %v", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to create store: %v", err)
	}
	defer st.Close()

	if err := st.Initialize(); err != nil {
		exitError("failed to initialize store: %v", err)
	}

	fmt.Printf("Initialized bibsync in %s\n", cfg.Path())
	fmt.Printf("Tracking %s against %s\n", rel, cfg.Remote)
}
