// Command bibsync merges concurrent edits to a git-tracked BibTeX database.
package main

import (
	"os"

	"github.com/kilupskalvis/bibsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
