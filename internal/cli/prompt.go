package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/kilupskalvis/bibsync/internal/bibtex"
	"github.com/kilupskalvis/bibsync/internal/core"
	"github.com/kilupskalvis/bibsync/internal/models"
)

// errResolutionAborted is returned when the user leaves the prompt
var errResolutionAborted = errors.New("conflict resolution aborted")

// promptResolver asks the user to resolve each conflict in the terminal
type promptResolver struct {
	// run executes a form; replaced in tests
	run func(*huh.Form) error
}

// Verify that promptResolver implements core.ConflictResolver at compile time
var _ core.ConflictResolver = (*promptResolver)(nil)

func newPromptResolver() *promptResolver {
	return &promptResolver{run: func(f *huh.Form) error { return f.Run() }}
}

// Resolve implements core.ConflictResolver
func (p *promptResolver) Resolve(conflicts []*models.ThreeWayEntryConflict) ([]models.Resolution, error) {
	resolutions := make([]models.Resolution, 0, len(conflicts))

	for i, c := range conflicts {
		choice := string(models.ResolveLocal)
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewNote().
					Title(fmt.Sprintf("Conflict %d/%d", i+1, len(conflicts))).
					Description(renderConflict(c)),
				huh.NewSelect[string]().
					Title("Keep which version?").
					Options(resolutionOptions(c)...).
					Value(&choice),
			),
		)
		if err := p.run(form); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil, errResolutionAborted
			}
			return nil, err
		}

		r := models.Resolution{Key: c.Key, Choice: models.ResolutionChoice(choice)}
		if r.Choice == models.ResolveManual {
			entry, err := p.edit(c)
			if err != nil {
				return nil, err
			}
			r.Entry = entry
		}
		resolutions = append(resolutions, r)
	}
	return resolutions, nil
}

func resolutionOptions(c *models.ThreeWayEntryConflict) []huh.Option[string] {
	local := "Keep local"
	if c.Local == nil {
		local = "Keep local (delete entry)"
	}
	remote := "Take remote"
	if c.Remote == nil {
		remote = "Take remote (delete entry)"
	}
	return []huh.Option[string]{
		huh.NewOption(local, string(models.ResolveLocal)),
		huh.NewOption(remote, string(models.ResolveRemote)),
		huh.NewOption("Edit manually", string(models.ResolveManual)),
	}
}

// edit lets the user write the entry by hand, starting from the local
// version. An empty text deletes the entry.
func (p *promptResolver) edit(c *models.ThreeWayEntryConflict) (*models.Entry, error) {
	start := c.Local
	if start == nil {
		start = c.Remote
	}
	text := ""
	if start != nil {
		text = bibtex.SerializeEntry(start)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Edit " + c.Key).
				Description("Leave empty to delete the entry").
				CharLimit(20000).
				Value(&text).
				Validate(func(s string) error {
					_, err := parseManualEntry(s)
					return err
				}),
		),
	)
	if err := p.run(form); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, errResolutionAborted
		}
		return nil, err
	}
	return parseManualEntry(text)
}

// parseManualEntry parses a hand-written entry; empty input means deletion
func parseManualEntry(text string) (*models.Entry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	db, err := bibtex.Parse(text)
	if err != nil {
		return nil, err
	}
	if len(db.Entries) != 1 {
		return nil, fmt.Errorf("expected exactly one entry, found %d", len(db.Entries))
	}
	return db.Entries[0], nil
}
