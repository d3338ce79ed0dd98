package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/kilupskalvis/bibsync/internal/bibtex"
	"github.com/kilupskalvis/bibsync/internal/models"
)

var (
	colorLocal  = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorRemote = lipgloss.AdaptiveColor{Light: "#a37acc", Dark: "#d2a6ff"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}

	keyStyle    = lipgloss.NewStyle().Bold(true)
	typeStyle   = lipgloss.NewStyle().Foreground(colorFail)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorMuted)
	fieldStyle  = lipgloss.NewStyle().Width(12).Foreground(colorMuted)
	cellStyle   = lipgloss.NewStyle().Width(30).PaddingRight(2)
	localStyle  = cellStyle.Foreground(colorLocal)
	remoteStyle = cellStyle.Foreground(colorRemote)
)

const absent = "(absent)"

// renderConflicts renders a review table per conflicting entry: the colliding
// fields, or every field for delete conflicts, with base/local/remote values
func renderConflicts(conflicts []*models.ThreeWayEntryConflict) string {
	var b strings.Builder
	for _, c := range conflicts {
		b.WriteString(renderConflict(c))
		b.WriteString("\n")
	}
	return b.String()
}

func renderConflict(c *models.ThreeWayEntryConflict) string {
	var rows []string
	rows = append(rows, keyStyle.Render(c.Key)+"  "+typeStyle.Render(string(c.Type)))
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
		fieldStyle.Render(""),
		cellStyle.Render(headerStyle.Render("base")),
		cellStyle.Render(headerStyle.Render("local")),
		cellStyle.Render(headerStyle.Render("remote")),
	))

	for _, name := range conflictFields(c) {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			fieldStyle.Render(name),
			cellStyle.Render(fieldValue(c.Base, name)),
			localStyle.Render(fieldValue(c.Local, name)),
			remoteStyle.Render(fieldValue(c.Remote, name)),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// conflictFields lists the fields worth showing for a conflict
func conflictFields(c *models.ThreeWayEntryConflict) []string {
	if len(c.Fields) > 0 {
		return c.Fields
	}
	names := make(map[string]bool)
	for _, e := range []*models.Entry{c.Base, c.Local, c.Remote} {
		if e == nil {
			continue
		}
		for name := range e.FieldsWithType() {
			names[name] = true
		}
	}
	return slices.Sorted(maps.Keys(names))
}

func fieldValue(e *models.Entry, name string) string {
	if e == nil {
		return absent
	}
	v, ok := e.FieldsWithType()[name]
	if !ok {
		return "-"
	}
	return bibtex.DisplayValue(v)
}

// describeChange is a one-line summary of a database change
func describeChange(change models.DatabaseChange) string {
	switch c := change.(type) {
	case models.EntryAdded:
		return fmt.Sprintf("new entry:       %s (%s)", c.Entry.Key, c.Entry.Type)
	case models.EntryChanged:
		return fmt.Sprintf("modified entry:  %s [%s]", c.New.Key, strings.Join(c.Patch.Names(), ", "))
	case models.EntryDeleted:
		return fmt.Sprintf("deleted entry:   %s", c.Entry.Key)
	case models.StringAdded:
		return fmt.Sprintf("new string:      %s = %s", c.Name, bibtex.DisplayValue(c.Value))
	case models.StringChanged:
		return fmt.Sprintf("modified string: %s = %s (was %s)", c.Name, bibtex.DisplayValue(c.NewValue), bibtex.DisplayValue(c.OldValue))
	case models.StringDeleted:
		return fmt.Sprintf("deleted string:  %s", c.Name)
	case models.StringRenamed:
		return fmt.Sprintf("renamed string:  %s -> %s", c.OldName, c.NewName)
	case models.MetadataChanged:
		return fmt.Sprintf("metadata:        %d -> %d item(s)", len(c.Old), len(c.New))
	case models.PreambleChanged:
		return "preamble changed"
	default:
		panic(fmt.Sprintf("unhandled database change %T", change))
	}
}

// printChange prints a change colored by what it does, with field details
// for modified entries
func printChange(change models.DatabaseChange) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	switch c := change.(type) {
	case models.EntryAdded, models.StringAdded:
		green.Println(describeChange(change))
	case models.EntryDeleted, models.StringDeleted:
		red.Println(describeChange(change))
	case models.EntryChanged:
		yellow.Println(describeChange(change))
		for _, name := range c.Patch.Names() {
			if v := c.Patch[name]; v == nil {
				red.Printf("        - %s\n", name)
			} else {
				fmt.Printf("        %s = %s\n", name, bibtex.DisplayValue(*v))
			}
		}
	default:
		yellow.Println(describeChange(change))
	}
}
