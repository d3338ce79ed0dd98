package bibtex

import (
	"regexp"
	"slices"
	"strings"

	"github.com/kilupskalvis/bibsync/internal/models"
)

var stringRef = regexp.MustCompile(`\x00([^\x00]+)\x00`)

// Serialize writes a Database as BibTeX. Strings, fields and metadata are
// emitted in sorted order so equal databases serialize identically.
func Serialize(db *models.Database) string {
	var b strings.Builder

	if db.Preamble != "" {
		b.WriteString("@preamble{" + formatValue(db.Preamble) + "}\n\n")
	}

	if len(db.Strings) > 0 {
		for _, name := range sortedKeys(db.Strings) {
			b.WriteString("@string{" + name + " = " + formatValue(db.Strings[name]) + "}\n")
		}
		b.WriteString("\n")
	}

	for _, e := range db.Entries {
		writeEntry(&b, e)
		b.WriteString("\n")
	}

	for _, body := range db.Comments {
		b.WriteString("@comment{" + body + "}\n\n")
	}

	for _, name := range sortedKeys(db.Metadata) {
		b.WriteString("@comment{" + metaPrefix + " " + name + ":" + db.Metadata[name] + ";}\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// SerializeEntry writes a single entry
func SerializeEntry(e *models.Entry) string {
	var b strings.Builder
	writeEntry(&b, e)
	return b.String()
}

func writeEntry(b *strings.Builder, e *models.Entry) {
	b.WriteString("@" + e.Type + "{" + e.Key + ",\n")
	for _, name := range sortedKeys(e.Fields) {
		b.WriteString("  " + name + " = " + formatValue(e.Fields[name]) + ",\n")
	}
	b.WriteString("}\n")
}

// DisplayValue renders a stored value for people: plain text as is, values
// with @string references as the BibTeX concatenation.
func DisplayValue(v string) string {
	if !strings.Contains(v, refMark) {
		return v
	}
	return formatValue(v)
}

// formatValue renders a stored value, turning references back into
// BibTeX concatenations.
func formatValue(v string) string {
	locs := stringRef.FindAllStringSubmatchIndex(v, -1)
	if len(locs) == 0 {
		return "{" + v + "}"
	}

	var parts []string
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			parts = append(parts, "{"+v[last:loc[0]]+"}")
		}
		parts = append(parts, v[loc[2]:loc[3]])
		last = loc[1]
	}
	if last < len(v) {
		parts = append(parts, "{"+v[last:]+"}")
	}
	return strings.Join(parts, " # ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
