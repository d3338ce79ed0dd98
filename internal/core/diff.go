// Package core implements the domain logic for bibsync including field
// diffs, three-way conflict detection, merge planning, and git bookkeeping.
package core

import (
	"strings"

	"github.com/kilupskalvis/bibsync/internal/models"
)

// normalizeValue makes line endings and surrounding whitespace insignificant
func normalizeValue(v string) string {
	return strings.TrimSpace(strings.ReplaceAll(v, "\r\n", "\n"))
}

// DiffFields computes the patch that turns oldFields into newFields.
// Unchanged fields are omitted; removed fields map to nil.
func DiffFields(oldFields, newFields map[string]string) models.FieldPatch {
	patch := make(models.FieldPatch)

	for name, newValue := range newFields {
		oldValue, existed := oldFields[name]
		if existed && normalizeValue(oldValue) == normalizeValue(newValue) {
			continue
		}
		patch.Set(name, newValue)
	}

	for name := range oldFields {
		if _, kept := newFields[name]; !kept {
			patch.Delete(name)
		}
	}

	return patch
}

// DiffEntries diffs two entries including the entry type under models.TypeField.
// A nil entry is treated as having no fields and no type.
func DiffEntries(oldEntry, newEntry *models.Entry) models.FieldPatch {
	return DiffFields(entryFields(oldEntry), entryFields(newEntry))
}

// EntriesEqual reports whether two entries have the same key, type and field content
func EntriesEqual(a, b *models.Entry) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Key != b.Key {
		return false
	}
	if !strings.EqualFold(a.Type, b.Type) {
		return false
	}
	return len(DiffFields(a.Fields, b.Fields)) == 0
}

func entryFields(e *models.Entry) map[string]string {
	if e == nil {
		return map[string]string{}
	}
	return e.FieldsWithType()
}

// patchValuesEqual compares two patch values, where nil means deletion
func patchValuesEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return normalizeValue(*a) == normalizeValue(*b)
}
