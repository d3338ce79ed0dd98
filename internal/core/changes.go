package core

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kilupskalvis/bibsync/internal/models"
)

// DiffDatabases lists the changes that turn oldDB into newDB: preamble,
// @string constants (with renames), metadata, then entries by citation key.
func DiffDatabases(oldDB, newDB *models.Database) []models.DatabaseChange {
	var changes []models.DatabaseChange

	if oldDB.Preamble != newDB.Preamble {
		changes = append(changes, models.PreambleChanged{Old: oldDB.Preamble, New: newDB.Preamble})
	}

	changes = append(changes, diffStrings(oldDB.Strings, newDB.Strings)...)

	if !maps.Equal(oldDB.Metadata, newDB.Metadata) {
		changes = append(changes, models.MetadataChanged{
			Old: maps.Clone(oldDB.Metadata),
			New: maps.Clone(newDB.Metadata),
		})
	}

	oldEntries := oldDB.ByKey()
	newEntries := newDB.ByKey()
	keys := slices.Sorted(maps.Keys(oldEntries))
	for key := range newEntries {
		if _, ok := oldEntries[key]; !ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	for _, key := range keys {
		before, after := oldEntries[key], newEntries[key]
		switch {
		case before == nil:
			changes = append(changes, models.EntryAdded{Entry: after})
		case after == nil:
			changes = append(changes, models.EntryDeleted{Entry: before})
		case !EntriesEqual(before, after):
			changes = append(changes, models.EntryChanged{Old: before, New: after, Patch: DiffEntries(before, after)})
		}
	}

	return changes
}

func diffStrings(oldStrings, newStrings map[string]string) []models.DatabaseChange {
	var removed, added []string
	for _, name := range slices.Sorted(maps.Keys(oldStrings)) {
		if _, ok := newStrings[name]; !ok {
			removed = append(removed, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(newStrings)) {
		if _, ok := oldStrings[name]; !ok {
			added = append(added, name)
		}
	}

	var changes []models.DatabaseChange
	paired := make(map[string]bool)
	for _, oldName := range removed {
		renamed := false
		for _, newName := range added {
			if !paired[newName] && oldStrings[oldName] == newStrings[newName] {
				paired[newName] = true
				changes = append(changes, models.StringRenamed{OldName: oldName, NewName: newName, Value: newStrings[newName]})
				renamed = true
				break
			}
		}
		if !renamed {
			changes = append(changes, models.StringDeleted{Name: oldName, Value: oldStrings[oldName]})
		}
	}
	for _, name := range added {
		if !paired[name] {
			changes = append(changes, models.StringAdded{Name: name, Value: newStrings[name]})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(oldStrings)) {
		if newValue, ok := newStrings[name]; ok && newValue != oldStrings[name] {
			changes = append(changes, models.StringChanged{Name: name, OldValue: oldStrings[name], NewValue: newValue})
		}
	}
	return changes
}

// ApplyChange accepts a single change into db
func ApplyChange(db *models.Database, change models.DatabaseChange) error {
	if db.Strings == nil {
		db.Strings = make(map[string]string)
	}

	switch c := change.(type) {
	case models.EntryAdded:
		if db.Lookup(c.Entry.Key) != nil {
			return fmt.Errorf("entry '%s' already exists", c.Entry.Key)
		}
		db.Add(c.Entry.Clone())
	case models.EntryChanged:
		if db.Lookup(c.New.Key) == nil {
			return fmt.Errorf("entry '%s' not found", c.New.Key)
		}
		db.Replace(c.New.Clone())
	case models.EntryDeleted:
		if !db.Remove(c.Entry.Key) {
			return fmt.Errorf("entry '%s' not found", c.Entry.Key)
		}
	case models.StringAdded:
		db.Strings[c.Name] = c.Value
	case models.StringChanged:
		db.Strings[c.Name] = c.NewValue
	case models.StringDeleted:
		delete(db.Strings, c.Name)
	case models.StringRenamed:
		delete(db.Strings, c.OldName)
		db.Strings[c.NewName] = c.Value
	case models.MetadataChanged:
		db.Metadata = maps.Clone(c.New)
		if db.Metadata == nil {
			db.Metadata = make(map[string]string)
		}
	case models.PreambleChanged:
		db.Preamble = c.New
	default:
		panic(fmt.Sprintf("unhandled database change %T", change))
	}
	return nil
}
