package core

import (
	"testing"

	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffDatabases(t *testing.T) {
	oldDB := db(article("a", "title", "A"), article("b", "title", "B"))
	oldDB.Preamble = "old"
	oldDB.Strings = map[string]string{"jan": "January", "acm": "ACM", "ieee": "IEEE"}

	newDB := db(article("a", "title", "A2"), article("c", "title", "C"))
	newDB.Preamble = "new"
	newDB.Strings = map[string]string{"january": "January", "acm": "ACM Press", "springer": "Springer"}
	newDB.Metadata = map[string]string{"saveOrder": "key"}

	changes := DiffDatabases(oldDB, newDB)

	kinds := make([]models.ChangeKind, 0, len(changes))
	for _, c := range changes {
		kinds = append(kinds, c.Kind())
	}
	assert.Equal(t, []models.ChangeKind{
		models.ChangePreambleChanged,
		models.ChangeStringDeleted,
		models.ChangeStringRenamed,
		models.ChangeStringAdded,
		models.ChangeStringChanged,
		models.ChangeMetadataChanged,
		models.ChangeEntryChanged,
		models.ChangeEntryDeleted,
		models.ChangeEntryAdded,
	}, kinds)

	renamed, ok := changes[2].(models.StringRenamed)
	require.True(t, ok)
	assert.Equal(t, "jan", renamed.OldName)
	assert.Equal(t, "january", renamed.NewName)

	changed, ok := changes[6].(models.EntryChanged)
	require.True(t, ok)
	assert.Equal(t, []string{"title"}, changed.Patch.Names())
}

func TestDiffDatabases_NoChanges(t *testing.T) {
	d := db(article("a", "title", "A"))
	assert.Empty(t, DiffDatabases(d, d.Clone()))
}

func TestApplyChange_ReplaysDiff(t *testing.T) {
	oldDB := db(article("a", "title", "A"), article("b", "title", "B"))
	oldDB.Strings = map[string]string{"jan": "January", "acm": "ACM"}

	newDB := db(article("a", "title", "A2", "year", "2020"), article("c", "title", "C"))
	newDB.Preamble = "pre"
	newDB.Strings = map[string]string{"january": "January", "acm": "ACM Press"}
	newDB.Metadata = map[string]string{"grouping": "x"}

	target := oldDB.Clone()
	for _, change := range DiffDatabases(oldDB, newDB) {
		require.NoError(t, ApplyChange(target, change))
	}

	assert.Empty(t, DiffDatabases(target, newDB))
}

func TestApplyChange_Errors(t *testing.T) {
	target := db(article("a"))

	assert.Error(t, ApplyChange(target, models.EntryAdded{Entry: article("a")}))
	assert.Error(t, ApplyChange(target, models.EntryChanged{Old: article("x"), New: article("x")}))
	assert.Error(t, ApplyChange(target, models.EntryDeleted{Entry: article("x")}))
}
