package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_SetGet(t *testing.T) {
	e := NewEntry("Article", "smith2020").Set(" Title ", "Graphs")

	assert.Equal(t, "article", e.Type)
	v, ok := e.Get("TITLE")
	assert.True(t, ok)
	assert.Equal(t, "Graphs", v)

	_, ok = e.Get("year")
	assert.False(t, ok)
}

func TestEntry_Clone(t *testing.T) {
	e := NewEntry("article", "a").Set("title", "A")
	c := e.Clone()
	c.Set("title", "B")

	assert.Equal(t, "A", e.Fields["title"])
	assert.Nil(t, (*Entry)(nil).Clone())
}

func TestEntry_FieldsWithType(t *testing.T) {
	e := &Entry{Key: "a", Type: "Book", Fields: map[string]string{"title": "T"}}

	assert.Equal(t, map[string]string{"title": "T", TypeField: "book"}, e.FieldsWithType())
	assert.NotContains(t, e.Fields, TypeField)
}

func TestEntry_HasKey(t *testing.T) {
	assert.True(t, NewEntry("misc", "k").HasKey())
	assert.False(t, NewEntry("misc", "").HasKey())
	assert.False(t, (*Entry)(nil).HasKey())
}

func TestDatabase_LookupAddRemoveReplace(t *testing.T) {
	db := NewDatabase()
	db.Add(NewEntry("article", "a"))
	db.Add(NewEntry("article", "b"))
	db.Add(NewEntry("misc", ""))

	require.NotNil(t, db.Lookup("a"))
	assert.Nil(t, db.Lookup(""))
	assert.Nil(t, db.Lookup("zzz"))

	db.Replace(NewEntry("book", "a"))
	assert.Equal(t, "book", db.Lookup("a").Type)
	assert.Len(t, db.Entries, 3)

	db.Replace(NewEntry("book", "c"))
	assert.Len(t, db.Entries, 4)

	assert.True(t, db.Remove("b"))
	assert.False(t, db.Remove("b"))
	assert.False(t, db.Remove(""))
	assert.Len(t, db.Entries, 3)
}

func TestDatabase_ByKey(t *testing.T) {
	first := NewEntry("article", "dup").Set("n", "1")
	db := NewDatabase()
	db.Add(first)
	db.Add(NewEntry("article", "dup").Set("n", "2"))
	db.Add(NewEntry("misc", ""))

	index := db.ByKey()
	assert.Len(t, index, 1)
	assert.Same(t, first, index["dup"])

	assert.Empty(t, (*Database)(nil).ByKey())
	assert.Error(t, db.Validate())
}

func TestDatabase_Clone(t *testing.T) {
	db := NewDatabase()
	db.Preamble = "p"
	db.Strings["jan"] = "January"
	db.Add(NewEntry("article", "a").Set("title", "A"))

	c := db.Clone()
	c.Strings["jan"] = "Jan"
	c.Lookup("a").Set("title", "B")

	assert.Equal(t, "January", db.Strings["jan"])
	assert.Equal(t, "A", db.Lookup("a").Fields["title"])
	assert.Equal(t, "p", c.Preamble)

	empty := (*Database)(nil).Clone()
	assert.NotNil(t, empty.Strings)
	assert.NotNil(t, empty.Metadata)
}

func TestFieldPatch(t *testing.T) {
	p := FieldPatch{}
	p.Set("year", "2020")
	p.Delete("note")

	assert.True(t, p.IsDeletion("note"))
	assert.False(t, p.IsDeletion("year"))
	assert.False(t, p.IsDeletion("title"))
	assert.Equal(t, []string{"note", "year"}, p.Names())
}

func TestMergePlan(t *testing.T) {
	plan := NewMergePlan()
	assert.True(t, plan.IsEmpty())
	assert.False(t, plan.Touches("a"))

	plan.DeletedEntryKeys = append(plan.DeletedEntryKeys, "a")
	plan.NewEntries = append(plan.NewEntries, NewEntry("misc", "b"))
	plan.FieldPatches["c"] = FieldPatch{}

	assert.False(t, plan.IsEmpty())
	assert.True(t, plan.Touches("a"))
	assert.True(t, plan.Touches("b"))
	assert.True(t, plan.Touches("c"))
	assert.False(t, plan.Touches("d"))
}

func TestSyncRecord_ShortCommit(t *testing.T) {
	assert.Equal(t, "abcdef1", (&SyncRecord{Commit: "abcdef1234567"}).ShortCommit())
	assert.Equal(t, "abc", (&SyncRecord{Commit: "abc"}).ShortCommit())
}
