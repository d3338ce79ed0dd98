package core

import (
	"testing"

	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func article(key string, fields ...string) *models.Entry {
	e := models.NewEntry("article", key)
	for i := 0; i+1 < len(fields); i += 2 {
		e.Set(fields[i], fields[i+1])
	}
	return e
}

func db(entries ...*models.Entry) *models.Database {
	d := models.NewDatabase()
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

func TestAnalyze_IdenticalSnapshots(t *testing.T) {
	d := db(article("a", "title", "A"), article("b", "title", "B"))

	analysis := Analyze(d, d.Clone(), d.Clone())
	assert.True(t, analysis.AutoPlan.IsEmpty())
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_RemoteOnlyAdd(t *testing.T) {
	base := db()
	local := db()
	remote := db(article("new", "title", "N"))

	analysis := Analyze(base, local, remote)
	require.Len(t, analysis.AutoPlan.NewEntries, 1)
	assert.Equal(t, "new", analysis.AutoPlan.NewEntries[0].Key)
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_LocalOnlyAdd(t *testing.T) {
	analysis := Analyze(db(), db(article("mine", "title", "M")), db())
	assert.True(t, analysis.AutoPlan.IsEmpty())
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_BothAddedEqual(t *testing.T) {
	analysis := Analyze(db(), db(article("x", "title", "X")), db(article("x", "title", "X")))
	assert.True(t, analysis.AutoPlan.IsEmpty())
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_BothAddedDisjointFields(t *testing.T) {
	local := db(article("x", "title", "X"))
	remote := db(article("x", "title", "X", "year", "2020"))

	analysis := Analyze(db(), local, remote)
	assert.Empty(t, analysis.Conflicts)
	require.Contains(t, analysis.AutoPlan.FieldPatches, "x")
	assert.Equal(t, "2020", *analysis.AutoPlan.FieldPatches["x"]["year"])
}

func TestAnalyze_AddAdd(t *testing.T) {
	local := db(article("x", "title", "Local"))
	remote := db(article("x", "title", "Remote"))

	analysis := Analyze(db(), local, remote)
	require.Len(t, analysis.Conflicts, 1)
	c := analysis.Conflicts[0]
	assert.Equal(t, models.ConflictAddAdd, c.Type)
	assert.Nil(t, c.Base)
	assert.Equal(t, []string{"title"}, c.Fields)
	assert.True(t, analysis.AutoPlan.IsEmpty())
}

func TestAnalyze_BothDeleted(t *testing.T) {
	base := db(article("gone", "title", "G"))

	analysis := Analyze(base, db(), db())
	assert.Equal(t, []string{"gone"}, analysis.AutoPlan.DeletedEntryKeys)
}

func TestAnalyze_RemoteDeletedLocalUnchanged(t *testing.T) {
	base := db(article("a", "title", "A"))

	analysis := Analyze(base, base.Clone(), db())
	assert.Equal(t, []string{"a"}, analysis.AutoPlan.DeletedEntryKeys)
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_LocalDeletedRemoteUnchanged(t *testing.T) {
	base := db(article("a", "title", "A"))

	analysis := Analyze(base, db(), base.Clone())
	assert.Equal(t, []string{"a"}, analysis.AutoPlan.DeletedEntryKeys)
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_DeleteModify(t *testing.T) {
	base := db(article("a", "title", "A"))
	remote := db(article("a", "title", "A2"))

	analysis := Analyze(base, db(), remote)
	require.Len(t, analysis.Conflicts, 1)
	c := analysis.Conflicts[0]
	assert.Equal(t, models.ConflictDeleteModify, c.Type)
	assert.Nil(t, c.Local)
	assert.NotNil(t, c.Remote)
	assert.Empty(t, c.Fields)
	assert.False(t, analysis.AutoPlan.Touches("a"))
}

func TestAnalyze_ModifyDelete(t *testing.T) {
	base := db(article("a", "title", "A"))
	local := db(article("a", "title", "A2"))

	analysis := Analyze(base, local, db())
	require.Len(t, analysis.Conflicts, 1)
	assert.Equal(t, models.ConflictModifyDelete, analysis.Conflicts[0].Type)
	assert.Nil(t, analysis.Conflicts[0].Remote)
}

func TestAnalyze_RemoteChangedLocalUnchanged(t *testing.T) {
	base := db(article("a", "title", "A", "note", "n"))
	remote := db(article("a", "title", "A", "year", "2020"))

	analysis := Analyze(base, base.Clone(), remote)
	patch := analysis.AutoPlan.FieldPatches["a"]
	require.NotNil(t, patch)
	assert.Equal(t, "2020", *patch["year"])
	assert.True(t, patch.IsDeletion("note"))
}

func TestAnalyze_LocalChangedRemoteUnchanged(t *testing.T) {
	base := db(article("a", "title", "A"))
	local := db(article("a", "title", "Mine"))

	analysis := Analyze(base, local, base.Clone())
	assert.True(t, analysis.AutoPlan.IsEmpty())
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_DisjointFieldEdits(t *testing.T) {
	base := db(article("a", "title", "A", "year", "2020"))
	local := db(article("a", "title", "A local", "year", "2020"))
	remote := db(article("a", "title", "A", "year", "2021"))

	analysis := Analyze(base, local, remote)
	assert.Empty(t, analysis.Conflicts)
	assert.Equal(t, models.FieldPatch{"year": strPtr("2021")}, analysis.AutoPlan.FieldPatches["a"])
}

func TestAnalyze_SameFieldSameValue(t *testing.T) {
	base := db(article("a", "title", "A"))
	both := db(article("a", "title", "Fixed", "year", "2020"))
	remote := db(article("a", "title", "Fixed", "year", "2020", "doi", "10.1/x"))

	analysis := Analyze(base, both, remote)
	assert.Empty(t, analysis.Conflicts)
	assert.Equal(t, models.FieldPatch{"doi": strPtr("10.1/x")}, analysis.AutoPlan.FieldPatches["a"])
}

func TestAnalyze_ModifyModify(t *testing.T) {
	base := db(article("a", "title", "A", "year", "2020"))
	local := db(article("a", "title", "Local", "year", "2020", "note", "x"))
	remote := db(article("a", "title", "Remote", "year", "2021"))

	analysis := Analyze(base, local, remote)
	require.Len(t, analysis.Conflicts, 1)
	c := analysis.Conflicts[0]
	assert.Equal(t, models.ConflictModifyModify, c.Type)
	assert.Equal(t, []string{"title"}, c.Fields)
	// the whole entry escalates; no partial patch for year
	assert.False(t, analysis.AutoPlan.Touches("a"))
}

func TestAnalyze_DeleteVersusEdit(t *testing.T) {
	base := db(article("a", "title", "A", "note", "n"))
	local := db(article("a", "title", "A"))
	remote := db(article("a", "title", "A", "note", "changed"))

	analysis := Analyze(base, local, remote)
	require.Len(t, analysis.Conflicts, 1)
	assert.Equal(t, []string{"note"}, analysis.Conflicts[0].Fields)
}

func TestAnalyze_TypeChange(t *testing.T) {
	base := db(article("a", "title", "A"))
	remote := db(models.NewEntry("book", "a").Set("title", "A"))

	analysis := Analyze(base, base.Clone(), remote)
	patch := analysis.AutoPlan.FieldPatches["a"]
	require.NotNil(t, patch)
	assert.Equal(t, "book", *patch[models.TypeField])
}

func TestAnalyze_KeylessEntriesIgnored(t *testing.T) {
	keyless := models.NewEntry("misc", "").Set("title", "orphan")

	analysis := Analyze(db(), db(), db(keyless))
	assert.True(t, analysis.AutoPlan.IsEmpty())
	assert.Empty(t, analysis.Conflicts)
}

func TestAnalyze_Disjointness(t *testing.T) {
	base := db(
		article("del", "title", "D"),
		article("mod", "title", "M"),
		article("clash", "title", "C"),
	)
	local := db(
		article("mod", "title", "M"),
		article("clash", "title", "C local"),
	)
	remote := db(
		article("mod", "title", "M", "year", "1999"),
		article("clash", "title", "C remote"),
		article("add", "title", "Added"),
	)

	analysis := Analyze(base, local, remote)
	seen := map[string]int{}
	for _, e := range analysis.AutoPlan.NewEntries {
		seen[e.Key]++
	}
	for key := range analysis.AutoPlan.FieldPatches {
		seen[key]++
	}
	for _, key := range analysis.AutoPlan.DeletedEntryKeys {
		seen[key]++
	}
	for _, c := range analysis.Conflicts {
		seen[c.Key]++
	}
	assert.Equal(t, map[string]int{"add": 1, "mod": 1, "del": 1, "clash": 1}, seen)
}

func TestAnalyze_Deterministic(t *testing.T) {
	base := db(article("b", "title", "B"), article("a", "title", "A"), article("c", "title", "C"))
	local := db(article("c", "title", "C1"), article("b", "title", "B1"), article("a", "title", "A1"))
	remote := db(article("a", "title", "A2"), article("c", "title", "C2"), article("b", "title", "B2"))

	first := Analyze(base, local, remote)
	second := Analyze(base, local, remote)
	assert.Equal(t, first, second)

	keys := make([]string, 0, len(first.Conflicts))
	for _, c := range first.Conflicts {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestDetectConflictsAndExtractMergePlanAgree(t *testing.T) {
	base := db(article("a", "title", "A"), article("b", "title", "B"))
	local := db(article("a", "title", "A1"), article("b", "title", "B"))
	remote := db(article("a", "title", "A2"), article("b", "title", "B2"))

	analysis := Analyze(base, local, remote)
	assert.Equal(t, analysis.Conflicts, DetectConflicts(base, local, remote))
	assert.Equal(t, analysis.AutoPlan, ExtractMergePlan(base, local, remote))
}
