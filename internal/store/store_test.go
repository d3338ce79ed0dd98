package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/bibsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a new bbolt store in a temp directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

// ==================== Store Tests ====================

func TestStore_Initialize(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Initialize())
	// idempotent
	require.NoError(t, st.Initialize())

	records, err := st.ListSyncHistory(0)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_GetSetValue(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SetValue("test_key", "test_value"))

	val, err := st.GetValue("test_key")
	require.NoError(t, err)
	assert.Equal(t, "test_value", val)

	val, err = st.GetValue("nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	require.NoError(t, st.SetValue("test_key", "updated"))
	val, err = st.GetValue("test_key")
	require.NoError(t, err)
	assert.Equal(t, "updated", val)
}

func TestStore_SecondOpenTimesOut(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	_, err = New(dbPath)
	assert.Error(t, err)
}

// ==================== Pending Merge Tests ====================

func TestStore_PendingMerge(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetPendingMerge("refs.bib")
	require.ErrorIs(t, err, ErrNoPendingMerge)

	has, err := st.HasPendingMerge("refs.bib")
	require.NoError(t, err)
	assert.False(t, has)

	pm := &models.PendingMerge{
		Path:      "refs.bib",
		Status:    models.SyncDiverged,
		Branch:    "main",
		RemoteRef: "refs/remotes/origin/main",
		Base:      "aaaa",
		Local:     "bbbb",
		Remote:    "cccc",
		Conflicts: []string{"smith2020"},
	}
	require.NoError(t, st.SavePendingMerge(pm))
	assert.NotEmpty(t, pm.ID)
	assert.False(t, pm.CreatedAt.IsZero())

	got, err := st.GetPendingMerge("refs.bib")
	require.NoError(t, err)
	assert.Equal(t, pm.ID, got.ID)
	assert.Equal(t, models.SyncDiverged, got.Status)
	assert.Equal(t, []string{"smith2020"}, got.Conflicts)
	assert.Equal(t, "cccc", got.Remote)

	has, err = st.HasPendingMerge("refs.bib")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, st.DeletePendingMerge("refs.bib"))
	_, err = st.GetPendingMerge("refs.bib")
	assert.ErrorIs(t, err, ErrNoPendingMerge)

	assert.ErrorIs(t, st.DeletePendingMerge("refs.bib"), ErrNoPendingMerge)
}

func TestStore_PendingMergeReplaces(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SavePendingMerge(&models.PendingMerge{Path: "refs.bib", Remote: "one"}))
	require.NoError(t, st.SavePendingMerge(&models.PendingMerge{Path: "refs.bib", Remote: "two"}))
	require.NoError(t, st.SavePendingMerge(&models.PendingMerge{Path: "other.bib", Remote: "three"}))

	got, err := st.GetPendingMerge("refs.bib")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Remote)

	got, err = st.GetPendingMerge("other.bib")
	require.NoError(t, err)
	assert.Equal(t, "three", got.Remote)
}

func TestStore_PendingMergePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	require.NoError(t, st.SavePendingMerge(&models.PendingMerge{Path: "refs.bib", Local: "abc"}))
	require.NoError(t, st.Close())

	st, err = New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.GetPendingMerge("refs.bib")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Local)
}

// ==================== Sync History Tests ====================

func TestStore_SyncHistory(t *testing.T) {
	st := newTestStore(t)

	for i, result := range []models.BookkeepingKind{models.FastForward, models.NewCommit, models.NewCommit} {
		rec := &models.SyncRecord{
			Path:      "refs.bib",
			Status:    models.SyncBehind,
			Result:    result,
			Commit:    string(rune('a'+i)) + "123456789",
			Timestamp: time.Unix(int64(1700000000+i), 0),
		}
		require.NoError(t, st.RecordSync(rec))
		assert.NotEmpty(t, rec.ID)
	}

	all, err := st.ListSyncHistory(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c123456", all[0].ShortCommit(), "newest first")
	assert.Equal(t, models.FastForward, all[2].Result)

	limited, err := st.ListSyncHistory(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, all[1].ID, limited[1].ID)
}

func TestSyncRecord_IsMergeCommit(t *testing.T) {
	rec := &models.SyncRecord{Parents: []string{"a", "b"}}
	assert.True(t, rec.IsMergeCommit())

	rec.Parents = []string{"a"}
	assert.False(t, rec.IsMergeCommit())
}

func TestStore_LockedByAnotherProcess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	first, err := New(dbPath)
	require.NoError(t, err)
	defer first.Close()

	_, err = New(dbPath)
	assert.ErrorIs(t, err, ErrLocked)
}
