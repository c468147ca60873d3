package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T, siteID string) *Index {
	t.Helper()
	dir := t.TempDir()
	ix, err := OpenIndex(filepath.Join(dir, "index.db"), siteID)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestUpsert_InsertsNewSession(t *testing.T) {
	ix := openTestIndex(t, "site-a")

	result, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "first", MTime: 100})
	require.NoError(t, err)
	require.Equal(t, Inserted, result.Outcome)

	got, ok, err := ix.Get("codex", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", got.Title)
	require.Equal(t, int64(100), got.MTime)
}

func TestUpsert_StrictlyNewerMTimeUpdates(t *testing.T) {
	ix := openTestIndex(t, "site-a")

	_, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "first", MTime: 100})
	require.NoError(t, err)

	result, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "second", MTime: 200})
	require.NoError(t, err)
	require.Equal(t, Updated, result.Outcome)

	got, _, err := ix.Get("codex", "s1")
	require.NoError(t, err)
	require.Equal(t, "second", got.Title)
	require.Equal(t, int64(200), got.MTime)
}

// TestUpsert_EqualMTimeIsUnchanged covers spec.md §8's Upsert monotonicity
// boundary: an equal mtime is a no-op that leaves the stored row untouched.
func TestUpsert_EqualMTimeIsUnchanged(t *testing.T) {
	ix := openTestIndex(t, "site-a")

	_, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "first", MTime: 100})
	require.NoError(t, err)

	result, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "second", MTime: 100})
	require.NoError(t, err)
	require.Equal(t, Unchanged, result.Outcome)

	got, _, err := ix.Get("codex", "s1")
	require.NoError(t, err)
	require.Equal(t, "first", got.Title, "Unchanged outcome must not overwrite the stored row")
}

// TestUpsert_OlderMTimeIsSkipped covers the other half of the same boundary:
// a strictly older mtime is dropped and reports the existing mtime back.
func TestUpsert_OlderMTimeIsSkipped(t *testing.T) {
	ix := openTestIndex(t, "site-a")

	_, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "first", MTime: 100})
	require.NoError(t, err)

	result, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "stale", MTime: 50})
	require.NoError(t, err)
	require.Equal(t, Skipped, result.Outcome)
	require.Equal(t, int64(100), result.ExistingMTime)

	got, _, err := ix.Get("codex", "s1")
	require.NoError(t, err)
	require.Equal(t, "first", got.Title, "Skipped outcome must not overwrite the stored row")
}

func TestUpsert_UnchangedAndSkippedRecordNoChangeLogEntries(t *testing.T) {
	ix := openTestIndex(t, "site-a")

	_, err := ix.Upsert(Session{Source: "codex", ID: "s1", MTime: 100})
	require.NoError(t, err)
	v1, err := ix.CurrentDBVersion()
	require.NoError(t, err)

	_, err = ix.Upsert(Session{Source: "codex", ID: "s1", MTime: 100})
	require.NoError(t, err)
	_, err = ix.Upsert(Session{Source: "codex", ID: "s1", MTime: 50})
	require.NoError(t, err)

	v2, err := ix.CurrentDBVersion()
	require.NoError(t, err)
	require.Equal(t, v1, v2, "Unchanged/Skipped upserts must not advance db_version")
}

func TestList_OrdersBySourceThenID(t *testing.T) {
	ix := openTestIndex(t, "site-a")

	_, err := ix.Upsert(Session{Source: "codex", ID: "b", MTime: 1})
	require.NoError(t, err)
	_, err = ix.Upsert(Session{Source: "aider", ID: "a", MTime: 1})
	require.NoError(t, err)

	sessions, err := ix.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "aider", sessions[0].Source)
	require.Equal(t, "codex", sessions[1].Source)
}
