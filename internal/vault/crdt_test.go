package vault

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestApplyRemoteChanges_TwoSiteTieBreakOnSiteID exercises spec.md §8's
// two-site CRDT sync scenario: two independently-created sites upsert the
// same (source, id) session concurrently, producing change_log rows at the
// same col_version; replaying one site's changes into the other must pick
// a winner by site_id, the second half of the (col_version, site_id)
// tie-break.
func TestApplyRemoteChanges_TwoSiteTieBreakOnSiteID(t *testing.T) {
	siteA := openTestIndex(t, "site-a")
	siteB := openTestIndex(t, "site-b")

	_, err := siteA.Upsert(Session{Source: "codex", ID: "s1", Title: "from-a", MTime: 100})
	require.NoError(t, err)
	_, err = siteB.Upsert(Session{Source: "codex", ID: "s1", Title: "from-b", MTime: 100})
	require.NoError(t, err)

	changesFromB, err := siteB.GetLocalChanges(0)
	require.NoError(t, err)

	require.NoError(t, siteA.ApplyRemoteChanges(changesFromB))

	got, ok, err := siteA.Get("codex", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "from-b", got.Title, "equal col_version ties break on the lexically greater site_id")
}

// TestApplyRemoteChanges_HigherColVersionWinsRegardlessOfSiteID covers the
// primary half of the tie-break: a strictly greater col_version always
// wins, even against a lexically smaller site_id.
func TestApplyRemoteChanges_HigherColVersionWinsRegardlessOfSiteID(t *testing.T) {
	ix := openTestIndex(t, "site-z")

	_, err := ix.Upsert(Session{Source: "codex", ID: "s1", Title: "v1", MTime: 100})
	require.NoError(t, err)

	pk, err := encodePK("codex", "s1")
	require.NoError(t, err)

	remote := Changeset{Changes: []Change{{
		Table:      sessionsTable,
		PK:         pk,
		CID:        "title",
		Val:        "v2-from-aaa",
		ColVersion: 2,
		DBVersion:  1,
		SiteID:     "aaa", // lexically less than "site-z"
		CL:         1,
		Seq:        0,
	}}}
	require.NoError(t, ix.ApplyRemoteChanges(remote))

	got, _, err := ix.Get("codex", "s1")
	require.NoError(t, err)
	require.Equal(t, "v2-from-aaa", got.Title, "a higher col_version must win even against a lexically smaller site_id")
}

// TestApplyRemoteChanges_IdempotentReplay covers spec.md §4.G's idempotent
// replay requirement: applying the same Changeset twice must leave state
// unchanged the second time.
func TestApplyRemoteChanges_IdempotentReplay(t *testing.T) {
	siteA := openTestIndex(t, "site-a")
	siteB := openTestIndex(t, "site-b")

	_, err := siteB.Upsert(Session{Source: "codex", ID: "s1", Title: "from-b", MTime: 100})
	require.NoError(t, err)

	changesFromB, err := siteB.GetLocalChanges(0)
	require.NoError(t, err)

	require.NoError(t, siteA.ApplyRemoteChanges(changesFromB))
	first, _, err := siteA.Get("codex", "s1")
	require.NoError(t, err)

	require.NoError(t, siteA.ApplyRemoteChanges(changesFromB))
	second, _, err := siteA.Get("codex", "s1")
	require.NoError(t, err)

	require.Equal(t, first, second, "replaying the same changeset twice must be a no-op")
}

// TestApplyRemoteChanges_CreatesSessionNeverSeenLocally covers
// applySessionColumn's bare-row insertion path: a remote change for a
// (source, id) this site has never upserted locally must still
// materialize a session row.
func TestApplyRemoteChanges_CreatesSessionNeverSeenLocally(t *testing.T) {
	ix := openTestIndex(t, "site-a")

	pk, err := encodePK("cline", "new-session")
	require.NoError(t, err)

	remote := Changeset{Changes: []Change{{
		Table:      sessionsTable,
		PK:         pk,
		CID:        "title",
		Val:        "created remotely",
		ColVersion: 1,
		DBVersion:  1,
		SiteID:     "site-b",
		CL:         1,
		Seq:        0,
	}}}
	require.NoError(t, ix.ApplyRemoteChanges(remote))

	got, ok, err := ix.Get("cline", "new-session")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "created remotely", got.Title)
}
