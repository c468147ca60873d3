// CRDT-style change replication, grounded on the column-version /
// last-writer-wins scheme of the original apps/core/src/storage/sync_manager.rs
// and sync/local.rs. modernc.org/sqlite is a pure-Go driver with no access to
// cr-sqlite's crsql_changes virtual table, so change_log (index.go) is an
// explicit append-only operation log that serves the same role — satisfying
// spec.md §4.G's note that an equivalent append-only log suffices absent a
// native change-log facility.
package vault

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Change is one column-level delta, mirroring spec.md §3.5's change record.
type Change struct {
	Table      string `json:"table"`
	PK         string `json:"pk"` // JSON-encoded primary key tuple
	CID        string `json:"cid"`
	Val        string `json:"val"`
	ColVersion int64  `json:"col_version"`
	DBVersion  int64  `json:"db_version"`
	SiteID     string `json:"site_id"`
	CL         int64  `json:"cl"`
	Seq        int64  `json:"seq"`
}

// Changeset is a batch of local changes bounded by a db_version range,
// exchanged between peers during sync (spec.md §4.G/§6).
type Changeset struct {
	Changes       []Change `json:"changes"`
	FromDBVersion int64    `json:"from_db_version"`
	ToDBVersion   int64    `json:"to_db_version"`
}

// CurrentDBVersion returns the highest db_version assigned so far.
func (ix *Index) CurrentDBVersion() (int64, error) {
	var v int64
	err := ix.db.QueryRow(`SELECT db_version_counter FROM sync_state WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read db_version counter: %w", err)
	}
	return v, nil
}

// LastSyncedVersion returns the db_version watermark of the last successful
// push to the configured sync remote.
func (ix *Index) LastSyncedVersion() (int64, error) {
	var v int64
	err := ix.db.QueryRow(`SELECT last_synced_db_version FROM sync_state WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read last_synced_db_version: %w", err)
	}
	return v, nil
}

// SetLastSyncedVersion advances the sync watermark.
func (ix *Index) SetLastSyncedVersion(v int64) error {
	_, err := ix.db.Exec(`UPDATE sync_state SET last_synced_db_version = ? WHERE id = 1`, v)
	if err != nil {
		return fmt.Errorf("advance last_synced_db_version: %w", err)
	}
	return nil
}

// GetLocalChanges returns every change this site authored since since,
// ordered so that replay is deterministic (db_version, then seq).
func (ix *Index) GetLocalChanges(since int64) (Changeset, error) {
	rows, err := ix.db.Query(
		`SELECT "table", pk, cid, val, col_version, db_version, site_id, cl, seq
		 FROM change_log
		 WHERE db_version > ? AND site_id = ?
		 ORDER BY db_version, seq`,
		since, ix.siteID,
	)
	if err != nil {
		return Changeset{}, fmt.Errorf("query local changes: %w", err)
	}
	defer rows.Close()

	cs := Changeset{FromDBVersion: since}
	for rows.Next() {
		var c Change
		var val sql.NullString
		if err := rows.Scan(&c.Table, &c.PK, &c.CID, &val, &c.ColVersion, &c.DBVersion, &c.SiteID, &c.CL, &c.Seq); err != nil {
			return Changeset{}, fmt.Errorf("scan change_log row: %w", err)
		}
		c.Val = val.String
		cs.Changes = append(cs.Changes, c)
		if c.DBVersion > cs.ToDBVersion {
			cs.ToDBVersion = c.DBVersion
		}
	}
	if err := rows.Err(); err != nil {
		return Changeset{}, err
	}
	if cs.ToDBVersion < since {
		cs.ToDBVersion = since
	}
	return cs, nil
}

// ApplyRemoteChanges merges an incoming Changeset using last-writer-wins on
// (col_version, site_id), per spec.md §4.G invariant 2. Replay is idempotent:
// applying the same Changeset twice leaves state unchanged the second time,
// since change_log rows are deduplicated by their UNIQUE constraint and the
// materialized sessions/col_state rows are only overwritten when the
// incoming change actually wins the tie-break.
func (ix *Index) ApplyRemoteChanges(cs Changeset) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("begin apply tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cs.Changes {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO change_log ("table", pk, cid, val, col_version, db_version, site_id, cl, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Table, c.PK, c.CID, c.Val, c.ColVersion, c.DBVersion, c.SiteID, c.CL, c.Seq,
		); err != nil {
			return fmt.Errorf("append remote change_log row: %w", err)
		}

		var curColVersion int64
		var curSiteID string
		err := tx.QueryRow(
			`SELECT col_version, site_id FROM col_state WHERE "table"=? AND pk=? AND cid=?`,
			c.Table, c.PK, c.CID,
		).Scan(&curColVersion, &curSiteID)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read col_state: %w", err)
		}

		wins := err == sql.ErrNoRows ||
			c.ColVersion > curColVersion ||
			(c.ColVersion == curColVersion && c.SiteID > curSiteID)
		if !wins {
			continue
		}

		if _, err := tx.Exec(
			`INSERT INTO col_state ("table", pk, cid, col_version, site_id, val) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT("table", pk, cid) DO UPDATE SET col_version=excluded.col_version, site_id=excluded.site_id, val=excluded.val`,
			c.Table, c.PK, c.CID, c.ColVersion, c.SiteID, c.Val,
		); err != nil {
			return fmt.Errorf("write col_state: %w", err)
		}

		if c.Table == sessionsTable {
			if err := applySessionColumn(tx, c.PK, c.CID, c.Val); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// applySessionColumn materializes a single winning column value into the
// sessions table, inserting a bare row first if the (source, id) pair has
// never been seen locally.
func applySessionColumn(tx *sql.Tx, pk, cid, val string) error {
	var key [2]string
	if err := json.Unmarshal([]byte(pk), &key); err != nil {
		return fmt.Errorf("decode change pk %q: %w", pk, err)
	}
	source, id := key[0], key[1]

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO sessions (source, id, title, workspace_name, created_at, mtime, file_size, vault_path, original_path)
		 VALUES (?, ?, '', '', '', 0, 0, '', '')`,
		source, id,
	); err != nil {
		return fmt.Errorf("ensure session row: %w", err)
	}

	column, ok := map[string]string{
		"title":          "title",
		"workspace_name": "workspace_name",
		"created_at":     "created_at",
		"mtime":          "mtime",
		"file_size":      "file_size",
		"vault_path":     "vault_path",
		"original_path":  "original_path",
	}[cid]
	if !ok {
		return fmt.Errorf("unknown session column %q", cid)
	}

	query := fmt.Sprintf(`UPDATE sessions SET %s = ? WHERE source = ? AND id = ?`, column)
	if _, err := tx.Exec(query, val, source, id); err != nil {
		return fmt.Errorf("materialize session column %s: %w", column, err)
	}
	return nil
}
