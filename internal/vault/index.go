// Index is the session registry backed by modernc.org/sqlite (a pure-Go,
// cgo-free driver — grounded on zamorofthat-elida/go.mod and
// vanducng-goclaw/go.mod in the retrieval pack). It implements the upsert
// semantics of spec.md §4.G and §8 invariant 1 (upsert monotonicity), and
// feeds the CRDT change log in crdt.go.
package vault

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sessionsTable = "sessions"

// sessionColumns lists every non-key column tracked at column granularity
// in the CRDT change log, in a fixed order used for change sequencing.
var sessionColumns = []string{
	"title", "workspace_name", "created_at", "mtime",
	"file_size", "vault_path", "original_path",
}

// Index wraps the vault's index.db: the session registry plus its CRDT
// change log (crdt.go) and sync watermark.
type Index struct {
	db     *sql.DB
	siteID string
}

// OpenIndex opens (creating if absent) the SQLite-backed index at path,
// under the given local site identifier (spec.md §3.5 site_id).
func OpenIndex(path, siteID string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle
	ix := &Index{db: db, siteID: siteID}
	if err := ix.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

func (ix *Index) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			source TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT,
			workspace_name TEXT,
			created_at TEXT,
			mtime INTEGER NOT NULL,
			file_size INTEGER NOT NULL,
			vault_path TEXT,
			original_path TEXT,
			PRIMARY KEY (source, id)
		)`,
		`CREATE TABLE IF NOT EXISTS change_log (
			seq_id INTEGER PRIMARY KEY AUTOINCREMENT,
			"table" TEXT NOT NULL,
			pk TEXT NOT NULL,
			cid TEXT NOT NULL,
			val TEXT,
			col_version INTEGER NOT NULL,
			db_version INTEGER NOT NULL,
			site_id TEXT NOT NULL,
			cl INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			UNIQUE("table", pk, cid, col_version, site_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS col_state (
			"table" TEXT NOT NULL,
			pk TEXT NOT NULL,
			cid TEXT NOT NULL,
			col_version INTEGER NOT NULL,
			site_id TEXT NOT NULL,
			val TEXT,
			PRIMARY KEY ("table", pk, cid)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_synced_db_version INTEGER NOT NULL,
			db_version_counter INTEGER NOT NULL
		)`,
		`INSERT OR IGNORE INTO sync_state (id, last_synced_db_version, db_version_counter) VALUES (1, 0, 0)`,
	}
	for _, s := range stmts {
		if _, err := ix.db.Exec(s); err != nil {
			return fmt.Errorf("migrate index db: %w", err)
		}
	}
	return nil
}

func encodePK(source, id string) (string, error) {
	b, err := json.Marshal([2]string{source, id})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Upsert applies the upsert state machine of spec.md §4.G: strictly greater
// mtime replaces the row, equal is a no-op Unchanged, strictly lower is a
// no-op Skipped. Every mutating upsert also appends column-level deltas to
// the CRDT change log (crdt.go) under a freshly incremented db_version.
func (ix *Index) Upsert(s Session) (UpsertResult, error) {
	tx, err := ix.db.Begin()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	var existingMTime int64
	err = tx.QueryRow(`SELECT mtime FROM sessions WHERE source = ? AND id = ?`, s.Source, s.ID).Scan(&existingMTime)

	outcome := Inserted
	switch {
	case err == sql.ErrNoRows:
		outcome = Inserted
	case err != nil:
		return UpsertResult{}, fmt.Errorf("query existing session: %w", err)
	case s.MTime > existingMTime:
		outcome = Updated
	case s.MTime == existingMTime:
		outcome = Unchanged
	default:
		outcome = Skipped
	}

	if outcome == Unchanged {
		if err := tx.Commit(); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Outcome: Unchanged}, nil
	}
	if outcome == Skipped {
		if err := tx.Commit(); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Outcome: Skipped, ExistingMTime: existingMTime}, nil
	}

	createdAt := ""
	if s.CreatedAt != nil {
		createdAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}

	if outcome == Inserted {
		_, err = tx.Exec(
			`INSERT INTO sessions (source, id, title, workspace_name, created_at, mtime, file_size, vault_path, original_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.Source, s.ID, s.Title, s.WorkspaceName, createdAt, s.MTime, s.FileSize, s.VaultPath, s.OriginalPath,
		)
	} else {
		_, err = tx.Exec(
			`UPDATE sessions SET title=?, workspace_name=?, created_at=?, mtime=?, file_size=?, vault_path=?, original_path=?
			 WHERE source=? AND id=?`,
			s.Title, s.WorkspaceName, createdAt, s.MTime, s.FileSize, s.VaultPath, s.OriginalPath, s.Source, s.ID,
		)
	}
	if err != nil {
		return UpsertResult{}, fmt.Errorf("write session row: %w", err)
	}

	pk, err := encodePK(s.Source, s.ID)
	if err != nil {
		return UpsertResult{}, err
	}
	values := map[string]string{
		"title":          s.Title,
		"workspace_name": s.WorkspaceName,
		"created_at":     createdAt,
		"mtime":          fmt.Sprintf("%d", s.MTime),
		"file_size":      fmt.Sprintf("%d", s.FileSize),
		"vault_path":     s.VaultPath,
		"original_path":  s.OriginalPath,
	}
	if err := ix.recordLocalChanges(tx, pk, values); err != nil {
		return UpsertResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit upsert tx: %w", err)
	}
	return UpsertResult{Outcome: outcome}, nil
}

// recordLocalChanges bumps the shared db_version once and writes one
// change_log row (and col_state row) per tracked column, under that new
// db_version, sequenced in sessionColumns order.
func (ix *Index) recordLocalChanges(tx *sql.Tx, pk string, values map[string]string) error {
	var counter int64
	if err := tx.QueryRow(`SELECT db_version_counter FROM sync_state WHERE id = 1`).Scan(&counter); err != nil {
		return fmt.Errorf("read db_version counter: %w", err)
	}
	dbVersion := counter + 1
	if _, err := tx.Exec(`UPDATE sync_state SET db_version_counter = ? WHERE id = 1`, dbVersion); err != nil {
		return fmt.Errorf("advance db_version counter: %w", err)
	}

	for seq, cid := range sessionColumns {
		val := values[cid]
		var prevColVersion int64
		err := tx.QueryRow(
			`SELECT col_version FROM col_state WHERE "table"=? AND pk=? AND cid=?`,
			sessionsTable, pk, cid,
		).Scan(&prevColVersion)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read col_state: %w", err)
		}
		newColVersion := prevColVersion + 1

		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO change_log ("table", pk, cid, val, col_version, db_version, site_id, cl, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			sessionsTable, pk, cid, val, newColVersion, dbVersion, ix.siteID, seq,
		); err != nil {
			return fmt.Errorf("append change_log: %w", err)
		}

		if _, err := tx.Exec(
			`INSERT INTO col_state ("table", pk, cid, col_version, site_id, val) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT("table", pk, cid) DO UPDATE SET col_version=excluded.col_version, site_id=excluded.site_id, val=excluded.val`,
			sessionsTable, pk, cid, newColVersion, ix.siteID, val,
		); err != nil {
			return fmt.Errorf("write col_state: %w", err)
		}
	}
	return nil
}

// Get looks up a session by (source, id).
func (ix *Index) Get(source, id string) (Session, bool, error) {
	var s Session
	var createdAt sql.NullString
	err := ix.db.QueryRow(
		`SELECT source, id, title, workspace_name, created_at, mtime, file_size, vault_path, original_path
		 FROM sessions WHERE source=? AND id=?`, source, id,
	).Scan(&s.Source, &s.ID, &s.Title, &s.WorkspaceName, &createdAt, &s.MTime, &s.FileSize, &s.VaultPath, &s.OriginalPath)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("get session: %w", err)
	}
	if createdAt.Valid && createdAt.String != "" {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			s.CreatedAt = &t
		}
	}
	return s, true, nil
}

// List returns every session in the registry, ordered by source then id.
func (ix *Index) List() ([]Session, error) {
	rows, err := ix.db.Query(
		`SELECT source, id, title, workspace_name, created_at, mtime, file_size, vault_path, original_path
		 FROM sessions ORDER BY source, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var createdAt sql.NullString
		if err := rows.Scan(&s.Source, &s.ID, &s.Title, &s.WorkspaceName, &createdAt, &s.MTime, &s.FileSize, &s.VaultPath, &s.OriginalPath); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if createdAt.Valid && createdAt.String != "" {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				s.CreatedAt = &t
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
