//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			uid UNINDEXED,
			header,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, uid, header, body string) error {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE uid = ?`, uid)
	_, err := tx.Exec(`INSERT INTO items_fts (uid, header, body) VALUES (?, ?, ?)`, uid, header, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, uid string) {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE uid = ?`, uid)
}

// Search performs an FTS5 full-text search and returns matching items with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.uid,
		       i.prefix,
		       i.path,
		       i.header,
		       snippet(items_fts, 2, '<b>', '</b>', '...', 64),
		       (SELECT count(*) FROM links l WHERE l.target = f.uid)
		FROM items_fts f
		JOIN items i ON i.uid = f.uid
		WHERE items_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.UID, &r.Prefix, &r.Path, &r.Header, &r.Snippet, &r.Referrers); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
