//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the items.body column.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error {
	// Body is already stored in the items table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT i.uid, i.prefix, i.path, i.header, substr(i.body, 1, 200),
		       (SELECT count(*) FROM links l WHERE l.target = i.uid)
		FROM items i
		WHERE i.uid LIKE ? OR i.header LIKE ? OR i.body LIKE ?
		ORDER BY i.uid
		LIMIT ?
	`, like, like, like, limit)
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
