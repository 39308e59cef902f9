package index

import (
	"fmt"
	"time"
)

// ItemRow represents a row in the items table.
type ItemRow struct {
	UID       string
	Prefix    string
	Path      string
	Header    string
	Checksum  string
	Normative bool
	Active    bool
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	UID       string `json:"uid"`
	Prefix    string `json:"prefix"`
	Path      string `json:"path"`
	Header    string `json:"header,omitempty"`
	Snippet   string `json:"snippet"`
	Referrers int    `json:"referrers"`
}

// Stats summarises the index contents.
type Stats struct {
	Items int `json:"items"`
	Links int `json:"links"`
}

// UpsertItem inserts or replaces an item, its FTS entry, and its outbound
// links within a transaction.
func (db *DB) UpsertItem(it ItemRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO items (uid, prefix, path, header, body, checksum, normative, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			prefix     = excluded.prefix,
			path       = excluded.path,
			header     = excluded.header,
			body       = excluded.body,
			checksum   = excluded.checksum,
			normative  = excluded.normative,
			active     = excluded.active,
			updated_at = excluded.updated_at
	`, it.UID, it.Prefix, it.Path, it.Header, body, it.Checksum, it.Normative, it.Active, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert item: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, it.UID, it.Header, body); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, it.UID)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(it.UID, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteItem removes an item, its FTS entry, and outbound links.
func (db *DB) DeleteItem(uid string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, uid)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, uid)
	_, _ = tx.Exec(`DELETE FROM items WHERE uid = ?`, uid)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for an item, or empty string if not found.
func (db *DB) GetChecksum(uid string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM items WHERE uid = ?`, uid).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns the checksum of every indexed item keyed by UID.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT uid, checksum FROM items`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var uid, cs string
		if err := rows.Scan(&uid, &cs); err != nil {
			return nil, err
		}
		out[uid] = cs
	}
	return out, rows.Err()
}

// Stats counts indexed items and links.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`SELECT (SELECT count(*) FROM items), (SELECT count(*) FROM links)`).Scan(&s.Items, &s.Links)
	if err != nil {
		return Stats{}, fmt.Errorf("index: stats: %w", err)
	}
	return s, nil
}
