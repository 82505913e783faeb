//go:build sqlite_fts5

package catalog

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5(
			file UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, file, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM posts_fts WHERE file = ?`, file)
	_, err := tx.Exec(`INSERT INTO posts_fts (file, title, body, tags) VALUES (?, ?, ?, ?)`,
		file, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("catalog: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, file string) {
	_, _ = tx.Exec(`DELETE FROM posts_fts WHERE file = ?`, file)
}

// Search performs an FTS5 full-text search and returns matching results with
// snippets. Every term must appear; query syntax is not interpreted.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return []SearchResult{}, nil
	}
	rows, err := db.conn.Query(`
		SELECT posts_fts.file,
		       posts_fts.title,
		       p.date,
		       snippet(posts_fts, 2, '<b>', '</b>', '...', 32)
		FROM posts_fts
		JOIN posts p ON p.file = posts_fts.file
		WHERE posts_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.File, &r.Title, &r.Date, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
