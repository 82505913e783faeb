package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

// Row is one mirrored post together with its Markdown body.
type Row struct {
	Post      models.Post
	Body      string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	File    string `json:"file"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// Upsert inserts or replaces a post and its FTS entry within a transaction.
func (db *DB) Upsert(row Row) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := row.Post.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}

	p := row.Post
	_, err = tx.Exec(`
		INSERT INTO posts (file, title, date, tags, category, description, excerpt, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			title       = excluded.title,
			date        = excluded.date,
			tags        = excluded.tags,
			category    = excluded.category,
			description = excluded.description,
			excerpt     = excluded.excerpt,
			body        = excluded.body,
			checksum    = excluded.checksum,
			updated_at  = excluded.updated_at
	`, p.File, p.Title, p.Date, string(tagsJSON), p.Category, p.Description, p.Excerpt, row.Body, row.Checksum, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert post: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, p.File, p.Title, row.Body, tags); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a post and its FTS entry.
func (db *DB) Delete(file string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, file)
	if _, err := tx.Exec(`DELETE FROM posts WHERE file = ?`, file); err != nil {
		return fmt.Errorf("catalog: delete post: %w", err)
	}
	return tx.Commit()
}

// Get returns the mirrored post for file, or apperr.ErrNotFound.
func (db *DB) Get(file string) (*Row, error) {
	var (
		r       Row
		tagsRaw string
	)
	err := db.conn.QueryRow(`
		SELECT file, title, date, tags, category, description, excerpt, body, checksum, updated_at
		FROM posts WHERE file = ?
	`, file).Scan(&r.Post.File, &r.Post.Title, &r.Post.Date, &tagsRaw, &r.Post.Category,
		&r.Post.Description, &r.Post.Excerpt, &r.Body, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", file, err)
	}
	if err := json.Unmarshal([]byte(tagsRaw), &r.Post.Tags); err != nil || r.Post.Tags == nil {
		r.Post.Tags = []string{}
	}
	return &r, nil
}

// Count returns the number of mirrored posts.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count: %w", err)
	}
	return n, nil
}

// AllChecksums returns file → checksum for every mirrored post.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, checksum FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}
