// Package models defines the domain types for quill.
package models

import "time"

// Post is one entry of the persisted post index. Field order matches the
// emitted JSON.
type Post struct {
	File        string   `json:"file"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Excerpt     string   `json:"excerpt"`
}

// SourceMetadata is a lightweight listing entry for a source document.
type SourceMetadata struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
