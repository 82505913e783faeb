// Package storage defines the project file-system abstraction.
package storage

import "github.com/starford/quill/internal/models"

// Provider is the interface for project file operations. All paths are
// relative to the project root.
type Provider interface {
	// List returns metadata for every .md file directly inside dir.
	List(dir string) ([]models.SourceMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
}
