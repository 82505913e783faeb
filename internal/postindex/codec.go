package postindex

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// Encode serialises posts as a JSON array indented with two spaces. HTML
// characters are left unescaped and nil slices are written as [].
func Encode(posts []models.Post) ([]byte, error) {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		if p.Tags == nil {
			p.Tags = []string{}
		}
		out[i] = p
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("index: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a serialised index.
func Decode(data []byte) ([]models.Post, error) {
	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("index: decode: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// Load reads and decodes the index stored at path.
func Load(store storage.Provider, path string) ([]models.Post, error) {
	data, err := store.Read(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
