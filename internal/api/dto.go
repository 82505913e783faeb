package api

import (
	"github.com/starford/quill/internal/catalog"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/render"
)

// PostListResponse wraps a filtered post listing.
type PostListResponse struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total"`
	Query string        `json:"query,omitempty"`
	Tags  []string      `json:"tags"`
}

// PostDetail is the single-post view (aliased from the render layer).
type PostDetail = render.Post

// TagsResponse lists every distinct tag.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// SearchResponse wraps full-text search results.
type SearchResponse struct {
	Results []catalog.SearchResult `json:"results"`
}

type statusResponse struct {
	Status string `json:"status"`
}
