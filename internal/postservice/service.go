// Package postservice coordinates the source store, the index builder, the
// SQLite catalog and the renderer behind the API and MCP surfaces.
package postservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/catalog"
	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/postindex"
	"github.com/starford/quill/internal/render"
	"github.com/starford/quill/internal/search"
	"github.com/starford/quill/internal/storage"
)

// DefaultSearchLimit caps full-text search results when no limit is given.
const DefaultSearchLimit = 20

// Option configures a Service.
type Option func(*Service)

// WithCatalog mirrors every rebuild into cat and serves full-text search
// from it. Without a catalog, Search falls back to the in-memory filter.
func WithCatalog(cat catalog.PostCatalog) Option {
	return func(s *Service) {
		s.catalog = cat
	}
}

// Service holds the current post index in memory. It is safe for
// concurrent use.
type Service struct {
	store    storage.Provider
	builder  *postindex.Builder
	catalog  catalog.PostCatalog
	renderer *render.Renderer
	logger   *slog.Logger
	pagesDir string
	output   string

	mu     sync.RWMutex
	posts  []models.Post
	raw    []byte
	etag   string
	loaded bool
}

// NewService creates a post service reading sources from pagesDir and
// publishing the index to output, both relative to the store root.
func NewService(store storage.Provider, builder *postindex.Builder, pagesDir, output string, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		builder:  builder,
		renderer: render.New(),
		logger:   logger,
		pagesDir: pagesDir,
		output:   output,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rebuild regenerates posts.json, mirrors it into the catalog and swaps the
// in-memory index. A catalog failure is logged and does not fail the
// rebuild.
func (s *Service) Rebuild(ctx context.Context) (*postindex.Report, error) {
	rep, err := s.builder.Build(ctx, s.pagesDir, s.output)
	if err != nil {
		return nil, err
	}

	if s.catalog != nil {
		stats, err := catalog.Sync(s.catalog, rep.Posts, rep.Sources, s.logger)
		if err != nil {
			s.logger.Warn("catalog: sync failed", slog.String("build_id", rep.BuildID), slog.String("error", err.Error()))
		} else {
			s.logger.Debug("catalog: synced",
				slog.String("build_id", rep.BuildID),
				slog.Int("upserted", stats.Upserted),
				slog.Int("unchanged", stats.Unchanged),
				slog.Int("removed", stats.Removed))
		}
	}

	raw, err := s.store.Read(s.output)
	if err != nil {
		// serve what was built even if the file vanished in between
		if raw, err = postindex.Encode(rep.Posts); err != nil {
			return nil, err
		}
	}
	s.swap(rep.Posts, raw)
	return rep, nil
}

// Load reads an existing posts.json into memory without rebuilding. It
// returns apperr.ErrNotFound when no index has been written yet.
func (s *Service) Load(_ context.Context) error {
	raw, err := s.store.Read(s.output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	posts, err := postindex.Decode(raw)
	if err != nil {
		return err
	}
	s.swap(posts, raw)
	return nil
}

func (s *Service) swap(posts []models.Post, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = posts
	s.raw = raw
	s.etag = checksum.ETag(raw)
	s.loaded = true
}

// Ready reports whether an index has been loaded or built.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Index returns the serialised index and its entity tag.
func (s *Service) Index() ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, "", apperr.ErrNotFound
	}
	return s.raw, s.etag, nil
}

// ListPosts returns the posts matching f in index order.
func (s *Service) ListPosts(f search.Filter) []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search.Apply(s.posts, f)
}

// Tags returns every distinct tag in the index.
func (s *Service) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return search.CollectTags(s.posts)
}

// RawPost returns the Markdown source of file.
func (s *Service) RawPost(_ context.Context, file string) ([]byte, error) {
	if !validFile(file) {
		return nil, apperr.ErrInvalidPath
	}
	data, err := s.store.Read(path.Join(s.pagesDir, file))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// GetPost renders file for the single-post view.
func (s *Service) GetPost(ctx context.Context, file string) (*render.Post, error) {
	data, err := s.RawPost(ctx, file)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(file, data)
}

// Search runs a full-text query over post bodies. limit <= 0 means
// DefaultSearchLimit.
func (s *Service) Search(_ context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if s.catalog != nil {
		res, err := s.catalog.Search(query, limit)
		if err != nil {
			return nil, fmt.Errorf("postservice: search: %w", err)
		}
		return res, nil
	}

	posts := s.ListPosts(search.NewFilter(query))
	out := make([]catalog.SearchResult, 0, min(limit, len(posts)))
	for _, p := range posts {
		if len(out) == limit {
			break
		}
		out = append(out, catalog.SearchResult{File: p.File, Title: p.Title, Date: p.Date, Snippet: p.Excerpt})
	}
	return out, nil
}

// validFile accepts a bare source file name.
func validFile(file string) bool {
	return file != "" &&
		strings.HasSuffix(file, storage.SourceExt) &&
		!strings.ContainsAny(file, `/\`) &&
		!strings.HasPrefix(file, ".")
}
