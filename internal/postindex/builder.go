// Package postindex builds the JSON post index from a directory of Markdown
// source documents.
package postindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/excerpt"
	"github.com/starford/quill/internal/frontmatter"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/storage"
)

// DefaultWorkers bounds concurrent file parsing when no option is given.
const DefaultWorkers = 4

// Source is the parsed body of one indexed document, kept alongside the
// post so that downstream mirrors do not need to reread the file.
type Source struct {
	File     string
	Body     string
	Checksum string
}

// Report summarises one build.
type Report struct {
	BuildID string
	Output  string
	Posts   []models.Post
	Sources []Source
	Skipped []string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithExcerptLength sets the maximum excerpt length in runes.
func WithExcerptLength(n int) BuilderOption {
	return func(b *Builder) {
		b.excerptLength = n
	}
}

// WithWorkers sets how many documents are parsed concurrently.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithClock overrides the clock used for the default post date.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// Builder assembles post records from source documents.
type Builder struct {
	store         storage.Provider
	logger        *slog.Logger
	excerptLength int
	workers       int
	now           func() time.Time
}

// NewBuilder creates a Builder reading and writing through store.
func NewBuilder(store storage.Provider, logger *slog.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		store:         store,
		logger:        logger,
		excerptLength: excerpt.DefaultLength,
		workers:       DefaultWorkers,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build regenerates the index from pagesDir and overwrites outputPath.
// Only a failure to enumerate the directory or to write the output is
// returned; unreadable documents are logged and skipped.
func (b *Builder) Build(ctx context.Context, pagesDir, outputPath string) (*Report, error) {
	buildID := uuid.NewString()
	logger := b.logger.With(slog.String("build_id", buildID))

	posts, sources, skipped, err := b.collect(ctx, logger, pagesDir)
	if err != nil {
		return nil, err
	}
	Sort(posts)

	data, err := Encode(posts)
	if err != nil {
		return nil, err
	}
	if err := b.store.Write(outputPath, data); err != nil {
		return nil, fmt.Errorf("index: write %s: %w", outputPath, err)
	}

	logger.Info("post index written",
		slog.Int("posts", len(posts)),
		slog.Int("skipped", len(skipped)),
		slog.String("output", outputPath))

	return &Report{
		BuildID: buildID,
		Output:  outputPath,
		Posts:   posts,
		Sources: sources,
		Skipped: skipped,
	}, nil
}

// Collect parses every document in pagesDir and returns the unsorted posts
// with their bodies. A missing directory yields no posts and no error.
func (b *Builder) Collect(ctx context.Context, pagesDir string) ([]models.Post, []Source, error) {
	posts, sources, _, err := b.collect(ctx, b.logger, pagesDir)
	return posts, sources, err
}

type slot struct {
	post   models.Post
	source Source
	ok     bool
}

func (b *Builder) collect(ctx context.Context, logger *slog.Logger, pagesDir string) ([]models.Post, []Source, []string, error) {
	metas, err := b.store.List(pagesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("index: pages directory not found, no posts", slog.String("dir", pagesDir))
			return []models.Post{}, []Source{}, nil, nil
		}
		return nil, nil, nil, fmt.Errorf("index: list %s: %w", pagesDir, err)
	}

	// One slot per document keeps results independent of scheduling.
	slots := make([]slot, len(metas))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, m := range metas {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := b.store.Read(m.Path)
			if err != nil {
				logger.Warn("index: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				return nil
			}
			file := path.Base(m.Path)
			res := frontmatter.Parse(string(data))
			slots[i] = slot{
				post:   b.Assemble(file, res),
				source: Source{File: file, Body: res.Body, Checksum: checksum.Sum(data)},
				ok:     true,
			}
			logger.Debug("index: parsed", slog.String("path", m.Path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, fmt.Errorf("index: collect: %w", err)
	}

	posts := make([]models.Post, 0, len(slots))
	sources := make([]Source, 0, len(slots))
	var skipped []string
	for i, s := range slots {
		if !s.ok {
			skipped = append(skipped, metas[i].Path)
			continue
		}
		posts = append(posts, s.post)
		sources = append(sources, s.source)
	}
	return posts, sources, skipped, nil
}

// Assemble turns a parsed document into a post record, applying the defaults
// for every missing field.
func (b *Builder) Assemble(file string, res frontmatter.Result) models.Post {
	md := res.Metadata
	tags := md.Strings(frontmatter.TagsKey)
	if tags == nil {
		tags = []string{}
	}
	return models.Post{
		File:        file,
		Title:       DefaultTitle(file, md.String("title")),
		Date:        NormalizeDate(md.String("date"), b.now()),
		Tags:        tags,
		Category:    md.String("category"),
		Description: md.String("description"),
		Excerpt:     excerpt.Generate(res.Body, b.excerptLength),
	}
}

// DefaultTitle returns title, or the file name without its extension when
// title is empty.
func DefaultTitle(file, title string) string {
	if title != "" {
		return title
	}
	return strings.TrimSuffix(file, storage.SourceExt)
}
