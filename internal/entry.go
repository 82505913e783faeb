// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/catalog"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/postindex"
	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/storage"
	"github.com/starford/quill/internal/watch"
)

// runtime is the wiring shared by every command.
type runtime struct {
	cfg        *Config
	logger     *slog.Logger
	store      *storage.FS
	builder    *postindex.Builder
	version    string
	configFile string
}

func newRuntime(opts []Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("site_root", cfg.Site.Root),
		slog.String("pages_dir", cfg.Site.PagesDir),
		slog.String("output", cfg.Site.Output),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Site.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create site root: %w", err)
	}
	store, err := storage.NewFS(cfg.Site.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	builder := postindex.NewBuilder(store, logger,
		postindex.WithExcerptLength(cfg.Blog.ExcerptLength),
		postindex.WithWorkers(cfg.Blog.Workers),
	)
	return &runtime{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		builder:    builder,
		version:    app.version,
		configFile: app.configFile,
	}, nil
}

// service builds the post service, opening the catalog when configured. The
// returned func closes it.
func (rt *runtime) service() (*postservice.Service, func(), error) {
	var opts []postservice.Option
	closeFn := func() {}
	if rt.cfg.SQLite.Enabled() {
		db, err := catalog.Open(rt.cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init catalog: %w", err)
		}
		opts = append(opts, postservice.WithCatalog(db))
		closeFn = func() { _ = db.Close() }
	}
	svc := postservice.NewService(rt.store, rt.builder, rt.cfg.Site.PagesDir, rt.cfg.Site.Output, rt.logger, opts...)
	return svc, closeFn, nil
}

// privatePaths returns the config file and catalog files that sit inside
// the site root, relative to it.
func (rt *runtime) privatePaths() []string {
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return
		}
		rel, err := filepath.Rel(rt.store.Root(), abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		out = append(out, rel)
	}
	add(rt.configFile)
	if rt.cfg.SQLite.Enabled() {
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			add(rt.cfg.SQLite.Path + suffix)
		}
	}
	return out
}

func (rt *runtime) pagesPath() (string, error) {
	return rt.store.Abs(rt.cfg.Site.PagesDir)
}

// Build regenerates posts.json once.
func Build(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	if _, err := rt.builder.Build(ctx, rt.cfg.Site.PagesDir, rt.cfg.Site.Output); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	return nil
}

// Watch builds the index and rebuilds it on every source change until ctx
// is cancelled or a termination signal arrives.
func Watch(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	svc := postservice.NewService(rt.store, rt.builder, rt.cfg.Site.PagesDir, rt.cfg.Site.Output, rt.logger)
	if _, err := svc.Rebuild(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	dir, err := rt.pagesPath()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watch.Watch(ctx, dir, rt.logger, func(ctx context.Context) error {
		_, err := svc.Rebuild(ctx)
		return err
	}, func(kind, file string) {
		rt.logger.Info("watcher: post changed", slog.String("op", kind), slog.String("file", file))
	})
}

// Serve runs the preview server: static site, posts.json, the JSON API and
// live events, rebuilding on every source change.
func Serve(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	cfg, logger := rt.cfg, rt.logger

	svc, closeSvc, err := rt.service()
	if err != nil {
		return err
	}
	defer closeSvc()

	if _, err := svc.Rebuild(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	dir, err := rt.pagesPath()
	if err != nil {
		return err
	}

	broker := sse.NewBroker(cfg.Live.RebuildThrottle)
	defer broker.Close()

	router := api.NewSiteRouter(svc, api.SiteConfig{
		Root:   rt.store.Root(),
		Token:  cfg.Auth.APIToken(),
		Events: broker,
		Deny:   rt.privatePaths(),
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.Watch(gCtx, dir, logger, liveRebuild(svc, broker, logger), broker.PublishPostEvent)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// ends the watcher once the server is gone
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// liveRebuild rebuilds the index and tells connected browsers how it went.
// A failed build keeps serving the previous index and emits index.failed.
func liveRebuild(svc *postservice.Service, broker *sse.Broker, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		rep, err := svc.Rebuild(ctx)
		if err != nil {
			broker.Publish(sse.Event{Type: sse.TypeIndexFailed, Data: map[string]string{"error": err.Error()}})
			return err
		}
		broker.PublishRebuilt(rep.BuildID, len(rep.Posts))
		logger.Debug("live: rebuild published",
			slog.String("build_id", rep.BuildID),
			slog.Int("clients", broker.ClientCount()))
		return nil
	}
}

// MCP serves the blog over the Model Context Protocol on stdin/stdout. The
// index is rebuilt first; if posts.json cannot be written the existing one
// is served instead.
func MCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}

	svc, closeSvc, err := rt.service()
	if err != nil {
		return err
	}
	defer closeSvc()

	if _, err := svc.Rebuild(ctx); err != nil {
		rt.logger.Warn("mcp: rebuild failed, loading existing index", slog.String("error", err.Error()))
		if err := svc.Load(ctx); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return fmt.Errorf("no index available: %w", err)
			}
			return fmt.Errorf("load index: %w", err)
		}
	}

	rt.logger.Info("mcp: serving on stdio")
	return mcpserver.New(svc, rt.version).ServeStdio()
}
