package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/quill/internal/postservice"
)

// SiteConfig describes the surfaces served next to the API.
type SiteConfig struct {
	// Root is the directory served as static files.
	Root string
	// Token, when set, guards /api with Bearer auth.
	Token string
	// Events, if non-nil, is mounted at GET /api/events.
	Events http.Handler
	// Deny lists root-relative paths the static handler must not serve,
	// such as the config file.
	Deny []string
}

// NewRouter creates a chi router with all API routes. It is meant to be
// mounted under /api.
func NewRouter(svc *postservice.Service, token string, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(token))

	r.Get("/posts", h.ListPosts)
	r.Get("/posts/{file}", h.GetPost)
	r.Get("/tags", h.Tags)
	r.Get("/search", h.Search)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}
	return r
}

// NewSiteRouter creates the preview server's root router: health checks,
// the index file, the API and static site files.
func NewSiteRouter(svc *postservice.Service, cfg SiteConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	r.Get("/posts.json", h.Index)
	r.Mount("/api", NewRouter(svc, cfg.Token, cfg.Events))

	if cfg.Root != "" {
		r.Handle("/*", staticHandler(cfg.Root, cfg.Deny))
	}
	return r
}
