package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc *postservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *postservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Index handles GET /posts.json. The body is the index file byte for byte.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	raw, etag, err := h.svc.Index()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("index not built"))
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// ListPosts handles GET /api/posts?q=&tag=.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := search.NewFilter(q.Get("q"), q["tag"]...)

	posts := h.svc.ListPosts(f)
	writeJSON(w, http.StatusOK, PostListResponse{
		Posts: posts,
		Total: len(posts),
		Query: f.Query(),
		Tags:  nonNil(f.Tags()),
	})
}

// GetPost handles GET /api/posts/{file}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	file, err := url.PathUnescape(chi.URLParam(r, "file"))
	if err != nil || file == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("file is required"))
		return
	}
	post, err := h.svc.GetPost(r.Context(), file)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("post not found"))
		case errors.Is(err, apperr.ErrInvalidPath):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid post file"))
		default:
			slog.Error("api: get post failed", slog.String("file", file), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Tags handles GET /api/tags.
func (h *Handler) Tags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TagsResponse{Tags: h.svc.Tags()})
}

// Search handles GET /api/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("api: search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Ready handles GET /health/ready. It fails until an index is loaded.
func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	if !h.svc.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "index not ready"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
