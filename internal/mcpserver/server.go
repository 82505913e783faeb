// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the blog to LLM tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/search"
)

// FormatURI identifies the post format resource.
const FormatURI = "quill://post-format"

// Server wraps the MCP server with quill tools.
type Server struct {
	mcp *server.MCPServer
	svc *postservice.Service
}

// New creates a new MCP server with all quill tools registered.
func New(svc *postservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"quill",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List blog posts, newest first, as JSON index records."),
		mcp.WithString("tag", mcp.Description("Optional tag every returned post must carry")),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Filter posts by a case-insensitive term matched against title, excerpt and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search term")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags; all must match")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("full_text_search",
		mcp.WithDescription("Full-text search through post bodies and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.fullTextSearch)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read the Markdown source of a post, front matter included."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Post file name (e.g. hello-world.md)")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("get_post_format",
		mcp.WithDescription("Returns the post front matter format. "+
			"Call this before drafting posts to ensure correct structure."),
	), s.getPostFormat)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Regenerate posts.json from the pages directory."),
	), s.rebuildIndex)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Post Format",
			mcp.WithResourceDescription("Front matter and Markdown format of a blog post."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPosts(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := search.Filter{}
	if tag := req.GetString("tag", ""); tag != "" {
		f = f.WithTag(tag)
	}
	return jsonResult(s.svc.ListPosts(f))
}

func (s *Server) searchPosts(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := search.NewFilter(query, splitTags(req.GetString("tags", ""))...)
	return jsonResult(s.svc.ListPosts(f))
}

func (s *Server) fullTextSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.RawPost(ctx, file)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", file)), nil
	case errors.Is(err, apperr.ErrInvalidPath):
		return mcp.NewToolResultError(fmt.Sprintf("invalid post file: %s", file)), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getPostFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormat), nil
}

func (s *Server) rebuildIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Rebuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rebuilt %s: %d posts, %d skipped (build %s)",
		rep.Output, len(rep.Posts), len(rep.Skipped), rep.BuildID)), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     PostFormat,
		},
	}, nil
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
