package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/postindex"
	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	root, store := testutil.TestSite(t)
	testutil.WritePost(t, root, "go.md", "---\ntitle: Learning Go\ndate: 2024-05-01\ntags: [go, lang]\n---\nGoroutines everywhere.\n")
	testutil.WritePost(t, root, "web.md", "---\ntitle: Static Sites\ndate: 2024-06-01\ntags: [web, go]\n---\nA blog from JSON.\n")

	b := postindex.NewBuilder(store, testutil.Logger())
	svc := postservice.NewService(store, b, testutil.PagesDir, "posts.json", testutil.Logger(),
		postservice.WithCatalog(testutil.TestDB(t)))
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// handlers are called directly; mcp-go has no in-process call helper
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_posts":
		result, err = srv.listPosts(ctx, req)
	case "search_posts":
		result, err = srv.searchPosts(ctx, req)
	case "full_text_search":
		result, err = srv.fullTextSearch(ctx, req)
	case "read_post":
		result, err = srv.readPost(ctx, req)
	case "get_post_format":
		result, err = srv.getPostFormat(ctx, req)
	case "rebuild_index":
		result, err = srv.rebuildIndex(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodePosts(t *testing.T, r *mcp.CallToolResult) []string {
	t.Helper()
	var posts []models.Post
	if err := json.Unmarshal([]byte(resultText(r)), &posts); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	files := []string{}
	for _, p := range posts {
		files = append(files, p.File)
	}
	return files
}

func TestListPosts(t *testing.T) {
	srv := testServer(t)

	got := decodePosts(t, callTool(t, srv, "list_posts", map[string]any{}))
	if strings.Join(got, ",") != "web.md,go.md" {
		t.Errorf("list = %v", got)
	}
	got = decodePosts(t, callTool(t, srv, "list_posts", map[string]any{"tag": "lang"}))
	if strings.Join(got, ",") != "go.md" {
		t.Errorf("list tag=lang = %v", got)
	}
}

func TestSearchPosts(t *testing.T) {
	srv := testServer(t)

	got := decodePosts(t, callTool(t, srv, "search_posts", map[string]any{"query": "static"}))
	if strings.Join(got, ",") != "web.md" {
		t.Errorf("search = %v", got)
	}
	got = decodePosts(t, callTool(t, srv, "search_posts", map[string]any{"query": "", "tags": "go, lang"}))
	if strings.Join(got, ",") != "go.md" {
		t.Errorf("search tags = %v", got)
	}

	r := callTool(t, srv, "search_posts", map[string]any{})
	if !r.IsError {
		t.Error("expected error without query")
	}
}

func TestFullTextSearch(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "full_text_search", map[string]any{"query": "goroutines"})
	if r.IsError || !strings.Contains(resultText(r), `"file": "go.md"`) {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestReadPost(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_post", map[string]any{"file": "go.md"})
	if !strings.HasPrefix(resultText(r), "---\ntitle: Learning Go") {
		t.Errorf("read result = %q", resultText(r))
	}
}

func TestReadPostErrors(t *testing.T) {
	srv := testServer(t)
	for _, file := range []string{"nope.md", "../go.md", "posts.json"} {
		r := callTool(t, srv, "read_post", map[string]any{"file": file})
		if !r.IsError {
			t.Errorf("read_post(%q): expected error", file)
		}
	}
}

func TestGetPostFormat(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_post_format", nil)
	if resultText(r) != PostFormat {
		t.Error("format text mismatch")
	}

	res, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
	if tc, ok := res[0].(mcp.TextResourceContents); !ok || tc.URI != FormatURI {
		t.Errorf("resource = %+v", res[0])
	}
}

func TestRebuildIndex(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "rebuild_index", nil)
	if r.IsError || !strings.Contains(resultText(r), "2 posts") {
		t.Errorf("rebuild = %q", resultText(r))
	}
}

func TestSplitTags(t *testing.T) {
	got := splitTags(" a, ,b ,")
	if strings.Join(got, "|") != "a|b" {
		t.Errorf("splitTags = %v", got)
	}
	if splitTags("") != nil {
		t.Error("empty input should yield nil")
	}
}
