package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/quill/internal/postindex"
	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/testutil"
)

// testEnv sets up a temp site with three posts, a catalog, the service and
// the site router. The index is built unless skipBuild is set.
func testEnv(t *testing.T, token string, skipBuild bool) (*postservice.Service, http.Handler, string) {
	t.Helper()
	root, store := testutil.TestSite(t)
	testutil.WritePost(t, root, "hello.md", "---\ntitle: Hello\ndate: 2024-03-01\ntags: [go, web]\n---\n# Hello\n\nWorld of **Go**.\n")
	testutil.WritePost(t, root, "older.md", "---\ntitle: Older <post>\ndate: 2023-01-01\ntags: [life]\n---\nA quiet walk by the sea.\n")
	testutil.WritePost(t, root, "untitled.md", "---\ndate: 2022-05-05\n---\nplain\n")
	_ = os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>quill</html>"), 0o644)

	now := func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	b := postindex.NewBuilder(store, testutil.Logger(), postindex.WithClock(now))
	svc := postservice.NewService(store, b, testutil.PagesDir, "posts.json", testutil.Logger(),
		postservice.WithCatalog(testutil.TestDB(t)))
	if !skipBuild {
		if _, err := svc.Rebuild(context.Background()); err != nil {
			t.Fatalf("Rebuild: %v", err)
		}
	}
	router := NewSiteRouter(svc, SiteConfig{Root: root, Token: token})
	return svc, router, root
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIndex_ServesFileWithETag(t *testing.T) {
	_, router, root := testEnv(t, "", false)

	w := get(t, router, "/posts.json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	onDisk, _ := os.ReadFile(filepath.Join(root, "posts.json"))
	if w.Body.String() != string(onDisk) {
		t.Error("body differs from posts.json")
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	w = get(t, router, "/posts.json", "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", w.Code)
	}
}

func TestIndex_NotBuilt(t *testing.T) {
	_, router, _ := testEnv(t, "", true)
	w := get(t, router, "/posts.json")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestListPosts(t *testing.T) {
	_, router, _ := testEnv(t, "", false)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"all newest first", "/api/posts", []string{"hello.md", "older.md", "untitled.md"}},
		{"query", "/api/posts?q=SEA", []string{"older.md"}},
		{"tag", "/api/posts?tag=go", []string{"hello.md"}},
		{"tags are AND", "/api/posts?tag=go&tag=life", []string{}},
		{"query matches title default", "/api/posts?q=untitled", []string{"untitled.md"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.target)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var resp PostListResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			got := []string{}
			for _, p := range resp.Posts {
				got = append(got, p.File)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") || resp.Total != len(tt.want) {
				t.Errorf("files = %v (total %d), want %v", got, resp.Total, tt.want)
			}
		})
	}
}

func TestListPosts_NoHTMLEscaping(t *testing.T) {
	_, router, _ := testEnv(t, "", false)
	w := get(t, router, "/api/posts?q=older")
	if !strings.Contains(w.Body.String(), "Older <post>") {
		t.Errorf("title escaped: %s", w.Body.String())
	}
}

func TestGetPost(t *testing.T) {
	_, router, _ := testEnv(t, "", false)

	w := get(t, router, "/api/posts/hello.md")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var post PostDetail
	_ = json.Unmarshal(w.Body.Bytes(), &post)
	if post.Title != "Hello" || post.Date != "2024-03-01" {
		t.Errorf("post = %+v", post)
	}
	if !strings.Contains(post.HTML, "<strong>Go</strong>") {
		t.Errorf("html = %q", post.HTML)
	}
}

func TestGetPost_Errors(t *testing.T) {
	_, router, _ := testEnv(t, "", false)

	if w := get(t, router, "/api/posts/missing.md"); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
	if w := get(t, router, "/api/posts/posts.json"); w.Code != http.StatusBadRequest {
		t.Errorf("non-post status = %d, want 400", w.Code)
	}
	if w := get(t, router, "/api/posts/..%2Fsecret.md"); w.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d, want 400", w.Code)
	}
}

func TestTags(t *testing.T) {
	_, router, _ := testEnv(t, "", false)
	w := get(t, router, "/api/tags")
	var resp TagsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if strings.Join(resp.Tags, ",") != "go,life,web" {
		t.Errorf("tags = %v", resp.Tags)
	}
}

func TestSearch(t *testing.T) {
	_, router, _ := testEnv(t, "", false)

	w := get(t, router, "/api/search?q=walk")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].File != "older.md" {
		t.Errorf("results = %+v", resp.Results)
	}

	if w := get(t, router, "/api/search"); w.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", w.Code)
	}

	for _, q := range []string{"c%2B%2B", "%22unbalanced", "NOT", "title%3A"} {
		if w := get(t, router, "/api/search?q="+q); w.Code != http.StatusOK {
			t.Errorf("q=%s: status = %d, want 200", q, w.Code)
		}
	}
}

func TestAuth(t *testing.T) {
	_, router, _ := testEnv(t, "secret", false)

	if w := get(t, router, "/api/posts"); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}
	if w := get(t, router, "/api/posts", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", w.Code)
	}
	if w := get(t, router, "/api/posts", "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("good token status = %d, want 200", w.Code)
	}
	// the site itself stays public
	if w := get(t, router, "/posts.json"); w.Code != http.StatusOK {
		t.Errorf("posts.json status = %d, want 200", w.Code)
	}
}

func TestHealth(t *testing.T) {
	svc, router, _ := testEnv(t, "", true)

	if w := get(t, router, "/health/live"); w.Code != http.StatusOK {
		t.Errorf("live = %d", w.Code)
	}
	if w := get(t, router, "/health/ready"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready before build = %d, want 503", w.Code)
	}
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	if w := get(t, router, "/health/ready"); w.Code != http.StatusOK {
		t.Errorf("ready after build = %d", w.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	_, router, _ := testEnv(t, "", false)

	w := get(t, router, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "quill") {
		t.Errorf("index.html: status = %d body = %q", w.Code, w.Body.String())
	}
	w = get(t, router, "/pages/hello.md")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "title: Hello") {
		t.Errorf("raw page: status = %d", w.Code)
	}
}

func TestStaticFiles_HidesPrivateFiles(t *testing.T) {
	const secret = "s3cret-token"
	root, store := testutil.TestSite(t)
	writeFile := func(rel, content string) {
		t.Helper()
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(".env", "AUTH_TOKEN="+secret+"\n")
	writeFile(".git/config", "[core]\n")
	writeFile("config/config.yaml", "auth:\n  token: "+secret+"\n")
	writeFile("quill.db", "SQLite format 3")
	writeFile("quill.db-wal", "wal")
	writeFile("about.html", "<p>about</p>")

	svc := postservice.NewService(store, postindex.NewBuilder(store, testutil.Logger()), testutil.PagesDir, "posts.json", testutil.Logger())
	router := NewSiteRouter(svc, SiteConfig{Root: root, Token: secret, Deny: []string{"config/config.yaml"}})

	for _, target := range []string{
		"/.env",
		"/.git/config",
		"/config/config.yaml",
		"/config/../config/config.yaml",
		"/CONFIG/config.yaml",
		"/quill.db",
		"/quill.db-wal",
	} {
		w := get(t, router, target)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", target, w.Code)
		}
		if strings.Contains(w.Body.String(), secret) {
			t.Errorf("GET %s leaked the token", target)
		}
	}

	if w := get(t, router, "/about.html"); w.Code != http.StatusOK {
		t.Errorf("public file: status = %d", w.Code)
	}
	if w := get(t, router, "/api/posts"); w.Code != http.StatusUnauthorized {
		t.Errorf("api without token: status = %d, want 401", w.Code)
	}
}

func TestEventsMounted(t *testing.T) {
	_, store := testutil.TestSite(t)
	svc := postservice.NewService(store, postindex.NewBuilder(store, testutil.Logger()), testutil.PagesDir, "posts.json", testutil.Logger())
	called := false
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	router := NewSiteRouter(svc, SiteConfig{Events: events})
	get(t, router, "/api/events")
	if !called {
		t.Error("events handler not mounted")
	}
}
