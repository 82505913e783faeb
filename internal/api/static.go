package api

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// privateSuffixes are catalog files that never leave the server.
var privateSuffixes = []string{".db", ".sqlite", ".sqlite3", "-wal", "-shm", "-journal"}

// staticHandler serves root as plain files. Dotfiles and dot-directories,
// SQLite files and every root-relative path in deny answer 404.
func staticHandler(root string, deny []string) http.Handler {
	denied := make(map[string]struct{}, len(deny))
	for _, d := range deny {
		if d == "" {
			continue
		}
		denied[strings.ToLower(path.Clean("/"+filepath.ToSlash(d)))] = struct{}{}
	}
	files := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hidden(r.URL.Path, denied) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func hidden(urlPath string, denied map[string]struct{}) bool {
	clean := strings.ToLower(path.Clean("/" + urlPath))
	if _, ok := denied[clean]; ok {
		return true
	}
	for _, seg := range strings.Split(strings.Trim(clean, "/"), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	for _, s := range privateSuffixes {
		if strings.HasSuffix(clean, s) {
			return true
		}
	}
	return false
}
