package catalog

import (
	"encoding/json"
	"log/slog"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/postindex"
)

// SyncStats counts the rows touched by Sync.
type SyncStats struct {
	Upserted  int
	Unchanged int
	Removed   int
}

// Sync brings the catalog in line with a freshly built index:
//   - new/changed posts are upserted
//   - posts no longer in the index are deleted
//
// posts and sources are matched by file name. A row counts as unchanged
// only when the derived record and the body both match what is stored. Row
// failures are logged and do not stop the sync.
func Sync(db PostCatalog, posts []models.Post, sources []postindex.Source, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	existing, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	bySource := make(map[string]postindex.Source, len(sources))
	for _, s := range sources {
		bySource[s.File] = s
	}

	current := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		current[p.File] = struct{}{}
		src := bySource[p.File]
		cs := RowChecksum(p, src.Body)

		if prev, ok := existing[p.File]; ok && prev == cs {
			stats.Unchanged++
			continue
		}
		if err := db.Upsert(Row{Post: p, Body: src.Body, Checksum: cs}); err != nil {
			logger.Warn("catalog: upsert failed", slog.String("file", p.File), slog.String("error", err.Error()))
			continue
		}
		stats.Upserted++
		logger.Debug("catalog: upserted", slog.String("file", p.File))
	}

	for f := range existing {
		if _, ok := current[f]; ok {
			continue
		}
		if err := db.Delete(f); err != nil {
			logger.Warn("catalog: delete failed", slog.String("file", f), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("catalog: removed stale", slog.String("file", f))
	}

	return stats, nil
}

// RowChecksum digests everything a catalog row is derived from.
func RowChecksum(p models.Post, body string) string {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	rec, _ := json.Marshal(p)
	return checksum.Sum(append(append(rec, 0), body...))
}
