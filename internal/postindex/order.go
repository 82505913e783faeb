package postindex

import (
	"sort"
	"time"

	"github.com/starford/quill/internal/models"
)

// DateLayout is the layout of Post.Date.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses s in any of the accepted front-matter date layouts.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate formats raw as YYYY-MM-DD, falling back to now's calendar
// date when raw is empty or unparsable.
func NormalizeDate(raw string, now time.Time) string {
	if t, ok := ParseDate(raw); ok {
		return t.Format(DateLayout)
	}
	return now.Format(DateLayout)
}

// Sort orders posts newest first. Posts whose date does not parse go last;
// equal dates are ordered by file name.
func Sort(posts []models.Post) {
	type key struct {
		t  time.Time
		ok bool
	}
	keys := make(map[string]key, len(posts))
	for _, p := range posts {
		t, ok := ParseDate(p.Date)
		keys[p.Date] = key{t: t, ok: ok}
	}

	sort.SliceStable(posts, func(i, j int) bool {
		a, b := keys[posts[i].Date], keys[posts[j].Date]
		switch {
		case a.ok && !b.ok:
			return true
		case !a.ok && b.ok:
			return false
		case a.ok && b.ok && !a.t.Equal(b.t):
			return a.t.After(b.t)
		}
		return posts[i].File < posts[j].File
	})
}
