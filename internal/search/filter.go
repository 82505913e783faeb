// Package search filters the in-memory post list by free text and tags.
package search

import (
	"slices"
	"sort"
	"strings"

	"github.com/starford/quill/internal/models"
)

// Filter is an immutable filter state. The zero value matches every post.
// Methods return modified copies and never mutate the receiver.
type Filter struct {
	query string
	tags  []string
}

// NewFilter returns a filter with the given query and required tags.
func NewFilter(query string, tags ...string) Filter {
	return Filter{}.WithQuery(query).WithTags(tags...)
}

// Query returns the normalised search term.
func (f Filter) Query() string {
	return f.query
}

// Tags returns a copy of the required tags.
func (f Filter) Tags() []string {
	return slices.Clone(f.tags)
}

// HasTag reports whether tag is required by the filter.
func (f Filter) HasTag(tag string) bool {
	return slices.Contains(f.tags, tag)
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.query == "" && len(f.tags) == 0
}

// WithQuery returns a copy with the search term set. The term is trimmed and
// lower-cased.
func (f Filter) WithQuery(q string) Filter {
	f.query = strings.ToLower(strings.TrimSpace(q))
	f.tags = slices.Clone(f.tags)
	return f
}

// WithTags returns a copy that also requires each of tags.
func (f Filter) WithTags(tags ...string) Filter {
	for _, t := range tags {
		f = f.WithTag(t)
	}
	return f
}

// WithTag returns a copy that also requires tag.
func (f Filter) WithTag(tag string) Filter {
	if tag == "" || f.HasTag(tag) {
		return f
	}
	f.tags = append(slices.Clone(f.tags), tag)
	return f
}

// WithoutTag returns a copy that no longer requires tag.
func (f Filter) WithoutTag(tag string) Filter {
	f.tags = slices.DeleteFunc(slices.Clone(f.tags), func(t string) bool { return t == tag })
	return f
}

// Toggle adds tag when absent and removes it when present.
func (f Filter) Toggle(tag string) Filter {
	if f.HasTag(tag) {
		return f.WithoutTag(tag)
	}
	return f.WithTag(tag)
}

// Match reports whether p satisfies the filter. The query is a
// case-insensitive substring match over title, excerpt and tags; required
// tags must all be present exactly.
func (f Filter) Match(p models.Post) bool {
	return f.matchQuery(p) && f.matchTags(p)
}

func (f Filter) matchQuery(p models.Post) bool {
	if f.query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Title), f.query) ||
		strings.Contains(strings.ToLower(p.Excerpt), f.query) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), f.query) {
			return true
		}
	}
	return false
}

func (f Filter) matchTags(p models.Post) bool {
	for _, want := range f.tags {
		if !slices.Contains(p.Tags, want) {
			return false
		}
	}
	return true
}

// Apply returns the posts matching f, in their original order. The input is
// never modified and the result is never nil.
func Apply(posts []models.Post, f Filter) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// CollectTags returns every distinct tag across posts, sorted.
func CollectTags(posts []models.Post) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range posts {
		for _, t := range p.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
