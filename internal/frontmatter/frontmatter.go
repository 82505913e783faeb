// Package frontmatter splits a leading "---" metadata block from a Markdown
// document and decodes its line-oriented key/value pairs.
package frontmatter

import (
	"encoding/json"
	"strings"
)

const (
	delim   = "---"
	TagsKey = "tags"
)

// Metadata maps front-matter keys to values. A value is a string, except
// for TagsKey which may hold a []string.
type Metadata map[string]any

// String returns the string value stored under key, or "".
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Strings returns the []string value stored under key, or nil when the
// value is absent or scalar.
func (m Metadata) Strings(key string) []string {
	if v, ok := m[key].([]string); ok {
		return v
	}
	return nil
}

// Result holds the output of splitting a document.
type Result struct {
	Metadata Metadata
	Body     string
}

// Parse extracts the front-matter block at the head of content. When the
// document does not open with a complete block the metadata is empty and
// Body is content unchanged.
func Parse(content string) Result {
	block, body, ok := split(content)
	if !ok {
		return Result{Metadata: Metadata{}, Body: content}
	}

	md := Metadata{}
	for _, line := range strings.Split(block, "\n") {
		key, value, ok := parseLine(line)
		if !ok {
			continue
		}
		md[key] = value
	}
	return Result{Metadata: md, Body: body}
}

// split returns the raw block between the delimiters and the text after the
// closing delimiter. The closing delimiter must be terminated by a newline.
func split(content string) (block, body string, ok bool) {
	first, rest, found := strings.Cut(content, "\n")
	if !found || !isDelim(first) {
		return "", "", false
	}

	var lines []string
	for {
		line, next, found := strings.Cut(rest, "\n")
		if !found {
			// Unterminated line: either no closing delimiter at all, or a
			// closing "---" at EOF without its newline.
			return "", "", false
		}
		if isDelim(line) {
			return strings.Join(lines, "\n"), next, true
		}
		lines = append(lines, line)
		rest = next
	}
}

func isDelim(line string) bool {
	return strings.TrimSuffix(line, "\r") == delim
}

// parseLine decodes one "key: value" line.
func parseLine(line string) (string, any, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", nil, false
	}
	key := strings.TrimSpace(line[:idx])
	value := unquote(strings.TrimSpace(line[idx+1:]))

	if key == TagsKey && strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		return key, parseList(value), true
	}
	return key, value, true
}

// unquote strips exactly one matching outer pair of double or single quotes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// parseList decodes a bracketed list, first as a JSON array of strings and
// then, if that fails, by splitting on commas.
func parseList(value string) []string {
	var out []string
	if err := json.Unmarshal([]byte(value), &out); err == nil && out != nil {
		return out
	}

	inner := value[1 : len(value)-1]
	pieces := strings.Split(inner, ",")
	out = make([]string, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, trimQuoteChar(strings.TrimSpace(p)))
	}
	return out
}

// trimQuoteChar removes at most one leading and one trailing quote character.
func trimQuoteChar(s string) string {
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if s != "" && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return s
}
