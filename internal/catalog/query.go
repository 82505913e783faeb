package catalog

import "strings"

// ftsQuery turns free text into an FTS5 MATCH expression: each
// whitespace-separated term becomes a quoted phrase and the phrases are
// ANDed. Operators and punctuation in the input are matched literally.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
