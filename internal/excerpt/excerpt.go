// Package excerpt derives short plain-text previews from Markdown bodies.
package excerpt

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultLength is the maximum excerpt length, in runes, used when the
// caller passes a non-positive limit.
const DefaultLength = 300

// Ellipsis is appended when an excerpt is truncated.
const Ellipsis = "..."

type rule struct {
	re   *regexp.Regexp
	repl string
}

// pipeline is applied in order. Later rules rely on earlier ones: fenced
// blocks must go before inline code, and bold before italic.
var pipeline = []rule{
	{regexp.MustCompile(`(?m)^#+\s+`), ""},
	{regexp.MustCompile("(?s)```.*?```"), ""},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`(?m)^[ \t]*>+[ \t]*`), ""},
	{regexp.MustCompile(`[\r\n]+`), " "},
}

// Strip removes Markdown syntax from body and collapses it onto one line.
func Strip(body string) string {
	text := body
	for _, r := range pipeline {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return strings.TrimSpace(text)
}

// Generate returns the stripped body truncated to maxLength runes, with
// Ellipsis appended when truncation happened.
func Generate(body string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultLength
	}
	text := Strip(body)
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLength]) + Ellipsis
}
