// Package render turns a single source document into the detail view shown
// on a post page.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/quill/internal/frontmatter"
	"github.com/starford/quill/internal/postindex"
)

// Post is the rendered detail view of one document.
type Post struct {
	File        string               `json:"file"`
	Title       string               `json:"title"`
	Date        string               `json:"date,omitempty"`
	Category    string               `json:"category,omitempty"`
	Description string               `json:"description,omitempty"`
	Tags        []string             `json:"tags"`
	Metadata    frontmatter.Metadata `json:"metadata"`
	HTML        string               `json:"html"`
}

// Renderer converts Markdown bodies to HTML. It is stateless and safe for
// concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with GFM enabled. Soft line breaks become <br>,
// matching how posts are authored.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// HTML renders a Markdown body.
func (r *Renderer) HTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render: convert: %w", err)
	}
	return buf.String(), nil
}

// Render reparses content's front matter and renders its body. Missing
// fields are left empty except the title, which falls back to the file
// name. A date is only shown when it parses.
func (r *Renderer) Render(file string, content []byte) (*Post, error) {
	res := frontmatter.Parse(string(content))
	out, err := r.HTML(res.Body)
	if err != nil {
		return nil, err
	}

	md := res.Metadata
	date := ""
	if t, ok := postindex.ParseDate(md.String("date")); ok {
		date = t.Format(postindex.DateLayout)
	}
	tags := md.Strings(frontmatter.TagsKey)
	if tags == nil {
		tags = []string{}
	}

	return &Post{
		File:        file,
		Title:       postindex.DefaultTitle(file, md.String("title")),
		Date:        date,
		Category:    md.String("category"),
		Description: md.String("description"),
		Tags:        tags,
		Metadata:    md,
		HTML:        out,
	}, nil
}
