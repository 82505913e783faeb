package mcpserver

// PostFormat describes the Markdown post format understood by the index
// builder.
const PostFormat = `# quill Post Format

Every post is a single Markdown file directly inside the pages directory.
The file name (e.g. ` + "`" + `hello-world.md` + "`" + `) identifies the post.

## Structure

` + "```" + `markdown
---
title: Hello World
date: 2024-03-01
tags: ["go", "blog"]
category: notes
description: One line shown under the title
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. The block starts on the very first line with ` + "`" + `---` + "`" + ` and ends at the next
   line that is exactly ` + "`" + `---` + "`" + `. Without it the whole file is the body.
2. One ` + "`" + `key: value` + "`" + ` per line. Values may be wrapped in one pair of single or
   double quotes. Nested YAML is not supported.
3. ` + "`" + `title` + "`" + ` falls back to the file name without ` + "`" + `.md` + "`" + `.
4. ` + "`" + `date` + "`" + ` is ` + "`" + `YYYY-MM-DD` + "`" + `. RFC 3339 timestamps are accepted and shortened.
   A missing or unreadable date becomes the build date.
5. ` + "`" + `tags` + "`" + ` is a bracketed list on one line, either JSON
   (` + "`" + `["a", "b"]` + "`" + `) or bare (` + "`" + `[a, b]` + "`" + `).
6. The excerpt is generated from the body: headings, code, emphasis, links and
   quote markers are stripped and the text is cut to the configured length.
7. Posts are listed newest first.
`
