// ABOUTME: Alternative render stage backed by goldmark (CommonMark plus GFM extensions).
// ABOUTME: Output still flows through the tagger and sanitizer like the note dialect.

package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// CommonMarkRenderer renders standard Markdown with goldmark.
type CommonMarkRenderer struct {
	md goldmark.Markdown
}

// NewCommonMarkRenderer returns a renderer with GFM enabled and XHTML-style
// void elements, so <hr /> and <br /> are skipped by the tagger.
func NewCommonMarkRenderer() *CommonMarkRenderer {
	return &CommonMarkRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
	}
}

// Render converts md. On a goldmark error the input is returned escaped as
// a single paragraph so the stage never fails.
func (r *CommonMarkRenderer) Render(md string) string {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(md), &buf); err != nil {
		return "<p>" + escapeText(md) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
