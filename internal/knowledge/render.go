package knowledge

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer converts a Markdown body into HTML using goldmark, the same
// engine the teacher CMS uses for page/content bodies.
type Renderer struct {
	engine goldmark.Markdown
}

// NewRenderer builds a Renderer configured with the GFM extension set.
// Observations/relations are parsed separately (bullets.go) before
// rendering; the rendered HTML instead feeds the search index's
// content_snippet (spec.md §4.1, §4.7) by way of PlainText below.
func NewRenderer() *Renderer {
	engine := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	return &Renderer{engine: engine}
}

// Render converts Markdown bytes to HTML.
func (r *Renderer) Render(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.engine.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("goldmark render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	htmlSpacePattern = regexp.MustCompile(`\s+`)
)

// PlainText strips the tags goldmark emitted back out of rendered HTML,
// the same fallback stripHTMLTags applies in ternarybob-quaero's transform
// service when it needs body text instead of markup. The search index's
// content_snippet (spec.md §4.7) is built from this rather than from the
// raw Markdown body, so headings/emphasis/list markers don't leak into the
// preview text.
func PlainText(html []byte) string {
	stripped := htmlTagPattern.ReplaceAllString(string(html), " ")
	cleaned := htmlSpacePattern.ReplaceAllString(stripped, " ")
	cleaned = strings.ReplaceAll(cleaned, "&amp;", "&")
	cleaned = strings.ReplaceAll(cleaned, "&lt;", "<")
	cleaned = strings.ReplaceAll(cleaned, "&gt;", ">")
	cleaned = strings.ReplaceAll(cleaned, "&quot;", "\"")
	cleaned = strings.ReplaceAll(cleaned, "&#39;", "'")
	return strings.TrimSpace(cleaned)
}
