package downstream

import (
	"bytes"
	"context"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// GoldmarkRenderer renders a block's markdown to an HTML fragment using
// goldmark (pure Go). It is ready as soon as it is constructed.
type GoldmarkRenderer struct {
	md goldmark.Markdown
}

var _ Renderer = (*GoldmarkRenderer)(nil)

// NewGoldmarkRenderer creates a GoldmarkRenderer with GFM extensions and
// syntax highlighting.
func NewGoldmarkRenderer() *GoldmarkRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,      // Tables, strikethrough, autolinks, task lists
			extension.Footnote, // [^1] footnotes
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true), // CSS classes keep fragments small
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)
	return &GoldmarkRenderer{md: md}
}

// Render converts text to an HTML fragment. Supports context cancellation
// via goroutine + select pattern since goldmark doesn't natively support
// context. Output is a fragment, not a full document; HTMLSurface owns the
// enclosing page.
func (r *GoldmarkRenderer) Render(ctx context.Context, text string) (RenderResult, error) {
	// Fast path: check context before starting
	if err := ctx.Err(); err != nil {
		return RenderResult{}, err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(text), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrRender, err)}
			return
		}
		done <- result{html: buf.String()}
	}()

	select {
	case <-ctx.Done():
		return RenderResult{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return RenderResult{}, res.err
		}
		return RenderResult{Output: res.html, Complete: StructurallyComplete(text)}, nil
	}
}
