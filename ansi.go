package downstream

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// DefaultChromaStyle is the syntax highlighting style used when none is
// configured.
const DefaultChromaStyle = "monokai"

// warmLanguages are preloaded into the chroma registry during warm-up so
// that first-block highlight latency does not land inside a render.
var warmLanguages = []string{
	"go", "python", "javascript", "typescript", "rust", "bash",
	"json", "yaml", "html", "css", "sql", "c", "cpp", "java",
}

// ansiPalette holds the lipgloss styles applied to markdown constructs.
type ansiPalette struct {
	heading [6]lipgloss.Style
	code    lipgloss.Style
	emph    lipgloss.Style
	strong  lipgloss.Style
	strike  lipgloss.Style
	link    lipgloss.Style
	linkURL lipgloss.Style
	quote   lipgloss.Style
	rule    lipgloss.Style
	marker  lipgloss.Style
}

func defaultPalette() ansiPalette {
	var p ansiPalette
	for i := range p.heading {
		p.heading[i] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	}
	p.heading[0] = p.heading[0].Underline(true)
	p.code = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	p.emph = lipgloss.NewStyle().Italic(true)
	p.strong = lipgloss.NewStyle().Bold(true)
	p.strike = lipgloss.NewStyle().Strikethrough(true)
	p.link = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Underline(true)
	p.linkURL = lipgloss.NewStyle().Faint(true)
	p.quote = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	p.rule = lipgloss.NewStyle().Faint(true)
	p.marker = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	return p
}

// ANSIRenderer renders a block's markdown to ANSI-styled terminal text:
// goldmark for parsing, lipgloss for styling, chroma for code blocks.
//
// Highlighting data is warmed in the background starting at construction.
// Render fails fast with ErrRendererNotReady until warm-up completes; use
// WaitReady to gate explicitly. This is the documented fail-fast policy:
// calls are never queued behind initialization.
type ANSIRenderer struct {
	md          goldmark.Markdown
	width       int
	chromaStyle string
	palette     ansiPalette
	ready       chan struct{}
}

var _ Renderer = (*ANSIRenderer)(nil)

// ANSIOption customizes an ANSIRenderer.
type ANSIOption func(*ANSIRenderer)

// WithChromaStyle selects the chroma highlighting style by name.
func WithChromaStyle(name string) ANSIOption {
	return func(r *ANSIRenderer) {
		if name != "" {
			r.chromaStyle = name
		}
	}
}

// NewANSIRenderer creates an ANSIRenderer wrapping prose at width and
// starts its warm-up in the background.
func NewANSIRenderer(width int, opts ...ANSIOption) *ANSIRenderer {
	if width <= 0 {
		width = 80
	}
	r := &ANSIRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		width:       width,
		chromaStyle: DefaultChromaStyle,
		palette:     defaultPalette(),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	go r.warmup()
	return r
}

// warmup primes the chroma registries. Lexer construction is lazy and
// regex-heavy, so it is paid here instead of inside the first render.
func (r *ANSIRenderer) warmup() {
	for _, lang := range warmLanguages {
		lexers.Get(lang)
	}
	styles.Get(r.chromaStyle)
	formatters.Get("terminal256")
	close(r.ready)
}

// Ready reports whether warm-up has completed.
func (r *ANSIRenderer) Ready() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until warm-up completes or ctx is done.
func (r *ANSIRenderer) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Render converts text to ANSI-styled terminal output. Returns
// ErrRendererNotReady if called before warm-up has completed.
func (r *ANSIRenderer) Render(ctx context.Context, text string) (RenderResult, error) {
	if !r.Ready() {
		return RenderResult{}, ErrRendererNotReady
	}
	if err := ctx.Err(); err != nil {
		return RenderResult{}, err
	}
	source := []byte(text)
	doc := r.md.Parser().Parse(gmtext.NewReader(source))
	var sb strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		r.renderBlock(&sb, n, source)
	}
	out := strings.TrimRight(sb.String(), "\n")
	return RenderResult{Output: out, Complete: StructurallyComplete(text)}, nil
}

func (r *ANSIRenderer) renderBlock(w *strings.Builder, n ast.Node, source []byte) {
	switch v := n.(type) {
	case *ast.Heading:
		prefix := strings.Repeat("#", v.Level) + " "
		style := r.palette.heading[v.Level-1]
		w.WriteString(style.Render(prefix + r.renderInline(v, source)))
		w.WriteByte('\n')
	case *ast.Paragraph, *ast.TextBlock:
		wrapped := wordwrap.String(r.renderInline(n, source), r.width)
		w.WriteString(wrapped)
		w.WriteByte('\n')
	case *ast.FencedCodeBlock:
		lang := string(v.Language(source))
		r.renderCode(w, lang, blockLines(v, source))
	case *ast.CodeBlock:
		r.renderCode(w, "", blockLines(v, source))
	case *ast.List:
		r.renderList(w, v, source)
	case *ast.Blockquote:
		var sub strings.Builder
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			if sub.Len() > 0 {
				sub.WriteString("\n")
			}
			r.renderBlock(&sub, c, source)
		}
		prefixLines(w, strings.TrimRight(sub.String(), "\n"), r.palette.quote.Render("│ "), r.palette.quote.Render("│ "))
	case *ast.ThematicBreak:
		rule := r.width
		if rule > 40 {
			rule = 40
		}
		w.WriteString(r.palette.rule.Render(strings.Repeat("─", rule)))
		w.WriteByte('\n')
	case *ast.HTMLBlock:
		w.WriteString(blockLines(v, source))
	default:
		// Tables and other extension blocks fall back to their plain text.
		w.WriteString(wordwrap.String(r.renderInline(n, source), r.width))
		w.WriteByte('\n')
	}
}

func (r *ANSIRenderer) renderList(w *strings.Builder, list *ast.List, source []byte) {
	num := list.Start
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		var sub strings.Builder
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub.Len() > 0 {
				sub.WriteString("\n")
			}
			r.renderBlock(&sub, c, source)
		}
		pad := strings.Repeat(" ", len(marker))
		prefixLines(w, strings.TrimRight(sub.String(), "\n"), r.palette.marker.Render(marker), pad)
	}
}

func (r *ANSIRenderer) renderCode(w *strings.Builder, lang, code string) {
	var hl bytes.Buffer
	if err := quick.Highlight(&hl, code, lang, "terminal256", r.chromaStyle); err != nil {
		hl.Reset()
		hl.WriteString(code)
	}
	prefixLines(w, strings.TrimRight(hl.String(), "\n"), "  ", "  ")
}

func (r *ANSIRenderer) renderInline(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.HardLineBreak() {
				sb.WriteByte('\n')
			} else if v.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.CodeSpan:
			sb.WriteString(r.palette.code.Render(textOf(v, source)))
		case *ast.Emphasis:
			inner := r.renderInline(v, source)
			if v.Level >= 2 {
				sb.WriteString(r.palette.strong.Render(inner))
			} else {
				sb.WriteString(r.palette.emph.Render(inner))
			}
		case *ast.Link:
			label := r.renderInline(v, source)
			sb.WriteString(r.palette.link.Render(label))
			if dest := string(v.Destination); dest != "" && dest != label {
				sb.WriteString(r.palette.linkURL.Render(" (" + dest + ")"))
			}
		case *ast.AutoLink:
			sb.WriteString(r.palette.link.Render(string(v.URL(source))))
		case *ast.Image:
			sb.WriteString(r.palette.linkURL.Render("[image: " + r.renderInline(v, source) + "]"))
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				sb.Write(seg.Value(source))
			}
		case *east.Strikethrough:
			sb.WriteString(r.palette.strike.Render(r.renderInline(v, source)))
		case *east.TaskCheckBox:
			if v.IsChecked {
				sb.WriteString("[x] ")
			} else {
				sb.WriteString("[ ] ")
			}
		default:
			sb.WriteString(r.renderInline(c, source))
		}
	}
	return sb.String()
}

// blockLines concatenates the raw source lines of a block node.
func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// textOf concatenates the text segments directly under n.
func textOf(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		}
	}
	return sb.String()
}

// prefixLines writes s line by line, using first for the first line and
// rest for continuation lines.
func prefixLines(w *strings.Builder, s, first, rest string) {
	for i, line := range strings.Split(s, "\n") {
		if i == 0 {
			w.WriteString(first)
		} else {
			w.WriteString(rest)
		}
		w.WriteString(line)
		w.WriteByte('\n')
	}
}
