package downstream

import (
	"fmt"
	"io"
	"strings"
)

// htmlTemplate wraps the assembled block sections in a complete HTML5
// document. %s placeholders: title, body.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
<main class="downstream">
%s</main>
</body>
</html>`

// HTMLSurface mounts rendered HTML fragments and assembles them into a
// standalone HTML5 document on demand. Pair it with GoldmarkRenderer.
type HTMLSurface struct {
	MemorySurface
	title string
}

var _ Surface = (*HTMLSurface)(nil)

// NewHTMLSurface creates an HTMLSurface with the given document title.
func NewHTMLSurface(title string) *HTMLSurface {
	if title == "" {
		title = "Document"
	}
	return &HTMLSurface{title: title}
}

// Document assembles the current regions into a standalone HTML5 document.
// Finalized regions carry the "finalized" class; still-open or incomplete
// ones carry "pending".
func (s *HTMLSurface) Document() string {
	var body strings.Builder
	for _, r := range s.Regions() {
		class := "block pending"
		if r.Finalized {
			class = "block finalized"
		}
		fmt.Fprintf(&body, "<section id=\"block-%d\" class=\"%s\">\n%s</section>\n", r.ID, class, r.Content)
	}
	return fmt.Sprintf(htmlTemplate, s.title, body.String())
}

// WriteTo writes the assembled document to w.
func (s *HTMLSurface) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.Document())
	return int64(n), err
}
