package downstream

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// TermSurface mounts regions onto a terminal by appending them to w.
//
// Blocks open strictly one at a time, so only the most recent region ever
// changes: updates redraw it in place with cursor movement while finalized
// regions scroll away as ordinary terminal history. The open region is
// suffixed with a faint caret so an in-flight block is distinguishable
// from a settled one.
type TermSurface struct {
	mu        sync.Mutex
	w         io.Writer
	width     int
	openID    int // 0 when no region is being drawn
	openLines int // lines currently drawn for the open region
	last      string
	drawn     bool
	caret     string
}

var _ Surface = (*TermSurface)(nil)

// NewTermSurface creates a TermSurface writing to w, wrapping at width
// columns.
func NewTermSurface(w io.Writer, width int) *TermSurface {
	if width <= 0 {
		width = 80
	}
	return &TermSurface{
		w:     w,
		width: width,
		caret: lipgloss.NewStyle().Faint(true).Render("▌"),
	}
}

// CreateRegion starts drawing a new region. Any previous region is left in
// place as scrollback.
func (s *TermSurface) CreateRegion(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawn {
		if _, err := io.WriteString(s.w, "\n"); err != nil {
			return err
		}
	}
	s.openID = id
	s.openLines = 0
	s.last = ""
	return nil
}

// UpdateRegion redraws the open region in place. Updates for any other id
// are a no-op: those regions have scrolled away.
func (s *TermSurface) UpdateRegion(id int, rendered string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.openID {
		return nil
	}
	s.last = rendered
	return s.redraw(rendered + s.caret)
}

// FinalizeRegion redraws the open region without the in-flight caret and
// releases it to scrollback.
func (s *TermSurface) FinalizeRegion(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.openID {
		return nil
	}
	err := s.redraw(s.last)
	s.openID = 0
	s.last = ""
	return err
}

// ClearAll stops tracking the open region. Already-written output remains
// terminal history; a stream teardown does not rewrite the scrollback.
func (s *TermSurface) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = 0
	s.openLines = 0
	return nil
}

// redraw erases the open region's previously drawn lines and writes content
// in their place.
func (s *TermSurface) redraw(content string) error {
	if s.openLines > 0 {
		if _, err := fmt.Fprintf(s.w, "\x1b[%dA\r\x1b[0J", s.openLines); err != nil {
			return err
		}
	}
	wrapped := wordwrap.String(strings.TrimRight(content, "\n"), s.width)
	if _, err := io.WriteString(s.w, wrapped+"\n"); err != nil {
		return err
	}
	s.openLines = strings.Count(wrapped, "\n") + 1
	s.drawn = true
	return nil
}
