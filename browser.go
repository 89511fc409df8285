package downstream

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// browserShell is the page the preview mounts blocks into.
const browserShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>downstream preview</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
.block.pending { opacity: 0.6; border-left: 3px solid #e0a030; padding-left: 0.5rem; }
.block.finalized { border-left: 3px solid transparent; padding-left: 0.5rem; }
</style>
</head>
<body>
<main id="downstream"></main>
</body>
</html>`

// BrowserSurface mounts rendered HTML fragments into a live Chrome page
// via go-rod, one DOM section per block. Pair it with GoldmarkRenderer.
//
// The browser is launched lazily on the first region. Rod downloads a
// managed Chromium on first run; set ROD_BROWSER_BIN to use a local
// binary, and ROD_NO_SANDBOX=1 in containers.
type BrowserSurface struct {
	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

var _ Surface = (*BrowserSurface)(nil)

// NewBrowserSurface creates a BrowserSurface. No browser is started until
// the first region is created.
func NewBrowserSurface() *BrowserSurface {
	return &BrowserSurface{}
}

// ensurePage lazily launches the browser and loads the preview shell.
func (s *BrowserSurface) ensurePage() error {
	if s.page != nil {
		return nil
	}

	l := launcher.New().Headless(false)

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	if err := page.SetDocumentContent(browserShell); err != nil {
		_ = browser.Close()
		return fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	s.browser = browser
	s.page = page
	return nil
}

// CreateRegion appends an empty pending section for the block.
func (s *BrowserSurface) CreateRegion(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensurePage(); err != nil {
		return err
	}
	return s.eval(`(id) => {
		if (document.getElementById(id)) return;
		const el = document.createElement('section');
		el.id = id;
		el.className = 'block pending';
		document.getElementById('downstream').appendChild(el);
	}`, regionID(id))
}

// UpdateRegion replaces the section's HTML. Unknown ids are a no-op.
func (s *BrowserSurface) UpdateRegion(id int, rendered string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil
	}
	return s.eval(`(id, html) => {
		const el = document.getElementById(id);
		if (el) el.innerHTML = html;
	}`, regionID(id), rendered)
}

// FinalizeRegion marks the section settled. Unknown ids are a no-op.
func (s *BrowserSurface) FinalizeRegion(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil
	}
	return s.eval(`(id) => {
		const el = document.getElementById(id);
		if (el) el.className = 'block finalized';
	}`, regionID(id))
}

// ClearAll empties the preview and shuts the browser down.
func (s *BrowserSurface) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	s.page = nil
	return err
}

func (s *BrowserSurface) eval(js string, args ...interface{}) error {
	if _, err := s.page.Eval(js, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrPageEval, err)
	}
	return nil
}

func regionID(id int) string {
	return fmt.Sprintf("block-%d", id)
}
