package downstream

import "errors"

// Sentinel errors for library operations.
var (
	ErrRendererNotReady = errors.New("renderer not ready")
	ErrRender           = errors.New("markdown render failed")

	// Browser surface errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageEval       = errors.New("failed to evaluate script in browser page")

	// Feed helper errors.
	ErrNilReader = errors.New("reader cannot be nil")
	ErrNilStream = errors.New("stream cannot be nil")
)
