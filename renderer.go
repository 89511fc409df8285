package downstream

import (
	"context"
	"strings"
)

// RenderResult holds the rendered form of a block's text. It has no
// identity of its own: it is recomputed from scratch on every update,
// never patched.
type RenderResult struct {
	// Output is the rendered representation, in whatever form the paired
	// Surface expects (an HTML fragment, ANSI-styled text, ...).
	Output string

	// Complete reports whether the source text is structurally complete:
	// no markdown construct requiring a closing delimiter is left open.
	Complete bool
}

// Renderer converts a block's cumulative markdown text into a rendered
// representation. Implementations must be pure functions of text, carrying
// no per-block state between calls, so that re-invocation on cumulative
// text is always safe.
//
// A Renderer that needs to establish readiness first (e.g. warming
// highlighting data) returns ErrRendererNotReady until it has.
type Renderer interface {
	Render(ctx context.Context, text string) (RenderResult, error)
}

// fenceMarker opens and closes fenced code blocks.
const fenceMarker = "```"

// StructurallyComplete reports whether text leaves no fenced code block
// open, using the even-fence-count heuristic. A fence count of zero is
// even, so plain prose is always complete.
func StructurallyComplete(text string) bool {
	return strings.Count(text, fenceMarker)%2 == 0
}
