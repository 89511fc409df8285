package downstream

import (
	"io"
	"runtime"
	"sync"

	"go.uber.org/multierr"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one renderer is available.
	MinPoolSize = 1

	// MaxPoolSize caps renderer instances; each warmed ANSI renderer
	// holds its own compiled lexer set.
	MaxPoolSize = 8
)

// RendererPool manages a pool of render adapters for parallel processing,
// one per concurrently rendered document. Renderers are created lazily on
// first acquire so warm-up cost is only paid for pool slots actually used.
type RendererPool struct {
	size      int
	factory   func() Renderer
	renderers []Renderer
	sem       chan Renderer
	mu        sync.Mutex
	created   int
	closed    bool
}

// NewRendererPool creates a pool with capacity for n renderers built by
// factory. Renderers are created lazily when acquired.
func NewRendererPool(n int, factory func() Renderer) *RendererPool {
	if n < 1 {
		n = 1
	}
	return &RendererPool{
		size:      n,
		factory:   factory,
		renderers: make([]Renderer, 0, n),
		sem:       make(chan Renderer, n),
	}
}

// Acquire gets a renderer from the pool, creating one if needed. Blocks if
// all renderers are in use.
func (p *RendererPool) Acquire() Renderer {
	// Try to get an existing renderer (non-blocking)
	select {
	case r := <-p.sem:
		return r
	default:
	}

	p.mu.Lock()
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Create the new renderer outside the lock
		r := p.factory()

		p.mu.Lock()
		p.renderers = append(p.renderers, r)
		p.mu.Unlock()

		return r
	}
	p.mu.Unlock()

	// All renderers created, wait for one to be released
	return <-p.sem
}

// Release returns a renderer to the pool.
func (p *RendererPool) Release(r Renderer) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.sem <- r
}

// Close releases any renderer that holds resources (implements io.Closer).
// Returns an aggregated error if multiple renderers fail to close.
func (p *RendererPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	renderers := p.renderers
	p.mu.Unlock()

	var err error
	for _, r := range renderers {
		if c, ok := r.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// Size returns the pool capacity.
func (p *RendererPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size to use.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in container environments
	n := runtime.GOMAXPROCS(0)

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
