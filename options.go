package downstream

import "go.uber.org/zap"

// Option customizes a Stream at construction time.
type Option func(*Stream)

// WithRenderer sets the render adapter. Defaults to GoldmarkRenderer.
func WithRenderer(r Renderer) Option {
	return func(s *Stream) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithSurface sets the mount surface. Defaults to a MemorySurface.
func WithSurface(sf Surface) Option {
	return func(s *Stream) {
		if sf != nil {
			s.surface = sf
		}
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Stream) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMountEmptyBlocks mounts a region even for blocks whose text is empty
// (consecutive boundary markers). By default empty blocks keep their
// identifier but are never mounted.
func WithMountEmptyBlocks() Option {
	return func(s *Stream) {
		s.mountEmpty = true
	}
}

// WithPauseBuffering buffers writes arriving while paused and replays them
// on Resume, making pause/resume loss-free. The default drops them; see
// Pause.
func WithPauseBuffering() Option {
	return func(s *Stream) {
		s.bufferPaused = true
	}
}
