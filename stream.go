package downstream

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Stream.
type State int

const (
	// StateIdle means no run is in progress; the next Write starts one.
	StateIdle State = iota

	// StateProcessing means the Stream is accepting and forwarding writes.
	StateProcessing

	// StatePaused means forwarding is suspended. Buffered Segmenter state
	// is untouched; see Pause for what happens to writes arriving now.
	StatePaused

	// StateDestroyed is terminal: all resources are released and every
	// further call is a silent no-op.
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stream orchestrates the incremental rendering pipeline: it owns the
// lifecycle state machine and wires Segmenter events to the Renderer and
// Surface collaborators.
//
// All control calls are intended for a single logical producer. The Stream
// serializes its internal state with a mutex, so a Destroy racing a slow
// render from another goroutine is safe, but interleaving Write calls from
// multiple producers must be serialized externally.
type Stream struct {
	mu       sync.Mutex
	state    State
	seg      *Segmenter
	renderer Renderer
	surface  Surface
	logger   *zap.Logger

	mountEmpty   bool
	bufferPaused bool

	// lastText retains each open block's cumulative text, keyed by block
	// id. It is the source of truth for the close-time completeness
	// check; the Surface is never read back.
	lastText map[int]string

	// gen counts renders issued per block. A render result is applied
	// only if its generation is still current, so a stale in-flight
	// render never overwrites a newer one and a render completing after
	// Destroy is a no-op.
	gen map[int]uint64

	mounted map[int]bool

	pending    []string // fragments held while paused, when buffering
	pendingEnd bool
	dropped    int
}

// NewStream creates a Stream in the processing state. Without options it
// renders HTML via GoldmarkRenderer into a MemorySurface.
func NewStream(opts ...Option) *Stream {
	s := &Stream{
		state:    StateProcessing,
		logger:   zap.NewNop(),
		lastText: make(map[int]string),
		gen:      make(map[int]uint64),
		mounted:  make(map[int]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.renderer == nil {
		s.renderer = NewGoldmarkRenderer()
	}
	if s.surface == nil {
		s.surface = NewMemorySurface()
	}
	s.seg = NewSegmenter(&streamSink{s})
	return s
}

// Write forwards a fragment of markdown text to the Segmenter. Fragments
// have no alignment guarantees; a word or boundary marker may be split
// across calls.
//
// While paused, writes are dropped (or buffered, with WithPauseBuffering)
// and Write returns nil. After Destroy, Write is a silent no-op. A render
// failure is returned to the caller and leaves the affected block open;
// writing again retries naturally.
func (s *Stream) Write(fragment string) error {
	s.mu.Lock()
	switch s.state {
	case StateDestroyed:
		s.mu.Unlock()
		return nil
	case StatePaused:
		if s.bufferPaused {
			s.pending = append(s.pending, fragment)
		} else {
			s.dropped++
			s.logger.Warn("write dropped while paused", zap.Int("bytes", len(fragment)))
		}
		s.mu.Unlock()
		return nil
	case StateIdle:
		s.state = StateProcessing
	}
	s.mu.Unlock()
	return s.seg.Write(fragment)
}

// End closes the input stream: the Segmenter flushes any trailing block and
// the Stream returns to idle, ready for a new run. Block identifiers keep
// increasing across runs and are never reused for the life of the Stream.
func (s *Stream) End() error {
	s.mu.Lock()
	switch s.state {
	case StateDestroyed:
		s.mu.Unlock()
		return nil
	case StatePaused:
		if s.bufferPaused {
			s.pendingEnd = true
		} else {
			s.dropped++
			s.logger.Warn("end dropped while paused")
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.seg.End()
}

// Pause suspends forwarding. Segmenter state is untouched, so Resume
// continues exactly where the stream left off.
//
// By default, writes arriving while paused are DROPPED, not queued; this
// mirrors a pause that simply stops listening to the producer, and it is
// surprising if you expect pause/resume to be loss-free. Dropped calls are
// counted (DroppedWrites) and logged. Use WithPauseBuffering to buffer and
// replay instead.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateProcessing {
		return
	}
	s.state = StatePaused
	s.logger.Debug("stream paused")
}

// Resume restarts forwarding after Pause. With WithPauseBuffering, writes
// buffered during the pause are replayed first, in order.
//
// If a replayed write fails, the stream re-pauses with the unreplayed tail
// still buffered, so a later Resume picks up exactly where this one
// stopped and no buffered fragment is lost. The failed fragment's own
// bytes are already retained by the Segmenter.
func (s *Stream) Resume() error {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return nil
	}
	s.state = StateProcessing
	pending := s.pending
	pendingEnd := s.pendingEnd
	s.pending = nil
	s.pendingEnd = false
	s.mu.Unlock()
	s.logger.Debug("stream resumed", zap.Int("replayed", len(pending)))
	for i, fragment := range pending {
		if err := s.seg.Write(fragment); err != nil {
			s.repause(pending[i+1:], pendingEnd)
			return err
		}
	}
	if pendingEnd {
		if err := s.seg.End(); err != nil {
			s.repause(nil, true)
			return err
		}
	}
	return nil
}

// repause returns the stream to paused after a failed replay, putting the
// unreplayed tail and any pending End back for the next Resume.
func (s *Stream) repause(tail []string, end bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDestroyed {
		return
	}
	s.state = StatePaused
	s.pending = append(append([]string(nil), tail...), s.pending...)
	s.pendingEnd = s.pendingEnd || end
	s.logger.Warn("resume replay failed, stream re-paused",
		zap.Int("buffered", len(s.pending)))
}

// Destroy tears the Stream down unconditionally and immediately: the state
// becomes destroyed, surface resources are released, and every later call,
// including a render already in flight, is a no-op. Destroy never raises,
// so teardown ordering is forgiving.
func (s *Stream) Destroy() {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return
	}
	s.state = StateDestroyed
	s.pending = nil
	s.pendingEnd = false
	s.lastText = make(map[int]string)
	s.gen = make(map[int]uint64)
	s.mounted = make(map[int]bool)
	surface := s.surface
	s.mu.Unlock()
	if err := surface.ClearAll(); err != nil {
		s.logger.Warn("surface clear failed", zap.Error(err))
	}
	s.logger.Debug("stream destroyed")
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DroppedWrites returns how many Write/End calls were dropped while
// paused. It makes the lossy default pause policy observable.
func (s *Stream) DroppedWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// streamSink adapts Segmenter events onto the Stream without exposing the
// BlockSink methods on the public API.
type streamSink struct {
	s *Stream
}

var _ BlockSink = (*streamSink)(nil)

func (k *streamSink) BlockStart(id int) error {
	s := k.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDestroyed {
		return nil
	}
	s.lastText[id] = ""
	s.gen[id] = 0
	s.logger.Debug("block start", zap.Int("block", id))
	// With empty-block mounting on, the region exists from the first
	// event; otherwise creation waits for the first non-empty text.
	if s.mountEmpty {
		s.mountLocked(id)
	}
	return nil
}

func (k *streamSink) BlockUpdate(id int, text string) error {
	s := k.s
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return nil
	}
	s.lastText[id] = text
	s.gen[id]++
	myGen := s.gen[id]
	s.mu.Unlock()

	res, err := s.renderer.Render(context.Background(), text)
	if err != nil {
		return fmt.Errorf("rendering block %d: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDestroyed || s.gen[id] != myGen {
		// Superseded by a newer write, or torn down mid-render.
		return nil
	}
	if !s.mounted[id] {
		if text == "" && !s.mountEmpty {
			return nil
		}
		s.mountLocked(id)
	}
	if err := s.surface.UpdateRegion(id, res.Output); err != nil {
		s.logger.Warn("surface update failed", zap.Int("block", id), zap.Error(err))
	}
	// res.Complete is computed but not acted upon until the block closes.
	return nil
}

func (k *streamSink) BlockEnd(id int) error {
	s := k.s
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return nil
	}
	text := s.lastText[id]
	s.gen[id]++ // supersede any in-flight render for this block
	myGen := s.gen[id]
	s.mu.Unlock()

	// Completeness is recomputed from the retained cumulative text, not
	// read back from the surface.
	res, err := s.renderer.Render(context.Background(), text)
	if err != nil {
		return fmt.Errorf("finalizing block %d: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDestroyed || s.gen[id] != myGen {
		return nil
	}
	if !s.mounted[id] {
		if text == "" && !s.mountEmpty {
			// Skipped empty block: never mounted, nothing to finalize.
			delete(s.lastText, id)
			delete(s.gen, id)
			return nil
		}
		s.mountLocked(id)
	}
	if err := s.surface.UpdateRegion(id, res.Output); err != nil {
		s.logger.Warn("surface update failed", zap.Int("block", id), zap.Error(err))
	}
	if res.Complete {
		if err := s.surface.FinalizeRegion(id); err != nil {
			s.logger.Warn("surface finalize failed", zap.Int("block", id), zap.Error(err))
		}
	}
	s.logger.Debug("block end", zap.Int("block", id), zap.Bool("complete", res.Complete))
	delete(s.lastText, id)
	delete(s.gen, id)
	delete(s.mounted, id)
	return nil
}

func (k *streamSink) StreamEnd() error {
	s := k.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDestroyed {
		return nil
	}
	s.state = StateIdle
	s.logger.Debug("stream end")
	return nil
}

// mountLocked creates the block's region. Caller holds s.mu.
func (s *Stream) mountLocked(id int) {
	s.mounted[id] = true
	if err := s.surface.CreateRegion(id); err != nil {
		s.logger.Warn("surface create failed", zap.Int("block", id), zap.Error(err))
	}
}
