package downstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeRenderer is a deterministic Renderer for orchestrator tests. It
// prefixes output with "R:" so surface content provably went through the
// render step, and derives completeness from the fence heuristic.
type fakeRenderer struct {
	mu        sync.Mutex
	calls     []string
	failCalls int // first n calls fail with ErrRendererNotReady

	// gate, when set, blocks Render until released; entered is closed
	// when Render is reached. Used to hold a render in flight.
	gate    chan struct{}
	entered chan struct{}
}

func (r *fakeRenderer) Render(ctx context.Context, text string) (RenderResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, text)
	fail := len(r.calls) <= r.failCalls
	gate := r.gate
	entered := r.entered
	r.gate = nil
	r.entered = nil
	r.mu.Unlock()

	if fail {
		return RenderResult{}, ErrRendererNotReady
	}
	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	return RenderResult{Output: "R:" + text, Complete: StructurallyComplete(text)}, nil
}

func (r *fakeRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestStream(opts ...Option) (*Stream, *fakeRenderer, *MemorySurface) {
	fr := &fakeRenderer{}
	ms := NewMemorySurface()
	opts = append([]Option{WithRenderer(fr), WithSurface(ms)}, opts...)
	return NewStream(opts...), fr, ms
}

func TestStream_TwoParagraphs(t *testing.T) {
	t.Parallel()

	s, _, ms := newTestStream()
	if err := s.Write("para one\n\npara two"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	regions := ms.Regions()
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	wants := []string{"R:para one", "R:para two"}
	for i, r := range regions {
		if r.Content != wants[i] {
			t.Errorf("region %d content = %q, want %q", r.ID, r.Content, wants[i])
		}
		if !r.Finalized {
			t.Errorf("region %d not finalized", r.ID)
		}
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("state after End = %v, want idle", got)
	}
}

func TestStream_UnterminatedFence(t *testing.T) {
	t.Parallel()

	s, _, ms := newTestStream()
	if err := s.Write("```js\ncode"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	regions := ms.Regions()
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Content != "R:```js\ncode" {
		t.Errorf("content = %q", regions[0].Content)
	}
	if regions[0].Finalized {
		t.Error("structurally incomplete block must not be finalized")
	}
}

func TestStream_FragmentationEquivalence(t *testing.T) {
	t.Parallel()

	chunked, _, msChunked := newTestStream()
	for _, f := range []string{"ab", "cd\n", "\nef"} {
		if err := chunked.Write(f); err != nil {
			t.Fatalf("Write(%q): %v", f, err)
		}
	}
	if err := chunked.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	whole, _, msWhole := newTestStream()
	if err := whole.Write("abcd\n\nef"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := whole.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	a, b := msChunked.Regions(), msWhole.Regions()
	if len(a) != len(b) {
		t.Fatalf("chunked %d regions, whole %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("region %d differs: chunked %+v, whole %+v", i, a[i], b[i])
		}
	}
}

func TestStream_PauseDropsWrites(t *testing.T) {
	t.Parallel()

	s, _, ms := newTestStream()
	if err := s.Write("alpha"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Pause()
	if got := s.State(); got != StatePaused {
		t.Fatalf("state = %v, want paused", got)
	}
	if err := s.Write("x"); err != nil {
		t.Fatalf("Write while paused: %v", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := s.Write(" beta"); err != nil {
		t.Fatalf("Write after resume: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	regions := ms.Regions()
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Content != "R:alpha beta" {
		t.Errorf("content = %q: the paused write must not appear", regions[0].Content)
	}
	if got := s.DroppedWrites(); got != 1 {
		t.Errorf("DroppedWrites = %d, want 1", got)
	}
}

func TestStream_PauseBufferingReplays(t *testing.T) {
	t.Parallel()

	s, _, ms := newTestStream(WithPauseBuffering())
	if err := s.Write("alpha"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Pause()
	if err := s.Write(" mid"); err != nil {
		t.Fatalf("Write while paused: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End while paused: %v", err)
	}
	if r, ok := ms.Region(1); !ok || r.Content != "R:alpha" || r.Finalized {
		t.Fatalf("region changed while paused: %+v", r)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	regions := ms.Regions()
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Content != "R:alpha mid" {
		t.Errorf("content = %q, want buffered write replayed in order", regions[0].Content)
	}
	if !regions[0].Finalized {
		t.Error("region not finalized after replayed End")
	}
	if got := s.DroppedWrites(); got != 0 {
		t.Errorf("DroppedWrites = %d, want 0 with buffering", got)
	}
}

// A render failure during replay must not discard the rest of the buffer:
// the stream re-pauses and a later Resume delivers every buffered fragment.
func TestStream_ResumeReplayFailureKeepsBuffered(t *testing.T) {
	t.Parallel()

	s, fr, ms := newTestStream(WithPauseBuffering())
	if err := s.Write("alpha"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Pause()
	if err := s.Write(" one"); err != nil {
		t.Fatalf("Write while paused: %v", err)
	}
	if err := s.Write(" two"); err != nil {
		t.Fatalf("Write while paused: %v", err)
	}

	// The next render (the replay of " one") fails once.
	fr.mu.Lock()
	fr.failCalls = 2
	fr.mu.Unlock()

	if err := s.Resume(); !errors.Is(err, ErrRendererNotReady) {
		t.Fatalf("Resume error = %v, want ErrRendererNotReady", err)
	}
	if got := s.State(); got != StatePaused {
		t.Fatalf("state after failed replay = %v, want paused", got)
	}

	// Later traffic joins the retained buffer.
	if err := s.Write(" tail"); err != nil {
		t.Fatalf("Write while re-paused: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End while re-paused: %v", err)
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("second Resume: %v", err)
	}

	regions := ms.Regions()
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Content != "R:alpha one two tail" {
		t.Errorf("content = %q, want every buffered fragment delivered", regions[0].Content)
	}
	if !regions[0].Finalized {
		t.Error("region not finalized after replayed End")
	}
	if got := s.DroppedWrites(); got != 0 {
		t.Errorf("DroppedWrites = %d, want 0 with buffering", got)
	}
}

func TestStream_DestroyFinality(t *testing.T) {
	t.Parallel()

	s, fr, ms := newTestStream()
	if err := s.Write("some text"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Destroy()

	if got := s.State(); got != StateDestroyed {
		t.Fatalf("state = %v, want destroyed", got)
	}
	if got := ms.Len(); got != 0 {
		t.Fatalf("surface holds %d regions after Destroy, want 0", got)
	}

	before := fr.callCount()
	if err := s.Write("more"); err != nil {
		t.Errorf("Write after Destroy must not raise, got %v", err)
	}
	if err := s.End(); err != nil {
		t.Errorf("End after Destroy must not raise, got %v", err)
	}
	s.Pause()
	if err := s.Resume(); err != nil {
		t.Errorf("Resume after Destroy must not raise, got %v", err)
	}
	s.Destroy()

	if got := fr.callCount(); got != before {
		t.Errorf("renderer invoked %d times after Destroy", got-before)
	}
	if got := ms.Len(); got != 0 {
		t.Errorf("surface gained %d regions after Destroy", got)
	}
	if got := s.State(); got != StateDestroyed {
		t.Errorf("state = %v, want destroyed to be terminal", got)
	}
}

// TestStream_DestroyDiscardsInFlightRender holds a render in flight,
// destroys the stream, then releases the render: its result must not
// reach the surface.
func TestStream_DestroyDiscardsInFlightRender(t *testing.T) {
	t.Parallel()

	fr := &fakeRenderer{
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	gate, entered := fr.gate, fr.entered
	ms := NewMemorySurface()
	s := NewStream(WithRenderer(fr), WithSurface(ms))

	done := make(chan error, 1)
	go func() { done <- s.Write("slow block") }()

	<-entered
	s.Destroy()
	close(gate)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Write did not return")
	}
	if got := ms.Len(); got != 0 {
		t.Errorf("stale render mounted %d regions after Destroy", got)
	}
}

func TestStream_RendererNotReadyPropagates(t *testing.T) {
	t.Parallel()

	s, fr, ms := newTestStream()
	fr.failCalls = 1

	err := s.Write("hello")
	if !errors.Is(err, ErrRendererNotReady) {
		t.Fatalf("Write error = %v, want ErrRendererNotReady", err)
	}
	if got := ms.Len(); got != 0 {
		t.Fatalf("failed render mounted %d regions", got)
	}

	// Writing again retries the pending update.
	if err := s.Write(""); err != nil {
		t.Fatalf("retry Write: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	regions := ms.Regions()
	if len(regions) != 1 || regions[0].Content != "R:hello" {
		t.Fatalf("regions after retry = %+v, want one R:hello", regions)
	}
}

func TestStream_EmptyBlockMounting(t *testing.T) {
	t.Parallel()

	t.Run("skipped by default", func(t *testing.T) {
		t.Parallel()
		s, _, ms := newTestStream()
		if err := s.Write("a\n\n\n\nb"); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := s.End(); err != nil {
			t.Fatalf("End: %v", err)
		}
		regions := ms.Regions()
		if len(regions) != 2 {
			t.Fatalf("got %d regions, want 2 (empty block skipped)", len(regions))
		}
		// The empty block still consumed identifier 2.
		if regions[0].ID != 1 || regions[1].ID != 3 {
			t.Errorf("region ids = %d,%d, want 1,3", regions[0].ID, regions[1].ID)
		}
	})

	t.Run("mounted when configured", func(t *testing.T) {
		t.Parallel()
		s, _, ms := newTestStream(WithMountEmptyBlocks())
		if err := s.Write("a\n\n\n\nb"); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := s.End(); err != nil {
			t.Fatalf("End: %v", err)
		}
		regions := ms.Regions()
		if len(regions) != 3 {
			t.Fatalf("got %d regions, want 3", len(regions))
		}
		if regions[1].Content != "R:" || !regions[1].Finalized {
			t.Errorf("empty region = %+v, want rendered and finalized", regions[1])
		}
	})
}

func TestStream_IdleRestartKeepsIdentifiers(t *testing.T) {
	t.Parallel()

	s, _, ms := newTestStream()
	if err := s.Write("first run"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}

	if err := s.Write("second run"); err != nil {
		t.Fatalf("Write on idle stream: %v", err)
	}
	if got := s.State(); got != StateProcessing {
		t.Fatalf("state = %v, want processing", got)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	regions := ms.Regions()
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[1].ID <= regions[0].ID {
		t.Errorf("ids %d,%d: identifiers must keep increasing across runs", regions[0].ID, regions[1].ID)
	}
}

func TestStream_DefaultCollaborators(t *testing.T) {
	t.Parallel()

	s := NewStream()
	defer s.Destroy()
	if err := s.Write("# Hello"); err != nil {
		t.Fatalf("Write with default collaborators: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateProcessing, "processing"},
		{StatePaused, "paused"},
		{StateDestroyed, "destroyed"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
