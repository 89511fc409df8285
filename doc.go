// Package downstream incrementally renders markdown as it arrives in
// arbitrary-sized text fragments, producing visually correct output
// without waiting for the full document and without re-rendering finished
// content on every fragment.
//
// # Quick Start
//
// Create a stream, write fragments as they arrive, and end the stream:
//
//	surface := downstream.NewHTMLSurface("Live notes")
//	stream := downstream.NewStream(downstream.WithSurface(surface))
//	defer stream.Destroy()
//
//	stream.Write("# Hello\n\nstreaming ")
//	stream.Write("world")
//	stream.End()
//
//	os.WriteFile("out.html", []byte(surface.Document()), 0644)
//
// Fragments have no alignment guarantees: a word, a fence, or a blank-line
// boundary may be split across writes.
//
// # Pipeline
//
// Three components form the pipeline, composed by the Stream:
//
//  1. Segmenter: accumulates fragments and splits them into blocks at
//     blank-line boundaries, emitting cumulative lifecycle events.
//  2. Renderer: converts a block's text-so-far into a rendered form and
//     reports whether the text is structurally complete. GoldmarkRenderer
//     produces HTML fragments; ANSIRenderer produces styled terminal text.
//  3. Surface: owns the output area, one sub-region per block.
//     MemorySurface and HTMLSurface are in-memory; TermSurface draws to a
//     terminal; BrowserSurface mounts into a live Chrome page.
//
// Every block update is re-rendered from scratch; correctness is never
// traded for inline-level diffing. A block is finalized on close only if
// its text is structurally complete (no unterminated fenced code block).
//
// # Lifecycle
//
// A Stream starts processing, returns to idle after End, and can run again
// with ever-increasing block identifiers. Pause suspends forwarding
// without touching buffered text; by default writes arriving while paused
// are dropped (see Pause), or buffered with WithPauseBuffering. Destroy is
// terminal and silences all further calls.
//
// # Feeding a Stream
//
// Copy pumps an io.Reader into a Stream in chunks, Simulate adds pacing,
// and FetchURL streams a document over HTTP:
//
//	err := downstream.Copy(ctx, stream, resp.Body, 4096)
package downstream
