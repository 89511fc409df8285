package downstream

import "bytes"

// boundaryMarker separates blocks: a blank line, i.e. two consecutive
// line breaks. It is the sole block-boundary signal.
const boundaryMarker = "\n\n"

// Segmenter splits an unbounded sequence of text fragments into block
// lifecycle events. Fragments carry no alignment guarantees: a boundary
// marker may arrive split across two fragments, so the Segmenter owns an
// accumulation buffer holding the unconsumed tail of everything written.
//
// The buffer is mutated only here. All external visibility is through the
// sink, which receives copies of the relevant slices.
type Segmenter struct {
	sink   BlockSink
	buf    []byte
	nextID int
	openID int // 0 when no block is open
}

// NewSegmenter creates a Segmenter delivering events to sink.
func NewSegmenter(sink BlockSink) *Segmenter {
	return &Segmenter{sink: sink, nextID: 1}
}

// Write appends fragment to the accumulation buffer and emits events for
// every complete block the buffer now contains. Text after the last
// boundary marker (or the whole buffer, if none is present) remains the
// open block's content and is emitted as a cumulative update without a
// close event.
//
// If the sink fails, the unconsumed input is retained and the same events
// are re-emitted on the next call.
func (s *Segmenter) Write(fragment string) error {
	s.buf = append(s.buf, fragment...)
	for {
		idx := bytes.Index(s.buf, []byte(boundaryMarker))
		if idx < 0 {
			break
		}
		text := string(s.buf[:idx])
		if err := s.openBlock(); err != nil {
			return err
		}
		if err := s.sink.BlockUpdate(s.openID, text); err != nil {
			return err
		}
		if err := s.sink.BlockEnd(s.openID); err != nil {
			return err
		}
		s.openID = 0
		// Consume through the marker only once all three events landed,
		// so a sink failure never loses bytes.
		s.buf = append(s.buf[:0], s.buf[idx+len(boundaryMarker):]...)
	}
	if len(s.buf) > 0 {
		if err := s.openBlock(); err != nil {
			return err
		}
		return s.sink.BlockUpdate(s.openID, string(s.buf))
	}
	return nil
}

// End flushes the remaining buffer as a final block, if any, and emits the
// terminal stream-end event. Input ending exactly on a boundary marker
// produces no trailing block.
func (s *Segmenter) End() error {
	if len(s.buf) > 0 {
		if err := s.openBlock(); err != nil {
			return err
		}
		if err := s.sink.BlockUpdate(s.openID, string(s.buf)); err != nil {
			return err
		}
		if err := s.sink.BlockEnd(s.openID); err != nil {
			return err
		}
		s.buf = s.buf[:0]
		s.openID = 0
	}
	return s.sink.StreamEnd()
}

// Buffered returns the number of unconsumed bytes held by the Segmenter.
func (s *Segmenter) Buffered() int {
	return len(s.buf)
}

func (s *Segmenter) openBlock() error {
	if s.openID != 0 {
		return nil
	}
	s.openID = s.nextID
	s.nextID++
	return s.sink.BlockStart(s.openID)
}
