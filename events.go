package downstream

// BlockSink receives block lifecycle events from a Segmenter.
//
// Exactly one sink is attached per Segmenter; there is no listener registry.
// Events arrive in a fixed order per block: BlockStart, one or more
// BlockUpdate calls, then BlockEnd. StreamEnd arrives exactly once per run,
// after the last block has ended.
//
// A non-nil error from any method aborts the Segmenter call that triggered
// it. The Segmenter does not consume input past the point of failure, so the
// failed events are re-emitted on the next Write or End.
type BlockSink interface {
	// BlockStart announces a newly opened block. Identifiers are strictly
	// increasing and never reused within a Segmenter's lifetime.
	BlockStart(id int) error

	// BlockUpdate carries the block's entire accumulated text, not a delta.
	// Downstream consumers re-render from scratch on every update.
	BlockUpdate(id int, text string) error

	// BlockEnd closes the block. No further updates follow for this id.
	BlockEnd(id int) error

	// StreamEnd marks the end of the input stream.
	StreamEnd() error
}
