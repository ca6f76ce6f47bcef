package filter

// Sequencer numbers outgoing list requests so that only the response to the
// most recent one is applied. Responses can arrive out of order; a response
// whose id is no longer current is dropped.
//
// Sequencer is a value type meant to live inside a bubbletea model, where
// Update runs on a single goroutine.
type Sequencer struct {
	last uint64
}

// Next issues a new request id, making every earlier id stale.
func (s *Sequencer) Next() uint64 {
	s.last++
	return s.last
}

// Current reports whether id is the most recently issued one.
func (s Sequencer) Current(id uint64) bool {
	return id != 0 && id == s.last
}

// Last returns the most recently issued id, 0 if none.
func (s Sequencer) Last() uint64 {
	return s.last
}
