// Package sequencer implements the per-peer receive-ordering disciplines
// (spec.md §4.3), the chunk reassembler (§4.4) and the retransmit scheduler
// (§4.5). It operates on opaque payload slices — the caller (the session's
// per-peer receive handler) is responsible for decoding module IDs and
// handing the result to the application.
//
// Grounded on the teacher's internal/protocol/window.go SequenceWindow and
// MessageWindow, which track wrap-safe receive state per connection; this
// package generalizes that single reliable-ordered window into the full
// four-discipline matrix the spec requires.
package sequencer

import (
	"sync"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// Sequencer tracks one peer's two ordered receive counters (reliable and
// unreliable) and the reliable-ordered out-of-order buffer. A Peer owns one
// Sequencer for its inbound direction.
type Sequencer struct {
	mu sync.Mutex

	reliableIn   uint16
	unreliableIn uint16
	pending      map[uint16]any
}

// New returns a Sequencer with both counters at their zero value, matching
// spec.md §8 test 2's "receiver whose last-delivered is 0".
func New() *Sequencer {
	return &Sequencer{pending: make(map[uint16]any)}
}

// ReliableIn returns the current reliable-remote-in counter.
func (s *Sequencer) ReliableIn() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reliableIn
}

// UnreliableIn returns the current unreliable-remote-in counter.
func (s *Sequencer) UnreliableIn() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreliableIn
}

// ReliableOrdered runs the reliable-ordered pipeline of spec.md §4.3: a
// frame that is not new is a duplicate and is dropped; a new frame that
// isn't next is buffered out of order; a next frame is delivered and then
// the buffer is probed for every subsequent contiguous sequence, each
// delivered in turn. The caller always ACKs the received sequence
// regardless of the outcome reported here.
func (s *Sequencer) ReliableOrdered(seq uint16, payload any) (delivered []any, duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !protocol.IsNew(seq, s.reliableIn) {
		return nil, true
	}

	if !protocol.IsNext(seq, s.reliableIn) {
		s.pending[seq] = payload
		return nil, false
	}

	s.reliableIn = seq
	delivered = append(delivered, payload)

	for {
		next := s.reliableIn + 1
		buffered, ok := s.pending[next]
		if !ok {
			break
		}
		delete(s.pending, next)
		s.reliableIn = next
		delivered = append(delivered, buffered)
	}

	return delivered, false
}

// UnreliableOrdered runs the unreliable-ordered pipeline of spec.md §4.3:
// deliver and advance unreliable-remote-in only if seq is new; otherwise
// discard silently.
func (s *Sequencer) UnreliableOrdered(seq uint16, payload []byte) (delivered []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !protocol.IsNew(seq, s.unreliableIn) {
		return nil, false
	}

	s.unreliableIn = seq
	return payload, true
}

// IsNewReliable reports whether seq is ahead of the current reliable-in
// counter, without mutating any state. The data-packet handlers call it
// before handing a slice to the Reassembler, to drop an entirely-replayed
// chunked reliable-ordered message before recording its slices (spec.md §4.4).
func (s *Sequencer) IsNewReliable(seq uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.IsNew(seq, s.reliableIn)
}
