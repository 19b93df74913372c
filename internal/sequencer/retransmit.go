package sequencer

import (
	"sync"
	"time"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// Key identifies one armed retransmit entry: either a whole reliable frame
// or, for a chunked message, one specific slice of it.
type Key struct {
	Sequence   uint16
	Chunked    bool
	SliceIndex uint16
}

type entry struct {
	frame   []byte
	retries int
	timer   *time.Timer
}

// Retransmitter arms one delayed task per reliable frame sent, re-sending it
// every 1.25×rtt until it is ACKed or the retry budget is exhausted, at
// which point onExhausted fires (spec.md §4.5). Grounded on the teacher's
// Connection.handler select-loop (raknet/conn.go), which re-walks a queue of
// unacknowledged datagrams on a fixed tick; generalized here to one
// independent timer per sequence (or per slice) so that retry counts and
// ACK cancellation are tracked individually as the spec requires, rather
// than swept in lockstep on a shared tick.
type Retransmitter struct {
	mu          sync.Mutex
	entries     map[Key]*entry
	rtt         time.Duration
	maxRetries  int
	send        func(frame []byte)
	onExhausted func()
	closed      bool
}

// NewRetransmitter constructs a Retransmitter. send re-transmits a frame to
// the peer's socket; onExhausted is invoked each time an armed entry comes
// due again after maxRetries resends, and is expected to evict the peer.
func NewRetransmitter(rtt time.Duration, maxRetries int, send func(frame []byte), onExhausted func()) *Retransmitter {
	return &Retransmitter{
		entries:     make(map[Key]*entry),
		rtt:         rtt,
		maxRetries:  maxRetries,
		send:        send,
		onExhausted: onExhausted,
	}
}

// Arm records frame under key and schedules its first retransmit attempt.
func (r *Retransmitter) Arm(key Key, frame []byte) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	e := &entry{frame: frame}
	r.entries[key] = e
	r.mu.Unlock()

	r.schedule(key, e)
}

func (r *Retransmitter) schedule(key Key, e *entry) {
	e.timer = time.AfterFunc(protocol.RetransmitDelay(r.rtt), func() {
		r.fire(key, e)
	})
}

func (r *Retransmitter) fire(key Key, e *entry) {
	r.mu.Lock()
	cur, ok := r.entries[key]
	if !ok || cur != e || r.closed {
		// ACKed, superseded, or the peer is gone: quietly exit.
		r.mu.Unlock()
		return
	}

	if e.retries >= r.maxRetries {
		delete(r.entries, key)
		r.mu.Unlock()
		r.onExhausted()
		return
	}

	e.retries++
	r.mu.Unlock()

	r.send(e.frame)
	r.schedule(key, e)
}

// Ack cancels the armed entry for key, if any. The send buffer entry this
// corresponds to is non-empty iff it has not yet been ACKed (spec.md §3
// invariant); acking removes it so the next timer fire observes its absence
// and exits.
func (r *Retransmitter) Ack(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(r.entries, key)
}

// Close stops every armed timer. Used on peer removal so no further
// retransmits are attempted for a departed peer.
func (r *Retransmitter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for key, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, key)
	}
}
