package lanrudp

import (
	"sync"
	"time"
)

// Upcalls holds the host application's callbacks (spec.md §6). Every field
// is optional; a nil callback is simply skipped when its notification
// drains from the queue.
type Upcalls struct {
	OnConnecting        func()
	OnConnected         func()
	OnDisconnected      func()
	OnPeerConnected     func(peerID uint8)
	OnPeerDisconnected  func(peerID uint8)
	OnPeerListChanged   func()
	OnServerListChanged func()
	DataReceived        func(moduleID []byte, senderID uint8, payload []byte)
	OnLogMessage        func(severity Severity, timestamp time.Time, text string)
}

// upcallQueue buffers application-visible notifications produced by the
// listener, sender and retransmitter goroutines, so that none of them ever
// call into host code directly (spec.md §4.8, §5, §9 "Upcall boundary").
// A host-driven Tick() call drains it on whatever thread the host chooses.
//
// Grounded on the teacher's channel-based handoff between Connection's
// network goroutine and its send/retr channels (raknet/conn.go); generalized
// from "hand work to a goroutine" into "hand a callback to the main thread",
// which is the direction spec.md requires the upcall boundary to run in.
type upcallQueue struct {
	mu      sync.Mutex
	pending []func(Upcalls)
}

func newUpcallQueue() *upcallQueue {
	return &upcallQueue{}
}

func (q *upcallQueue) enqueue(fn func(Upcalls)) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// drain detaches and returns every pending callback, leaving the queue
// empty. Detaching before invoking lets a callback enqueue further upcalls
// (e.g. on_peer_connected triggering an application send) without deadlocking
// on the same lock.
func (q *upcallQueue) drain() []func(Upcalls) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}

	out := q.pending
	q.pending = nil
	return out
}

// Tick drains and invokes every upcall queued since the last Tick, on the
// calling goroutine. The host application is expected to call this
// periodically (e.g. once per frame) from whichever thread it wants
// transport notifications delivered on.
func (q *upcallQueue) Tick(h Upcalls) {
	for _, fn := range q.drain() {
		fn(h)
	}
}
