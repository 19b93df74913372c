package lanrudp

import (
	"net"
	"sync"
	"time"

	"github.com/gamevidea/lanrudp/internal/sequencer"
)

// Peer is the authoritative server-side record of a connected remote
// endpoint (spec.md §3). The four sequence counters named in the spec are
// split across two owners: the two outbound counters are mutated only by
// the sender goroutine (reliableLocalOut, unreliableLocalOut below), and the
// two inbound counters live inside the embedded Sequencer, mutated only by
// the listener goroutine — matching the single-writer-per-counter policy of
// spec.md §5.
//
// Grounded on the teacher's Connection (raknet/conn.go), which holds one
// sequenceWindow/messageWindow/recoveryWindow/splitWindow set per peer
// address; generalized from RakNet's single reliable-ordered channel into
// this spec's four-discipline Sequencer plus a standalone Reassembler and
// Retransmitter.
type Peer struct {
	ID       uint8
	Addr     *net.UDPAddr
	Username string
	Color    Color

	seq         *sequencer.Sequencer
	reassembler *sequencer.Reassembler
	retransmit  *sequencer.Retransmitter

	mu               sync.Mutex
	lastHeard        time.Time
	reliableLocalOut uint16
	unreliableLocalOut uint16
	rtt              time.Duration
}

func newPeer(id uint8, addr *net.UDPAddr, username string, color Color) *Peer {
	return &Peer{
		ID:          id,
		Addr:        addr,
		Username:    username,
		Color:       color,
		seq:         sequencer.New(),
		reassembler: sequencer.NewReassembler(),
		lastHeard:   time.Now(),
	}
}

// Touch records the wall-clock time of the most recently received frame
// from this peer.
func (p *Peer) Touch() {
	p.mu.Lock()
	p.lastHeard = time.Now()
	p.mu.Unlock()
}

// LastHeard returns the wall-clock time of the most recently received frame.
func (p *Peer) LastHeard() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHeard
}

// RTT returns the round-trip time last stored for this peer via setRTT.
// Nothing in the transport measures or stores a round-trip time, so RTT
// always returns zero.
func (p *Peer) RTT() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rtt
}

func (p *Peer) setRTT(d time.Duration) {
	p.mu.Lock()
	p.rtt = d
	p.mu.Unlock()
}

// nextReliableSeq assigns and returns the next outbound reliable sequence
// number. Only the sender goroutine calls this.
func (p *Peer) nextReliableSeq() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reliableLocalOut++
	return p.reliableLocalOut
}

// nextUnreliableSeq assigns and returns the next outbound unreliable
// sequence number. Only the sender goroutine calls this.
func (p *Peer) nextUnreliableSeq() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unreliableLocalOut++
	return p.unreliableLocalOut
}
