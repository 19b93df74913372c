package lanrudp

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// pendingChallenge is the server's bookkeeping for an outstanding
// ConnectionChallenge: the address it was issued to and the SHA-256 of the
// nonce it expects back (spec.md §3 "Pending-connection record").
type pendingChallenge struct {
	hash [32]byte
}

// session is the server-side peer table and relay switch (spec.md §4.7),
// grounded on the teacher's Listener.connections map
// (raknet/listener.go), generalized from an address-keyed 1:1 transport
// registry into a peer-ID-keyed registry with broadcast/forward relay
// semantics RakNet has no equivalent of.
type session struct {
	mu          sync.RWMutex
	peers       map[uint8]*Peer
	peersByAddr map[string]*Peer
	pending     map[string]*pendingChallenge

	maxClients int

	malformedFrames atomic.Uint64
	socketErrors    atomic.Uint64
}

func newSession(maxClients int) *session {
	return &session{
		peers:       make(map[uint8]*Peer),
		peersByAddr: make(map[string]*Peer),
		pending:     make(map[string]*pendingChallenge),
		maxClients:  maxClients,
	}
}

// Count returns the number of currently connected peers.
func (s *session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// AtCapacity reports whether adding one more peer would exceed maxClients.
func (s *session) AtCapacity() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers) >= s.maxClients
}

// allocateID returns the lowest peer ID in [protocol.MinPeerID, MaxPeers]
// not currently in use. Caller must hold s.mu for writing.
func (s *session) allocateID() (uint8, bool) {
	for id := int(protocol.MinPeerID); id <= protocol.MaxPeers; id++ {
		if _, ok := s.peers[uint8(id)]; !ok {
			return uint8(id), true
		}
	}
	return 0, false
}

// addPeer allocates an ID for addr and registers the new Peer. Returns
// ErrCapacityExceeded without mutating state if the table is full.
func (s *session) addPeer(addr *net.UDPAddr, username string, color Color) (*Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.peers) >= s.maxClients {
		return nil, ErrCapacityExceeded
	}

	id, ok := s.allocateID()
	if !ok {
		return nil, ErrCapacityExceeded
	}

	p := newPeer(id, addr, username, color)
	s.peers[id] = p
	s.peersByAddr[addr.String()] = p
	delete(s.pending, addr.String())

	return p, nil
}

func (s *session) peerByID(id uint8) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

func (s *session) peerByAddr(addr *net.UDPAddr) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peersByAddr[addr.String()]
	return p, ok
}

// removePeer removes the peer with the given ID, if present, and returns it.
// Removal is atomic with respect to peerByID lookups made for relaying sends:
// once removed, a concurrent relay targeting this ID observes it as absent
// and treats the send as a no-op (spec.md §5).
func (s *session) removePeer(id uint8) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[id]
	if !ok {
		return nil, false
	}

	delete(s.peers, id)
	delete(s.peersByAddr, p.Addr.String())

	return p, true
}

// allPeers returns a snapshot slice of every connected peer.
func (s *session) allPeers() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// otherPeers returns every connected peer except the one with excludeID.
func (s *session) otherPeers(excludeID uint8) []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Peer, 0, len(s.peers))
	for id, p := range s.peers {
		if id == excludeID {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *session) challenge(addr *net.UDPAddr, hash [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[addr.String()] = &pendingChallenge{hash: hash}
}

func (s *session) pendingFor(addr *net.UDPAddr) (*pendingChallenge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.pending[addr.String()]
	return c, ok
}

func (s *session) clearPending(addr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, addr.String())
}

// Stats reports the malformed-frame and socket-error counters spec.md §7
// requires be counted even though they aren't surfaced as errors.
type Stats struct {
	MalformedFrames uint64
	SocketErrors    uint64
}

func (s *session) stats() Stats {
	return Stats{
		MalformedFrames: s.malformedFrames.Load(),
		SocketErrors:    s.socketErrors.Load(),
	}
}
