package lanrudp

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"net"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
)

// handleConnectionRequest implements the NONE -> CHALLENGED transition of
// spec.md §4.6: issue a fresh 64-bit nonce, remember its SHA-256 as the
// pending-connection record for addr, and send ConnectionChallenge. A
// repeated ConnectionRequest from the same address simply reissues a new
// challenge, overwriting any prior pending record. A ConnectionRequest from
// an address that already completed the handshake resends its
// ConnectionAccepted instead, for idempotent recovery after a dropped reply.
func (s *Server) handleConnectionRequest(addr *net.UDPAddr) {
	if peer, ok := s.session.peerByAddr(addr); ok {
		s.send(addr, &message.ConnectionAccepted{PeerID: peer.ID})
		return
	}

	if s.session.AtCapacity() {
		s.send(addr, &message.ConnectionDenied{Reason: []byte("server is full")})
		return
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], rand.Uint64())
	nonce := binary.BigEndian.Uint64(nonceBytes[:])
	hash := sha256.Sum256(nonceBytes[:])

	s.session.challenge(addr, hash)
	s.send(addr, &message.ConnectionChallenge{Nonce: nonce})
}

// handleChallengeAnswer implements the CHALLENGED -> CONNECTED transition:
// verify the liveness hash, allocate a peer ID, wire up its retransmitter,
// finalize it in the session table, and introduce it to every existing peer
// (spec.md §4.6 "mutual ClientInfo").
func (s *Server) handleChallengeAnswer(addr *net.UDPAddr, answer *message.ChallengeAnswer) {
	pending, ok := s.session.pendingFor(addr)
	if !ok {
		return
	}

	if answer.Hash != pending.hash {
		s.session.clearPending(addr)
		s.send(addr, &message.ConnectionDenied{Reason: []byte("challenge mismatch")})
		return
	}

	username := string(answer.Username)
	if err := validateASCIIName(username); err != nil {
		s.session.clearPending(addr)
		s.send(addr, &message.ConnectionDenied{Reason: []byte("invalid username")})
		return
	}

	color := fromWireColor(answer.Color)

	peer, err := s.session.addPeer(addr, username, color)
	if err != nil {
		s.send(addr, &message.ConnectionDenied{Reason: []byte("server is full")})
		return
	}

	peer.retransmit = retransmitterFor(s.cfg, func(frame []byte) {
		s.socket.WriteTo(frame, peer.Addr)
	}, func() {
		s.evictPeer(peer, "unreachable")
	})

	s.send(addr, &message.ConnectionAccepted{PeerID: peer.ID})
	s.introducePeer(peer)

	s.upcalls.enqueue(func(h Upcalls) {
		if h.OnPeerConnected != nil {
			h.OnPeerConnected(peer.ID)
		}
		if h.OnPeerListChanged != nil {
			h.OnPeerListChanged()
		}
	})
}

// introducePeer exchanges ClientInfo between a newly connected peer and
// every peer already in the table, plus the server's own identity, each
// riding the reliable-ordered channel so it arrives exactly once and in
// order relative to every other reliable send to that peer (spec.md §4.6).
func (s *Server) introducePeer(peer *Peer) {
	existing := s.session.otherPeers(peer.ID)

	s.sendClientInfo(peer, serverIdentityInfo(s.serverName, s.cfg.Color))

	for _, other := range existing {
		s.sendClientInfo(peer, peerIdentityInfo(other))
		s.sendClientInfo(other, peerIdentityInfo(peer))
	}
}

func serverIdentityInfo(name string, color Color) *message.ClientInfo {
	return &message.ClientInfo{PeerID: protocol.ServerPeerID, Username: []byte(name), Color: toWireColor(color)}
}

func peerIdentityInfo(p *Peer) *message.ClientInfo {
	return &message.ClientInfo{PeerID: p.ID, Username: []byte(p.Username), Color: toWireColor(p.Color)}
}

func (s *Server) sendClientInfo(recipient *Peer, info *message.ClientInfo) {
	s.sendSequenced(outboundFrame{peer: recipient, clientInfo: info})
}

func toWireColor(c Color) message.Color {
	return message.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

func fromWireColor(c message.Color) Color {
	return Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
