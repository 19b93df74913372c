package lanrudp

import (
	"net"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
	"github.com/gamevidea/lanrudp/internal/sequencer"
)

// listenLoop blocks on UDP receive and dispatches every frame by type
// (spec.md §4.8). Grounded on the teacher's Listener.udpHandler
// (raknet/listener.go), which reads into a pooled buffer and hands
// unconnected messages off to a second goroutine; generalized here into a
// single classify-then-dispatch loop since this spec's frame set is small
// enough not to need the teacher's separate unconnected-message channel.
func (s *Server) listenLoop() {
	defer s.wg.Done()

	raw := make([]byte, protocol.DefaultMTU*4)

	for {
		n, addr, err := s.socket.ReadFromUDP(raw)
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				// Fatal or closed socket: tear down the session instead of
				// leaving the sender/heartbeat goroutines and retransmitters
				// running with no one left to read their replies (spec.md §7).
				s.session.socketErrors.Add(1)
				s.log.errorf("socket read: %v", err)
				s.upcalls.enqueue(func(h Upcalls) {
					if h.OnDisconnected != nil {
						h.OnDisconnected()
					}
				})
				go s.Shutdown()
				return
			}
		}

		if s.isLoopback(addr) {
			continue
		}

		frame := make([]byte, n)
		copy(frame, raw[:n])
		s.log.traceFrame("recv", 0, frame)

		kind, body, ok := protocol.DecodeHeader(frame)
		if !ok {
			s.session.malformedFrames.Add(1)
			continue
		}

		pk, err := message.Decode(kind, body)
		if err != nil {
			s.session.malformedFrames.Add(1)
			continue
		}

		peer, hasPeer := s.session.peerByAddr(addr)
		if hasPeer {
			peer.Touch()
		}

		s.dispatch(addr, peer, hasPeer, pk)
	}
}

// isLoopback drops frames whose source address is the server's own bound
// address (spec.md §7, §8 test 10).
func (s *Server) isLoopback(addr *net.UDPAddr) bool {
	return s.addr.IP != nil && !s.addr.IP.IsUnspecified() && addr.IP.Equal(s.addr.IP) && addr.Port == s.addr.Port
}

func (s *Server) dispatch(addr *net.UDPAddr, peer *Peer, hasPeer bool, pk message.Packet) {
	switch p := pk.(type) {
	case *message.ConnectionRequest:
		s.handleConnectionRequest(addr)

	case *message.ChallengeAnswer:
		s.handleChallengeAnswer(addr, p)

	case *message.ConnectionClosed:
		if hasPeer {
			s.handleConnectionClosed(peer)
		}

	case *message.Ack:
		if hasPeer {
			s.handleAck(peer, p)
		}

	case *message.DataPacket:
		if hasPeer {
			s.handleDataPacket(peer, p)
		}

	case *message.ClientInfo:
		// Clients never originate ClientInfo; the server is the only sender.
		// Accepted here only to ACK it, never delivered to the application.
		if hasPeer {
			s.send(peer.Addr, &message.Ack{Sequence: p.Sequence})
		}

	default:
		// ConnectionChallenge, ConnectionAccepted, ConnectionDenied,
		// ClientDisconnected and ServerInformation are server->client only;
		// receiving one here is unexpected and dropped.
	}
}

// handleAck cancels the matching armed retransmit entry (spec.md §4.5).
func (s *Server) handleAck(peer *Peer, ack *message.Ack) {
	if peer.retransmit == nil {
		return
	}
	peer.retransmit.Ack(sequencer.Key{
		Sequence:   ack.Sequence,
		Chunked:    ack.Chunked,
		SliceIndex: ack.SliceIndex,
	})
}

// handleConnectionClosed implements the CONNECTED -> (removed) transition of
// spec.md §4.6: remove the peer, broadcast ClientDisconnected, and upcall
// on_peer_disconnected.
func (s *Server) handleConnectionClosed(peer *Peer) {
	s.evictPeer(peer, "")
}

func (s *Server) evictPeer(peer *Peer, reason string) {
	if _, ok := s.session.removePeer(peer.ID); !ok {
		return
	}
	if peer.retransmit != nil {
		peer.retransmit.Close()
	}

	notice := &message.ClientDisconnected{PeerID: peer.ID, Reason: []byte(reason)}
	for _, p := range s.session.allPeers() {
		s.send(p.Addr, notice)
	}

	s.upcalls.enqueue(func(h Upcalls) {
		if h.OnPeerDisconnected != nil {
			h.OnPeerDisconnected(peer.ID)
		}
		if h.OnPeerListChanged != nil {
			h.OnPeerListChanged()
		}
	})
}

// handleDataPacket routes a decoded DataPacket through reassembly (if
// chunked) and the matching sequencing discipline, then relays the result
// per spec.md §4.7.
func (s *Server) handleDataPacket(peer *Peer, dp *message.DataPacket) {
	ordered := dp.BaseKind == protocol.KindReliableData || dp.BaseKind == protocol.KindUnreliableData
	reliable := dp.BaseKind == protocol.KindReliableData || dp.BaseKind == protocol.KindReliableUnordered

	if reliable {
		s.send(peer.Addr, &message.Ack{Sequence: dp.Sequence, Chunked: dp.Chunked, SliceIndex: dp.SliceIndex})
	}

	payload := dp.Payload
	moduleID := dp.ModuleID
	dest := dp.DestinationID
	senderID := dp.SenderID

	if dp.Chunked {
		if dp.BaseKind == protocol.KindReliableData && !peer.seq.IsNewReliable(dp.Sequence) {
			return
		}

		// Every slice of a chunked message repeats the same sender, module
		// and destination fields (data_packets.go), so only the payload
		// needs reassembling; the envelope is read straight off this slice.
		reassembled, complete := peer.reassembler.Receive(dp.Sequence, dp.SliceIndex, dp.SliceCount, dp.Payload)
		if !complete {
			return
		}
		payload = reassembled
	}

	if !ordered {
		// Reliable-unordered: deliver immediately, every arrival including
		// duplicates (spec.md §4.3, §9 open question b).
		s.relayFromPeer(peer, dest, dp.BaseKind, moduleID, payload)
		return
	}

	if dp.BaseKind == protocol.KindReliableData {
		item := reliableItem{moduleID: moduleID, destinationID: dest, senderID: senderID, payload: payload}
		if dp.Chunked {
			// A completed chunked message is handed to the sequencer as if it
			// were a single ordinary frame with the logical sequence, per
			// spec.md §4.4.
			delivered, _ := peer.seq.ReliableOrdered(dp.Sequence, item)
			s.deliverReliable(peer, delivered)
			return
		}
		delivered, _ := peer.seq.ReliableOrdered(dp.Sequence, item)
		s.deliverReliable(peer, delivered)
		return
	}

	// UnreliableData: deliver only if new, discard older frames silently.
	delivered, ok := peer.seq.UnreliableOrdered(dp.Sequence, payload)
	if !ok {
		return
	}
	s.relayFromPeer(peer, dest, dp.BaseKind, moduleID, delivered)
}

type reliableItem struct {
	moduleID      []byte
	destinationID uint8
	senderID      uint8
	payload       []byte
}

func (s *Server) deliverReliable(peer *Peer, delivered []any) {
	for _, d := range delivered {
		item := d.(reliableItem)
		s.relayFromPeer(peer, item.destinationID, protocol.KindReliableData, item.moduleID, item.payload)
	}
}
