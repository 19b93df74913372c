package lanrudp

import (
	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
)

// relaySend implements the server's session-manager relay switch of
// spec.md §4.7 for a send the server application itself originates
// (senderID is always protocol.ServerPeerID here). destinationID == 0
// means broadcast, per "Outgoing application sends from the server take an
// optional receiver byte; null means broadcast".
func (s *Server) relaySend(senderID, destinationID uint8, kind protocol.Kind, moduleID, payload []byte, completion func(bool)) {
	switch {
	case destinationID == protocol.ServerPeerID:
		s.deliverLocally(moduleID, senderID, payload)
		if completion != nil {
			completion(true)
		}

	case destinationID == protocol.BroadcastPeerID:
		s.deliverLocally(moduleID, senderID, payload)
		peers := s.session.allPeers()
		s.fanOut(peers, senderID, destinationID, kind, moduleID, payload, completion)

	default:
		peer, ok := s.session.peerByID(destinationID)
		if !ok {
			s.log.warnf("send to unknown receiver %d", destinationID)
			if completion != nil {
				completion(false)
			}
			return
		}
		s.sendSequenced(outboundFrame{
			peer:          peer,
			discipline:    kind,
			moduleID:      moduleID,
			payload:       payload,
			senderID:      senderID,
			destinationID: destinationID,
			completion:    completion,
		})
	}
}

// relayFromPeer implements the same switch for a DataPacket received from a
// connected peer (spec.md §4.7): dest==1 delivers locally; dest==0 delivers
// locally and fans out to every other peer; dest>1 forwards to that one
// peer, or replies to the sender with ClientDisconnected(dest) if no such
// peer is connected, so the sender can prune its own peer list.
func (s *Server) relayFromPeer(origin *Peer, destinationID uint8, kind protocol.Kind, moduleID, payload []byte) {
	switch {
	case destinationID == protocol.ServerPeerID:
		s.deliverLocally(moduleID, origin.ID, payload)

	case destinationID == protocol.BroadcastPeerID:
		s.deliverLocally(moduleID, origin.ID, payload)
		peers := s.session.otherPeers(origin.ID)
		s.fanOut(peers, origin.ID, destinationID, kind, moduleID, payload, nil)

	default:
		peer, ok := s.session.peerByID(destinationID)
		if !ok {
			s.send(origin.Addr, &message.ClientDisconnected{PeerID: destinationID})
			return
		}
		s.sendSequenced(outboundFrame{
			peer:          peer,
			discipline:    kind,
			moduleID:      moduleID,
			payload:       payload,
			senderID:      origin.ID,
			destinationID: destinationID,
		})
	}
}

func (s *Server) fanOut(peers []*Peer, senderID, destinationID uint8, kind protocol.Kind, moduleID, payload []byte, completion func(bool)) {
	if len(peers) == 0 {
		if completion != nil {
			completion(true)
		}
		return
	}

	var remaining = len(peers)
	done := func(bool) {
		remaining--
		if remaining == 0 && completion != nil {
			completion(true)
		}
	}

	for _, p := range peers {
		s.sendSequenced(outboundFrame{
			peer:          p,
			discipline:    kind,
			moduleID:      moduleID,
			payload:       payload,
			senderID:      senderID,
			destinationID: destinationID,
			completion:    done,
		})
	}
}

func (s *Server) deliverLocally(moduleID []byte, senderID uint8, payload []byte) {
	s.upcalls.enqueue(func(h Upcalls) {
		if h.DataReceived != nil {
			h.DataReceived(moduleID, senderID, payload)
		}
	})
}
