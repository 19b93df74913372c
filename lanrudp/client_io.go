package lanrudp

import (
	"crypto/sha256"
	"time"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
	"github.com/gamevidea/lanrudp/internal/sequencer"
)

// listenLoop is the client-side counterpart of Server.listenLoop: a single
// peer (the server) instead of a peer table, and a handshake state machine
// driven from the client's side of spec.md §4.6 instead of the server's.
func (c *Client) listenLoop() {
	defer c.wg.Done()

	raw := make([]byte, protocol.DefaultMTU*4)

	for {
		n, addr, err := c.socket.ReadFromUDP(raw)
		if err != nil {
			select {
			case <-c.shutdown:
				return
			default:
				// Fatal or closed socket: tear down the session the same way a
				// lost server would (spec.md §7), instead of leaving the
				// sender/heartbeat goroutines and retransmitter running forever.
				c.log.errorf("socket read: %v", err)
				c.handleServerClosed()
				return
			}
		}

		if !addr.IP.Equal(c.serverAddr.IP) || addr.Port != c.serverAddr.Port {
			continue
		}

		frame := make([]byte, n)
		copy(frame, raw[:n])
		c.log.traceFrame("recv", protocol.ServerPeerID, frame)

		kind, body, ok := protocol.DecodeHeader(frame)
		if !ok {
			continue
		}

		pk, err := message.Decode(kind, body)
		if err != nil {
			continue
		}

		c.server.Touch()
		c.dispatch(pk)
	}
}

func (c *Client) dispatch(pk message.Packet) {
	switch p := pk.(type) {
	case *message.ConnectionChallenge:
		c.handleChallenge(p)
	case *message.ConnectionAccepted:
		c.handleAccepted(p)
	case *message.ConnectionDenied:
		c.handleDenied(p)
	case *message.ClientDisconnected:
		c.handleClientDisconnected(p)
	case *message.ConnectionClosed:
		c.handleServerClosed()
	case *message.Ack:
		if c.server.retransmit != nil {
			c.server.retransmit.Ack(sequencer.Key{Sequence: p.Sequence, Chunked: p.Chunked, SliceIndex: p.SliceIndex})
		}
	case *message.ClientInfo:
		c.handleClientInfo(p)
	case *message.DataPacket:
		c.handleDataPacket(p)
	default:
		// ServerInformation arrives on the discovery socket, not here; a
		// ConnectionRequest/ChallengeAnswer received here would be a server
		// frame bounced back and is dropped.
	}
}

func (c *Client) handleChallenge(p *message.ConnectionChallenge) {
	if handshakeState(c.state.Load()) != stateNone {
		return
	}
	c.state.Store(int32(stateChallenged))

	var nonceBytes [8]byte
	for i := 0; i < 8; i++ {
		nonceBytes[i] = byte(p.Nonce >> uint(8*(7-i)))
	}
	hash := sha256.Sum256(nonceBytes[:])

	c.sendStateless(&message.ChallengeAnswer{
		Username: []byte(c.username),
		Color:    toWireColor(c.color),
		Hash:     hash,
	})
}

func (c *Client) handleAccepted(p *message.ConnectionAccepted) {
	if handshakeState(c.state.Load()) != stateChallenged {
		return
	}
	c.selfID.Store(uint32(p.PeerID))
	c.state.Store(int32(stateConnected))

	c.server.retransmit = retransmitterFor(c.cfg, func(frame []byte) {
		c.socket.WriteTo(frame, c.serverAddr)
	}, func() {
		c.handleServerUnreachable()
	})

	select {
	case c.connectCh <- nil:
	default:
	}

	c.upcalls.enqueue(func(h Upcalls) {
		if h.OnConnected != nil {
			h.OnConnected()
		}
	})
}

func (c *Client) handleDenied(p *message.ConnectionDenied) {
	if handshakeState(c.state.Load()) == stateConnected {
		return
	}
	select {
	case c.connectCh <- &connectionDeniedError{reason: string(p.Reason)}:
	default:
	}
}

type connectionDeniedError struct{ reason string }

func (e *connectionDeniedError) Error() string { return "lanrudp: connection denied: " + e.reason }

func (c *Client) handleClientDisconnected(p *message.ClientDisconnected) {
	c.mu.Lock()
	delete(c.knownPeers, p.PeerID)
	c.mu.Unlock()

	c.upcalls.enqueue(func(h Upcalls) {
		if h.OnPeerDisconnected != nil {
			h.OnPeerDisconnected(p.PeerID)
		}
		if h.OnPeerListChanged != nil {
			h.OnPeerListChanged()
		}
	})
}

func (c *Client) handleClientInfo(p *message.ClientInfo) {
	item := clientInfoItem{peerID: p.PeerID, username: string(p.Username), color: fromWireColor(p.Color)}
	c.sendStateless(&message.Ack{Sequence: p.Sequence})

	delivered, _ := c.server.seq.ReliableOrdered(p.Sequence, item)
	for _, d := range delivered {
		ci := d.(clientInfoItem)
		c.mu.Lock()
		c.knownPeers[ci.peerID] = PeerInfo{Username: ci.username, Color: ci.color}
		c.mu.Unlock()

		c.upcalls.enqueue(func(h Upcalls) {
			if h.OnPeerConnected != nil {
				h.OnPeerConnected(ci.peerID)
			}
			if h.OnPeerListChanged != nil {
				h.OnPeerListChanged()
			}
		})
	}
}

type clientInfoItem struct {
	peerID   uint8
	username string
	color    Color
}

func (c *Client) handleServerClosed() {
	c.upcalls.enqueue(func(h Upcalls) {
		if h.OnDisconnected != nil {
			h.OnDisconnected()
		}
	})
	go c.Shutdown()
}

func (c *Client) handleServerUnreachable() {
	c.handleServerClosed()
}

func (c *Client) handleDataPacket(dp *message.DataPacket) {
	ordered := dp.BaseKind == protocol.KindReliableData || dp.BaseKind == protocol.KindUnreliableData
	reliable := dp.BaseKind == protocol.KindReliableData || dp.BaseKind == protocol.KindReliableUnordered

	if reliable {
		c.sendStateless(&message.Ack{Sequence: dp.Sequence, Chunked: dp.Chunked, SliceIndex: dp.SliceIndex})
	}

	payload := dp.Payload

	if dp.Chunked {
		if dp.BaseKind == protocol.KindReliableData && !c.server.seq.IsNewReliable(dp.Sequence) {
			return
		}
		reassembled, complete := c.server.reassembler.Receive(dp.Sequence, dp.SliceIndex, dp.SliceCount, dp.Payload)
		if !complete {
			return
		}
		payload = reassembled
	}

	if !ordered {
		c.deliver(dp.ModuleID, dp.SenderID, payload)
		return
	}

	if dp.BaseKind == protocol.KindReliableData {
		item := reliableItem{moduleID: dp.ModuleID, senderID: dp.SenderID, payload: payload}
		delivered, _ := c.server.seq.ReliableOrdered(dp.Sequence, item)
		for _, d := range delivered {
			ri := d.(reliableItem)
			c.deliver(ri.moduleID, ri.senderID, ri.payload)
		}
		return
	}

	delivered, ok := c.server.seq.UnreliableOrdered(dp.Sequence, payload)
	if !ok {
		return
	}
	c.deliver(dp.ModuleID, dp.SenderID, delivered)
}

func (c *Client) deliver(moduleID []byte, senderID uint8, payload []byte) {
	c.upcalls.enqueue(func(h Upcalls) {
		if h.DataReceived != nil {
			h.DataReceived(moduleID, senderID, payload)
		}
	})
}

// senderLoop mirrors Server.senderLoop for the client's single peer.
func (c *Client) senderLoop() {
	defer c.wg.Done()

	for {
		select {
		case f := <-c.sendCh:
			c.sendFrame(f)
		case <-c.shutdown:
			return
		}
	}
}

func (c *Client) sendFrame(f outboundFrame) {
	if f.packet != nil {
		frame, err := protocol.EncodeFrame(f.packet.Kind(), f.packet.Write)
		if err != nil {
			c.log.errorf("encode %T: %v", f.packet, err)
			return
		}
		c.writeFrame(frame)
		return
	}

	reliable := f.discipline == protocol.KindReliableData || f.discipline == protocol.KindReliableUnordered

	if !reliable {
		if len(f.payload) > unchunkedBodyLimit(c.cfg.MTU, len(f.moduleID)) {
			c.log.warnf("dropping oversized unreliable send (%d bytes)", len(f.payload))
			if f.completion != nil {
				f.completion(false)
			}
			return
		}

		seq := c.server.nextUnreliableSeq()
		c.writeDataPacket(&message.DataPacket{
			BaseKind:      f.discipline,
			Sequence:      seq,
			SenderID:      f.senderID,
			DestinationID: f.destinationID,
			ModuleID:      f.moduleID,
			Payload:       f.payload,
		}, nil)

		if f.completion != nil {
			f.completion(true)
		}
		return
	}

	seq := c.server.nextReliableSeq()

	if len(f.payload) <= unchunkedBodyLimit(c.cfg.MTU, len(f.moduleID)) {
		c.writeDataPacket(&message.DataPacket{
			BaseKind:      f.discipline,
			Sequence:      seq,
			SenderID:      f.senderID,
			DestinationID: f.destinationID,
			ModuleID:      f.moduleID,
			Payload:       f.payload,
		}, func(frame []byte) {
			c.server.retransmit.Arm(sequencer.Key{Sequence: seq}, frame)
		})
		if f.completion != nil {
			f.completion(true)
		}
		return
	}

	slices := splitPayload(f.payload, chunkedBodyLimit(c.cfg.MTU, len(f.moduleID)))
	for i, slice := range slices {
		sliceIndex := uint16(i)
		c.writeDataPacket(&message.DataPacket{
			BaseKind:      f.discipline,
			Chunked:       true,
			Sequence:      seq,
			SliceIndex:    sliceIndex,
			SliceCount:    uint16(len(slices)),
			SenderID:      f.senderID,
			DestinationID: f.destinationID,
			ModuleID:      f.moduleID,
			Payload:       slice,
		}, func(frame []byte) {
			c.server.retransmit.Arm(sequencer.Key{Sequence: seq, Chunked: true, SliceIndex: sliceIndex}, frame)
		})
	}

	if f.completion != nil {
		f.completion(true)
	}
}

func (c *Client) writeDataPacket(dp *message.DataPacket, arm func(frame []byte)) {
	frame, err := protocol.EncodeFrame(dp.Kind(), dp.Write)
	if err != nil {
		c.log.errorf("encode DataPacket: %v", err)
		return
	}
	c.writeFrame(frame)
	if arm != nil {
		arm(frame)
	}
}

func (c *Client) writeFrame(frame []byte) {
	c.log.traceFrame("send", protocol.ServerPeerID, frame)
	if _, err := c.socket.WriteTo(frame, c.serverAddr); err != nil {
		c.log.errorf("socket write: %v", err)
	}
}

// heartbeatLoop watches for server silence past server_connection_timeout
// (spec.md §9 "cancellation/timeouts" applied symmetrically to the client).
func (c *Client) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.ServerHeartbeatDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if handshakeState(c.state.Load()) != stateConnected {
				continue
			}
			if time.Since(c.server.LastHeard()) >= c.cfg.ServerConnectionTimeout {
				c.handleServerUnreachable()
				return
			}
		case <-c.shutdown:
			return
		}
	}
}
