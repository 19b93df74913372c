package lanrudp

import (
	"net"

	"github.com/gamevidea/lanrudp/internal/message"
	"github.com/gamevidea/lanrudp/internal/protocol"
	"github.com/gamevidea/lanrudp/internal/sequencer"
)

// senderLoop is the single writer goroutine for this server's socket
// (spec.md §4.8, §5 "single-writer-per-counter"): every outbound frame,
// stateless or sequenced, passes through here so that sequence-number
// assignment and socket writes for one peer never race with each other.
func (s *Server) senderLoop() {
	defer s.wg.Done()

	for {
		select {
		case f := <-s.sendCh:
			s.sendFrame(f)
		case <-s.shutdown:
			return
		}
	}
}

func (s *Server) sendFrame(f outboundFrame) {
	switch {
	case f.clientInfo != nil:
		s.sendClientInfoFrame(f)
	case f.packet != nil:
		s.sendStateless(f.addr, f.packet)
	default:
		s.sendDataFrame(f)
	}
}

func (s *Server) sendStateless(addr *net.UDPAddr, pk message.Packet) {
	frame, err := protocol.EncodeFrame(pk.Kind(), pk.Write)
	if err != nil {
		s.log.errorf("encode %T: %v", pk, err)
		return
	}

	s.writeFrame(addr, frame)
}

func (s *Server) sendClientInfoFrame(f outboundFrame) {
	seq := f.peer.nextReliableSeq()
	info := *f.clientInfo
	info.Sequence = seq

	frame, err := protocol.EncodeFrame(info.Kind(), info.Write)
	if err != nil {
		s.log.errorf("encode ClientInfo: %v", err)
		return
	}

	s.writeFrame(f.peer.Addr, frame)

	if f.peer.retransmit != nil {
		f.peer.retransmit.Arm(sequencer.Key{Sequence: seq}, frame)
	}
}

// sendDataFrame assigns a sequence number (and, for oversized reliable
// sends, splits the payload into MTU-sized slices under one shared
// sequence) and writes every resulting frame to the peer's address
// (spec.md §4.1, §4.4, §6).
func (s *Server) sendDataFrame(f outboundFrame) {
	reliable := f.discipline == protocol.KindReliableData || f.discipline == protocol.KindReliableUnordered

	if !reliable {
		if len(f.payload) > unchunkedBodyLimit(s.cfg.MTU, len(f.moduleID)) {
			s.log.warnf("dropping oversized unreliable send to peer %d (%d bytes)", f.peer.ID, len(f.payload))
			if f.completion != nil {
				f.completion(false)
			}
			return
		}

		seq := f.peer.nextUnreliableSeq()
		s.writeDataPacket(f.peer, &message.DataPacket{
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

	seq := f.peer.nextReliableSeq()

	if len(f.payload) <= unchunkedBodyLimit(s.cfg.MTU, len(f.moduleID)) {
		dp := &message.DataPacket{
			BaseKind:      f.discipline,
			Sequence:      seq,
			SenderID:      f.senderID,
			DestinationID: f.destinationID,
			ModuleID:      f.moduleID,
			Payload:       f.payload,
		}
		s.writeDataPacket(f.peer, dp, func(frame []byte) {
			f.peer.retransmit.Arm(sequencer.Key{Sequence: seq}, frame)
		})
		if f.completion != nil {
			f.completion(true)
		}
		return
	}

	slices := splitPayload(f.payload, chunkedBodyLimit(s.cfg.MTU, len(f.moduleID)))
	for i, slice := range slices {
		dp := &message.DataPacket{
			BaseKind:      f.discipline,
			Chunked:       true,
			Sequence:      seq,
			SliceIndex:    uint16(i),
			SliceCount:    uint16(len(slices)),
			SenderID:      f.senderID,
			DestinationID: f.destinationID,
			ModuleID:      f.moduleID,
			Payload:       slice,
		}
		sliceIndex := uint16(i)
		s.writeDataPacket(f.peer, dp, func(frame []byte) {
			f.peer.retransmit.Arm(sequencer.Key{Sequence: seq, Chunked: true, SliceIndex: sliceIndex}, frame)
		})
	}

	if f.completion != nil {
		f.completion(true)
	}
}

// writeDataPacket encodes dp and writes it to peer.Addr. arm, if non-nil, is
// called with the encoded frame so the caller can schedule a retransmit
// (reliable sends only).
func (s *Server) writeDataPacket(peer *Peer, dp *message.DataPacket, arm func(frame []byte)) {
	frame, err := protocol.EncodeFrame(dp.Kind(), dp.Write)
	if err != nil {
		s.log.errorf("encode DataPacket: %v", err)
		return
	}

	s.writeFrame(peer.Addr, frame)

	if arm != nil {
		arm(frame)
	}
}

func (s *Server) writeFrame(addr *net.UDPAddr, frame []byte) {
	s.log.traceFrame("send", 0, frame)
	if _, err := s.socket.WriteTo(frame, addr); err != nil {
		s.session.socketErrors.Add(1)
		s.log.errorf("socket write: %v", err)
	}
}

// unchunkedBodyLimit returns the largest payload that fits a single
// DataPacket frame at the configured MTU, given moduleIDLen bytes of module
// ID (data_packets.go's wire layout: 5-byte header + 2-byte sequence +
// 1-byte sender + 1-byte destination + 1-byte moduleID length-prefix +
// moduleID + 2-byte payload length-prefix).
func unchunkedBodyLimit(mtu, moduleIDLen int) int {
	return mtu - (12 + moduleIDLen)
}

// chunkedBodyLimit is the same calculation for one slice of a chunked
// DataPacket, which additionally carries a 2-byte slice index and 2-byte
// slice count.
func chunkedBodyLimit(mtu, moduleIDLen int) int {
	return mtu - (16 + moduleIDLen)
}

func splitPayload(payload []byte, limit int) [][]byte {
	if limit < 1 {
		limit = 1
	}

	var out [][]byte
	for len(payload) > 0 {
		n := limit
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n])
		payload = payload[n:]
	}
	if len(out) == 0 {
		out = append(out, payload)
	}
	return out
}
