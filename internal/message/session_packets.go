package message

import (
	"github.com/gamevidea/binary/buffer"
	"github.com/gamevidea/binary/byteorder"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// ConnectionClosed is sent by either side to voluntarily end a session.
type ConnectionClosed struct{}

func (*ConnectionClosed) Kind() protocol.Kind       { return protocol.KindConnectionClosed }
func (*ConnectionClosed) Read(buf *buffer.Buffer) error  { return nil }
func (*ConnectionClosed) Write(buf *buffer.Buffer) error { return nil }

// ClientDisconnected notifies remaining peers that PeerID has left. Reason
// is empty for a voluntary ConnectionClosed, "unreachable" when the
// retransmit budget for that peer was exhausted, and "timeout" when the
// heartbeat sweep evicted a silent peer (spec.md §9, open question a).
type ClientDisconnected struct {
	PeerID uint8
	Reason []byte
}

func (*ClientDisconnected) Kind() protocol.Kind { return protocol.KindClientDisconnected }

func (pk *ClientDisconnected) Read(buf *buffer.Buffer) (err error) {
	if pk.PeerID, err = buf.ReadUint8(); err != nil {
		return err
	}
	pk.Reason, err = ReadBytes8(buf)
	return err
}

func (pk *ClientDisconnected) Write(buf *buffer.Buffer) (err error) {
	if err = buf.WriteUint8(pk.PeerID); err != nil {
		return err
	}
	return WriteBytes8(buf, pk.Reason)
}

// ClientInfo carries one peer's display attributes to another, both at
// handshake completion (mutual introduction, spec.md §4.6) and for the
// server's own identity. It rides the reliable-ordered channel, so it
// carries a Sequence field like the data kinds in data_packets.go and
// shares that channel's ordering counter and ACK.
type ClientInfo struct {
	Sequence uint16
	PeerID   uint8
	Username []byte
	Color    Color
}

func (*ClientInfo) Kind() protocol.Kind { return protocol.KindClientInfo }

func (pk *ClientInfo) Read(buf *buffer.Buffer) (err error) {
	if pk.Sequence, err = buf.ReadUint16(byteorder.BigEndian); err != nil {
		return err
	}
	if pk.PeerID, err = buf.ReadUint8(); err != nil {
		return err
	}
	if pk.Username, err = ReadBytes8(buf); err != nil {
		return err
	}
	pk.Color, err = readColor(buf)
	return err
}

func (pk *ClientInfo) Write(buf *buffer.Buffer) (err error) {
	if err = buf.WriteUint16(pk.Sequence, byteorder.BigEndian); err != nil {
		return err
	}
	if err = buf.WriteUint8(pk.PeerID); err != nil {
		return err
	}
	if err = WriteBytes8(buf, pk.Username); err != nil {
		return err
	}
	return writeColor(buf, pk.Color)
}
