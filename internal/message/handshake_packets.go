package message

import (
	"github.com/gamevidea/binary/buffer"
	"github.com/gamevidea/binary/byteorder"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// Color is an RGBA32 display color, written as four raw bytes on the wire.
type Color struct {
	R, G, B, A uint8
}

func readColor(buf *buffer.Buffer) (Color, error) {
	var c Color
	var err error
	if c.R, err = buf.ReadUint8(); err != nil {
		return c, err
	}
	if c.G, err = buf.ReadUint8(); err != nil {
		return c, err
	}
	if c.B, err = buf.ReadUint8(); err != nil {
		return c, err
	}
	if c.A, err = buf.ReadUint8(); err != nil {
		return c, err
	}
	return c, nil
}

func writeColor(buf *buffer.Buffer, c Color) error {
	if err := buf.WriteUint8(c.R); err != nil {
		return err
	}
	if err := buf.WriteUint8(c.G); err != nil {
		return err
	}
	if err := buf.WriteUint8(c.B); err != nil {
		return err
	}
	return buf.WriteUint8(c.A)
}

// ConnectionRequest is the first frame a client sends, carrying no payload
// of its own; the server replies with a fresh challenge nonce.
type ConnectionRequest struct{}

func (*ConnectionRequest) Kind() protocol.Kind       { return protocol.KindConnectionRequest }
func (*ConnectionRequest) Read(buf *buffer.Buffer) error  { return nil }
func (*ConnectionRequest) Write(buf *buffer.Buffer) error { return nil }

// ConnectionChallenge carries the 64-bit liveness nonce the server expects
// the client to hash and echo back in ChallengeAnswer.
type ConnectionChallenge struct {
	Nonce uint64
}

func (*ConnectionChallenge) Kind() protocol.Kind { return protocol.KindConnectionChallenge }

func (pk *ConnectionChallenge) Read(buf *buffer.Buffer) (err error) {
	hi, err := buf.ReadUint32(byteorder.BigEndian)
	if err != nil {
		return err
	}
	lo, err := buf.ReadUint32(byteorder.BigEndian)
	if err != nil {
		return err
	}
	pk.Nonce = uint64(hi)<<32 | uint64(lo)
	return nil
}

func (pk *ConnectionChallenge) Write(buf *buffer.Buffer) (err error) {
	if err = buf.WriteUint32(uint32(pk.Nonce>>32), byteorder.BigEndian); err != nil {
		return err
	}
	return buf.WriteUint32(uint32(pk.Nonce), byteorder.BigEndian)
}

// ChallengeAnswer is the client's reply to ConnectionChallenge: its display
// attributes plus a SHA-256 of the nonce it was issued, proving liveness
// (spec.md §9: this is not authentication, only a liveness check).
type ChallengeAnswer struct {
	Username []byte
	Color    Color
	Hash     [32]byte
}

func (*ChallengeAnswer) Kind() protocol.Kind { return protocol.KindChallengeAnswer }

func (pk *ChallengeAnswer) Read(buf *buffer.Buffer) (err error) {
	if pk.Username, err = ReadBytes8(buf); err != nil {
		return err
	}
	if pk.Color, err = readColor(buf); err != nil {
		return err
	}
	return buf.Read(pk.Hash[:])
}

func (pk *ChallengeAnswer) Write(buf *buffer.Buffer) (err error) {
	if err = WriteBytes8(buf, pk.Username); err != nil {
		return err
	}
	if err = writeColor(buf, pk.Color); err != nil {
		return err
	}
	return buf.Write(pk.Hash[:])
}

// ConnectionAccepted finalizes the handshake, carrying the peer ID the
// server allocated (always >= protocol.MinPeerID).
type ConnectionAccepted struct {
	PeerID uint8
}

func (*ConnectionAccepted) Kind() protocol.Kind { return protocol.KindConnectionAccepted }

func (pk *ConnectionAccepted) Read(buf *buffer.Buffer) (err error) {
	pk.PeerID, err = buf.ReadUint8()
	return err
}

func (pk *ConnectionAccepted) Write(buf *buffer.Buffer) error {
	return buf.WriteUint8(pk.PeerID)
}

// ConnectionDenied is sent instead of ConnectionChallenge/ConnectionAccepted
// when the server is at capacity or the challenge hash didn't match.
type ConnectionDenied struct {
	Reason []byte
}

func (*ConnectionDenied) Kind() protocol.Kind { return protocol.KindConnectionDenied }

func (pk *ConnectionDenied) Read(buf *buffer.Buffer) (err error) {
	pk.Reason, err = ReadBytes8(buf)
	return err
}

func (pk *ConnectionDenied) Write(buf *buffer.Buffer) error {
	return WriteBytes8(buf, pk.Reason)
}
