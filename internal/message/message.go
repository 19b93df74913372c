// Package message defines the wire packets exchanged by the transport:
// handshake, session, discovery and the four data-delivery kinds. Every
// packet implements Read/Write against the teacher's buffer codec, the same
// contract the teacher's internal/message package uses.
package message

import (
	"github.com/gamevidea/binary/buffer"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// Packet is implemented by every wire message kind.
type Packet interface {
	Kind() protocol.Kind
	Read(buf *buffer.Buffer) error
	Write(buf *buffer.Buffer) error
}

// WriteBytes8 writes an up-to-255-byte string as a 1-byte length prefix
// followed by the raw bytes, the encoding used for usernames, servernames
// and module IDs throughout this package.
func WriteBytes8(buf *buffer.Buffer, data []byte) error {
	if err := buf.WriteUint8(uint8(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return buf.Write(data)
}

// ReadBytes8 reads back a WriteBytes8-encoded string.
func ReadBytes8(buf *buffer.Buffer) ([]byte, error) {
	n, err := buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	if err := buf.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}
