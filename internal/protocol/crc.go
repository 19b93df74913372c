package protocol

import (
	"hash/crc32"

	"github.com/gamevidea/binary/buffer"
	"github.com/gamevidea/binary/byteorder"
)

// Checksum computes the IEEE CRC32 over body, the same polynomial and table
// used throughout the standard library's hash/crc32 package. No third-party
// CRC32 implementation appears anywhere in the retrieved example pack, so
// the checksum itself stays on hash/crc32 (see DESIGN.md); only the frame
// layout around it is carried in the teacher's buffer codec.
func Checksum(body []byte) uint32 {
	return crc32.ChecksumIEEE(body)
}

// EncodeFrame reserves the 4-byte CRC32 header and 1-byte type, invokes
// writeBody to append the kind-specific body, then backpatches the checksum
// over everything written after it. Mirrors the teacher's Connection.flush,
// which reserves a header region, writes the body first, and backfills the
// sequence-number header once the body length is known.
func EncodeFrame(kind Kind, writeBody func(buf *buffer.Buffer) error) ([]byte, error) {
	buf := buffer.New(2048)
	buf.SetOffset(HeaderSize)

	if err := writeBody(buf); err != nil {
		return nil, err
	}

	end := buf.Offset()

	buf.SetOffset(4)
	if err := buf.WriteUint8(kind); err != nil {
		return nil, err
	}
	buf.SetOffset(end)

	frame := append([]byte(nil), buf.Bytes()[:end]...)
	crc := Checksum(frame[4:])

	buf.SetOffset(0)
	if err := buf.WriteUint32(crc, byteorder.BigEndian); err != nil {
		return nil, err
	}
	buf.SetOffset(end)

	out := append([]byte(nil), buf.Bytes()[:end]...)
	return out, nil
}

// DecodeHeader validates the CRC32 of raw and returns the type byte (with
// FlagChunked left intact) and a reader positioned right after the type
// byte. Malformed frames (too short, bad checksum) return ok == false and
// the caller must drop the frame silently per spec.md §4.1/§7.
func DecodeHeader(raw []byte) (kind Kind, body *buffer.Buffer, ok bool) {
	if len(raw) < HeaderSize {
		return 0, nil, false
	}

	b := buffer.From(raw)

	want, err := b.ReadUint32(byteorder.BigEndian)
	if err != nil {
		return 0, nil, false
	}

	if Checksum(raw[4:]) != want {
		return 0, nil, false
	}

	typ, err := b.ReadUint8()
	if err != nil {
		return 0, nil, false
	}

	return typ, b, true
}
