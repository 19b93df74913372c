package protocol

import (
	"testing"

	"github.com/gamevidea/binary/buffer"
	"github.com/gamevidea/binary/byteorder"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	frame, err := EncodeFrame(KindConnectionRequest, func(buf *buffer.Buffer) error {
		return buf.WriteUint8(42)
	})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	kind, body, ok := DecodeHeader(frame)
	if !ok {
		t.Fatal("DecodeHeader rejected a valid frame")
	}
	if kind != KindConnectionRequest {
		t.Errorf("kind = %d, want %d", kind, KindConnectionRequest)
	}

	v, err := body.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8: %v", err)
	}
	if v != 42 {
		t.Errorf("body value = %d, want 42", v)
	}
}

func TestDecodeHeaderRejectsCorruption(t *testing.T) {
	frame, err := EncodeFrame(KindAck, func(buf *buffer.Buffer) error {
		return buf.WriteUint16(7, byteorder.BigEndian)
	})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	frame[len(frame)-1] ^= 0xff

	if _, _, ok := DecodeHeader(frame); ok {
		t.Error("DecodeHeader accepted a frame with a flipped body byte")
	}
}

func TestDecodeHeaderRejectsShortFrame(t *testing.T) {
	if _, _, ok := DecodeHeader([]byte{1, 2, 3}); ok {
		t.Error("DecodeHeader accepted a frame shorter than HeaderSize")
	}
}
