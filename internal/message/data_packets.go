package message

import (
	"github.com/gamevidea/binary/buffer"
	"github.com/gamevidea/binary/byteorder"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// Ack acknowledges a received sequence, and for chunked data also the slice
// index within that sequence (spec.md §4.4/§4.5).
type Ack struct {
	Sequence  uint16
	Chunked   bool
	SliceIndex uint16
}

func (*Ack) Kind() protocol.Kind { return protocol.KindAck }

func (pk *Ack) Read(buf *buffer.Buffer) (err error) {
	if pk.Sequence, err = buf.ReadUint16(byteorder.BigEndian); err != nil {
		return err
	}
	if pk.Chunked, err = buf.ReadBool(); err != nil {
		return err
	}
	if !pk.Chunked {
		return nil
	}
	pk.SliceIndex, err = buf.ReadUint16(byteorder.BigEndian)
	return err
}

func (pk *Ack) Write(buf *buffer.Buffer) (err error) {
	if err = buf.WriteUint16(pk.Sequence, byteorder.BigEndian); err != nil {
		return err
	}
	if err = buf.WriteBool(pk.Chunked); err != nil {
		return err
	}
	if !pk.Chunked {
		return nil
	}
	return buf.WriteUint16(pk.SliceIndex, byteorder.BigEndian)
}

// DataPacket is the single wire shape behind all four delivery disciplines
// (ReliableData, ReliableUnorderedData, UnreliableData, UnreliableUnorderedData)
// and their chunked variants. BaseKind selects the discipline; Chunked is only
// ever set on the two reliable kinds, per spec.md §4.1.
type DataPacket struct {
	BaseKind      protocol.Kind
	Chunked       bool
	Sequence      uint16
	SliceIndex    uint16
	SliceCount    uint16
	SenderID      uint8
	DestinationID uint8
	ModuleID      []byte
	Payload       []byte
}

// Kind returns the wire type byte, with FlagChunked OR'd in when Chunked is set.
func (pk *DataPacket) Kind() protocol.Kind {
	if pk.Chunked {
		return pk.BaseKind | protocol.FlagChunked
	}
	return pk.BaseKind
}

func (pk *DataPacket) Read(buf *buffer.Buffer) (err error) {
	if pk.Sequence, err = buf.ReadUint16(byteorder.BigEndian); err != nil {
		return err
	}

	if pk.Chunked {
		if pk.SliceIndex, err = buf.ReadUint16(byteorder.BigEndian); err != nil {
			return err
		}
		if pk.SliceCount, err = buf.ReadUint16(byteorder.BigEndian); err != nil {
			return err
		}
	}

	if pk.SenderID, err = buf.ReadUint8(); err != nil {
		return err
	}
	if pk.DestinationID, err = buf.ReadUint8(); err != nil {
		return err
	}
	if pk.ModuleID, err = ReadBytes8(buf); err != nil {
		return err
	}

	payloadLen, err := buf.ReadUint16(byteorder.BigEndian)
	if err != nil {
		return err
	}

	pk.Payload = make([]byte, payloadLen)
	if payloadLen > 0 {
		if err := buf.Read(pk.Payload); err != nil {
			return err
		}
	}

	return nil
}

func (pk *DataPacket) Write(buf *buffer.Buffer) (err error) {
	if err = buf.WriteUint16(pk.Sequence, byteorder.BigEndian); err != nil {
		return err
	}

	if pk.Chunked {
		if err = buf.WriteUint16(pk.SliceIndex, byteorder.BigEndian); err != nil {
			return err
		}
		if err = buf.WriteUint16(pk.SliceCount, byteorder.BigEndian); err != nil {
			return err
		}
	}

	if err = buf.WriteUint8(pk.SenderID); err != nil {
		return err
	}
	if err = buf.WriteUint8(pk.DestinationID); err != nil {
		return err
	}
	if err = WriteBytes8(buf, pk.ModuleID); err != nil {
		return err
	}

	if err = buf.WriteUint16(uint16(len(pk.Payload)), byteorder.BigEndian); err != nil {
		return err
	}
	if len(pk.Payload) > 0 {
		if err = buf.Write(pk.Payload); err != nil {
			return err
		}
	}

	return nil
}
