package message

import (
	"github.com/gamevidea/binary/buffer"
	"github.com/gamevidea/binary/byteorder"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// ServerInformation is the periodic LAN discovery beacon a server
// broadcasts (spec.md §4.8, §4.9): its name, its capacity, and the current
// peer count plus the server itself.
type ServerInformation struct {
	ServerName   []byte
	MaxClients   uint16
	CurrentCount uint16
}

func (*ServerInformation) Kind() protocol.Kind { return protocol.KindServerInformation }

func (pk *ServerInformation) Read(buf *buffer.Buffer) (err error) {
	if pk.ServerName, err = ReadBytes8(buf); err != nil {
		return err
	}
	if pk.MaxClients, err = buf.ReadUint16(byteorder.BigEndian); err != nil {
		return err
	}
	pk.CurrentCount, err = buf.ReadUint16(byteorder.BigEndian)
	return err
}

func (pk *ServerInformation) Write(buf *buffer.Buffer) (err error) {
	if err = WriteBytes8(buf, pk.ServerName); err != nil {
		return err
	}
	if err = buf.WriteUint16(pk.MaxClients, byteorder.BigEndian); err != nil {
		return err
	}
	return buf.WriteUint16(pk.CurrentCount, byteorder.BigEndian)
}
