package message

import (
	"errors"

	"github.com/gamevidea/binary/buffer"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// ErrUnknownKind is returned by Decode for a type byte outside the 14
// kinds this transport knows about.
var ErrUnknownKind = errors.New("message: unknown packet kind")

// Decode classifies typ (the raw wire type byte, FlagChunked included),
// allocates the matching Packet, and reads its body from buf. This is the
// single switch the listener's frame classifier (spec.md §4.1) dispatches
// through, masking off FlagChunked before selecting the kind and handing
// the flag to DataPacket separately.
func Decode(typ byte, buf *buffer.Buffer) (Packet, error) {
	chunked := typ&protocol.FlagChunked != 0
	kind := typ & protocol.KindMask

	var pk Packet

	switch kind {
	case protocol.KindConnectionRequest:
		pk = &ConnectionRequest{}
	case protocol.KindConnectionChallenge:
		pk = &ConnectionChallenge{}
	case protocol.KindChallengeAnswer:
		pk = &ChallengeAnswer{}
	case protocol.KindConnectionAccepted:
		pk = &ConnectionAccepted{}
	case protocol.KindConnectionDenied:
		pk = &ConnectionDenied{}
	case protocol.KindConnectionClosed:
		pk = &ConnectionClosed{}
	case protocol.KindClientDisconnected:
		pk = &ClientDisconnected{}
	case protocol.KindServerInformation:
		pk = &ServerInformation{}
	case protocol.KindAck:
		pk = &Ack{}
	case protocol.KindReliableData, protocol.KindReliableUnordered,
		protocol.KindUnreliableData, protocol.KindUnreliableUnordered:
		pk = &DataPacket{BaseKind: kind, Chunked: chunked}
	case protocol.KindClientInfo:
		pk = &ClientInfo{}
	default:
		return nil, ErrUnknownKind
	}

	if err := pk.Read(buf); err != nil {
		return nil, err
	}

	return pk, nil
}
