// Package wire implements the binary frame format spoken by the EMG
// acquisition device. Frames are tag-prefixed: the first byte selects the
// packet type, the remainder is a fixed-size payload.
package wire

import "encoding/binary"

// Frame type tags.
const (
	TagHeartbeat byte = 0x01
	TagSamples   byte = 0x04
)

// Heartbeat frame layout: [tag, id, 0xFF, 0xFF, 0xFF, 0x0A].
const (
	heartbeatFrameLen = 6
	heartbeatMarker   = 0xFF
	heartbeatEnd      = 0x0A
)

// ChannelCount is the number of signal channels carried per samples frame.
const ChannelCount = 8

// Samples frame layout: tag byte followed by 8 big-endian uint16 values.
const samplesFrameLen = 1 + 2*ChannelCount

// Kind identifies the decoded packet variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindHeartbeat
	KindSamples
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindSamples:
		return "samples"
	default:
		return "unknown"
	}
}

// Packet is a decoded inbound frame. Only the fields for the decoded Kind
// are meaningful; the others are zero.
type Packet struct {
	Kind        Kind
	HeartbeatID byte
	Channels    [ChannelCount]uint16
}

// EncodeHeartbeat builds an outbound heartbeat frame for the given id.
// The three 0xFF marker bytes and the 0x0A terminator are required by the
// device and must be produced exactly.
func EncodeHeartbeat(id byte) []byte {
	return []byte{TagHeartbeat, id, heartbeatMarker, heartbeatMarker, heartbeatMarker, heartbeatEnd}
}

// Decode parses one inbound frame. Unrecognized tags and frames too short
// for their declared type decode to KindUnknown; Decode never fails and
// never panics on short input. Marker and terminator bytes of inbound
// heartbeats are not validated, for forward compatibility.
func Decode(frame []byte) Packet {
	if len(frame) == 0 {
		return Packet{Kind: KindUnknown}
	}

	switch frame[0] {
	case TagHeartbeat:
		if len(frame) < 2 {
			return Packet{Kind: KindUnknown}
		}
		return Packet{Kind: KindHeartbeat, HeartbeatID: frame[1]}

	case TagSamples:
		if len(frame) < samplesFrameLen {
			return Packet{Kind: KindUnknown}
		}
		p := Packet{Kind: KindSamples}
		for i := 0; i < ChannelCount; i++ {
			p.Channels[i] = binary.BigEndian.Uint16(frame[1+2*i:])
		}
		return p

	default:
		return Packet{Kind: KindUnknown}
	}
}
