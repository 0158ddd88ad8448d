// wire.go specifies the packet framing shared by every transport in the transfer protocol.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// DefaultPort is the port receivers listen on for incoming transfers.
	DefaultPort = 40818

	// DefaultChunkSize is the number of content bytes carried by one Binary packet.
	DefaultChunkSize = 65536

	// MaxPayloadSize bounds a single packet payload so that a misbehaving peer
	// cannot force an arbitrarily large allocation.
	MaxPayloadSize = 1<<31 - 2
)

// Type specifies the payload carried by a Packet.
type Type int

const (
	Success Type = iota // Receiver confirms that every item arrived
	Error               // Payload is a UTF-8 error message
	Json                // Payload is a JSON transfer header or item header
	Binary              // Payload is a chunk of item content
)

func (t Type) Name() string {
	switch t {
	case Success:
		return "Success"
	case Error:
		return "Error"
	case Json:
		return "Json"
	case Binary:
		return "Binary"
	default:
		return ""
	}
}

// Packet is the unit of data exchanged between two peers.
type Packet struct {
	Type    Type
	Payload []byte
}

// Write frames p onto a stream-oriented transport: a little-endian int32
// length covering the type tag and payload, one type byte, then the payload.
func Write(w io.Writer, p Packet) error {
	if len(p.Payload) > MaxPayloadSize {
		return fmt.Errorf("packet payload of %d bytes exceeds maximum", len(p.Payload))
	}
	buf := make([]byte, 5+len(p.Payload))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(p.Payload)+1))
	buf[4] = byte(p.Type)
	copy(buf[5:], p.Payload)
	_, err := w.Write(buf)
	return err
}

// Read consumes one framed packet from a stream-oriented transport.
func Read(r io.Reader) (Packet, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Packet{}, err
	}
	length := binary.LittleEndian.Uint32(head[:])
	if length == 0 || length > MaxPayloadSize+1 {
		return Packet{}, fmt.Errorf("invalid packet length %d", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, err
	}
	return Packet{Type: Type(body[0]), Payload: payload(body[1:])}, nil
}

// Marshal encodes p for message-oriented transports, where the length is
// implied by the message boundary: one type byte followed by the payload.
func (p Packet) Marshal() []byte {
	buf := make([]byte, 1+len(p.Payload))
	buf[0] = byte(p.Type)
	copy(buf[1:], p.Payload)
	return buf
}

// Unmarshal decodes a message-framed packet produced by Marshal.
func Unmarshal(data []byte) (Packet, error) {
	if len(data) == 0 {
		return Packet{}, fmt.Errorf("empty packet message")
	}
	return Packet{Type: Type(data[0]), Payload: payload(data[1:])}, nil
}

// payload normalizes an empty payload to nil so that a payloadless packet
// round-trips to its original form.
func payload(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
