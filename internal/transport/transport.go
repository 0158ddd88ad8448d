// Package transport moves packets between two peers over a single reliable,
// ordered connection and reports everything that happens on it as a stream
// of events consumed by the transfer engine.
package transport

import (
	"github.com/caravelhq/caravel/protocol/wire"
)

// EventKind specifies a connection notification.
type EventKind int

const (
	Connected      EventKind = iota // Outbound connection is established
	PacketReceived                  // One whole packet has arrived
	PacketSent                      // One queued packet is fully written
	Failed                          // The connection broke; Err carries the cause
)

func (k EventKind) Name() string {
	switch k {
	case Connected:
		return "Connected"
	case PacketReceived:
		return "PacketReceived"
	case PacketSent:
		return "PacketSent"
	case Failed:
		return "Failed"
	default:
		return ""
	}
}

// Event is one connection notification. Packet is set for PacketReceived,
// Err for Failed.
type Event struct {
	Kind   EventKind
	Packet wire.Packet
	Err    error
}

// Transport is a connection that delivers whole packets in order, exactly
// once, and reports its lifecycle on a single event channel.
//
// Send queues a packet and never blocks indefinitely: packets queued after
// the connection broke or closed are dropped, which keeps best-effort error
// notifications from wedging the caller. Close is idempotent and stops both
// directions.
type Transport interface {
	Send(p wire.Packet)
	Events() <-chan Event
	Close() error
}
