package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/caravelhq/caravel/protocol/wire"
)

// flushTimeout caps how long Close waits for queued packets to reach a
// stalled peer.
const flushTimeout = 5 * time.Second

// TCP moves stream-framed packets over a single TCP connection. One reader
// and one writer goroutine funnel every notification into the event channel;
// the channel closes once both have stopped.
type TCP struct {
	conn   net.Conn
	events chan Event
	queue  chan wire.Packet

	done       chan struct{}
	writerDone chan struct{}
	once       sync.Once
	closeErr   error
}

// Dial connects to addr and emits a Connected event once the connection is
// established.
func Dial(ctx context.Context, addr string) (*TCP, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	t := newTCP(conn)
	t.emit(Event{Kind: Connected})
	return t, nil
}

// NewTCP wraps an already established connection, typically one returned by
// a listener's Accept. No Connected event is emitted: the accepting side is
// ready as soon as the connection exists.
func NewTCP(conn net.Conn) *TCP {
	return newTCP(conn)
}

func newTCP(conn net.Conn) *TCP {
	t := &TCP{
		conn:       conn,
		events:     make(chan Event, 64),
		queue:      make(chan wire.Packet, 64),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	readerDone := make(chan struct{})
	go t.readLoop(readerDone)
	go t.writeLoop()
	go func() {
		<-readerDone
		<-t.writerDone
		close(t.events)
	}()
	return t
}

func (t *TCP) Send(p wire.Packet) {
	select {
	case t.queue <- p:
	case <-t.done:
	}
}

func (t *TCP) Events() <-chan Event {
	return t.events
}

// Close writes out any packets queued ahead of it before closing the
// connection: a transfer's terminal Success or Error packet is queued
// immediately before the transport is closed and must still reach the peer.
func (t *TCP) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.conn.SetWriteDeadline(time.Now().Add(flushTimeout)) //nolint:errcheck
		<-t.writerDone
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

func (t *TCP) readLoop(done chan<- struct{}) {
	defer close(done)
	reader := bufio.NewReader(t.conn)
	for {
		p, err := wire.Read(reader)
		if err != nil {
			t.emit(Event{Kind: Failed, Err: err})
			return
		}
		t.emit(Event{Kind: PacketReceived, Packet: p})
	}
}

func (t *TCP) writeLoop() {
	defer close(t.writerDone)
	broken := false
	write := func(p wire.Packet) {
		if broken {
			return
		}
		if err := wire.Write(t.conn, p); err != nil {
			// Keep consuming the queue so Send never wedges; every
			// subsequent write fails fast on the broken connection.
			broken = true
			t.emit(Event{Kind: Failed, Err: err})
			return
		}
		t.emit(Event{Kind: PacketSent})
	}
	for {
		select {
		case p := <-t.queue:
			write(p)
		case <-t.done:
			for {
				select {
				case p := <-t.queue:
					write(p)
				default:
					return
				}
			}
		}
	}
}

// emit delivers ev unless the transport has been closed, in which case the
// consumer is gone and the event is dropped.
func (t *TCP) emit(ev Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}
