package transport_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/transport"
	"github.com/caravelhq/caravel/protocol/wire"
)

func waitEvent(t *testing.T, tr transport.Transport) transport.Event {
	t.Helper()
	select {
	case ev := <-tr.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return transport.Event{}
	}
}

func TestTCPRoundTrip(t *testing.T) {
	left, right := net.Pipe()
	a := transport.NewTCP(left)
	b := transport.NewTCP(right)
	defer a.Close()
	defer b.Close()

	want := wire.Packet{Type: wire.Json, Payload: []byte(`{"name":"alpha","count":"1","size":"4"}`)}
	a.Send(want)

	ev := waitEvent(t, a)
	assert.Equal(t, transport.PacketSent, ev.Kind)

	ev = waitEvent(t, b)
	require.Equal(t, transport.PacketReceived, ev.Kind)
	assert.Equal(t, want.Type, ev.Packet.Type)
	assert.Equal(t, want.Payload, ev.Packet.Payload)

	// And back the other way.
	b.Send(wire.Packet{Type: wire.Success})
	ev = waitEvent(t, b)
	assert.Equal(t, transport.PacketSent, ev.Kind)
	ev = waitEvent(t, a)
	require.Equal(t, transport.PacketReceived, ev.Kind)
	assert.Equal(t, wire.Success, ev.Packet.Type)
	assert.Empty(t, ev.Packet.Payload)
}

func TestTCPCloseFlushesQueuedPackets(t *testing.T) {
	left, right := net.Pipe()
	a := transport.NewTCP(left)

	received := make(chan wire.Packet, 1)
	go func() {
		p, err := wire.Read(bufio.NewReader(right))
		if err == nil {
			received <- p
		}
	}()

	// A transfer queues its terminal packet immediately before closing the
	// transport; the packet must still reach the peer.
	a.Send(wire.Packet{Type: wire.Success})
	require.NoError(t, a.Close())

	select {
	case p := <-received:
		assert.Equal(t, wire.Success, p.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("packet queued before Close never reached the peer")
	}

	// The event channel closes once both transport loops have stopped.
	for range a.Events() {
	}
}

func TestTCPPeerCloseFailsReader(t *testing.T) {
	left, right := net.Pipe()
	a := transport.NewTCP(left)
	b := transport.NewTCP(right)
	defer a.Close()

	require.NoError(t, b.Close())

	ev := waitEvent(t, a)
	assert.Equal(t, transport.Failed, ev.Kind)
	assert.Error(t, ev.Err)
}

func TestTCPCloseIdempotent(t *testing.T) {
	left, right := net.Pipe()
	a := transport.NewTCP(left)
	defer right.Close()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	// Sends after close are dropped rather than wedging the caller.
	done := make(chan struct{})
	go func() {
		a.Send(wire.Packet{Type: wire.Error, Payload: []byte("too late")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a closed transport")
	}
}

func TestDialEmitsConnected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	a, err := transport.Dial(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer a.Close()

	ev := waitEvent(t, a)
	assert.Equal(t, transport.Connected, ev.Kind)

	b := transport.NewTCP(<-accepted)
	defer b.Close()

	a.Send(wire.Packet{Type: wire.Binary, Payload: []byte{1, 2, 3}})
	ev = waitEvent(t, b)
	require.Equal(t, transport.PacketReceived, ev.Kind)
	assert.Equal(t, []byte{1, 2, 3}, ev.Packet.Payload)
}

func TestDialRefused(t *testing.T) {
	// Grab a port that is certain to be closed.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = transport.Dial(context.Background(), addr)
	assert.Error(t, err)
}
