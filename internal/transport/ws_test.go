package transport_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/transport"
	"github.com/caravelhq/caravel/protocol/wire"
)

func TestWebsocketRoundTrip(t *testing.T) {
	accepted := make(chan *transport.WS, 1)
	srv := httptest.NewServer(transport.WebsocketHandler(func(ws *transport.WS) {
		accepted <- ws
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	a, err := transport.DialWebsocket(context.Background(), u.Host)
	require.NoError(t, err)
	defer a.Close()

	ev := waitEvent(t, a)
	assert.Equal(t, transport.Connected, ev.Kind)

	b := <-accepted
	defer b.Close()

	want := wire.Packet{Type: wire.Json, Payload: []byte(`{"count":"0","size":"0"}`)}
	a.Send(want)

	ev = waitEvent(t, a)
	assert.Equal(t, transport.PacketSent, ev.Kind)

	ev = waitEvent(t, b)
	require.Equal(t, transport.PacketReceived, ev.Kind)
	assert.Equal(t, want.Type, ev.Packet.Type)
	assert.Equal(t, want.Payload, ev.Packet.Payload)

	b.Send(wire.Packet{Type: wire.Success})
	ev = waitEvent(t, a)
	require.Equal(t, transport.PacketReceived, ev.Kind)
	assert.Equal(t, wire.Success, ev.Packet.Type)
}

func TestWebsocketCloseFlushesQueuedPackets(t *testing.T) {
	accepted := make(chan *transport.WS, 1)
	srv := httptest.NewServer(transport.WebsocketHandler(func(ws *transport.WS) {
		accepted <- ws
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	a, err := transport.DialWebsocket(context.Background(), u.Host)
	require.NoError(t, err)
	defer a.Close()

	ev := waitEvent(t, a)
	require.Equal(t, transport.Connected, ev.Kind)

	// A transfer queues its terminal packet immediately before closing the
	// transport; the packet must still reach the peer.
	b := <-accepted
	b.Send(wire.Packet{Type: wire.Success})
	require.NoError(t, b.Close())

	ev = waitEvent(t, a)
	require.Equal(t, transport.PacketReceived, ev.Kind)
	assert.Equal(t, wire.Success, ev.Packet.Type)
}

func TestWebsocketPeerClose(t *testing.T) {
	accepted := make(chan *transport.WS, 1)
	srv := httptest.NewServer(transport.WebsocketHandler(func(ws *transport.WS) {
		accepted <- ws
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	a, err := transport.DialWebsocket(context.Background(), u.Host)
	require.NoError(t, err)
	ev := waitEvent(t, a)
	require.Equal(t, transport.Connected, ev.Kind)

	b := <-accepted
	require.NoError(t, a.Close())

	ev = waitEvent(t, b)
	assert.Equal(t, transport.Failed, ev.Kind)
	require.NoError(t, b.Close())
}
