package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/caravelhq/caravel/internal/logger"
	"github.com/caravelhq/caravel/protocol/wire"
)

// WS moves message-framed packets over a websocket connection: one binary
// message per packet, the type byte leading the payload.
type WS struct {
	conn   *websocket.Conn
	events chan Event
	queue  chan wire.Packet

	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	writerDone chan struct{}
	once       sync.Once
}

// DialWebsocket connects to the transfer endpoint at addr and emits a
// Connected event once the websocket handshake completes.
func DialWebsocket(ctx context.Context, addr string) (*WS, error) {
	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/transfer", addr), nil)
	if err != nil {
		return nil, err
	}
	t := newWS(conn)
	t.emit(Event{Kind: Connected})
	return t, nil
}

// WebsocketHandler upgrades incoming requests and hands the resulting
// transport to accept. The handler blocks until the transport is closed,
// which keeps the underlying connection alive for its whole lifetime.
func WebsocketHandler(accept func(*WS)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lgr, err := logger.FromContext(r.Context())
		if err != nil {
			lgr = zap.NewNop()
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			lgr.Error("failed to upgrade connection", zap.Error(err))
			return
		}
		lgr.Info("transfer connection accepted")
		t := newWS(conn)
		accept(t)
		<-t.done
	}
}

func newWS(conn *websocket.Conn) *WS {
	conn.SetReadLimit(wire.MaxPayloadSize + 1)
	ctx, cancel := context.WithCancel(context.Background())
	t := &WS{
		conn:       conn,
		events:     make(chan Event, 64),
		queue:      make(chan wire.Packet, 64),
		ctx:        ctx,
		cancel:     cancel,
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

func (t *WS) Send(p wire.Packet) {
	select {
	case t.queue <- p:
	case <-t.done:
	}
}

func (t *WS) Events() <-chan Event {
	return t.events
}

// Close writes out any packets queued ahead of it before closing the
// connection: a transfer's terminal Success or Error packet is queued
// immediately before the transport is closed and must still reach the peer.
func (t *WS) Close() error {
	t.once.Do(func() {
		close(t.done)
		<-t.writerDone
		t.cancel()
		t.conn.Close(websocket.StatusNormalClosure, "transfer finished") //nolint:errcheck
	})
	return nil
}

func (t *WS) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		_, payload, err := t.conn.Read(t.ctx)
		if err != nil {
			t.emit(Event{Kind: Failed, Err: err})
			return
		}
		p, err := wire.Unmarshal(payload)
		if err != nil {
			t.emit(Event{Kind: Failed, Err: err})
			return
		}
		t.emit(Event{Kind: PacketReceived, Packet: p})
	}
}

func (t *WS) writeLoop() {
	defer close(t.writerDone)
	broken := false
	write := func(ctx context.Context, p wire.Packet) {
		if broken {
			return
		}
		if err := t.conn.Write(ctx, websocket.MessageBinary, p.Marshal()); err != nil {
			broken = true
			t.emit(Event{Kind: Failed, Err: err})
			return
		}
		t.emit(Event{Kind: PacketSent})
	}
	for {
		select {
		case p := <-t.queue:
			write(t.ctx, p)
		case <-t.done:
			// Flush packets queued ahead of Close before the connection goes
			// away; a stalled peer is cut off by the timeout.
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			for {
				select {
				case p := <-t.queue:
					write(flushCtx, p)
				default:
					return
				}
			}
		}
	}
}

func (t *WS) emit(ev Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}
