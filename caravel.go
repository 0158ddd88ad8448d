// Package caravel provides the high-level entry points for sending and
// receiving bundles of files between two machines: the sender dials the
// receiver, which listens for exactly one connection, and the transfer
// engine moves the bundle across it.
package caravel

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/caravelhq/caravel/internal/fsitem"
	"github.com/caravelhq/caravel/internal/item"
	"github.com/caravelhq/caravel/internal/logger"
	"github.com/caravelhq/caravel/internal/transfer"
	"github.com/caravelhq/caravel/internal/transport"
)

type options struct {
	deviceName string
	chunkSize  int
	collision  fsitem.Collision
	websocket  bool
	logger     *zap.Logger
	observer   transfer.Observer
}

type Option func(*options)

// WithDeviceName sets the identity announced to the peer. Defaults to the
// local hostname.
func WithDeviceName(name string) Option {
	return func(o *options) { o.deviceName = name }
}

// WithChunkSize bounds the content bytes per packet.
func WithChunkSize(size int) Option {
	return func(o *options) { o.chunkSize = size }
}

// WithCollision sets the policy applied when a received file already exists.
func WithCollision(c fsitem.Collision) Option {
	return func(o *options) { o.collision = c }
}

// WithWebsocket transfers over a websocket connection instead of raw TCP.
func WithWebsocket(enabled bool) Option {
	return func(o *options) { o.websocket = enabled }
}

func WithLogger(lgr *zap.Logger) Option {
	return func(o *options) { o.logger = lgr }
}

// WithObserver subscribes to the transfer's change notifications.
func WithObserver(obs transfer.Observer) Option {
	return func(o *options) { o.observer = obs }
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.deviceName == "" {
		if hostname, err := os.Hostname(); err == nil {
			o.deviceName = hostname
		}
	}
	return o
}

// Send gathers paths into a bundle and transfers it to the receiver at addr.
// It returns once the receiver has confirmed the whole bundle or the
// transfer failed.
func Send(ctx context.Context, addr string, paths []string, opts ...Option) error {
	o := newOptions(opts)

	bundle, err := fsitem.Gather(paths)
	if err != nil {
		return err
	}

	var tp transport.Transport
	if o.websocket {
		tp, err = transport.DialWebsocket(ctx, addr)
	} else {
		tp, err = transport.Dial(ctx, addr)
	}
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}

	eng := transfer.New(tp,
		transfer.WithBundle(bundle),
		transfer.WithDeviceName(o.deviceName),
		transfer.WithChunkSize(o.chunkSize),
		transfer.WithLogger(o.logger),
		transfer.WithObserver(o.observer),
	)
	return eng.Run(ctx)
}

// Listener waits for one incoming transfer.
type Listener struct {
	ln        net.Listener
	opts      options
	closeOnce sync.Once
}

// Listen binds addr for one incoming transfer. Use ":0" to pick a free port
// and Addr to learn which one.
func Listen(addr string, opts ...Option) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &Listener{ln: ln, opts: newOptions(opts)}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() { err = l.ln.Close() })
	return err
}

// Receive accepts the first connection and reconstructs the peer's bundle
// under dest. It returns once the bundle is complete or the transfer failed.
func (l *Listener) Receive(ctx context.Context, dest string) error {
	defer l.Close()

	registry := item.NewRegistry()
	fsitem.Register(registry, &fsitem.Handler{Dest: dest, Collision: l.opts.collision})

	engine := func(tp transport.Transport) error {
		eng := transfer.New(tp,
			transfer.WithRegistry(registry),
			transfer.WithDeviceName(l.opts.deviceName),
			transfer.WithLogger(l.opts.logger),
			transfer.WithObserver(l.opts.observer),
		)
		return eng.Run(ctx)
	}

	if l.opts.websocket {
		return l.receiveWebsocket(ctx, engine)
	}

	// Unblock the pending Accept if the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-done:
		}
	}()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("accepting connection: %w", err)
	}
	return engine(transport.NewTCP(conn))
}

// receiveWebsocket serves the transfer endpoint on the bound listener and
// hands the first upgraded connection to the engine.
func (l *Listener) receiveWebsocket(ctx context.Context, engine func(transport.Transport) error) error {
	accepted := make(chan *transport.WS, 1)

	router := mux.NewRouter()
	router.Use(logger.Middleware(l.opts.logger))
	router.HandleFunc("/transfer", transport.WebsocketHandler(func(ws *transport.WS) {
		select {
		case accepted <- ws:
		default:
			// A transfer is already running; turn latecomers away.
			ws.Close()
		}
	}))

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l.ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-serveErr:
		return fmt.Errorf("serving transfer endpoint: %w", err)
	case ws := <-accepted:
		return engine(ws)
	}
}

// Receive listens on addr, accepts one transfer and reconstructs it under
// dest.
func Receive(ctx context.Context, addr, dest string, opts ...Option) error {
	l, err := Listen(addr, opts...)
	if err != nil {
		return err
	}
	return l.Receive(ctx, dest)
}
