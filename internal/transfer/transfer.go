// Package transfer implements the protocol engine that moves one bundle of
// items across a transport. The sender walks its bundle and writes a transfer
// header, item headers and item content; the receiver reconstructs each item
// through a handler registry. Both sides share the same four protocol phases
// but drive them from opposite events: the sender acts whenever a packet has
// been written, the receiver whenever a packet arrives.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caravelhq/caravel/internal/item"
	"github.com/caravelhq/caravel/internal/transport"
	"github.com/caravelhq/caravel/protocol/wire"
)

// Transfer is one connection-bound exchange of a bundle of items. A Transfer
// is built for exactly one direction and runs to exactly one terminal state,
// Succeeded or Failed.
type Transfer struct {
	transport  transport.Transport
	bundle     *item.Bundle
	registry   *item.Registry
	deviceName string
	chunkSize  int
	logger     *zap.Logger
	observer   Observer

	mu        sync.Mutex
	direction Direction
	phase     phase
	state     State
	peerName  string
	err       error

	itemIndex int
	itemCount int

	bytesTransferred int64
	bytesTotal       int64
	progress         int

	current            item.Item
	currentTransferred int64
	currentTotal       int64

	// notifications queued while the mutex is held, delivered after release
	// so that observers may call back into the accessors.
	pending []func()
}

type Option func(*Transfer)

// WithBundle supplies the items to send. A transfer constructed with a
// bundle is a sender; without one it is a receiver.
func WithBundle(b *item.Bundle) Option {
	return func(t *Transfer) {
		t.bundle = b
	}
}

// WithRegistry supplies the handler registry used to reconstruct received
// items. Only meaningful for the receive direction.
func WithRegistry(r *item.Registry) Option {
	return func(t *Transfer) {
		t.registry = r
	}
}

// WithDeviceName sets the local identity put on the wire in the transfer
// header.
func WithDeviceName(name string) Option {
	return func(t *Transfer) {
		t.deviceName = name
	}
}

// WithChunkSize bounds the content bytes carried by one binary packet.
func WithChunkSize(size int) Option {
	return func(t *Transfer) {
		if size > 0 {
			t.chunkSize = size
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Transfer) {
		t.logger = logger
	}
}

// WithObserver registers change notifications for state, progress, device
// name and error.
func WithObserver(o Observer) Option {
	return func(t *Transfer) {
		t.observer = o
	}
}

// New creates a transfer bound to tr. Supplying a bundle selects the send
// direction and the Connecting state; otherwise the transfer receives and is
// immediately in progress.
func New(tr transport.Transport, opts ...Option) *Transfer {
	t := &Transfer{
		transport: tr,
		chunkSize: wire.DefaultChunkSize,
		logger:    zap.NewNop(),
		direction: Receive,
		phase:     awaitingTransferHeader,
		state:     InProgress,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bundle != nil {
		t.direction = Send
		t.state = Connecting
		t.itemCount = t.bundle.Count()
		t.bytesTotal = t.bundle.TotalSize()
	}
	if t.registry == nil {
		t.registry = item.NewRegistry()
	}
	t.logger = t.logger.With(
		zap.String("transfer_id", uuid.NewString()),
		zap.String("direction", t.direction.Name()),
	)
	return t
}

// Run consumes transport events until the transfer reaches a terminal state.
// It returns nil when the transfer succeeded and the terminal error when it
// failed. Cancelling ctx cancels the transfer.
func (t *Transfer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.Cancel()
			return t.result()
		case ev, ok := <-t.transport.Events():
			if !ok {
				t.connectionLost()
				return t.result()
			}
			t.handle(ev)
			if t.Finished() {
				return t.result()
			}
		}
	}
}

// Cancel aborts the transfer, notifies the peer and closes the transport.
// Cancelling a transfer that already reached a terminal state does nothing.
// Safe to call from any goroutine.
func (t *Transfer) Cancel() {
	t.mu.Lock()
	if !t.terminal() {
		t.fail(&Error{Kind: CancellationError, Err: errors.New("transfer cancelled")})
	}
	t.flush()
}

// ----------------------------------------------------- Accessors -----------------------------------------------------

func (t *Transfer) Direction() Direction {
	return t.direction
}

func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress is the integer percentage of bytes moved so far.
func (t *Transfer) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// DeviceName is the peer identity learned from the transfer header. Empty
// until the header arrives and on the send side.
func (t *Transfer) DeviceName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerName
}

func (t *Transfer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Finished reports whether the transfer reached Succeeded or Failed.
func (t *Transfer) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Succeeded || t.state == Failed
}

// Transferred is the cumulative number of content bytes moved.
func (t *Transfer) Transferred() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytesTransferred
}

// Total is the declared content byte total for the whole transfer.
func (t *Transfer) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytesTotal
}

// --------------------------------------------------- Event handling --------------------------------------------------

func (t *Transfer) handle(ev transport.Event) {
	t.mu.Lock()
	if t.terminal() {
		t.flush()
		return
	}
	switch ev.Kind {
	case transport.Connected:
		// The sender defers its first write until the connection is up,
		// then proceeds as if a previous packet had just been written.
		if t.direction == Send {
			t.setState(InProgress)
			t.onPacketSent()
		}
	case transport.PacketReceived:
		t.onPacketReceived(ev.Packet)
	case transport.PacketSent:
		t.onPacketSent()
	case transport.Failed:
		t.fail(&Error{Kind: TransportError, Err: ev.Err})
	}
	t.flush()
}

func (t *Transfer) connectionLost() {
	t.mu.Lock()
	if !t.terminal() {
		t.fail(&Error{Kind: TransportError, Err: errors.New("connection closed")})
	}
	t.flush()
}

func (t *Transfer) onPacketReceived(p wire.Packet) {
	// An error packet ends the transfer with the peer's message; the peer
	// already knows, so nothing is echoed back.
	if p.Type == wire.Error {
		t.fail(&Error{Kind: PeerError, Err: errors.New(string(p.Payload))})
		return
	}

	if t.direction == Send {
		// The only packet a sender expects is the success packet confirming
		// the receiver reconstructed every item.
		if t.phase == finished && p.Type == wire.Success {
			t.succeed(false)
			return
		}
	} else {
		switch t.phase {
		case awaitingTransferHeader:
			t.processTransferHeader(p)
			return
		case awaitingItemHeader:
			t.processItemHeader(p)
			return
		case awaitingItemContent:
			t.processItemContent(p)
			return
		case finished:
			return
		}
	}

	t.fail(newError(ProtocolError, "protocol error - unexpected packet"))
}

func (t *Transfer) onPacketSent() {
	if t.direction == Receive {
		return
	}
	switch t.phase {
	case awaitingTransferHeader:
		t.sendTransferHeader()
	case awaitingItemHeader:
		t.sendItemHeader()
	case awaitingItemContent:
		t.sendItemContent()
	case finished:
	}
}

// ------------------------------------------------------- Sending ------------------------------------------------------

func (t *Transfer) sendTransferHeader() {
	header := wire.NewTransferHeader(t.deviceName, t.bundle.Count(), t.bundle.TotalSize())
	payload, err := json.Marshal(header)
	if err != nil {
		t.fail(newError(ProtocolError, "transfer header: %v", err))
		return
	}
	t.transport.Send(wire.Packet{Type: wire.Json, Payload: payload})

	// An empty bundle has nothing further to send; wait for the receiver to
	// confirm the (empty) transfer.
	if t.itemCount == 0 {
		t.setPhase(finished)
		return
	}
	t.setPhase(awaitingItemHeader)
}

func (t *Transfer) sendItemHeader() {
	it := t.bundle.Item(t.itemIndex)
	if err := it.Open(item.Read); err != nil {
		t.fail(newError(IOError, "unable to open %q for reading", it.Name()))
		return
	}
	t.current = it
	t.currentTransferred = 0
	t.currentTotal = it.Size()

	payload, err := json.Marshal(it.Properties())
	if err != nil {
		t.fail(newError(ProtocolError, "item header: %v", err))
		return
	}
	t.transport.Send(wire.Packet{Type: wire.Json, Payload: payload})

	if t.currentTotal > 0 {
		t.setPhase(awaitingItemContent)
	} else {
		t.sendNext()
	}
}

func (t *Transfer) sendItemContent() {
	buf := make([]byte, t.chunkSize)
	if remaining := t.currentTotal - t.currentTransferred; remaining < int64(len(buf)) {
		buf = buf[:remaining]
	}

	var n int
	var err error
	for n == 0 && err == nil {
		n, err = t.current.Read(buf)
	}
	if n > 0 {
		t.transport.Send(wire.Packet{Type: wire.Binary, Payload: buf[:n]})
		t.bytesTransferred += int64(n)
		t.currentTransferred += int64(n)
		t.updateProgress()
		if t.currentTransferred >= t.currentTotal {
			t.sendNext()
			return
		}
	}
	if err != nil {
		if err == io.EOF {
			// The item ran out before its declared size; the receiver is
			// still expecting bytes, so the transfer cannot complete.
			t.fail(newError(IOError, "read %q: unexpected EOF", t.current.Name()))
			return
		}
		t.fail(&Error{Kind: IOError, Err: fmt.Errorf("read %q: %w", t.current.Name(), err)})
	}
}

func (t *Transfer) sendNext() {
	t.closeCurrent()
	t.itemIndex++

	// Once every item is out, the sender cannot know when the receiver has
	// finished reconstructing the last one; it waits for the success packet.
	if t.itemIndex == t.itemCount {
		t.setPhase(finished)
	} else {
		t.setPhase(awaitingItemHeader)
	}
}

// ------------------------------------------------------ Receiving -----------------------------------------------------

func (t *Transfer) processTransferHeader(p wire.Packet) {
	var header wire.TransferHeader
	if err := json.Unmarshal(p.Payload, &header); err != nil {
		t.fail(newError(ProtocolError, "transfer header: %v", err))
		return
	}

	if header.Name != "" {
		t.peerName = header.Name
		t.notify(func() { t.observer.notifyDeviceName(header.Name) })
	}
	t.itemCount, t.bytesTotal = header.Totals()

	// An empty transfer is already complete.
	if t.itemCount == 0 {
		t.succeed(true)
		return
	}
	t.setPhase(awaitingItemHeader)
}

func (t *Transfer) processItemHeader(p wire.Packet) {
	var props map[string]interface{}
	if err := json.Unmarshal(p.Payload, &props); err != nil {
		t.fail(newError(ProtocolError, "item header: %v", err))
		return
	}

	typ := wire.ItemType(props)
	handler, ok := t.registry.Find(typ)
	if !ok {
		t.fail(newError(ProtocolError, "unrecognized item type %q", typ))
		return
	}

	it, err := handler.CreateItem(typ, props)
	if err != nil {
		t.fail(&Error{Kind: ProtocolError, Err: fmt.Errorf("item header: %w", err)})
		return
	}
	if err := it.Open(item.Write); err != nil {
		it.Close()
		t.fail(newError(IOError, "unable to open %q for writing", it.Name()))
		return
	}
	t.current = it
	t.currentTransferred = 0
	t.currentTotal = it.Size()

	if t.currentTotal > 0 {
		t.setPhase(awaitingItemContent)
	} else {
		t.processNext()
	}
}

func (t *Transfer) processItemContent(p wire.Packet) {
	if _, err := t.current.Write(p.Payload); err != nil {
		t.fail(&Error{Kind: IOError, Err: fmt.Errorf("write %q: %w", t.current.Name(), err)})
		return
	}
	t.bytesTransferred += int64(len(p.Payload))
	t.currentTransferred += int64(len(p.Payload))
	t.updateProgress()

	if t.currentTransferred >= t.currentTotal {
		t.processNext()
	}
}

func (t *Transfer) processNext() {
	t.closeCurrent()
	t.itemIndex++

	// The receiver declares success unilaterally: it has reconstructed every
	// declared item, which is something only it can know.
	if t.itemIndex == t.itemCount {
		t.succeed(true)
	} else {
		t.setPhase(awaitingItemHeader)
	}
}

// ----------------------------------------------------- Termination ----------------------------------------------------

func (t *Transfer) succeed(send bool) {
	if send {
		t.transport.Send(wire.Packet{Type: wire.Success})
	}
	t.closeCurrent()
	t.logger.Info("transfer succeeded",
		zap.Int("items", t.itemIndex),
		zap.Int64("bytes", t.bytesTransferred),
	)
	t.setState(Succeeded)
	t.transport.Close()
	t.setPhase(finished)
}

func (t *Transfer) fail(err *Error) {
	t.logger.Error("transfer failed",
		zap.String("kind", err.Kind.Name()),
		zap.Error(err.Err),
	)
	if err.Kind.notifiesPeer() {
		t.transport.Send(wire.Packet{Type: wire.Error, Payload: []byte(err.Error())})
	}
	t.closeCurrent()
	t.err = err
	t.notify(func() { t.observer.notifyError(err) })
	t.setState(Failed)
	t.transport.Close()
	t.setPhase(finished)
}

// ------------------------------------------------------- Helpers ------------------------------------------------------

func (t *Transfer) terminal() bool {
	return t.state == Succeeded || t.state == Failed
}

func (t *Transfer) result() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Transfer) setPhase(p phase) {
	if t.phase == p {
		return
	}
	t.logger.Debug("protocol phase", zap.String("from", t.phase.name()), zap.String("to", p.name()))
	t.phase = p
}

func (t *Transfer) setState(s State) {
	if t.state == s {
		return
	}
	t.logger.Debug("state", zap.String("from", t.state.Name()), zap.String("to", s.Name()))
	t.state = s
	t.notify(func() { t.observer.notifyState(s) })
}

func (t *Transfer) updateProgress() {
	progress := 0
	if t.bytesTotal > 0 {
		progress = int(100 * t.bytesTransferred / t.bytesTotal)
	}
	if progress != t.progress {
		t.progress = progress
		t.notify(func() { t.observer.notifyProgress(progress) })
	}
}

func (t *Transfer) closeCurrent() {
	if t.current == nil {
		return
	}
	if err := t.current.Close(); err != nil {
		t.logger.Warn("closing item", zap.String("item", t.current.Name()), zap.Error(err))
	}
	t.current = nil
}

func (t *Transfer) notify(fn func()) {
	t.pending = append(t.pending, fn)
}

// flush delivers queued notifications and releases the mutex. Notifications
// run outside the lock so observers may read the transfer's accessors.
func (t *Transfer) flush() {
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
