// errors.go specifies how transfer failures are classified. Every kind ends
// the transfer the same way; the kind decides only whether the peer gets an
// error packet and how the failure reads.
package transfer

import "fmt"

// Kind classifies a terminal transfer failure.
type Kind int

const (
	ProtocolError     Kind = iota // Malformed or out-of-sequence packet
	IOError                       // Item open/read/write failure
	PeerError                     // The peer reported the failure first
	TransportError                // The connection itself broke
	CancellationError             // Local abort
)

func (k Kind) Name() string {
	switch k {
	case ProtocolError:
		return "ProtocolError"
	case IOError:
		return "IOError"
	case PeerError:
		return "PeerError"
	case TransportError:
		return "TransportError"
	case CancellationError:
		return "CancellationError"
	default:
		return ""
	}
}

// notifiesPeer reports whether the failure is echoed to the peer. Peer
// failures are not echoed back, and a broken transport cannot carry one.
func (k Kind) notifiesPeer() bool {
	return k != PeerError && k != TransportError
}

// Error is a terminal transfer failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
