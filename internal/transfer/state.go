// state.go specifies the direction, lifecycle and protocol phases a transfer
// moves through.
package transfer

// Direction fixes which half of the protocol this side drives: the sender
// writes headers and content, the receiver reconstructs them.
type Direction int

const (
	Send Direction = iota
	Receive
)

func (d Direction) Name() string {
	switch d {
	case Send:
		return "Send"
	case Receive:
		return "Receive"
	default:
		return ""
	}
}

// State is the externally observable lifecycle of a transfer. Succeeded and
// Failed are terminal; nothing happens after either one.
type State int

const (
	Connecting State = iota // Send side waiting for the transport to connect
	InProgress
	Succeeded
	Failed
)

func (s State) Name() string {
	switch s {
	case Connecting:
		return "Connecting"
	case InProgress:
		return "InProgress"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return ""
	}
}

// phase is the position within the header/content exchange. The sender
// interprets it on packet-sent events, the receiver on packet-received
// events; both walk the same four phases.
type phase int

const (
	awaitingTransferHeader phase = iota
	awaitingItemHeader
	awaitingItemContent
	finished
)

func (p phase) name() string {
	switch p {
	case awaitingTransferHeader:
		return "AwaitingTransferHeader"
	case awaitingItemHeader:
		return "AwaitingItemHeader"
	case awaitingItemContent:
		return "AwaitingItemContent"
	case finished:
		return "Finished"
	default:
		return ""
	}
}
