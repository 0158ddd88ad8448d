// Package item defines the units a transfer moves: items, the bundles that
// group them for sending, and the handler registry that reconstructs them on
// the receiving side.
package item

// Mode selects which side of an item's stream is opened.
type Mode int

const (
	Read Mode = iota
	Write
)

// Item is one transferable unit: a file, a directory, or any handler-defined
// content. An item's Properties make up its wire header; its Size declares
// exactly how many content bytes follow that header.
type Item interface {
	// Type returns the handler type tag, e.g. "file" or "directory".
	Type() string
	// Name identifies the item to the peer, slash-separated.
	Name() string
	// Size is the declared number of content bytes.
	Size() int64
	// Properties returns the key/value map serialized as the item header.
	Properties() map[string]interface{}
	// Open prepares the item's stream. An item is opened at most once.
	Open(mode Mode) error
	// Read fills p with content bytes. Valid after Open(Read).
	Read(p []byte) (n int, err error)
	// Write appends content bytes. Valid after Open(Write).
	Write(p []byte) (n int, err error)
	// Close releases the stream. Safe on an item that was never opened and
	// safe to call more than once.
	Close() error
}
