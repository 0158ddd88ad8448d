package item

// Bundle is an ordered collection of items queued for sending, along with a
// running item count and total content size.
type Bundle struct {
	items []Item
	size  int64
}

func NewBundle(items ...Item) *Bundle {
	b := &Bundle{}
	for _, it := range items {
		b.Add(it)
	}
	return b
}

// Add appends it and grows the total size by its declared size.
func (b *Bundle) Add(it Item) {
	b.items = append(b.items, it)
	b.size += it.Size()
}

// Count reports the number of items in the bundle.
func (b *Bundle) Count() int {
	return len(b.items)
}

// TotalSize reports the declared content bytes across all items.
func (b *Bundle) TotalSize() int64 {
	return b.size
}

// Item returns the item at index i, in send order.
func (b *Bundle) Item(i int) Item {
	return b.items[i]
}

// Items returns the bundle's items in send order.
func (b *Bundle) Items() []Item {
	return b.items
}
