package item_test

import (
	"fmt"
	"testing"

	"github.com/caravelhq/caravel/internal/item"
	"github.com/stretchr/testify/assert"
)

type stubItem struct {
	item.Item
	name string
	size int64
}

func (s stubItem) Name() string { return s.name }
func (s stubItem) Size() int64  { return s.size }

func TestBundle(t *testing.T) {
	t.Run("empty bundle", func(t *testing.T) {
		b := item.NewBundle()
		assert.Equal(t, 0, b.Count())
		assert.Equal(t, int64(0), b.TotalSize())
	})

	t.Run("accumulates count and size in order", func(t *testing.T) {
		b := item.NewBundle(stubItem{name: "a", size: 0}, stubItem{name: "b", size: 10})
		b.Add(stubItem{name: "c", size: 5})

		assert.Equal(t, 3, b.Count())
		assert.Equal(t, int64(15), b.TotalSize())
		assert.Equal(t, "a", b.Item(0).Name())
		assert.Equal(t, "c", b.Item(2).Name())
	})
}

func TestRegistry(t *testing.T) {
	r := item.NewRegistry()
	r.Register("file", item.HandlerFunc(func(typ string, props map[string]interface{}) (item.Item, error) {
		name, _ := props["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("missing name")
		}
		return stubItem{name: name}, nil
	}))

	t.Run("find registered handler", func(t *testing.T) {
		h, ok := r.Find("file")
		assert.True(t, ok)

		it, err := h.CreateItem("file", map[string]interface{}{"name": "notes.txt"})
		assert.NoError(t, err)
		assert.Equal(t, "notes.txt", it.Name())
	})

	t.Run("handler errors surface", func(t *testing.T) {
		h, _ := r.Find("file")
		_, err := h.CreateItem("file", map[string]interface{}{})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, ok := r.Find("url")
		assert.False(t, ok)
	})
}
