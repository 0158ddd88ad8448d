package wire_test

import (
	"bytes"
	"testing"

	"github.com/caravelhq/caravel/protocol/wire"
	"github.com/stretchr/testify/assert"
)

func TestStreamFraming(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		var buf bytes.Buffer
		packets := []wire.Packet{
			{Type: wire.Json, Payload: []byte(`{"name":"alpha","count":"2","size":"10"}`)},
			{Type: wire.Binary, Payload: []byte{0x00, 0x01, 0x02, 0x03}},
			{Type: wire.Success},
			{Type: wire.Error, Payload: []byte("transfer cancelled")},
		}
		for _, p := range packets {
			err := wire.Write(&buf, p)
			assert.NoError(t, err)
		}
		for _, want := range packets {
			got, err := wire.Read(&buf)
			assert.NoError(t, err)
			assert.Equal(t, want.Type, got.Type)
			assert.Equal(t, want.Payload, got.Payload)
		}
	})

	t.Run("layout is little-endian length, type byte, payload", func(t *testing.T) {
		var buf bytes.Buffer
		err := wire.Write(&buf, wire.Packet{Type: wire.Binary, Payload: []byte("ab")})
		assert.NoError(t, err)
		assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0x03, 'a', 'b'}, buf.Bytes())
	})

	t.Run("success packet is a lone type byte", func(t *testing.T) {
		var buf bytes.Buffer
		err := wire.Write(&buf, wire.Packet{Type: wire.Success})
		assert.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x00}, buf.Bytes())
	})

	t.Run("zero length rejected", func(t *testing.T) {
		_, err := wire.Read(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x00}))
		assert.Error(t, err)
	})

	t.Run("negative length rejected", func(t *testing.T) {
		_, err := wire.Read(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
		assert.Error(t, err)
	})

	t.Run("truncated body", func(t *testing.T) {
		_, err := wire.Read(bytes.NewReader([]byte{0x05, 0x00, 0x00, 0x00, 0x03, 'a'}))
		assert.Error(t, err)
	})
}

func TestMessageFraming(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, p := range []wire.Packet{
			{Type: wire.Error, Payload: []byte("boom")},
			{Type: wire.Success},
		} {
			got, err := wire.Unmarshal(p.Marshal())
			assert.NoError(t, err)
			assert.Equal(t, p, got)
		}
	})

	t.Run("empty message rejected", func(t *testing.T) {
		_, err := wire.Unmarshal(nil)
		assert.Error(t, err)
	})
}

func TestTransferHeader(t *testing.T) {
	t.Run("encodes counts as decimal strings", func(t *testing.T) {
		h := wire.NewTransferHeader("alpha", 2, 10)
		assert.Equal(t, wire.TransferHeader{Name: "alpha", Count: "2", Size: "10"}, h)
	})

	t.Run("survives 64-bit sizes", func(t *testing.T) {
		h := wire.NewTransferHeader("alpha", 1, 1<<62)
		count, size := h.Totals()
		assert.Equal(t, 1, count)
		assert.Equal(t, int64(1)<<62, size)
	})

	t.Run("unparseable totals map to zero", func(t *testing.T) {
		count, size := wire.TransferHeader{Count: "many", Size: ""}.Totals()
		assert.Equal(t, 0, count)
		assert.Equal(t, int64(0), size)
	})
}

func TestItemType(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]interface{}
		want  string
	}{
		{name: "explicit type wins", props: map[string]interface{}{"type": "url", "directory": true}, want: "url"},
		{name: "legacy directory key", props: map[string]interface{}{"directory": true, "name": "photos"}, want: "directory"},
		{name: "defaults to file", props: map[string]interface{}{"name": "notes.txt"}, want: "file"},
		{name: "non-string type resolves empty", props: map[string]interface{}{"type": 3}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wire.ItemType(tt.props))
		})
	}
}
