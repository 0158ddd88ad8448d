package fsitem_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/fsitem"
	"github.com/caravelhq/caravel/internal/item"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestGather(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.txt"), "0123456789")
	writeFile(t, filepath.Join(root, "photos", "a.jpg"), "aaaa")
	writeFile(t, filepath.Join(root, "photos", "raw", "b.raw"), "bb")

	t.Run("single file", func(t *testing.T) {
		bundle, err := fsitem.Gather([]string{filepath.Join(root, "notes.txt")})
		require.NoError(t, err)
		require.Equal(t, 1, bundle.Count())
		assert.Equal(t, "notes.txt", bundle.Item(0).Name())
		assert.Equal(t, int64(10), bundle.TotalSize())
	})

	t.Run("directory tree", func(t *testing.T) {
		bundle, err := fsitem.Gather([]string{filepath.Join(root, "photos")})
		require.NoError(t, err)

		var names []string
		for _, it := range bundle.Items() {
			names = append(names, it.Name())
		}
		// Parents come before children.
		assert.Equal(t, []string{"photos", "photos/a.jpg", "photos/raw", "photos/raw/b.raw"}, names)
		assert.Equal(t, "directory", bundle.Item(0).Type())
		assert.Equal(t, "file", bundle.Item(1).Type())
		assert.Equal(t, int64(6), bundle.TotalSize())
	})

	t.Run("mixed arguments", func(t *testing.T) {
		bundle, err := fsitem.Gather([]string{
			filepath.Join(root, "notes.txt"),
			filepath.Join(root, "photos"),
		})
		require.NoError(t, err)
		assert.Equal(t, 5, bundle.Count())
		assert.Equal(t, int64(16), bundle.TotalSize())
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := fsitem.Gather([]string{filepath.Join(root, "nope")})
		assert.Error(t, err)
	})
}

func TestFileRoundTrip(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeFile(t, filepath.Join(src, "notes.txt"), "0123456789")

	bundle, err := fsitem.Gather([]string{filepath.Join(src, "notes.txt")})
	require.NoError(t, err)
	sent := bundle.Item(0)

	props := sent.Properties()
	assert.Equal(t, "file", props["type"])
	assert.Equal(t, "notes.txt", props["name"])
	assert.Equal(t, "10", props["size"])
	assert.Contains(t, props, "last_modified")

	// Read side.
	require.NoError(t, sent.Open(item.Read))
	content, err := io.ReadAll(readerOf(sent))
	require.NoError(t, err)
	require.NoError(t, sent.Close())
	assert.Equal(t, "0123456789", string(content))

	// Write side through the handler, as the receiving engine would.
	h := &fsitem.Handler{Dest: dest}
	received, err := h.CreateItem("file", props)
	require.NoError(t, err)
	assert.Equal(t, int64(10), received.Size())

	require.NoError(t, received.Open(item.Write))
	_, err = received.Write(content)
	require.NoError(t, err)
	require.NoError(t, received.Close())

	got, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))
}

func TestDirectoryItem(t *testing.T) {
	dest := t.TempDir()
	h := &fsitem.Handler{Dest: dest}

	dir, err := h.CreateItem("directory", map[string]interface{}{
		"type": "directory",
		"name": "photos/raw",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), dir.Size())

	require.NoError(t, dir.Open(item.Write))
	require.NoError(t, dir.Close())

	info, err := os.Stat(filepath.Join(dest, "photos", "raw"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestHandlerSanitizesNames(t *testing.T) {
	h := &fsitem.Handler{Dest: t.TempDir()}

	tests := []struct {
		name string
		prop interface{}
	}{
		{name: "absolute", prop: "/etc/passwd"},
		{name: "escaping", prop: "../../outside"},
		{name: "sneaky escaping", prop: "photos/../../outside"},
		{name: "missing", prop: nil},
		{name: "empty", prop: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.CreateItem("file", map[string]interface{}{"name": tt.prop, "size": "1"})
			assert.Error(t, err)
		})
	}

	t.Run("inner dot segments are fine", func(t *testing.T) {
		it, err := h.CreateItem("file", map[string]interface{}{"name": "photos/./a.jpg", "size": "1"})
		require.NoError(t, err)
		assert.Equal(t, "photos/a.jpg", it.Name())
	})
}

func TestHandlerSizeParsing(t *testing.T) {
	h := &fsitem.Handler{Dest: t.TempDir()}

	tests := []struct {
		name string
		prop interface{}
		want int64
	}{
		{name: "decimal string", prop: "1099511627776", want: 1 << 40},
		{name: "legacy number", prop: float64(42), want: 42},
		{name: "garbage", prop: "lots", want: 0},
		{name: "missing", prop: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := h.CreateItem("file", map[string]interface{}{"name": "x", "size": tt.prop})
			require.NoError(t, err)
			assert.Equal(t, tt.want, it.Size())
		})
	}
}

func TestCollisionPolicies(t *testing.T) {
	write := func(h *fsitem.Handler, content string) error {
		it, err := h.CreateItem("file", map[string]interface{}{
			"name": "notes.txt",
			"size": "1",
		})
		if err != nil {
			return err
		}
		if err := it.Open(item.Write); err != nil {
			return err
		}
		if _, err := it.Write([]byte(content)); err != nil {
			return err
		}
		return it.Close()
	}

	t.Run("rename", func(t *testing.T) {
		dest := t.TempDir()
		h := &fsitem.Handler{Dest: dest, Collision: fsitem.CollisionRename}
		require.NoError(t, write(h, "a"))
		require.NoError(t, write(h, "b"))
		require.NoError(t, write(h, "c"))

		first, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
		require.NoError(t, err)
		assert.Equal(t, "a", string(first))

		second, err := os.ReadFile(filepath.Join(dest, "notes (1).txt"))
		require.NoError(t, err)
		assert.Equal(t, "b", string(second))

		third, err := os.ReadFile(filepath.Join(dest, "notes (2).txt"))
		require.NoError(t, err)
		assert.Equal(t, "c", string(third))
	})

	t.Run("overwrite", func(t *testing.T) {
		dest := t.TempDir()
		h := &fsitem.Handler{Dest: dest, Collision: fsitem.CollisionOverwrite}
		require.NoError(t, write(h, "a"))
		require.NoError(t, write(h, "b"))

		got, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
		require.NoError(t, err)
		assert.Equal(t, "b", string(got))
	})

	t.Run("fail", func(t *testing.T) {
		dest := t.TempDir()
		h := &fsitem.Handler{Dest: dest, Collision: fsitem.CollisionFail}
		require.NoError(t, write(h, "a"))
		assert.Error(t, write(h, "b"))
	})
}

func TestParseCollision(t *testing.T) {
	tests := []struct {
		in      string
		want    fsitem.Collision
		wantErr bool
	}{
		{in: "rename", want: fsitem.CollisionRename},
		{in: "", want: fsitem.CollisionRename},
		{in: "overwrite", want: fsitem.CollisionOverwrite},
		{in: "fail", want: fsitem.CollisionFail},
		{in: "explode", wantErr: true},
	}
	for _, tt := range tests {
		got, err := fsitem.ParseCollision(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

// readerOf adapts an opened item to io.Reader for the test.
func readerOf(it item.Item) io.Reader {
	return readerFunc(it.Read)
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
