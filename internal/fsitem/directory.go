package fsitem

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/caravelhq/caravel/internal/item"
)

// Directory is an item that carries no content; its header alone instructs
// the receiver to create the directory. Parent directories always travel
// before their children.
type Directory struct {
	name string // slash-separated wire name
	dest string // receive side: destination root
}

// NewDirectory creates a sendable directory item with the given wire name.
func NewDirectory(name string) *Directory {
	return &Directory{name: name}
}

func (d *Directory) Type() string { return "directory" }
func (d *Directory) Name() string { return d.name }
func (d *Directory) Size() int64  { return 0 }

func (d *Directory) Properties() map[string]interface{} {
	return map[string]interface{}{
		"type": "directory",
		"name": d.name,
		"size": "0",
	}
}

func (d *Directory) Open(mode item.Mode) error {
	if mode == item.Write {
		return os.MkdirAll(filepath.Join(d.dest, filepath.FromSlash(d.name)), 0755)
	}
	return nil
}

func (d *Directory) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func (d *Directory) Write(p []byte) (int, error) {
	return 0, errors.New("directories carry no content")
}

func (d *Directory) Close() error {
	return nil
}
