// Package fsitem provides the filesystem-backed items a transfer moves:
// regular files and directories, the handler that reconstructs them under a
// destination root, and bundle gathering from command line paths.
package fsitem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/caravelhq/caravel/internal/item"
)

// Collision decides what happens when a received file already exists at its
// destination path.
type Collision int

const (
	// CollisionRename writes the file under a numbered variant of its name.
	CollisionRename Collision = iota
	// CollisionOverwrite replaces the existing file.
	CollisionOverwrite
	// CollisionFail aborts the transfer.
	CollisionFail
)

func (c Collision) Name() string {
	switch c {
	case CollisionRename:
		return "rename"
	case CollisionOverwrite:
		return "overwrite"
	case CollisionFail:
		return "fail"
	default:
		return ""
	}
}

// ParseCollision resolves a configured collision policy name.
func ParseCollision(s string) (Collision, error) {
	switch s {
	case "rename", "":
		return CollisionRename, nil
	case "overwrite":
		return CollisionOverwrite, nil
	case "fail":
		return CollisionFail, nil
	default:
		return 0, fmt.Errorf("invalid collision policy %q (rename|overwrite|fail)", s)
	}
}

// File is an item backed by a regular file: read from a source path when
// sending, written under a destination root when receiving.
type File struct {
	name         string // slash-separated wire name
	size         int64
	lastModified int64

	src       string // send side: path of the source file
	dest      string // receive side: destination root
	collision Collision

	f *os.File
}

// NewFile creates a sendable file item. name is the slash-separated name put
// on the wire; path is where the content lives locally.
func NewFile(path, name string, info os.FileInfo) *File {
	return &File{
		name:         name,
		size:         info.Size(),
		lastModified: info.ModTime().Unix(),
		src:          path,
	}
}

func (f *File) Type() string { return "file" }
func (f *File) Name() string { return f.name }
func (f *File) Size() int64  { return f.size }

func (f *File) Properties() map[string]interface{} {
	return map[string]interface{}{
		"type":          "file",
		"name":          f.name,
		"size":          strconv.FormatInt(f.size, 10),
		"last_modified": strconv.FormatInt(f.lastModified, 10),
	}
}

func (f *File) Open(mode item.Mode) error {
	switch mode {
	case item.Read:
		src, err := os.Open(f.src)
		if err != nil {
			return err
		}
		f.f = src
		return nil
	case item.Write:
		path := filepath.Join(f.dest, filepath.FromSlash(f.name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		path, err := resolveCollision(path, f.collision)
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		f.f = dst
		return nil
	default:
		return fmt.Errorf("invalid open mode %d", mode)
	}
}

func (f *File) Read(p []byte) (int, error) {
	return f.f.Read(p)
}

func (f *File) Write(p []byte) (int, error) {
	return f.f.Write(p)
}

func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// resolveCollision returns the path a received file should be written to,
// applying the configured policy when the path is already taken.
func resolveCollision(path string, policy Collision) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path, nil
	}
	switch policy {
	case CollisionOverwrite:
		return path, nil
	case CollisionFail:
		return "", fmt.Errorf("%s already exists", path)
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
}
