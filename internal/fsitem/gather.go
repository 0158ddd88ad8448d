package fsitem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caravelhq/caravel/internal/item"
)

// Gather builds a bundle from the given paths. A regular file becomes one
// item named by its base name; a directory is walked recursively, every
// entry named relative to the directory's parent with slash separators.
// Directories are emitted before their children so the receiver can create
// them first.
func Gather(paths []string) (*item.Bundle, error) {
	bundle := item.NewBundle()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("unable to read %q: %w", p, err)
		}
		if !info.IsDir() {
			bundle.Add(NewFile(p, filepath.Base(p), info))
			continue
		}
		if err := gatherDir(bundle, p); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

func gatherDir(bundle *item.Bundle, root string) error {
	base := filepath.Dir(filepath.Clean(root))
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() {
			bundle.Add(NewDirectory(name))
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			// Sockets, devices and the like have no portable representation.
			return nil
		}
		bundle.Add(NewFile(path, name, info))
		return nil
	})
}
